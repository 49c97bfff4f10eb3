package flows

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/imrishuroy/go-paymentlinks/internal/apperr"
	"github.com/imrishuroy/go-paymentlinks/internal/aws"
	"github.com/imrishuroy/go-paymentlinks/internal/links"
	"github.com/imrishuroy/go-paymentlinks/internal/provider"
	"github.com/imrishuroy/go-paymentlinks/internal/reconcile"
)

// PollEventType labels history entries written by status polls.
const PollEventType = "status.poll"

type PublicCustomer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type ProviderStatusView struct {
	Status        string   `json:"status"`
	Amount        *float64 `json:"amount,omitempty"`
	Currency      string   `json:"currency,omitempty"`
	TransactionID string   `json:"transactionId,omitempty"`
	LastUpdated   string   `json:"lastUpdated,omitempty"`
}

// StatusView is the public record view. The customer phone is never included.
type StatusView struct {
	ID                 string                   `json:"id"`
	ProviderLinkRef    string                   `json:"providerLinkRef,omitempty"`
	ProviderInvoiceRef string                   `json:"providerInvoiceRef,omitempty"`
	CheckoutURL        string                   `json:"checkoutUrl"`
	Status             links.Status             `json:"status"`
	StatusInfo         links.StatusInfo         `json:"statusInfo"`
	IsActive           bool                     `json:"isActive"`
	Amount             float64                  `json:"amount"`
	FormattedAmount    string                   `json:"formattedAmount"`
	Currency           string                   `json:"currency"`
	Invoice            links.Invoice            `json:"invoice"`
	Customer           PublicCustomer           `json:"customer"`
	LineItems          []links.LineItem         `json:"lineItems"`
	TransactionID      string                   `json:"transactionId,omitempty"`
	PaidAmount         *float64                 `json:"paidAmount,omitempty"`
	Balance            *float64                 `json:"balance,omitempty"`
	PaymentMethod      string                   `json:"paymentMethod,omitempty"`
	CreatedAt          time.Time                `json:"createdAt"`
	UpdatedAt          time.Time                `json:"updatedAt"`
	LastSyncAt         *time.Time               `json:"lastSyncAt,omitempty"`
	CompletedAt        *time.Time               `json:"completedAt,omitempty"`
	FailedAt           *time.Time               `json:"failedAt,omitempty"`
	FailureReason      string                   `json:"failureReason,omitempty"`
	CancelledAt        *time.Time               `json:"cancelledAt,omitempty"`
	PartiallyPaidAt    *time.Time               `json:"partiallyPaidAt,omitempty"`
	EventHistory       []links.HistoryEntry     `json:"eventHistory"`
	NotificationStatus links.NotificationStatus `json:"notificationStatus"`
	MXMerchantStatus   *ProviderStatusView      `json:"mxMerchantStatus"`
}

// GetStatus returns the stored record, reconciled against the provider's live
// status when possible. Provider failures degrade to the stored view with a
// nil snapshot; they never fail the read.
func (s *Service) GetStatus(ctx context.Context, id string) (*StatusView, error) {
	if strings.TrimSpace(id) == "" {
		return nil, apperr.Validation("Payment link ID is required")
	}
	record, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, apperr.Upstream("Failed to get payment status", err)
	}
	if record == nil {
		return nil, apperr.NotFound("Payment link not found")
	}

	log := s.log.WithFields(logrus.Fields{"paymentLinkId": id, "status": record.Status})

	var snap *provider.StatusSnapshot
	if record.ProviderLinkRef != "" {
		snap, record = s.poll(ctx, log, record)
	}
	return publicView(record, snap), nil
}

func (s *Service) poll(ctx context.Context, log *logrus.Entry, record *links.PaymentLink) (*provider.StatusSnapshot, *links.PaymentLink) {
	snap, err := s.provider.GetStatus(ctx, record.ProviderLinkRef)
	if err != nil {
		log.WithFields(logrus.Fields{
			"providerRef": record.ProviderLinkRef,
			"error":       err.Error(),
		}).Error("failed to fetch status from provider; using stored status")
		s.count(ctx, aws.MetricProviderPollFailed)
		return nil, record
	}

	now := s.nowFunc().UTC()
	if strings.EqualFold(strings.TrimSpace(snap.Status), string(record.Status)) {
		updated, err := s.store.UpdateFields(ctx, record.ID, map[string]interface{}{links.AttrLastSyncAt: now})
		if err != nil {
			log.WithField("error", err.Error()).Warn("failed to record last sync time")
			return snap, record
		}
		return snap, updated
	}

	log.WithField("providerStatus", snap.Status).Info("status mismatch detected, reconciling")
	ev := reconcile.Event{
		EventType:      PollEventType,
		ProviderStatus: snap.Status,
		Timestamp:      parseProviderTime(snap.UpdatedAt, now),
		TransactionID:  snap.TransactionID,
	}
	res, err := s.engine.Reconcile(ctx, record, reconcile.MapStatus(ev), links.SourcePoll)
	if err != nil {
		log.WithField("error", err.Error()).Error("failed to reconcile polled status; using stored status")
		return snap, record
	}
	return snap, res.Record
}

func parseProviderTime(s string, fallback time.Time) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(s)); err == nil {
		return t.UTC()
	}
	return fallback
}

func publicView(l *links.PaymentLink, snap *provider.StatusSnapshot) *StatusView {
	v := &StatusView{
		ID:                 l.ID,
		ProviderLinkRef:    l.ProviderLinkRef,
		ProviderInvoiceRef: l.ProviderInvoiceRef,
		CheckoutURL:        l.CheckoutURL,
		Status:             l.Status,
		StatusInfo:         l.StatusInfo(),
		IsActive:           l.IsActive(),
		Amount:             l.Amount,
		FormattedAmount:    l.FormattedAmount(),
		Currency:           l.Currency,
		Invoice:            l.Invoice,
		Customer:           PublicCustomer{Name: l.Customer.Name, Email: l.Customer.Email},
		LineItems:          l.LineItems,
		TransactionID:      l.TransactionID,
		PaidAmount:         l.PaidAmount,
		Balance:            l.Balance,
		PaymentMethod:      l.PaymentMethod,
		CreatedAt:          l.CreatedAt,
		UpdatedAt:          l.UpdatedAt,
		LastSyncAt:         l.LastSyncAt,
		EventHistory:       l.EventHistory,
		NotificationStatus: l.Notifications,
	}
	if v.LineItems == nil {
		v.LineItems = []links.LineItem{}
	}
	if v.EventHistory == nil {
		v.EventHistory = []links.HistoryEntry{}
	}

	// status-specific fields are shown only for the current status
	switch l.Status {
	case links.StatusCompleted:
		v.CompletedAt = l.CompletedAt
	case links.StatusFailed:
		v.FailedAt = l.FailedAt
		v.FailureReason = l.FailureReason
	case links.StatusCancelled:
		v.CancelledAt = l.CancelledAt
	case links.StatusPartial:
		v.PartiallyPaidAt = l.PartiallyPaidAt
	}

	if snap != nil {
		v.MXMerchantStatus = &ProviderStatusView{
			Status:        snap.Status,
			Amount:        snap.Amount,
			Currency:      snap.Currency,
			TransactionID: snap.TransactionID,
			LastUpdated:   snap.UpdatedAt,
		}
	}
	return v
}
