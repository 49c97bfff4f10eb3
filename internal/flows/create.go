package flows

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/imrishuroy/go-paymentlinks/internal/apperr"
	"github.com/imrishuroy/go-paymentlinks/internal/links"
	"github.com/imrishuroy/go-paymentlinks/internal/notify"
	"github.com/imrishuroy/go-paymentlinks/internal/provider"
	"github.com/imrishuroy/go-paymentlinks/internal/validation"
)

// NotificationResult is the caller-facing outcome of one channel.
type NotificationResult struct {
	Sent      bool                    `json:"sent"`
	Status    links.NotificationState `json:"status"`
	MessageID string                  `json:"messageId,omitempty"`
	Reason    string                  `json:"reason,omitempty"`
}

type CreateResult struct {
	ID                string             `json:"id"`
	ProviderRef       string             `json:"providerRef"`
	CheckoutURL       string             `json:"checkoutUrl"`
	Status            links.Status       `json:"status"`
	Amount            float64            `json:"amount"`
	Currency          string             `json:"currency"`
	Invoice           links.Invoice      `json:"invoice"`
	Customer          links.Customer     `json:"customer"`
	CreatedAt         time.Time          `json:"createdAt"`
	SMSNotification   NotificationResult `json:"smsNotification"`
	EmailNotification NotificationResult `json:"emailNotification"`
}

// Create issues a checkout page, stores the new link and sends the payment
// link notifications. req must already be validated with defaults applied.
// Notification failures never fail the call.
func (s *Service) Create(ctx context.Context, req *validation.CreatePaymentLinkRequest) (*CreateResult, error) {
	log := s.log.WithFields(logrus.Fields{
		"invoiceNumber": req.Invoice.Number,
		"amount":        req.AmountValue(),
		"customerEmail": req.Customer.Email,
	})

	checkout, err := s.provider.CreateCheckout(ctx, provider.CheckoutRequest{
		Amount:    req.AmountValue(),
		Currency:  req.Currency,
		Invoice:   req.InvoiceRecord(),
		Customer:  req.CustomerRecord(),
		LineItems: req.LineItemRecords(),
	})
	if err != nil {
		log.WithField("error", err.Error()).Error("provider checkout failed")
		if apperr.Is(err, apperr.KindConfiguration) {
			return nil, err
		}
		return nil, apperr.Upstream("Failed to create payment link", err)
	}

	now := s.nowFunc().UTC()
	phone := req.Customer.Phone
	wantSMS := phone != "" && req.WantsSMS()
	wantEmail := req.Customer.Email != "" && req.WantsEmail()

	link := &links.PaymentLink{
		ID:              s.newID(),
		ProviderLinkRef: checkout.Ref,
		CheckoutURL:     checkout.URL,
		Status:          links.StatusCreated,
		Amount:          req.AmountValue(),
		Currency:        req.Currency,
		Invoice:         req.InvoiceRecord(),
		Customer:        req.CustomerRecord(),
		LineItems:       req.LineItemRecords(),
		EventHistory: []links.HistoryEntry{{
			EventType:   "created",
			Status:      links.StatusCreated,
			Timestamp:   now,
			Source:      links.SourceSystem,
			Description: "Payment link created",
		}},
		Notifications: links.NotificationStatus{
			SMS:   links.ChannelStatus{Status: initialState(wantSMS)},
			Email: links.ChannelStatus{Status: initialState(wantEmail)},
		},
		CreatedAt: now,
		UpdatedAt: now,
		TTL:       now.Add(s.linkTTL).Unix(),
	}
	if err := s.store.Put(ctx, link); err != nil {
		log.WithField("error", err.Error()).Error("failed to store payment link")
		return nil, apperr.Upstream("Failed to create payment link", err)
	}
	log = log.WithField("paymentLinkId", link.ID)
	log.Info("payment link stored")

	var smsOut, emailOut *notify.Outcome
	if wantSMS {
		o := s.dispatcher.Dispatch(ctx, messageFor(link, notify.ChannelSMS, notify.KindPaymentLink))
		smsOut = &o
	}
	if wantEmail {
		o := s.dispatcher.Dispatch(ctx, messageFor(link, notify.ChannelEmail, notify.KindPaymentLink))
		emailOut = &o
	}
	s.saveNotifications(ctx, link.ID, smsOut, emailOut)

	res := &CreateResult{
		ID:          link.ID,
		ProviderRef: link.ProviderLinkRef,
		CheckoutURL: link.CheckoutURL,
		Status:      link.Status,
		Amount:      link.Amount,
		Currency:    link.Currency,
		Invoice:     link.Invoice,
		Customer:    link.Customer,
		CreatedAt:   link.CreatedAt,
		SMSNotification: channelResult(smsOut, reasons{
			noTarget: "No phone number provided", disabled: "SMS disabled",
			failed: "SMS sending failed", queued: "SMS queued",
		}, phone != ""),
		EmailNotification: channelResult(emailOut, reasons{
			noTarget: "No email provided", disabled: "Email disabled",
			failed: "Email sending failed", queued: "Email queued",
		}, req.Customer.Email != ""),
	}
	log.Info("payment link created")
	return res, nil
}

func initialState(wanted bool) links.NotificationState {
	if wanted {
		return links.NotificationPending
	}
	return links.NotificationNotSent
}

type reasons struct {
	noTarget, disabled, failed, queued string
}

func channelResult(o *notify.Outcome, r reasons, hasTarget bool) NotificationResult {
	if o == nil {
		reason := r.disabled
		if !hasTarget {
			reason = r.noTarget
		}
		return NotificationResult{Status: links.NotificationNotSent, Reason: reason}
	}
	res := NotificationResult{Sent: o.Sent(), Status: o.State, MessageID: o.MessageID}
	switch o.State {
	case links.NotificationFailed:
		res.Reason = r.failed
	case links.NotificationQueued:
		res.Reason = r.queued
	}
	return res
}
