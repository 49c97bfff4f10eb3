package flows

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/imrishuroy/go-paymentlinks/internal/apperr"
	"github.com/imrishuroy/go-paymentlinks/internal/aws"
	"github.com/imrishuroy/go-paymentlinks/internal/links"
	"github.com/imrishuroy/go-paymentlinks/internal/notify"
	"github.com/imrishuroy/go-paymentlinks/internal/provider"
	"github.com/imrishuroy/go-paymentlinks/internal/reconcile"
)

// Reasons reported in a webhook's smsNotification.
const (
	ReasonNoPhoneOnFile   = "No phone number on file"
	ReasonNoNotification  = "No notification for status"
	ReasonSMSSendFailed   = "SMS sending failed"
	ReasonSMSQueued       = "SMS queued"
	defaultFailureSMSText = "Payment processing failed"
)

type SMSNotification struct {
	Sent      bool   `json:"sent"`
	MessageID string `json:"messageId,omitempty"`
	Status    string `json:"status,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

type WebhookResult struct {
	ID              string          `json:"id"`
	ProviderRef     string          `json:"providerRef"`
	Status          links.Status    `json:"status"`
	EventType       string          `json:"eventType"`
	TransactionID   string          `json:"transactionId,omitempty"`
	PaidAmount      *float64        `json:"paidAmount,omitempty"`
	Balance         *float64        `json:"balance,omitempty"`
	PaymentMethod   string          `json:"paymentMethod,omitempty"`
	InvoiceNumber   string          `json:"invoiceNumber,omitempty"`
	UpdatedAt       time.Time       `json:"updatedAt"`
	HistoryRecorded bool            `json:"historyRecorded"`
	SMSNotification SMSNotification `json:"smsNotification"`
}

// HandleWebhook parses a provider delivery, reconciles the matching record and
// sends the customer notification the new status calls for.
func (s *Service) HandleWebhook(ctx context.Context, body []byte) (*WebhookResult, error) {
	wh, err := provider.ParseWebhook(body, s.nowFunc())
	if err != nil {
		return nil, err
	}
	log := s.log.WithFields(logrus.Fields{
		"refKind":        wh.Ref.Kind,
		"providerRef":    wh.Ref.Value,
		"eventType":      wh.Event.EventType,
		"providerStatus": wh.Event.ProviderStatus,
	})
	log.Info("processing webhook event")

	record, err := s.locator.Locate(ctx, wh.Ref)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			s.count(ctx, aws.MetricWebhookNotFound)
		}
		return nil, err
	}

	res, err := s.engine.Reconcile(ctx, record, reconcile.MapStatus(wh.Event), links.SourceWebhook)
	if err != nil {
		log.WithField("error", err.Error()).Error("failed to apply webhook")
		return nil, apperr.Upstream("Failed to process webhook", err)
	}

	sms := s.notifyOutcome(ctx, res)

	updated := res.Record
	return &WebhookResult{
		ID:              updated.ID,
		ProviderRef:     wh.Ref.Value,
		Status:          updated.Status,
		EventType:       wh.Event.EventType,
		TransactionID:   wh.Event.TransactionID,
		PaidAmount:      wh.Event.PaidAmount,
		Balance:         wh.Event.Balance,
		PaymentMethod:   wh.Event.PaymentMethod,
		InvoiceNumber:   wh.Event.InvoiceNumber,
		UpdatedAt:       updated.UpdatedAt,
		HistoryRecorded: res.HistoryAppended,
		SMSNotification: sms,
	}, nil
}

// notifyOutcome sends the confirmation or failure notices. Completed links
// also get a confirmation email.
func (s *Service) notifyOutcome(ctx context.Context, res *reconcile.Result) SMSNotification {
	l := res.Record

	var kind notify.Kind
	switch res.Notification {
	case reconcile.NotifyConfirmation:
		kind = notify.KindConfirmation
	case reconcile.NotifyFailure:
		kind = notify.KindFailure
	}

	var smsOut, emailOut *notify.Outcome
	if kind != "" && l.Customer.Phone != "" {
		m := messageFor(l, notify.ChannelSMS, kind)
		if kind == notify.KindFailure && m.Reason == "" {
			m.Reason = defaultFailureSMSText
		}
		o := s.dispatcher.Dispatch(ctx, m)
		smsOut = &o
	}
	if kind == notify.KindConfirmation && l.Customer.Email != "" {
		o := s.dispatcher.Dispatch(ctx, messageFor(l, notify.ChannelEmail, kind))
		emailOut = &o
	}
	s.saveNotifications(ctx, l.ID, smsOut, emailOut)

	switch {
	case l.Customer.Phone == "":
		return SMSNotification{Reason: ReasonNoPhoneOnFile}
	case smsOut == nil:
		return SMSNotification{Reason: ReasonNoNotification}
	case smsOut.State == links.NotificationQueued:
		return SMSNotification{MessageID: smsOut.MessageID, Status: string(smsOut.State), Reason: ReasonSMSQueued}
	case !smsOut.Sent():
		return SMSNotification{Reason: ReasonSMSSendFailed}
	}
	return SMSNotification{Sent: true, MessageID: smsOut.MessageID, Status: smsOut.Status}
}
