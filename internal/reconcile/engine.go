package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/imrishuroy/go-paymentlinks/internal/apperr"
	"github.com/imrishuroy/go-paymentlinks/internal/aws"
	"github.com/imrishuroy/go-paymentlinks/internal/links"
)

// Notification is the customer message a reconciliation calls for.
type Notification string

const (
	NotifyNone         Notification = "none"
	NotifyConfirmation Notification = "confirmation"
	NotifyFailure      Notification = "failure"
)

// Store is the subset of links.Store the engine writes through.
type Store interface {
	UpdateFields(ctx context.Context, id string, fields map[string]interface{}) (*links.PaymentLink, error)
	AppendHistory(ctx context.Context, id string, entry links.HistoryEntry) (*links.PaymentLink, error)
}

type Counter interface {
	Count(ctx context.Context, name string, dims ...string)
}

// Result describes one applied reconciliation.
type Result struct {
	Record         *links.PaymentLink
	PreviousStatus links.Status
	// Transitioned is true when the stored status changed.
	Transitioned bool
	Notification Notification
	Entry        links.HistoryEntry
	// HistoryAppended is false when the status write landed but the history
	// append did not.
	HistoryAppended bool
}

// Engine applies mapped provider events to stored payment links.
type Engine struct {
	store   Store
	metrics Counter
	log     *logrus.Entry
	nowFunc func() time.Time
}

func NewEngine(store Store, metrics Counter, log *logrus.Entry) *Engine {
	return &Engine{
		store:   store,
		metrics: metrics,
		log:     log,
		nowFunc: time.Now,
	}
}

// Reconcile writes m onto record and appends one history entry. Every call
// appends, including repeats of an already-applied event. Status timestamps are
// written only the first time the status is reached.
func (e *Engine) Reconcile(ctx context.Context, record *links.PaymentLink, m Mapped, source string) (*Result, error) {
	if record == nil {
		return nil, apperr.NotFound("Payment link not found")
	}
	now := e.nowFunc().UTC()
	eventTime := m.Timestamp
	if eventTime.IsZero() {
		eventTime = now
	}

	fields := derivedFields(m)
	fields[links.AttrStatus] = m.Status
	if m.TimestampAttr != "" && !timestampSet(record, m.TimestampAttr) {
		fields[m.TimestampAttr] = eventTime
	}
	switch source {
	case links.SourceWebhook:
		fields[links.AttrWebhookReceivedAt] = now
	case links.SourcePoll:
		fields[links.AttrLastSyncAt] = now
	}

	updated, err := e.store.UpdateFields(ctx, record.ID, fields)
	if err != nil {
		return nil, apperr.Upstream("Failed to update payment link", err)
	}

	log := e.log.WithFields(logrus.Fields{
		"paymentLinkId":  record.ID,
		"previousStatus": record.Status,
		"status":         m.Status,
		"eventType":      m.Event.EventType,
		"source":         source,
	})

	res := &Result{
		Record:         updated,
		PreviousStatus: record.Status,
		Transitioned:   record.Status != m.Status,
		Notification:   notificationFor(m.Status),
		Entry: links.HistoryEntry{
			EventType:   m.Event.EventType,
			Status:      m.Status,
			Timestamp:   eventTime,
			Source:      source,
			Description: describe(updated, m),
			Metadata:    historyMetadata(m),
		},
	}

	withHistory, err := e.store.AppendHistory(ctx, record.ID, res.Entry)
	if err != nil {
		log.WithField("error", err.Error()).Error("status updated but history append failed")
	} else {
		res.Record = withHistory
		res.HistoryAppended = true
	}

	if e.metrics != nil {
		e.metrics.Count(ctx, aws.MetricReconciliationApplied, "Status", string(m.Status), "Source", source)
	}
	log.WithField("transitioned", res.Transitioned).Info("payment link reconciled")
	return res, nil
}

func notificationFor(s links.Status) Notification {
	switch s {
	case links.StatusCompleted:
		return NotifyConfirmation
	case links.StatusFailed:
		return NotifyFailure
	}
	return NotifyNone
}

func derivedFields(m Mapped) map[string]interface{} {
	ev := m.Event
	fields := map[string]interface{}{}
	setString := func(attr, v string) {
		if v != "" {
			fields[attr] = v
		}
	}
	setString(links.AttrTransactionID, ev.TransactionID)
	setString(links.AttrPaymentMethod, ev.PaymentMethod)
	setString(links.AttrInvoiceNumber, ev.InvoiceNumber)
	setString(links.AttrReceiptNumber, ev.ReceiptNumber)
	setString(links.AttrFailureReason, m.FailureReason)
	setString(links.AttrUnknownEventType, m.UnknownEventType)
	if ev.PaidAmount != nil {
		fields[links.AttrPaidAmount] = *ev.PaidAmount
	}
	if ev.Balance != nil {
		fields[links.AttrBalance] = *ev.Balance
	}
	return fields
}

func timestampSet(l *links.PaymentLink, attr string) bool {
	switch attr {
	case links.AttrCompletedAt:
		return l.CompletedAt != nil
	case links.AttrFailedAt:
		return l.FailedAt != nil
	case links.AttrCancelledAt:
		return l.CancelledAt != nil
	case links.AttrPartiallyPaidAt:
		return l.PartiallyPaidAt != nil
	case links.AttrSentAt:
		return l.SentAt != nil
	}
	return false
}

func describe(l *links.PaymentLink, m Mapped) string {
	paid := l.Amount
	if m.Event.PaidAmount != nil {
		paid = *m.Event.PaidAmount
	}
	switch m.Status {
	case links.StatusCompleted:
		return "Payment completed - " + links.FormatMoney(paid, l.Currency)
	case links.StatusFailed:
		return "Payment failed - " + m.FailureReason
	case links.StatusPartial:
		return fmt.Sprintf("Partial payment received - %s of %s",
			links.FormatMoney(paid, l.Currency), links.FormatMoney(l.Amount, l.Currency))
	case links.StatusCancelled:
		return "Payment link cancelled"
	case links.StatusPending:
		return "Payment link sent to customer"
	case links.StatusCreated:
		return "Payment link created"
	}
	return fmt.Sprintf("Unrecognized provider event %q", m.Event.EventType)
}

func historyMetadata(m Mapped) map[string]interface{} {
	ev := m.Event
	md := map[string]interface{}{}
	for k, v := range ev.Metadata {
		md[k] = v
	}
	if ev.ProviderStatus != "" {
		md["providerStatus"] = ev.ProviderStatus
	}
	if ev.TransactionID != "" {
		md["transactionId"] = ev.TransactionID
	}
	if ev.PaymentMethod != "" {
		md["paymentMethod"] = ev.PaymentMethod
	}
	if ev.PaidAmount != nil {
		md["paidAmount"] = *ev.PaidAmount
	}
	if ev.Balance != nil {
		md["balance"] = *ev.Balance
	}
	if len(md) == 0 {
		return nil
	}
	return md
}
