package reconcile

import (
	"fmt"
	"strings"
	"time"

	"github.com/imrishuroy/go-paymentlinks/internal/links"
)

// DefaultFailureReason is used when a failure event carries no metadata.reason.
const DefaultFailureReason = "Payment failed"

// Event is a provider status signal, from a webhook delivery or a status poll.
type Event struct {
	EventType      string
	ProviderStatus string
	Timestamp      time.Time
	Metadata       map[string]interface{}

	TransactionID string
	PaidAmount    *float64
	Balance       *float64
	PaymentMethod string
	InvoiceNumber string
	ReceiptNumber string
}

// Mapped is the canonical interpretation of an Event.
type Mapped struct {
	Status links.Status
	// TimestampAttr names the once-only status timestamp this event sets, if any.
	TimestampAttr    string
	Timestamp        time.Time
	FailureReason    string
	UnknownEventType string
	Event            Event
}

type rule struct {
	status     links.Status
	substrings []string
}

// Evaluated in order; the first matching substring wins.
var eventTypeRules = []rule{
	{links.StatusCompleted, []string{"paid", "payment.completed"}},
	{links.StatusFailed, []string{"fail", "declined"}},
	{links.StatusPartial, []string{"partial"}},
	{links.StatusCancelled, []string{"cancel", "void", "expired"}},
	{links.StatusPending, []string{"sent", "created", "unpaid"}},
}

// Consulted only when no event-type rule matched.
var providerStatusRules = map[string]links.Status{
	"completed": links.StatusCompleted,
	"failed":    links.StatusFailed,
	"partial":   links.StatusPartial,
	"cancelled": links.StatusCancelled,
	"canceled":  links.StatusCancelled,
	"pending":   links.StatusPending,
}

// MapStatus classifies ev. It is pure: no I/O, no mutation of ev, and the same
// input always yields the same output. Unrecognized signals map to unknown.
func MapStatus(ev Event) Mapped {
	status, ok := classifyEventType(ev.EventType)
	if !ok {
		status, ok = providerStatusRules[strings.ToLower(strings.TrimSpace(ev.ProviderStatus))]
	}
	if !ok {
		status = links.StatusUnknown
	}

	m := Mapped{
		Status:    status,
		Timestamp: ev.Timestamp,
		Event:     ev,
	}
	if attr, ok := links.StatusTimestampAttr(status); ok {
		m.TimestampAttr = attr
	}
	switch status {
	case links.StatusFailed:
		m.FailureReason = failureReason(ev.Metadata)
	case links.StatusUnknown:
		m.UnknownEventType = ev.EventType
	}
	return m
}

func classifyEventType(eventType string) (links.Status, bool) {
	et := strings.ToLower(eventType)
	if et == "" {
		return "", false
	}
	for _, r := range eventTypeRules {
		for _, sub := range r.substrings {
			if strings.Contains(et, sub) {
				return r.status, true
			}
		}
	}
	return "", false
}

func failureReason(md map[string]interface{}) string {
	v, ok := md["reason"]
	if !ok || v == nil {
		return DefaultFailureReason
	}
	s := strings.TrimSpace(fmt.Sprint(v))
	if s == "" {
		return DefaultFailureReason
	}
	return s
}
