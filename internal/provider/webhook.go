package provider

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/imrishuroy/go-paymentlinks/internal/apperr"
	"github.com/imrishuroy/go-paymentlinks/internal/reconcile"
)

// flexString accepts a JSON string, number or boolean; MX sends ids either
// way. Objects and arrays decode to "" rather than failing the payload.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	*f = ""
	if len(b) == 0 {
		return nil
	}
	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
	case 't', 'f':
		*f = flexString(b)
	case 'n', '{', '[':
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return err
		}
		*f = flexString(n.String())
	}
	return nil
}

// flexDecimal is a money amount sent as a string or number. Values that do
// not parse are treated as absent.
type flexDecimal struct {
	d *decimal.Decimal
}

func (f *flexDecimal) UnmarshalJSON(b []byte) error {
	var s flexString
	if err := s.UnmarshalJSON(b); err != nil {
		return err
	}
	f.d = nil
	if d, err := decimal.NewFromString(strings.TrimSpace(string(s))); err == nil {
		f.d = &d
	}
	return nil
}

type webhookPayload struct {
	InvoiceID     flexString      `json:"invoiceId"`
	PaymentLinkID flexString      `json:"paymentLinkId"`
	InvoiceNumber flexString      `json:"invoiceNumber"`
	ReceiptNumber flexString      `json:"receiptNumber"`
	EventType     flexString      `json:"eventType"`
	Event         flexString      `json:"event"`
	Status        flexString      `json:"status"`
	TransactionID flexString      `json:"transactionId"`
	PaymentMethod flexString      `json:"paymentMethod"`
	PaidAmount    flexDecimal     `json:"paidAmount"`
	Balance       flexDecimal     `json:"balance"`
	Amount        flexDecimal     `json:"amount"`
	Currency      flexString      `json:"currency"`
	Timestamp     flexString      `json:"timestamp"`
	Metadata      json.RawMessage `json:"metadata"`
}

// Webhook is a parsed provider delivery.
type Webhook struct {
	Ref   reconcile.Reference
	Event reconcile.Event
}

// ParseWebhook decodes a webhook body. The invoice shape correlates on
// invoiceId and the link shape on paymentLinkId; invoiceId wins when both are
// present. receivedAt stands in for a missing or unparseable timestamp.
func ParseWebhook(body []byte, receivedAt time.Time) (*Webhook, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		body = []byte("{}")
	}
	var p webhookPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, apperr.Validation("Invalid JSON in webhook payload")
	}

	var ref reconcile.Reference
	switch {
	case p.InvoiceID != "":
		ref = reconcile.Reference{Kind: reconcile.RefInvoice, Value: string(p.InvoiceID)}
	case p.PaymentLinkID != "":
		ref = reconcile.Reference{Kind: reconcile.RefLink, Value: string(p.PaymentLinkID)}
	default:
		return nil, apperr.Validation("Webhook payload missing invoiceId or paymentLinkId")
	}

	eventType := string(p.EventType)
	if eventType == "" {
		eventType = string(p.Event)
	}
	md := metadataOf(p.Metadata)

	ev := reconcile.Event{
		EventType:      eventType,
		ProviderStatus: string(p.Status),
		Timestamp:      parseTimestamp(string(p.Timestamp), receivedAt),
		Metadata:       md,
		TransactionID:  string(p.TransactionID),
		PaymentMethod:  string(p.PaymentMethod),
		PaidAmount:     floatOf(p.PaidAmount.d),
		Balance:        floatOf(p.Balance.d),
		InvoiceNumber:  firstNonEmpty(string(p.InvoiceNumber), metaString(md, "invoiceNumber")),
		ReceiptNumber:  firstNonEmpty(string(p.ReceiptNumber), metaString(md, "receiptNumber")),
	}
	return &Webhook{Ref: ref, Event: ev}, nil
}

// parseTimestamp accepts RFC3339-like strings and epoch seconds or
// milliseconds.
func parseTimestamp(s string, fallback time.Time) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return fallback.UTC()
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil && n > 0 {
		if n >= 1e12 {
			return time.UnixMilli(n).UTC()
		}
		return time.Unix(n, 0).UTC()
	}
	return fallback.UTC()
}

// metadataOf returns the metadata object, or an empty map when it is absent
// or not an object.
func metadataOf(raw json.RawMessage) map[string]interface{} {
	md := map[string]interface{}{}
	if len(raw) == 0 {
		return md
	}
	if err := json.Unmarshal(raw, &md); err != nil || md == nil {
		return map[string]interface{}{}
	}
	return md
}

func floatOf(d *decimal.Decimal) *float64 {
	if d == nil {
		return nil
	}
	f := d.InexactFloat64()
	return &f
}

func metaString(md map[string]interface{}, key string) string {
	v, ok := md[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return decimal.NewFromFloat(t).String()
	}
	return fmt.Sprint(v)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
