package links

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the canonical status of a payment link.
type Status string

const (
	StatusCreated   Status = "created"
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusPartial   Status = "partial"
	StatusCancelled Status = "cancelled"
	StatusUnknown   Status = "unknown"
)

var allStatuses = []Status{
	StatusCreated, StatusPending, StatusCompleted, StatusFailed,
	StatusPartial, StatusCancelled, StatusUnknown,
}

// Valid reports whether s is a member of the closed enumeration.
func (s Status) Valid() bool {
	for _, v := range allStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Event sources recorded in history entries.
const (
	SourceSystem  = "system"
	SourceWebhook = "webhook"
	SourcePoll    = "poll"
)

// Notification delivery states for one channel.
type NotificationState string

const (
	NotificationPending NotificationState = "pending"
	NotificationNotSent NotificationState = "not_sent"
	NotificationQueued  NotificationState = "queued"
	NotificationSent    NotificationState = "sent"
	NotificationFailed  NotificationState = "failed"
)

type Invoice struct {
	Number      string `dynamodbav:"number" json:"number"`
	Description string `dynamodbav:"description,omitempty" json:"description,omitempty"`
}

type Customer struct {
	Name  string `dynamodbav:"name" json:"name"`
	Email string `dynamodbav:"email" json:"email"`
	Phone string `dynamodbav:"phone,omitempty" json:"phone,omitempty"`
}

type LineItem struct {
	Description string  `dynamodbav:"description" json:"description"`
	Quantity    int     `dynamodbav:"quantity" json:"quantity"`
	UnitPrice   float64 `dynamodbav:"unit_price" json:"unitPrice"`
	TotalPrice  float64 `dynamodbav:"total_price" json:"totalPrice"`
}

// HistoryEntry is one immutable audit record of a status-affecting event.
type HistoryEntry struct {
	EventType   string                 `dynamodbav:"event_type" json:"eventType"`
	Status      Status                 `dynamodbav:"status" json:"status"`
	Timestamp   time.Time              `dynamodbav:"timestamp" json:"timestamp"`
	Source      string                 `dynamodbav:"source" json:"source"`
	Description string                 `dynamodbav:"description" json:"description"`
	Metadata    map[string]interface{} `dynamodbav:"metadata,omitempty" json:"metadata,omitempty"`
}

// ChannelStatus tracks delivery of one notification channel.
type ChannelStatus struct {
	Status    NotificationState `dynamodbav:"status" json:"status"`
	MessageID string            `dynamodbav:"message_id,omitempty" json:"messageId,omitempty"`
	SentAt    *time.Time        `dynamodbav:"sent_at,omitempty" json:"sentAt,omitempty"`
}

type NotificationStatus struct {
	SMS   ChannelStatus `dynamodbav:"sms" json:"sms"`
	Email ChannelStatus `dynamodbav:"email" json:"email"`
}

// PaymentLink is the item stored in the payment links DynamoDB table.
type PaymentLink struct {
	ID                 string     `dynamodbav:"payment_link_id"` // PK
	ProviderLinkRef    string     `dynamodbav:"provider_link_ref,omitempty"`
	ProviderInvoiceRef string     `dynamodbav:"provider_invoice_ref,omitempty"`
	CheckoutURL        string     `dynamodbav:"checkout_url"`
	Status             Status     `dynamodbav:"status"`
	Amount             float64    `dynamodbav:"amount"`
	Currency           string     `dynamodbav:"currency"`
	Invoice            Invoice    `dynamodbav:"invoice"`
	Customer           Customer   `dynamodbav:"customer"`
	LineItems          []LineItem `dynamodbav:"line_items"`

	TransactionID         string   `dynamodbav:"transaction_id,omitempty"`
	PaidAmount            *float64 `dynamodbav:"paid_amount,omitempty"`
	Balance               *float64 `dynamodbav:"balance,omitempty"`
	PaymentMethod         string   `dynamodbav:"payment_method,omitempty"`
	ProviderInvoiceNumber string   `dynamodbav:"provider_invoice_number,omitempty"`
	ReceiptNumber         string   `dynamodbav:"receipt_number,omitempty"`

	CompletedAt       *time.Time `dynamodbav:"completed_at,omitempty"`
	FailedAt          *time.Time `dynamodbav:"failed_at,omitempty"`
	CancelledAt       *time.Time `dynamodbav:"cancelled_at,omitempty"`
	PartiallyPaidAt   *time.Time `dynamodbav:"partially_paid_at,omitempty"`
	SentAt            *time.Time `dynamodbav:"sent_at,omitempty"`
	FailureReason     string     `dynamodbav:"failure_reason,omitempty"`
	UnknownEventType  string     `dynamodbav:"unknown_event_type,omitempty"`
	WebhookReceivedAt *time.Time `dynamodbav:"webhook_received_at,omitempty"`
	LastSyncAt        *time.Time `dynamodbav:"last_sync_at,omitempty"`

	EventHistory  []HistoryEntry     `dynamodbav:"event_history"`
	Notifications NotificationStatus `dynamodbav:"notification_status"`

	CreatedAt time.Time `dynamodbav:"created_at"`
	UpdatedAt time.Time `dynamodbav:"updated_at"`
	TTL       int64     `dynamodbav:"ttl"` // epoch seconds
}

// Attribute names used in partial updates.
const (
	AttrID                 = "payment_link_id"
	AttrStatus             = "status"
	AttrUpdatedAt          = "updated_at"
	AttrTransactionID      = "transaction_id"
	AttrPaidAmount         = "paid_amount"
	AttrBalance            = "balance"
	AttrPaymentMethod      = "payment_method"
	AttrInvoiceNumber      = "provider_invoice_number"
	AttrReceiptNumber      = "receipt_number"
	AttrCompletedAt        = "completed_at"
	AttrFailedAt           = "failed_at"
	AttrCancelledAt        = "cancelled_at"
	AttrPartiallyPaidAt    = "partially_paid_at"
	AttrSentAt             = "sent_at"
	AttrFailureReason      = "failure_reason"
	AttrUnknownEventType   = "unknown_event_type"
	AttrWebhookReceivedAt  = "webhook_received_at"
	AttrLastSyncAt         = "last_sync_at"
	AttrEventHistory       = "event_history"
	AttrNotificationStatus = "notification_status"
)

// StatusTimestampAttr returns the once-only timestamp attribute for s, if any.
func StatusTimestampAttr(s Status) (string, bool) {
	switch s {
	case StatusCompleted:
		return AttrCompletedAt, true
	case StatusFailed:
		return AttrFailedAt, true
	case StatusCancelled:
		return AttrCancelledAt, true
	case StatusPartial:
		return AttrPartiallyPaidAt, true
	case StatusPending:
		return AttrSentAt, true
	}
	return "", false
}

type StatusInfo struct {
	Label       string `json:"label"`
	Description string `json:"description"`
}

var statusInfo = map[Status]StatusInfo{
	StatusCreated:   {"Created", "Payment link has been created and is ready for use"},
	StatusPending:   {"Pending", "Payment is being processed"},
	StatusCompleted: {"Completed", "Payment has been successfully processed"},
	StatusFailed:    {"Failed", "Payment processing failed"},
	StatusPartial:   {"Partially Paid", "A partial payment has been received"},
	StatusCancelled: {"Cancelled", "Payment link has been cancelled or expired"},
	StatusUnknown:   {"Unknown", "Payment status is unknown"},
}

func (p *PaymentLink) StatusInfo() StatusInfo {
	if info, ok := statusInfo[p.Status]; ok {
		return info
	}
	return statusInfo[StatusUnknown]
}

// IsActive reports whether the link can still be paid.
func (p *PaymentLink) IsActive() bool {
	return p.Status == StatusCreated || p.Status == StatusPending
}

// FormattedAmount renders the face value, e.g. "$487.50".
func (p *PaymentLink) FormattedAmount() string {
	return FormatMoney(p.Amount, p.Currency)
}

// LatestEvent returns the most recent history entry, or nil.
func (p *PaymentLink) LatestEvent() *HistoryEntry {
	if len(p.EventHistory) == 0 {
		return nil
	}
	return &p.EventHistory[len(p.EventHistory)-1]
}

func (p *PaymentLink) EventsByType(eventType string) []HistoryEntry {
	var out []HistoryEntry
	for _, e := range p.EventHistory {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

// FormatMoney formats an amount with two decimals. USD and CAD both use "$".
func FormatMoney(amount float64, currency string) string {
	s := decimal.NewFromFloat(amount).StringFixed(2)
	switch currency {
	case "", "USD", "CAD":
		return "$" + s
	default:
		return s + " " + currency
	}
}
