package notify

import (
	"time"

	"github.com/imrishuroy/go-paymentlinks/internal/links"
)

type Channel string

const (
	ChannelSMS   Channel = "sms"
	ChannelEmail Channel = "email"
)

// Kind selects the message template.
type Kind string

const (
	KindPaymentLink  Kind = "payment_link"
	KindConfirmation Kind = "confirmation"
	KindFailure      Kind = "failure"
)

// Message is one customer notification. It is also the SQS job body in queue
// mode, so it carries everything the templates need.
type Message struct {
	PaymentLinkID string           `json:"paymentLinkId"`
	Channel       Channel          `json:"channel"`
	Kind          Kind             `json:"kind"`
	To            string           `json:"to"`
	CustomerName  string           `json:"customerName"`
	InvoiceNumber string           `json:"invoiceNumber"`
	Description   string           `json:"description,omitempty"`
	Amount        float64          `json:"amount"`
	Currency      string           `json:"currency"`
	CheckoutURL   string           `json:"checkoutUrl,omitempty"`
	TransactionID string           `json:"transactionId,omitempty"`
	Reason        string           `json:"reason,omitempty"`
	LineItems     []links.LineItem `json:"lineItems,omitempty"`
}

// Job wraps a queued Message.
type Job struct {
	JobID    string    `json:"jobId"`
	Message  Message   `json:"message"`
	QueuedAt time.Time `json:"queuedAt"`
}

// Receipt is what a provider returns for an accepted message.
type Receipt struct {
	MessageID string
	Status    string
}

// Outcome is the per-channel result of one dispatch. Dispatch never returns
// an error; failures land here.
type Outcome struct {
	Channel   Channel
	State     links.NotificationState
	MessageID string
	Status    string
	At        time.Time
	Err       error
}

func (o Outcome) Sent() bool {
	return o.State == links.NotificationSent
}

// ChannelStatus converts o to the stored per-channel form.
func (o Outcome) ChannelStatus() *links.ChannelStatus {
	cs := &links.ChannelStatus{Status: o.State, MessageID: o.MessageID}
	if o.State == links.NotificationSent && !o.At.IsZero() {
		at := o.At
		cs.SentAt = &at
	}
	return cs
}
