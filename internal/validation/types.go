package validation

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/imrishuroy/go-paymentlinks/internal/links"
)

const DefaultCurrency = "USD"

type InvoiceInput struct {
	Number      string `json:"number" validate:"required"`
	Description string `json:"description,omitempty"`
}

type CustomerInput struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,loose_email"`
	Phone string `json:"phone,omitempty" validate:"omitempty,phone"`
}

type LineItemInput struct {
	Description string  `json:"description"`
	Quantity    int     `json:"quantity" validate:"gte=0"`
	UnitPrice   float64 `json:"unitPrice" validate:"gte=0"`
	TotalPrice  float64 `json:"totalPrice" validate:"gte=0"`
}

// CreatePaymentLinkRequest is the payload for POST /payment-links. Amount
// accepts a JSON number or a numeric string.
type CreatePaymentLinkRequest struct {
	Amount    *decimal.Decimal `json:"amount"`
	Currency  string           `json:"currency,omitempty" validate:"omitempty,oneof=USD CAD"`
	Invoice   *InvoiceInput    `json:"invoice"`
	Customer  *CustomerInput   `json:"customer"`
	LineItems []LineItemInput  `json:"lineItems,omitempty" validate:"omitempty,dive"`
	SendSMS   *bool            `json:"sendSMS,omitempty"`
	SendEmail *bool            `json:"sendEmail,omitempty"`
}

// ApplyDefaults fills currency and invoice description. Call after Validate.
func (r *CreatePaymentLinkRequest) ApplyDefaults() {
	r.Currency = strings.TrimSpace(r.Currency)
	if r.Currency == "" {
		r.Currency = DefaultCurrency
	}
	if r.Invoice != nil && strings.TrimSpace(r.Invoice.Description) == "" {
		r.Invoice.Description = "Payment for " + r.Invoice.Number
	}
}

func (r *CreatePaymentLinkRequest) AmountValue() float64 {
	if r.Amount == nil {
		return 0
	}
	return r.Amount.InexactFloat64()
}

// WantsSMS is true unless sendSMS was explicitly false.
func (r *CreatePaymentLinkRequest) WantsSMS() bool {
	return r.SendSMS == nil || *r.SendSMS
}

func (r *CreatePaymentLinkRequest) WantsEmail() bool {
	return r.SendEmail == nil || *r.SendEmail
}

func (r *CreatePaymentLinkRequest) InvoiceRecord() links.Invoice {
	if r.Invoice == nil {
		return links.Invoice{}
	}
	return links.Invoice{Number: r.Invoice.Number, Description: r.Invoice.Description}
}

func (r *CreatePaymentLinkRequest) CustomerRecord() links.Customer {
	if r.Customer == nil {
		return links.Customer{}
	}
	return links.Customer{Name: r.Customer.Name, Email: r.Customer.Email, Phone: r.Customer.Phone}
}

func (r *CreatePaymentLinkRequest) LineItemRecords() []links.LineItem {
	out := make([]links.LineItem, 0, len(r.LineItems))
	for _, it := range r.LineItems {
		out = append(out, links.LineItem{
			Description: it.Description,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			TotalPrice:  it.TotalPrice,
		})
	}
	return out
}
