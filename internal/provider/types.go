package provider

import (
	"context"
	"fmt"

	"github.com/imrishuroy/go-paymentlinks/internal/links"
)

// CheckoutRequest is what the provider needs to issue a hosted payment page.
type CheckoutRequest struct {
	Amount    float64
	Currency  string
	Invoice   links.Invoice
	Customer  links.Customer
	LineItems []links.LineItem
}

// Checkout is a provider-issued hosted payment page.
type Checkout struct {
	Ref      string
	DeviceID string
	URL      string
}

// StatusSnapshot is the provider's live view of a payment link.
type StatusSnapshot struct {
	ID            string   `json:"id,omitempty"`
	Status        string   `json:"status"`
	Amount        *float64 `json:"amount,omitempty"`
	Currency      string   `json:"currency,omitempty"`
	TransactionID string   `json:"transactionId,omitempty"`
	CreatedAt     string   `json:"createdAt,omitempty"`
	UpdatedAt     string   `json:"updatedAt,omitempty"`
}

// Error is a failed provider call. Message is the provider's own message when
// the response carried one.
type Error struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: provider returned %d: %s", e.Op, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: provider returned %d", e.Op, e.StatusCode)
}

type device struct {
	UDID       string `json:"UDID"`
	Enabled    bool   `json:"enabled"`
	DeviceType string `json:"deviceType"`
}

type createDeviceRequest struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	DeviceType   string `json:"deviceType"`
	MerchantID   int64  `json:"merchantId"`
	Enabled      bool   `json:"enabled"`
	OnSuccessURL string `json:"onSuccessUrl,omitempty"`
	OnFailureURL string `json:"onFailureUrl,omitempty"`
}

type errorBody struct {
	Message string `json:"message"`
}

// Unavailable stands in for a client that could not be constructed; every
// call returns Err.
type Unavailable struct {
	Err error
}

func (u Unavailable) CreateCheckout(context.Context, CheckoutRequest) (*Checkout, error) {
	return nil, u.Err
}

func (u Unavailable) GetStatus(context.Context, string) (*StatusSnapshot, error) {
	return nil, u.Err
}
