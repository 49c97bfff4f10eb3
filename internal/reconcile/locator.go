package reconcile

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/imrishuroy/go-paymentlinks/internal/apperr"
	"github.com/imrishuroy/go-paymentlinks/internal/links"
)

// ErrNotLocated is wrapped by the not-found error Locate returns.
var ErrNotLocated = errors.New("no payment link matches provider reference")

// RefKind says which provider identifier an inbound event correlates on.
type RefKind string

const (
	RefLink    RefKind = "link"
	RefInvoice RefKind = "invoice"
)

// Reference is a provider-assigned identifier extracted from an event.
type Reference struct {
	Kind  RefKind
	Value string
}

// Matches compares only the identifier of r's kind.
func (r Reference) Matches(l *links.PaymentLink) bool {
	if r.Value == "" {
		return false
	}
	switch r.Kind {
	case RefInvoice:
		return l.ProviderInvoiceRef == r.Value
	case RefLink:
		return l.ProviderLinkRef == r.Value
	}
	return false
}

// Locator resolves a provider reference to the payment link it belongs to.
type Locator interface {
	Locate(ctx context.Context, ref Reference) (*links.PaymentLink, error)
}

type StatusQuerier interface {
	QueryByStatus(ctx context.Context, status links.Status, limit int) ([]links.PaymentLink, error)
}

// SearchedStatuses are the partitions scanned, in order. Records that already
// reached any other status are not found.
var SearchedStatuses = []links.Status{links.StatusCreated, links.StatusPending}

// StatusScanLocator scans the created, then pending, partitions for a match.
type StatusScanLocator struct {
	store StatusQuerier
	limit int
	log   *logrus.Entry
}

func NewStatusScanLocator(store StatusQuerier, limit int, log *logrus.Entry) *StatusScanLocator {
	if limit <= 0 {
		limit = links.DefaultQueryLimit
	}
	return &StatusScanLocator{store: store, limit: limit, log: log}
}

func (l *StatusScanLocator) Locate(ctx context.Context, ref Reference) (*links.PaymentLink, error) {
	for _, status := range SearchedStatuses {
		candidates, err := l.store.QueryByStatus(ctx, status, l.limit)
		if err != nil {
			return nil, apperr.Upstream("Failed to look up payment link", err)
		}
		for i := range candidates {
			if ref.Matches(&candidates[i]) {
				found := candidates[i]
				return &found, nil
			}
		}
	}

	l.log.WithFields(logrus.Fields{
		"refKind":  ref.Kind,
		"refValue": ref.Value,
	}).Warn("provider reference not found in created or pending payment links")

	msg := "Payment link not found"
	if ref.Kind == RefInvoice {
		msg = "Invoice not found"
	}
	return nil, &apperr.Error{Kind: apperr.KindNotFound, Message: msg, Err: ErrNotLocated}
}
