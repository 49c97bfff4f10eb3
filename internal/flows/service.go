package flows

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/imrishuroy/go-paymentlinks/internal/links"
	"github.com/imrishuroy/go-paymentlinks/internal/notify"
	"github.com/imrishuroy/go-paymentlinks/internal/provider"
	"github.com/imrishuroy/go-paymentlinks/internal/reconcile"
)

const defaultLinkTTL = 30 * 24 * time.Hour

// LinkStore is the record store the flows read and write.
type LinkStore interface {
	Put(ctx context.Context, link *links.PaymentLink) error
	Get(ctx context.Context, id string) (*links.PaymentLink, error)
	UpdateFields(ctx context.Context, id string, fields map[string]interface{}) (*links.PaymentLink, error)
	UpdateNotificationStatus(ctx context.Context, id string, upd links.NotificationUpdate) (*links.PaymentLink, error)
}

type Provider interface {
	CreateCheckout(ctx context.Context, req provider.CheckoutRequest) (*provider.Checkout, error)
	GetStatus(ctx context.Context, ref string) (*provider.StatusSnapshot, error)
}

type Counter interface {
	Count(ctx context.Context, name string, dims ...string)
}

// Deps wires a Service.
type Deps struct {
	Store      LinkStore
	Provider   Provider
	Locator    reconcile.Locator
	Engine     *reconcile.Engine
	Dispatcher notify.Dispatcher
	Metrics    Counter
	Log        *logrus.Entry
	LinkTTL    time.Duration
}

// Service runs the create, status poll and webhook flows. Each call is an
// independent unit of work; the store is the only shared state.
type Service struct {
	store      LinkStore
	provider   Provider
	locator    reconcile.Locator
	engine     *reconcile.Engine
	dispatcher notify.Dispatcher
	metrics    Counter
	log        *logrus.Entry
	linkTTL    time.Duration
	nowFunc    func() time.Time
	newID      func() string
}

func NewService(d Deps) *Service {
	ttl := d.LinkTTL
	if ttl <= 0 {
		ttl = defaultLinkTTL
	}
	return &Service{
		store:      d.Store,
		provider:   d.Provider,
		locator:    d.Locator,
		engine:     d.Engine,
		dispatcher: d.Dispatcher,
		metrics:    d.Metrics,
		log:        d.Log,
		linkTTL:    ttl,
		nowFunc:    time.Now,
		newID:      uuid.NewString,
	}
}

func (s *Service) count(ctx context.Context, name string, dims ...string) {
	if s.metrics != nil {
		s.metrics.Count(ctx, name, dims...)
	}
}

// saveNotifications records dispatch outcomes. Failures are logged only.
func (s *Service) saveNotifications(ctx context.Context, id string, sms, email *notify.Outcome) {
	upd := links.NotificationUpdate{}
	if sms != nil {
		upd.SMS = sms.ChannelStatus()
	}
	if email != nil {
		upd.Email = email.ChannelStatus()
	}
	if upd.SMS == nil && upd.Email == nil {
		return
	}
	if _, err := s.store.UpdateNotificationStatus(ctx, id, upd); err != nil {
		s.log.WithFields(logrus.Fields{
			"paymentLinkId": id,
			"error":         err.Error(),
		}).Error("failed to update notification status")
	}
}

func messageFor(l *links.PaymentLink, ch notify.Channel, kind notify.Kind) notify.Message {
	to := l.Customer.Email
	if ch == notify.ChannelSMS {
		to = l.Customer.Phone
	}
	return notify.Message{
		PaymentLinkID: l.ID,
		Channel:       ch,
		Kind:          kind,
		To:            to,
		CustomerName:  l.Customer.Name,
		InvoiceNumber: l.Invoice.Number,
		Description:   l.Invoice.Description,
		Amount:        l.Amount,
		Currency:      l.Currency,
		CheckoutURL:   l.CheckoutURL,
		TransactionID: l.TransactionID,
		Reason:        l.FailureReason,
		LineItems:     l.LineItems,
	}
}
