package flows

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/imrishuroy/go-paymentlinks/internal/apperr"
	"github.com/imrishuroy/go-paymentlinks/internal/links"
	"github.com/imrishuroy/go-paymentlinks/internal/links/linkstest"
	"github.com/imrishuroy/go-paymentlinks/internal/logging"
	"github.com/imrishuroy/go-paymentlinks/internal/notify"
	"github.com/imrishuroy/go-paymentlinks/internal/provider"
	"github.com/imrishuroy/go-paymentlinks/internal/reconcile"
	"github.com/imrishuroy/go-paymentlinks/internal/validation"
)

type fakeProvider struct {
	checkout    *provider.Checkout
	checkoutErr error
	snap        *provider.StatusSnapshot
	statusErr   error
	createCalls int
	statusCalls int
}

func (f *fakeProvider) CreateCheckout(context.Context, provider.CheckoutRequest) (*provider.Checkout, error) {
	f.createCalls++
	if f.checkoutErr != nil {
		return nil, f.checkoutErr
	}
	return f.checkout, nil
}

func (f *fakeProvider) GetStatus(context.Context, string) (*provider.StatusSnapshot, error) {
	f.statusCalls++
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	return f.snap, nil
}

type fakeDispatcher struct {
	sent []notify.Message
	fail map[notify.Channel]bool
}

func (f *fakeDispatcher) Dispatch(_ context.Context, m notify.Message) notify.Outcome {
	f.sent = append(f.sent, m)
	if f.fail[m.Channel] {
		return notify.Outcome{Channel: m.Channel, State: links.NotificationFailed, Err: errors.New("send failed")}
	}
	return notify.Outcome{
		Channel:   m.Channel,
		State:     links.NotificationSent,
		MessageID: string(m.Channel) + "-msg-1",
		Status:    "sent",
		At:        flowNow,
	}
}

type recordingCounter struct{ names []string }

func (r *recordingCounter) Count(_ context.Context, name string, _ ...string) {
	r.names = append(r.names, name)
}

var flowNow = time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

type harness struct {
	svc        *Service
	store      *links.Store
	fake       *linkstest.FakeDynamo
	provider   *fakeProvider
	dispatcher *fakeDispatcher
	metrics    *recordingCounter
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store, fake := linkstest.NewStore()
	prov := &fakeProvider{checkout: &provider.Checkout{
		Ref:      "link2pay_ref-1",
		DeviceID: "udid-1",
		URL:      "https://mxmerchant.com/Link2Pay/udid-1?InvoiceNo=RO-252656",
	}}
	disp := &fakeDispatcher{fail: map[notify.Channel]bool{}}
	metrics := &recordingCounter{}
	log := logging.Discard()

	svc := NewService(Deps{
		Store:      store,
		Provider:   prov,
		Locator:    reconcile.NewStatusScanLocator(store, 0, log),
		Engine:     reconcile.NewEngine(store, metrics, log),
		Dispatcher: disp,
		Metrics:    metrics,
		Log:        log,
	})
	svc.nowFunc = func() time.Time { return flowNow }
	svc.newID = func() string { return "pl-new" }

	return &harness{svc: svc, store: store, fake: fake, provider: prov, dispatcher: disp, metrics: metrics}
}

func (h *harness) seed(t *testing.T, id string, status links.Status) *links.PaymentLink {
	t.Helper()
	l := linkstest.Link(id, status)
	require.NoError(t, h.store.Put(context.Background(), l))
	return l
}

func createRequest() *validation.CreatePaymentLinkRequest {
	amt := decimal.RequireFromString("487.50")
	req := &validation.CreatePaymentLinkRequest{
		Amount:   &amt,
		Invoice:  &validation.InvoiceInput{Number: "RO-252656", Description: "Brake Service Complete"},
		Customer: &validation.CustomerInput{Name: "Sarah Johnson", Email: "sarah.johnson@email.com", Phone: "+15551234567"},
	}
	req.ApplyDefaults()
	return req
}

func isKind(err error, k apperr.Kind) bool { return apperr.Is(err, k) }
