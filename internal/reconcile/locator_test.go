package reconcile

import (
	"context"
	"errors"
	"testing"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imrishuroy/go-paymentlinks/internal/apperr"
	"github.com/imrishuroy/go-paymentlinks/internal/links"
	"github.com/imrishuroy/go-paymentlinks/internal/links/linkstest"
	"github.com/imrishuroy/go-paymentlinks/internal/logging"
)

func TestLocate_MatchesByRefKind(t *testing.T) {
	store, _ := linkstest.NewStore()
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, linkstest.Link("pl-1", links.StatusCreated)))
	require.NoError(t, store.Put(ctx, linkstest.Link("pl-2", links.StatusPending)))

	loc := NewStatusScanLocator(store, 0, logging.Discard())

	got, err := loc.Locate(ctx, Reference{Kind: RefInvoice, Value: "inv-pl-2"})
	require.NoError(t, err)
	assert.Equal(t, "pl-2", got.ID)

	got, err = loc.Locate(ctx, Reference{Kind: RefLink, Value: "link2pay_pl-1"})
	require.NoError(t, err)
	assert.Equal(t, "pl-1", got.ID)

	// an invoice ref never matches a link ref value
	_, err = loc.Locate(ctx, Reference{Kind: RefInvoice, Value: "link2pay_pl-1"})
	assert.True(t, errors.Is(err, ErrNotLocated))
}

func TestLocate_TerminalRecordsNotFound(t *testing.T) {
	store, _ := linkstest.NewStore()
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, linkstest.Link("pl-1", links.StatusCompleted)))

	loc := NewStatusScanLocator(store, 0, logging.Discard())
	_, err := loc.Locate(ctx, Reference{Kind: RefInvoice, Value: "inv-pl-1"})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	assert.Equal(t, "Invoice not found", apperr.MessageOf(err, ""))
}

func TestLocate_EmptyRefNeverMatches(t *testing.T) {
	store, _ := linkstest.NewStore()
	ctx := context.Background()
	l := linkstest.Link("pl-1", links.StatusCreated)
	l.ProviderInvoiceRef = ""
	require.NoError(t, store.Put(ctx, l))

	loc := NewStatusScanLocator(store, 0, logging.Discard())
	_, err := loc.Locate(ctx, Reference{Kind: RefInvoice, Value: ""})
	assert.True(t, errors.Is(err, ErrNotLocated))
}

func TestLocate_ScanErrorIsUpstream(t *testing.T) {
	store, fake := linkstest.NewStore()
	fake.FailScan = func(*dyn.ScanInput) error { return errors.New("throttled") }

	loc := NewStatusScanLocator(store, 0, logging.Discard())
	_, err := loc.Locate(context.Background(), Reference{Kind: RefLink, Value: "x"})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindUpstream))
}
