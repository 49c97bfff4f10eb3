package flows

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imrishuroy/go-paymentlinks/internal/apperr"
	"github.com/imrishuroy/go-paymentlinks/internal/aws"
	"github.com/imrishuroy/go-paymentlinks/internal/links"
	"github.com/imrishuroy/go-paymentlinks/internal/links/linkstest"
	"github.com/imrishuroy/go-paymentlinks/internal/provider"
)

func TestGetStatus_NotFound(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.GetStatus(context.Background(), "missing")
	assert.True(t, isKind(err, apperr.KindNotFound))

	_, err = h.svc.GetStatus(context.Background(), " ")
	assert.True(t, isKind(err, apperr.KindValidation))
}

func TestGetStatus_ProviderFailureDegrades(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "pl-1", links.StatusCreated)
	h.provider.statusErr = errors.New("connection reset")

	view, err := h.svc.GetStatus(context.Background(), "pl-1")
	require.NoError(t, err)
	assert.Equal(t, links.StatusCreated, view.Status)
	assert.Nil(t, view.MXMerchantStatus)
	assert.Contains(t, h.metrics.names, aws.MetricProviderPollFailed)

	raw, err := json.Marshal(view)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"mxMerchantStatus":null`)
	assert.NotContains(t, string(raw), "+15551234567")
}

func TestGetStatus_NoProviderRefSkipsPoll(t *testing.T) {
	h := newHarness(t)
	l := seedWithoutProviderRef(t, h)

	view, err := h.svc.GetStatus(context.Background(), l.ID)
	require.NoError(t, err)
	assert.Nil(t, view.MXMerchantStatus)
	assert.Zero(t, h.provider.statusCalls)
}

func TestGetStatus_SameStatusRecordsSync(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "pl-1", links.StatusCreated)
	h.provider.snap = &provider.StatusSnapshot{Status: "Created"}

	view, err := h.svc.GetStatus(context.Background(), "pl-1")
	require.NoError(t, err)
	assert.Equal(t, links.StatusCreated, view.Status)
	require.NotNil(t, view.MXMerchantStatus)
	assert.Equal(t, "Created", view.MXMerchantStatus.Status)
	require.NotNil(t, view.LastSyncAt)
	assert.Len(t, view.EventHistory, 1)
}

func TestGetStatus_ChangedStatusReconciles(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "pl-1", links.StatusCreated)
	amount := 487.5
	h.provider.snap = &provider.StatusSnapshot{
		Status:        "completed",
		Amount:        &amount,
		Currency:      "USD",
		TransactionID: "txn_poll",
		UpdatedAt:     "2024-01-15T11:45:00Z",
	}

	view, err := h.svc.GetStatus(context.Background(), "pl-1")
	require.NoError(t, err)
	assert.Equal(t, links.StatusCompleted, view.Status)
	assert.Equal(t, "txn_poll", view.TransactionID)
	assert.False(t, view.IsActive)
	require.NotNil(t, view.CompletedAt)
	assert.Equal(t, "2024-01-15T11:45:00Z", view.CompletedAt.Format("2006-01-02T15:04:05Z07:00"))
	require.NotNil(t, view.LastSyncAt)

	require.Len(t, view.EventHistory, 2)
	last := view.EventHistory[1]
	assert.Equal(t, PollEventType, last.EventType)
	assert.Equal(t, links.SourcePoll, last.Source)
	assert.Equal(t, "Payment completed - $487.50", last.Description)
	assert.Equal(t, "2024-01-15T11:45:00Z", view.MXMerchantStatus.LastUpdated)

	// polls never send customer notifications
	assert.Empty(t, h.dispatcher.sent)
}

func TestGetStatus_ReconcileFailureReturnsStored(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "pl-1", links.StatusCreated)
	h.provider.snap = &provider.StatusSnapshot{Status: "failed"}
	h.fake.FailUpdate = func(*dyn.UpdateItemInput) error { return errors.New("throttled") }

	view, err := h.svc.GetStatus(context.Background(), "pl-1")
	require.NoError(t, err)
	assert.Equal(t, links.StatusCreated, view.Status)
	require.NotNil(t, view.MXMerchantStatus)
	assert.Equal(t, "failed", view.MXMerchantStatus.Status)
}

func TestPublicView_StatusSpecificFields(t *testing.T) {
	h := newHarness(t)
	l := h.seed(t, "pl-1", links.StatusFailed)
	at := flowNow
	l.FailedAt = &at
	l.FailureReason = "Card declined"
	l.CompletedAt = &at

	v := publicView(l, nil)
	assert.Equal(t, "Card declined", v.FailureReason)
	assert.NotNil(t, v.FailedAt)
	assert.Nil(t, v.CompletedAt)
	assert.Equal(t, "Failed", v.StatusInfo.Label)
	assert.Equal(t, "$487.50", v.FormattedAmount)
	assert.Equal(t, "Sarah Johnson", v.Customer.Name)
}

func seedWithoutProviderRef(t *testing.T, h *harness) *links.PaymentLink {
	t.Helper()
	l := linkstest.Link("pl-noref", links.StatusCreated)
	l.ProviderLinkRef = ""
	require.NoError(t, h.store.Put(context.Background(), l))
	return l
}
