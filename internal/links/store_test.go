package links_test

import (
	"context"
	"errors"
	"testing"
	"time"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imrishuroy/go-paymentlinks/internal/links"
	"github.com/imrishuroy/go-paymentlinks/internal/links/linkstest"
)

func newLink(id string, status links.Status) *links.PaymentLink {
	now := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	return &links.PaymentLink{
		ID:              id,
		ProviderLinkRef: "link2pay_" + id,
		CheckoutURL:     "https://mxmerchant.com/Link2Pay/udid?InvoiceNo=RO-252656",
		Status:          status,
		Amount:          487.50,
		Currency:        "USD",
		Invoice:         links.Invoice{Number: "RO-252656", Description: "Brake Service Complete"},
		Customer:        links.Customer{Name: "Sarah Johnson", Email: "sarah.johnson@email.com", Phone: "+15551234567"},
		EventHistory: []links.HistoryEntry{{
			EventType: "created", Status: links.StatusCreated, Timestamp: now,
			Source: links.SourceSystem, Description: "Payment link created",
		}},
		Notifications: links.NotificationStatus{
			SMS:   links.ChannelStatus{Status: links.NotificationPending},
			Email: links.ChannelStatus{Status: links.NotificationPending},
		},
		CreatedAt: now,
		UpdatedAt: now,
		TTL:       now.Add(30 * 24 * time.Hour).Unix(),
	}
}

func TestPutGet_RoundTrip(t *testing.T) {
	store, _ := linkstest.NewStore()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, newLink("pl-1", links.StatusCreated)))

	got, err := store.Get(ctx, "pl-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, links.StatusCreated, got.Status)
	assert.Equal(t, "Sarah Johnson", got.Customer.Name)
	assert.Len(t, got.EventHistory, 1)
	assert.Equal(t, links.NotificationPending, got.Notifications.SMS.Status)

	missing, err := store.Get(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestPut_RefusesDuplicateID(t *testing.T) {
	store, _ := linkstest.NewStore()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, newLink("pl-1", links.StatusCreated)))
	err := store.Put(ctx, newLink("pl-1", links.StatusCreated))
	assert.ErrorIs(t, err, links.ErrAlreadyExists)
}

func TestUpdateFields_SetsFieldsAndUpdatedAt(t *testing.T) {
	store, _ := linkstest.NewStore()
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, newLink("pl-1", links.StatusCreated)))

	paid := 487.50
	completedAt := time.Date(2024, 1, 15, 10, 45, 0, 0, time.UTC)
	updated, err := store.UpdateFields(ctx, "pl-1", map[string]interface{}{
		links.AttrStatus:        links.StatusCompleted,
		links.AttrTransactionID: "txn_12345",
		links.AttrPaidAmount:    &paid,
		links.AttrBalance:       (*float64)(nil),
		links.AttrCompletedAt:   &completedAt,
	})
	require.NoError(t, err)

	assert.Equal(t, links.StatusCompleted, updated.Status)
	assert.Equal(t, "txn_12345", updated.TransactionID)
	require.NotNil(t, updated.PaidAmount)
	assert.Equal(t, 487.50, *updated.PaidAmount)
	assert.Nil(t, updated.Balance)
	require.NotNil(t, updated.CompletedAt)
	assert.True(t, completedAt.Equal(*updated.CompletedAt))
	assert.True(t, updated.UpdatedAt.After(updated.CreatedAt))
	assert.Len(t, updated.EventHistory, 1, "field updates never touch history")
}

func TestUpdateFields_MissingRecord(t *testing.T) {
	store, _ := linkstest.NewStore()
	_, err := store.UpdateFields(context.Background(), "ghost", map[string]interface{}{links.AttrStatus: links.StatusFailed})
	assert.ErrorIs(t, err, links.ErrNotFound)
}

func TestAppendHistory_AppendsInOrder(t *testing.T) {
	store, _ := linkstest.NewStore()
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, newLink("pl-1", links.StatusCreated)))

	for _, et := range []string{"invoice.sent", "payment.completed"} {
		_, err := store.AppendHistory(ctx, "pl-1", links.HistoryEntry{
			EventType: et, Status: links.StatusPending, Source: links.SourceWebhook, Description: et,
			Metadata: map[string]interface{}{"transactionId": "txn_1"},
		})
		require.NoError(t, err)
	}

	got, err := store.Get(ctx, "pl-1")
	require.NoError(t, err)
	require.Len(t, got.EventHistory, 3)
	assert.Equal(t, "created", got.EventHistory[0].EventType)
	assert.Equal(t, "invoice.sent", got.EventHistory[1].EventType)
	assert.Equal(t, "payment.completed", got.EventHistory[2].EventType)
	assert.False(t, got.EventHistory[2].Timestamp.IsZero())
	assert.Equal(t, "txn_1", got.EventHistory[2].Metadata["transactionId"])
}

func TestUpdateNotificationStatus_PerChannel(t *testing.T) {
	store, _ := linkstest.NewStore()
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, newLink("pl-1", links.StatusCreated)))

	sentAt := time.Now().UTC()
	got, err := store.UpdateNotificationStatus(ctx, "pl-1", links.NotificationUpdate{
		SMS: &links.ChannelStatus{Status: links.NotificationSent, MessageID: "SM123", SentAt: &sentAt},
	})
	require.NoError(t, err)
	assert.Equal(t, links.NotificationSent, got.Notifications.SMS.Status)
	assert.Equal(t, "SM123", got.Notifications.SMS.MessageID)
	assert.Equal(t, links.NotificationPending, got.Notifications.Email.Status, "email untouched")

	got, err = store.UpdateNotificationStatus(ctx, "pl-1", links.NotificationUpdate{
		Email: &links.ChannelStatus{Status: links.NotificationFailed},
	})
	require.NoError(t, err)
	assert.Equal(t, links.NotificationFailed, got.Notifications.Email.Status)
	assert.Equal(t, links.NotificationSent, got.Notifications.SMS.Status)
}

func TestQueryByStatus_FiltersAndPaginates(t *testing.T) {
	store, fake := linkstest.NewStore()
	fake.PageSize = 2
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, newLink("a", links.StatusCreated)))
	require.NoError(t, store.Put(ctx, newLink("b", links.StatusPending)))
	require.NoError(t, store.Put(ctx, newLink("c", links.StatusCreated)))
	require.NoError(t, store.Put(ctx, newLink("d", links.StatusCompleted)))
	require.NoError(t, store.Put(ctx, newLink("e", links.StatusCreated)))

	created, err := store.QueryByStatus(ctx, links.StatusCreated, 0)
	require.NoError(t, err)
	ids := []string{}
	for _, l := range created {
		ids = append(ids, l.ID)
	}
	assert.Equal(t, []string{"a", "c", "e"}, ids)
	assert.Equal(t, 3, fake.ScanCalls)

	limited, err := store.QueryByStatus(ctx, links.StatusCreated, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestQueryByStatus_ScanError(t *testing.T) {
	store, fake := linkstest.NewStore()
	fake.FailScan = func(*dyn.ScanInput) error { return errors.New("throttled") }

	_, err := store.QueryByStatus(context.Background(), links.StatusCreated, 10)
	assert.ErrorContains(t, err, "throttled")
}

func TestPaymentLinkHelpers(t *testing.T) {
	l := newLink("pl-1", links.StatusCreated)
	assert.True(t, l.IsActive())
	assert.Equal(t, "$487.50", l.FormattedAmount())
	assert.Equal(t, "Created", l.StatusInfo().Label)
	assert.Equal(t, "created", l.LatestEvent().EventType)
	assert.Len(t, l.EventsByType("created"), 1)

	l.Status = links.StatusCompleted
	assert.False(t, l.IsActive())

	l.Status = links.Status("bogus")
	assert.False(t, l.Status.Valid())
	assert.Equal(t, "Unknown", l.StatusInfo().Label)

	assert.Equal(t, "12.00 EUR", links.FormatMoney(12, "EUR"))
}
