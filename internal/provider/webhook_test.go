package provider

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imrishuroy/go-paymentlinks/internal/apperr"
	"github.com/imrishuroy/go-paymentlinks/internal/reconcile"
)

var received = time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

func TestParseWebhook_InvoiceShape(t *testing.T) {
	body := []byte(`{
		"invoiceId": 98765,
		"invoiceNumber": "1042",
		"eventType": "invoice.paid",
		"status": "paid",
		"transactionId": "txn_abc",
		"paymentMethod": "card",
		"paidAmount": 487.5,
		"balance": "0.00",
		"timestamp": "2024-01-15T11:30:00Z",
		"metadata": {"receiptNumber": "R-77"}
	}`)

	wh, err := ParseWebhook(body, received)
	require.NoError(t, err)
	assert.Equal(t, reconcile.Reference{Kind: reconcile.RefInvoice, Value: "98765"}, wh.Ref)

	ev := wh.Event
	assert.Equal(t, "invoice.paid", ev.EventType)
	assert.Equal(t, "paid", ev.ProviderStatus)
	assert.Equal(t, "txn_abc", ev.TransactionID)
	assert.Equal(t, "card", ev.PaymentMethod)
	require.NotNil(t, ev.PaidAmount)
	assert.Equal(t, 487.5, *ev.PaidAmount)
	require.NotNil(t, ev.Balance)
	assert.Equal(t, 0.0, *ev.Balance)
	assert.Equal(t, "1042", ev.InvoiceNumber)
	assert.Equal(t, "R-77", ev.ReceiptNumber)
	assert.True(t, time.Date(2024, 1, 15, 11, 30, 0, 0, time.UTC).Equal(ev.Timestamp))
}

func TestParseWebhook_LinkShape(t *testing.T) {
	wh, err := ParseWebhook([]byte(`{"paymentLinkId":"link2pay_1","event":"payment.completed"}`), received)
	require.NoError(t, err)
	assert.Equal(t, reconcile.RefLink, wh.Ref.Kind)
	assert.Equal(t, "link2pay_1", wh.Ref.Value)
	assert.Equal(t, "payment.completed", wh.Event.EventType)
	assert.Nil(t, wh.Event.PaidAmount)
	assert.Equal(t, received, wh.Event.Timestamp)
	assert.NotNil(t, wh.Event.Metadata)
}

func TestParseWebhook_InvoiceIDWins(t *testing.T) {
	wh, err := ParseWebhook([]byte(`{"invoiceId":"inv-1","paymentLinkId":"link2pay_1","eventType":"invoice.paid"}`), received)
	require.NoError(t, err)
	assert.Equal(t, reconcile.RefInvoice, wh.Ref.Kind)
	assert.Equal(t, "inv-1", wh.Ref.Value)
}

func TestParseWebhook_BadInput(t *testing.T) {
	_, err := ParseWebhook([]byte(`{not json`), received)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Equal(t, "Invalid JSON in webhook payload", apperr.MessageOf(err, ""))

	_, err = ParseWebhook([]byte(`{"eventType":"invoice.paid"}`), received)
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = ParseWebhook(nil, received)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestParseWebhook_BadTimestampFallsBack(t *testing.T) {
	wh, err := ParseWebhook([]byte(`{"invoiceId":"1","eventType":"x","timestamp":"yesterday"}`), received)
	require.NoError(t, err)
	assert.Equal(t, received, wh.Event.Timestamp)
}

func TestParseWebhook_LooselyTypedFields(t *testing.T) {
	body := []byte(`{
		"paymentLinkId": "link2pay_1",
		"eventType": "payment.completed",
		"status": 1,
		"paymentMethod": 5,
		"paidAmount": "n/a",
		"balance": {"value": 0},
		"currency": 840,
		"timestamp": 1705318200000,
		"metadata": "n/a"
	}`)

	wh, err := ParseWebhook(body, received)
	require.NoError(t, err)
	assert.Equal(t, reconcile.Reference{Kind: reconcile.RefLink, Value: "link2pay_1"}, wh.Ref)
	assert.Equal(t, "1", wh.Event.ProviderStatus)
	assert.Equal(t, "5", wh.Event.PaymentMethod)
	assert.Nil(t, wh.Event.PaidAmount)
	assert.Nil(t, wh.Event.Balance)
	assert.Equal(t, map[string]interface{}{}, wh.Event.Metadata)
	assert.True(t, time.Date(2024, 1, 15, 11, 30, 0, 0, time.UTC).Equal(wh.Event.Timestamp))
}

func TestParseWebhook_EpochTimestamps(t *testing.T) {
	want := time.Date(2024, 1, 15, 11, 30, 0, 0, time.UTC)
	for _, ts := range []string{`1705318200`, `1705318200000`, `"1705318200"`} {
		wh, err := ParseWebhook([]byte(`{"invoiceId":"1","eventType":"invoice.paid","timestamp":`+ts+`}`), received)
		require.NoError(t, err, ts)
		assert.True(t, want.Equal(wh.Event.Timestamp), ts)
	}
}

func TestParseWebhook_NonObjectMetadataAndBooleans(t *testing.T) {
	for _, md := range []string{`null`, `[1,2]`, `42`, `true`} {
		wh, err := ParseWebhook([]byte(`{"invoiceId":"1","event":"invoice.paid","metadata":`+md+`}`), received)
		require.NoError(t, err, md)
		assert.NotNil(t, wh.Event.Metadata, md)
		assert.Empty(t, wh.Event.Metadata, md)
	}

	wh, err := ParseWebhook([]byte(`{"invoiceId":"1","eventType":true}`), received)
	require.NoError(t, err)
	assert.Equal(t, "true", wh.Event.EventType)
}
