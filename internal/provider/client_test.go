package provider

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/h2non/gock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imrishuroy/go-paymentlinks/internal/apperr"
	"github.com/imrishuroy/go-paymentlinks/internal/config"
	"github.com/imrishuroy/go-paymentlinks/internal/links"
	"github.com/imrishuroy/go-paymentlinks/internal/logging"
)

const apiURL = "https://api.mx.test"

func testConfig() config.MX {
	return config.MX{
		APIURL:         apiURL,
		ConsumerKey:    "key",
		ConsumerSecret: "secret",
		MerchantID:     "1000123",
		PaymentPageURL: "https://pay.mx.test",
		SuccessURL:     "https://shop.test/payment/success",
		FailureURL:     "https://shop.test/payment/cancel",
		Timeout:        2 * time.Second,
	}
}

func newTestClient(t *testing.T, devices DeviceCache) *Client {
	t.Helper()
	c, err := NewClient(testConfig(), devices, logging.Discard())
	require.NoError(t, err)
	return c
}

func checkoutRequest() CheckoutRequest {
	return CheckoutRequest{
		Amount:   487.5,
		Currency: "USD",
		Invoice:  links.Invoice{Number: "RO-252656", Description: "Brake Service Complete"},
		Customer: links.Customer{Name: "Sarah Johnson", Email: "sarah.johnson@email.com", Phone: "+15551234567"},
		LineItems: []links.LineItem{
			{Description: "Brake pads", Quantity: 2, UnitPrice: 100},
			{Description: "Labor", TotalPrice: 287.5},
		},
	}
}

func TestNewClient_MissingCredentials(t *testing.T) {
	cfg := testConfig()
	cfg.ConsumerSecret = ""
	_, err := NewClient(cfg, nil, logging.Discard())
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindConfiguration))
	assert.Contains(t, err.Error(), "credentials not configured")

	cfg = testConfig()
	cfg.MerchantID = "abc"
	_, err = NewClient(cfg, nil, logging.Discard())
	assert.True(t, apperr.Is(err, apperr.KindConfiguration))
}

func TestCreateCheckout_UsesExistingDevice(t *testing.T) {
	defer gock.Off()
	gock.New(apiURL).
		Get("/device").
		MatchParam("merchantId", "1000123").
		MatchParam("deviceType", "Link2Pay").
		MatchHeader("Authorization", "^Basic ").
		Reply(200).
		JSON([]map[string]interface{}{
			{"UDID": "disabled-1", "enabled": false, "deviceType": "Link2Pay"},
			{"UDID": "udid-1", "enabled": true, "deviceType": "Link2Pay"},
		})

	c := newTestClient(t, nil)
	co, err := c.CreateCheckout(context.Background(), checkoutRequest())
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(co.Ref, "link2pay_"))
	assert.Equal(t, "udid-1", co.DeviceID)

	u, err := url.Parse(co.URL)
	require.NoError(t, err)
	assert.Equal(t, "pay.mx.test", u.Host)
	assert.Equal(t, "/Link2Pay/udid-1", u.Path)
	q := u.Query()
	assert.Equal(t, "487.50", q.Get("Amt"))
	assert.Equal(t, "RO-252656", q.Get("InvoiceNo"))
	assert.Equal(t, "Sarah Johnson", q.Get("CustomerName"))
	assert.Equal(t, "sarah.johnson@email.com", q.Get("CustomerEmail"))
	assert.Equal(t, "+15551234567", q.Get("CustomerPhone"))
	assert.Equal(t, "Brake Service Complete", q.Get("Memo"))
	assert.Equal(t, "Brake pads", q.Get("Item1Description"))
	assert.Equal(t, "200.00", q.Get("Item1Amount"))
	assert.Equal(t, "2", q.Get("Item1Quantity"))
	assert.Equal(t, "287.50", q.Get("Item2Amount"))
	assert.Empty(t, q.Get("Item2Quantity"))
	assert.True(t, gock.IsDone())
}

func TestCreateCheckout_CreatesDeviceOnceAndCaches(t *testing.T) {
	defer gock.Off()
	gock.New(apiURL).
		Get("/device").
		Reply(200).
		JSON([]map[string]interface{}{})
	gock.New(apiURL).
		Post("/device").
		MatchParam("echo", "true").
		Reply(201).
		JSON(map[string]interface{}{"UDID": "udid-new"})

	cache := NewMemoryDeviceCache()
	c := newTestClient(t, cache)
	ctx := context.Background()

	co, err := c.CreateCheckout(ctx, checkoutRequest())
	require.NoError(t, err)
	assert.Equal(t, "udid-new", co.DeviceID)
	assert.True(t, gock.IsDone())

	// no further HTTP mocks: a second checkout must come from the cache
	co2, err := c.CreateCheckout(ctx, checkoutRequest())
	require.NoError(t, err)
	assert.Equal(t, "udid-new", co2.DeviceID)
	assert.NotEqual(t, co.Ref, co2.Ref)

	cached, _ := cache.Load(ctx)
	assert.Equal(t, "udid-new", cached)
}

func TestCreateCheckout_DeviceErrorCarriesProviderMessage(t *testing.T) {
	defer gock.Off()
	gock.New(apiURL).
		Get("/device").
		Reply(401).
		JSON(map[string]string{"message": "Invalid credentials"})

	c := newTestClient(t, nil)
	_, err := c.CreateCheckout(context.Background(), checkoutRequest())
	require.Error(t, err)

	var pe *Error
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, 401, pe.StatusCode)
	assert.Equal(t, "Invalid credentials", pe.Message)
}

func TestGetStatus(t *testing.T) {
	defer gock.Off()
	gock.New(apiURL).
		Get("/paymentLinks/link2pay_abc").
		Reply(200).
		JSON(map[string]interface{}{
			"id":            "link2pay_abc",
			"status":        "completed",
			"amount":        487.5,
			"currency":      "USD",
			"transactionId": "txn_1",
			"updatedAt":     "2024-01-15T12:00:00Z",
		})

	c := newTestClient(t, nil)
	snap, err := c.GetStatus(context.Background(), "link2pay_abc")
	require.NoError(t, err)
	assert.Equal(t, "completed", snap.Status)
	require.NotNil(t, snap.Amount)
	assert.Equal(t, 487.5, *snap.Amount)
	assert.Equal(t, "txn_1", snap.TransactionID)
	assert.Equal(t, "2024-01-15T12:00:00Z", snap.UpdatedAt)
}

func TestGetStatus_ServerError(t *testing.T) {
	defer gock.Off()
	gock.New(apiURL).
		Get("/paymentLinks/missing").
		Reply(500).
		BodyString("oops")

	c := newTestClient(t, nil)
	_, err := c.GetStatus(context.Background(), "missing")
	var pe *Error
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, 500, pe.StatusCode)
	assert.Empty(t, pe.Message)
}
