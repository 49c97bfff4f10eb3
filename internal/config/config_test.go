package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imrishuroy/go-paymentlinks/internal/apperr"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DYNAMODB_TABLE", "payment-links")
	t.Setenv("AWS_REGION", "")
	t.Setenv("NOTIFICATION_MODE", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "payment-links", cfg.LinksTable)
	assert.Equal(t, NotificationModeInline, cfg.NotificationMode)
	assert.Equal(t, "https://mxmerchant.com", cfg.MX.PaymentPageURL)
	assert.Equal(t, 30*time.Second, cfg.MX.Timeout)
	assert.Equal(t, 30*24*time.Hour, cfg.LinkTTL)
	assert.Equal(t, "US", cfg.DefaultPhoneRegion)
}

func TestLoad_MissingTable(t *testing.T) {
	t.Setenv("DYNAMODB_TABLE", "")

	_, err := Load()
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindConfiguration))
}

func TestLoad_QueueModeNeedsQueue(t *testing.T) {
	t.Setenv("DYNAMODB_TABLE", "payment-links")
	t.Setenv("NOTIFICATION_MODE", "queue")
	t.Setenv("NOTIFICATIONS_QUEUE_URL", "")

	_, err := Load()
	require.Error(t, err)
}

func TestCollaboratorValidation(t *testing.T) {
	assert.Error(t, MX{APIURL: "https://api.mxmerchant.com"}.Validate())
	assert.NoError(t, MX{APIURL: "u", ConsumerKey: "k", ConsumerSecret: "s", MerchantID: "1"}.Validate())
	assert.Error(t, Twilio{AccountSID: "AC1"}.Validate())
	assert.Error(t, SES{}.Validate())
	assert.NoError(t, SES{FromEmail: "billing@example.com"}.Validate())
}
