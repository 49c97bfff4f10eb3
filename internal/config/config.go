package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/imrishuroy/go-paymentlinks/internal/apperr"
)

// Notification delivery modes.
const (
	NotificationModeInline = "inline"
	NotificationModeQueue  = "queue"
)

type MX struct {
	APIURL         string
	ConsumerKey    string
	ConsumerSecret string
	MerchantID     string
	PaymentPageURL string
	SuccessURL     string
	FailureURL     string
	Timeout        time.Duration
}

// Validate reports a configuration error when API credentials are missing.
func (c MX) Validate() error {
	if c.APIURL == "" || c.ConsumerKey == "" || c.ConsumerSecret == "" || c.MerchantID == "" {
		return apperr.Configuration("MX Merchant credentials not configured")
	}
	return nil
}

type Twilio struct {
	AccountSID  string
	AuthToken   string
	PhoneNumber string
}

func (c Twilio) Validate() error {
	if c.AccountSID == "" || c.AuthToken == "" || c.PhoneNumber == "" {
		return apperr.Configuration("Twilio credentials not configured")
	}
	return nil
}

type SES struct {
	Region    string
	FromEmail string
}

func (c SES) Validate() error {
	if c.FromEmail == "" {
		return apperr.Configuration("SES FROM email not configured")
	}
	return nil
}

type Config struct {
	AWSRegion            string
	LinksTable           string
	IdempotencyTable     string
	NotificationsQueue   string
	NotificationMode     string
	RedisAddress         string
	MetricsNamespace     string
	LogLevel             string
	RunLocal             bool
	DefaultPhoneRegion   string
	LinkTTL              time.Duration
	IdempotencyTTLWindow time.Duration

	MX     MX
	Twilio Twilio
	SES    SES
}

// Validate checks the settings every entry point needs; collaborator credentials
// are checked separately when each collaborator is constructed.
func (c *Config) Validate() error {
	if c.LinksTable == "" {
		return apperr.Configuration("DynamoDB table name not configured")
	}
	if c.NotificationMode == NotificationModeQueue && c.NotificationsQueue == "" {
		return apperr.Configuration("notification queue URL not configured")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("AWS_REGION", "us-east-1")
	v.SetDefault("NOTIFICATION_MODE", NotificationModeInline)
	v.SetDefault("MX_PAYMENT_PAGE_URL", "https://mxmerchant.com")
	v.SetDefault("MX_TIMEOUT_MS", 30000)
	v.SetDefault("METRICS_NAMESPACE", "PaymentLinks")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DEFAULT_PHONE_REGION", "US")
	v.SetDefault("LINK_TTL_DAYS", 30)
	v.SetDefault("IDEMPOTENCY_TTL_HOURS", 48)
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	// a missing .env is normal outside local development
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	sesRegion := v.GetString("SES_REGION")
	if sesRegion == "" {
		sesRegion = v.GetString("AWS_REGION")
	}

	cfg := &Config{
		AWSRegion:            v.GetString("AWS_REGION"),
		LinksTable:           v.GetString("DYNAMODB_TABLE"),
		IdempotencyTable:     v.GetString("IDEMPOTENCY_TABLE"),
		NotificationsQueue:   v.GetString("NOTIFICATIONS_QUEUE_URL"),
		NotificationMode:     strings.ToLower(v.GetString("NOTIFICATION_MODE")),
		RedisAddress:         v.GetString("REDIS_ADDRESS"),
		MetricsNamespace:     v.GetString("METRICS_NAMESPACE"),
		LogLevel:             v.GetString("LOG_LEVEL"),
		RunLocal:             v.GetBool("RUN_LOCAL"),
		DefaultPhoneRegion:   strings.ToUpper(v.GetString("DEFAULT_PHONE_REGION")),
		LinkTTL:              time.Duration(v.GetInt("LINK_TTL_DAYS")) * 24 * time.Hour,
		IdempotencyTTLWindow: time.Duration(v.GetInt("IDEMPOTENCY_TTL_HOURS")) * time.Hour,
		MX: MX{
			APIURL:         v.GetString("MX_MERCHANT_API_URL"),
			ConsumerKey:    v.GetString("MX_MERCHANT_CONSUMER_KEY"),
			ConsumerSecret: v.GetString("MX_MERCHANT_CONSUMER_SECRET"),
			MerchantID:     v.GetString("MX_MERCHANT_MERCHANT_ID"),
			PaymentPageURL: v.GetString("MX_PAYMENT_PAGE_URL"),
			SuccessURL:     v.GetString("MX_SUCCESS_URL"),
			FailureURL:     v.GetString("MX_FAILURE_URL"),
			Timeout:        time.Duration(v.GetInt("MX_TIMEOUT_MS")) * time.Millisecond,
		},
		Twilio: Twilio{
			AccountSID:  v.GetString("TWILIO_ACCOUNT_SID"),
			AuthToken:   v.GetString("TWILIO_AUTH_TOKEN"),
			PhoneNumber: v.GetString("TWILIO_PHONE_NUMBER"),
		},
		SES: SES{
			Region:    sesRegion,
			FromEmail: v.GetString("SES_FROM_EMAIL"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
