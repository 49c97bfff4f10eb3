package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/imrishuroy/go-paymentlinks/internal/apperr"
	"github.com/imrishuroy/go-paymentlinks/internal/flows"
	"github.com/imrishuroy/go-paymentlinks/internal/idempotency"
	"github.com/imrishuroy/go-paymentlinks/internal/validation"
)

const (
	msgConfiguration = "Service configuration error"
	msgInternal      = "Internal server error"
)

// PaymentLinks is the flow surface the routes call.
type PaymentLinks interface {
	Create(ctx context.Context, req *validation.CreatePaymentLinkRequest) (*flows.CreateResult, error)
	GetStatus(ctx context.Context, id string) (*flows.StatusView, error)
	HandleWebhook(ctx context.Context, body []byte) (*flows.WebhookResult, error)
}

// IdempotencyStore guards creation when callers send an Idempotency-Key.
type IdempotencyStore interface {
	Begin(ctx context.Context, key string) (*idempotency.Record, error)
	Complete(ctx context.Context, key, paymentLinkID string, responseStatus int, responseBody []byte) error
	Release(ctx context.Context, key string) error
}

// HandlerConfig groups dependencies for the payment link routes.
// Idempotency may be nil, in which case the header is ignored.
type HandlerConfig struct {
	Service     PaymentLinks
	Idempotency IdempotencyStore
	Validator   *validatorv10.Validate
	Log         *logrus.Entry
}

type handler struct {
	svc  PaymentLinks
	idem IdempotencyStore
	v    *validatorv10.Validate
	log  *logrus.Entry
}

// RegisterRoutes registers the payment link API and the health check.
func RegisterRoutes(r *gin.Engine, cfg HandlerConfig) {
	h := &handler{svc: cfg.Service, idem: cfg.Idempotency, v: cfg.Validator, log: cfg.Log}
	if h.v == nil {
		h.v = validation.New()
	}

	r.Use(requestID())
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.POST("/payment-links", h.createPaymentLink)
	r.GET("/payment-links/:id", h.getPaymentStatus)
	r.POST("/webhook", h.webhook)
}

// requestID tags every request with X-Request-Id, generating one if absent.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("requestId", id)
		c.Header("X-Request-Id", id)
		c.Next()
	}
}

func (h *handler) logger(c *gin.Context, function string) *logrus.Entry {
	return h.log.WithFields(logrus.Fields{
		"function":  function,
		"requestId": c.GetString("requestId"),
	})
}

func ok(c *gin.Context, status int, data interface{}) {
	c.JSON(status, envelope{Success: true, Data: data})
}

// fail renders err. Only apperr messages reach the caller; configuration and
// unclassified errors get a generic message and are logged in full.
func fail(c *gin.Context, log *logrus.Entry, err error) {
	status := apperr.StatusCode(err)
	msg := msgInternal
	switch apperr.KindOf(err) {
	case apperr.KindConfiguration:
		msg = msgConfiguration
	case "":
	default:
		msg = apperr.MessageOf(err, msgInternal)
	}

	entry := log.WithFields(logrus.Fields{"status": status, "error": err.Error()})
	if status >= http.StatusInternalServerError {
		entry.Error("request failed")
	} else {
		entry.Warn("request rejected")
	}
	c.JSON(status, envelope{Error: &errorBody{Message: msg}})
}

type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *errorBody  `json:"error,omitempty"`
}

type errorBody struct {
	Message string `json:"message"`
}
