package main

import (
	"context"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/imrishuroy/go-paymentlinks/internal/aws"
	"github.com/imrishuroy/go-paymentlinks/internal/config"
	"github.com/imrishuroy/go-paymentlinks/internal/flows"
	"github.com/imrishuroy/go-paymentlinks/internal/handlers"
	"github.com/imrishuroy/go-paymentlinks/internal/idempotency"
	"github.com/imrishuroy/go-paymentlinks/internal/links"
	"github.com/imrishuroy/go-paymentlinks/internal/logging"
	"github.com/imrishuroy/go-paymentlinks/internal/notify"
	"github.com/imrishuroy/go-paymentlinks/internal/provider"
	"github.com/imrishuroy/go-paymentlinks/internal/reconcile"
)

func setupRouter(cfg handlers.HandlerConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	handlers.RegisterRoutes(r, cfg)
	return r
}

func main() {
	log := logging.New(logrus.Fields{"function": "api"})

	cfg, err := config.Load()
	if err != nil {
		log.WithField("error", err.Error()).Fatal("failed to load config")
	}
	logging.SetLevel(cfg.LogLevel)

	ctx := context.Background()
	clients, err := aws.NewAWSClients(ctx, cfg.AWSRegion, cfg.SES.Region)
	if err != nil {
		log.WithField("error", err.Error()).Fatal("failed to init aws clients")
	}

	r := setupRouter(buildHandlerConfig(cfg, clients, log))

	// if RUN_LOCAL is set to "true", run local HTTP server for development.
	if cfg.RunLocal {
		addr := ":8080"
		log.WithField("addr", addr).Info("running local server")
		if err := r.Run(addr); err != nil && err != http.ErrServerClosed {
			log.WithField("error", err.Error()).Fatal("failed to run local server")
		}
		return
	}

	adapter := ginadapter.New(r)
	lambda.Start(func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		return adapter.ProxyWithContext(ctx, req)
	})
}

func buildHandlerConfig(cfg *config.Config, clients *aws.AWSClients, log *logrus.Entry) handlers.HandlerConfig {
	metrics := aws.NewMetricsRecorder(clients.CloudWatch, cfg.MetricsNamespace, logging.Component("metrics"))
	store := links.NewStore(clients.DynamoDB, cfg.LinksTable)

	svc := flows.NewService(flows.Deps{
		Store:      store,
		Provider:   newProvider(cfg, log),
		Locator:    reconcile.NewStatusScanLocator(store, links.DefaultQueryLimit, logging.Component("locator")),
		Engine:     reconcile.NewEngine(store, metrics, logging.Component("reconcile")),
		Dispatcher: newDispatcher(cfg, clients, metrics),
		Metrics:    metrics,
		Log:        logging.Component("flows"),
		LinkTTL:    cfg.LinkTTL,
	})

	hc := handlers.HandlerConfig{Service: svc, Log: logging.Component("handlers")}
	if cfg.IdempotencyTable != "" {
		hc.Idempotency = idempotency.NewStore(clients.DynamoDB, cfg.IdempotencyTable, cfg.IdempotencyTTLWindow)
	}
	return hc
}

// newProvider never fails startup: without credentials every provider call
// returns the configuration error instead.
func newProvider(cfg *config.Config, log *logrus.Entry) flows.Provider {
	var devices provider.DeviceCache
	if cfg.RedisAddress != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddress})
		devices = provider.NewRedisDeviceCache(rdb, logging.Component("devices"))
	}
	client, err := provider.NewClient(cfg.MX, devices, logging.Component("mx"))
	if err != nil {
		log.WithField("error", err.Error()).Warn("payment provider unavailable")
		return provider.Unavailable{Err: err}
	}
	return client
}

func newDispatcher(cfg *config.Config, clients *aws.AWSClients, metrics *aws.MetricsRecorder) notify.Dispatcher {
	if cfg.NotificationMode == config.NotificationModeQueue {
		return notify.NewQueueDispatcher(aws.NewPublisher(clients.SQS, cfg.NotificationsQueue), logging.Component("notify"))
	}
	sms, email := notify.ConfiguredSenders(cfg, clients.SES, logging.Component("notify"))
	return notify.NewInlineDispatcher(sms, email, metrics, logging.Component("notify"))
}
