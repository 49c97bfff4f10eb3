package main

import (
	"context"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/sirupsen/logrus"

	"github.com/imrishuroy/go-paymentlinks/internal/aws"
	"github.com/imrishuroy/go-paymentlinks/internal/config"
	"github.com/imrishuroy/go-paymentlinks/internal/links"
	"github.com/imrishuroy/go-paymentlinks/internal/logging"
	"github.com/imrishuroy/go-paymentlinks/internal/notify"
)

func main() {
	log := logging.New(logrus.Fields{"function": "notificationWorker"})

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

	metrics := aws.NewMetricsRecorder(clients.CloudWatch, cfg.MetricsNamespace, logging.Component("metrics"))
	sms, email := notify.ConfiguredSenders(cfg, clients.SES, logging.Component("notify"))
	dispatcher := notify.NewInlineDispatcher(sms, email, metrics, logging.Component("notify"))
	p := NewProcessor(dispatcher, links.NewStore(clients.DynamoDB, cfg.LinksTable), log)

	// If RUN_LOCAL=true, process a single job from LOCAL_SQS_BODY.
	if cfg.RunLocal {
		body := os.Getenv("LOCAL_SQS_BODY")
		if body == "" {
			log.Fatal("LOCAL_SQS_BODY is required when RUN_LOCAL=true")
		}
		event := events.SQSEvent{Records: []events.SQSMessage{{MessageId: "local", Body: body}}}
		resp, err := p.Handle(ctx, event)
		if err != nil || len(resp.BatchItemFailures) > 0 {
			log.WithField("failures", len(resp.BatchItemFailures)).Fatal("local handler error")
		}
		return
	}

	lambda.Start(p.Handle)
}
