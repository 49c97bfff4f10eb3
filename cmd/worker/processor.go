package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-lambda-go/events"
	"github.com/sirupsen/logrus"

	"github.com/imrishuroy/go-paymentlinks/internal/links"
	"github.com/imrishuroy/go-paymentlinks/internal/notify"
)

// NotificationStore receives the outcome of a queued send.
type NotificationStore interface {
	UpdateNotificationStatus(ctx context.Context, id string, upd links.NotificationUpdate) (*links.PaymentLink, error)
}

// Processor performs queued notification jobs.
type Processor struct {
	dispatcher notify.Dispatcher
	store      NotificationStore
	log        *logrus.Entry
}

// NewProcessor creates a worker processor; dispatcher should send inline.
func NewProcessor(dispatcher notify.Dispatcher, store NotificationStore, log *logrus.Entry) *Processor {
	return &Processor{dispatcher: dispatcher, store: store, log: log}
}

// Handle receives an SQS batch event and processes each message. Only the
// messages that fail are reported back, so the rest of the batch is not
// redelivered; the event source mapping must enable ReportBatchItemFailures.
func (p *Processor) Handle(ctx context.Context, ev events.SQSEvent) (events.SQSEventResponse, error) {
	p.log.WithField("count", len(ev.Records)).Info("received notification jobs")
	var resp events.SQSEventResponse
	for _, rec := range ev.Records {
		if err := p.processMessage(ctx, rec); err != nil {
			// retried by SQS; repeated failures go to the DLQ
			p.log.WithFields(logrus.Fields{
				"messageId": rec.MessageId,
				"error":     err.Error(),
			}).Error("worker error")
			resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{ItemIdentifier: rec.MessageId})
		}
	}
	return resp, nil
}

func (p *Processor) processMessage(ctx context.Context, rec events.SQSMessage) error {
	var job notify.Job
	if err := json.Unmarshal([]byte(rec.Body), &job); err != nil {
		return fmt.Errorf("invalid message body: %w", err)
	}
	m := job.Message
	if m.PaymentLinkID == "" || m.To == "" || (m.Channel != notify.ChannelSMS && m.Channel != notify.ChannelEmail) {
		return fmt.Errorf("invalid notification job %q", job.JobID)
	}

	log := p.log.WithFields(logrus.Fields{
		"jobId":         job.JobID,
		"paymentLinkId": m.PaymentLinkID,
		"channel":       m.Channel,
		"kind":          m.Kind,
	})

	out := p.dispatcher.Dispatch(ctx, m)

	upd := links.NotificationUpdate{}
	if m.Channel == notify.ChannelSMS {
		upd.SMS = out.ChannelStatus()
	} else {
		upd.Email = out.ChannelStatus()
	}
	// the send already happened; a failed write-back must not trigger a resend
	if _, err := p.store.UpdateNotificationStatus(ctx, m.PaymentLinkID, upd); err != nil {
		log.WithField("error", err.Error()).Error("failed to record notification status")
		return nil
	}

	log.WithField("state", out.State).Info("notification job done")
	return nil
}
