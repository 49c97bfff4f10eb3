package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/imrishuroy/go-paymentlinks/internal/apperr"
	"github.com/imrishuroy/go-paymentlinks/internal/aws"
	"github.com/imrishuroy/go-paymentlinks/internal/links"
)

// Dispatcher delivers or enqueues one message. Failures are reported in the
// Outcome and never returned.
type Dispatcher interface {
	Dispatch(ctx context.Context, m Message) Outcome
}

type Counter interface {
	Count(ctx context.Context, name string, dims ...string)
}

// ErrSenderUnavailable is recorded when a channel's sender could not be built.
var ErrSenderUnavailable = errors.New("sender not configured")

// InlineDispatcher sends immediately through the configured senders. A nil
// sender makes its channel fail.
type InlineDispatcher struct {
	sms     SMSSender
	email   EmailSender
	metrics Counter
	log     *logrus.Entry
	nowFunc func() time.Time
}

func NewInlineDispatcher(sms SMSSender, email EmailSender, metrics Counter, log *logrus.Entry) *InlineDispatcher {
	return &InlineDispatcher{sms: sms, email: email, metrics: metrics, log: log, nowFunc: time.Now}
}

func (d *InlineDispatcher) Dispatch(ctx context.Context, m Message) Outcome {
	log := d.log.WithFields(logrus.Fields{
		"paymentLinkId": m.PaymentLinkID,
		"channel":       m.Channel,
		"kind":          m.Kind,
		"invoiceNumber": m.InvoiceNumber,
	})

	receipt, err := d.send(ctx, m)
	if err != nil {
		log.WithField("error", err.Error()).Error("notification send failed")
		if d.metrics != nil {
			d.metrics.Count(ctx, aws.MetricNotificationFailed, "Channel", string(m.Channel))
		}
		return Outcome{
			Channel: m.Channel,
			State:   links.NotificationFailed,
			At:      d.nowFunc().UTC(),
			Err:     apperr.Notification(string(m.Channel)+" sending failed", err),
		}
	}

	log.WithField("messageId", receipt.MessageID).Info("notification sent")
	return Outcome{
		Channel:   m.Channel,
		State:     links.NotificationSent,
		MessageID: receipt.MessageID,
		Status:    receipt.Status,
		At:        d.nowFunc().UTC(),
	}
}

func (d *InlineDispatcher) send(ctx context.Context, m Message) (*Receipt, error) {
	switch m.Channel {
	case ChannelSMS:
		if d.sms == nil {
			return nil, ErrSenderUnavailable
		}
		return d.sms.SendSMS(ctx, m.To, SMSBody(m))
	case ChannelEmail:
		if d.email == nil {
			return nil, ErrSenderUnavailable
		}
		email, err := RenderEmail(m)
		if err != nil {
			return nil, err
		}
		return d.email.SendEmail(ctx, m.To, email)
	}
	return nil, errors.Errorf("unknown channel %q", m.Channel)
}

type jobPublisher interface {
	PublishJSON(ctx context.Context, body interface{}, attributes map[string]string) (string, error)
}

// QueueDispatcher hands messages to the notification worker through SQS.
type QueueDispatcher struct {
	publisher jobPublisher
	log       *logrus.Entry
	nowFunc   func() time.Time
}

func NewQueueDispatcher(publisher jobPublisher, log *logrus.Entry) *QueueDispatcher {
	return &QueueDispatcher{publisher: publisher, log: log, nowFunc: time.Now}
}

func (d *QueueDispatcher) Dispatch(ctx context.Context, m Message) Outcome {
	now := d.nowFunc().UTC()
	job := Job{JobID: uuid.NewString(), Message: m, QueuedAt: now}

	msgID, err := d.publisher.PublishJSON(ctx, job, map[string]string{
		"channel":       string(m.Channel),
		"kind":          string(m.Kind),
		"paymentLinkId": m.PaymentLinkID,
	})
	log := d.log.WithFields(logrus.Fields{
		"jobId":         job.JobID,
		"paymentLinkId": m.PaymentLinkID,
		"channel":       m.Channel,
	})
	if err != nil {
		log.WithField("error", err.Error()).Error("failed to queue notification")
		return Outcome{
			Channel: m.Channel,
			State:   links.NotificationFailed,
			At:      now,
			Err:     apperr.Notification(string(m.Channel)+" queueing failed", err),
		}
	}

	log.WithField("sqsMessageId", msgID).Info("notification queued")
	return Outcome{
		Channel:   m.Channel,
		State:     links.NotificationQueued,
		MessageID: job.JobID,
		Status:    string(links.NotificationQueued),
		At:        now,
	}
}
