package aws

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/sirupsen/logrus"
)

// Metric names emitted by the service.
const (
	MetricReconciliationApplied = "ReconciliationApplied"
	MetricWebhookNotFound       = "WebhookNotFound"
	MetricNotificationFailed    = "NotificationFailed"
	MetricProviderPollFailed    = "ProviderPollFailed"
)

// MetricsRecorder pushes single-count CloudWatch metrics. Emission is best-effort:
// failures are logged and never returned. A nil recorder is a no-op.
type MetricsRecorder struct {
	client    CloudWatchAPI
	namespace string
	log       *logrus.Entry
	nowFunc   func() time.Time
}

func NewMetricsRecorder(client CloudWatchAPI, namespace string, log *logrus.Entry) *MetricsRecorder {
	return &MetricsRecorder{
		client:    client,
		namespace: namespace,
		log:       log,
		nowFunc:   time.Now,
	}
}

// Count records one occurrence of name with optional dimension pairs (key, value, ...).
func (m *MetricsRecorder) Count(ctx context.Context, name string, dims ...string) {
	if m == nil || m.client == nil {
		return
	}

	datum := cwtypes.MetricDatum{
		MetricName: awsString(name),
		Unit:       cwtypes.StandardUnitCount,
		Value:      float64Ptr(1),
		Timestamp:  timePtr(m.nowFunc()),
	}
	for i := 0; i+1 < len(dims); i += 2 {
		datum.Dimensions = append(datum.Dimensions, cwtypes.Dimension{
			Name:  awsString(dims[i]),
			Value: awsString(dims[i+1]),
		})
	}

	_, err := m.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  awsString(m.namespace),
		MetricData: []cwtypes.MetricDatum{datum},
	})
	if err != nil && m.log != nil {
		m.log.WithFields(logrus.Fields{"metric": name, "error": err.Error()}).Warn("failed to put metric")
	}
}

func float64Ptr(v float64) *float64  { return &v }
func timePtr(t time.Time) *time.Time { return &t }
