package core

import "context"

const (
	MetricClientRequests   = "tripline.client.requests"
	MetricClientDurationMS = "tripline.client.duration_ms"
	MetricWebhookVerified  = "tripline.webhook.verified"
	MetricWebhookRejected  = "tripline.webhook.rejected"
	MetricWebhookDeduped   = "tripline.webhook.deduped"
	MetricWebhookJobs      = "tripline.webhook.jobs"
	MetricWebhookJobMS     = "tripline.webhook.job_duration_ms"
)

type NopMetricsRecorder struct{}

func (NopMetricsRecorder) IncCounter(context.Context, string, int64, map[string]string) {}

func (NopMetricsRecorder) ObserveHistogram(context.Context, string, float64, map[string]string) {}

func CloneTags(tags map[string]string) map[string]string {
	if len(tags) == 0 {
		return map[string]string{}
	}
	copied := make(map[string]string, len(tags))
	for key, value := range tags {
		copied[key] = value
	}
	return copied
}

var _ MetricsRecorder = NopMetricsRecorder{}
