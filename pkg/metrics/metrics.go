package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Registry holds only the outreach collectors.
var Registry = prometheus.NewRegistry()

var (
	RecordsEligible = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "outreach_records_eligible",
		Help: "Number of eligible records returned by the last database query",
	})
	QueryTruncated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "outreach_query_truncated_total",
		Help: "Total number of queries whose result hit the page-size ceiling",
	})
	NotionRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outreach_notion_requests_total",
		Help: "Total number of Notion API requests by operation and result",
	}, []string{"operation", "result"})

	// Mail metrics
	MailSendSuccess = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outreach_mail_send_success_total",
		Help: "Total number of successful mail sends",
	}, []string{"host"})
	MailSendFailure = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outreach_mail_send_failure_total",
		Help: "Total number of failed mail sends",
	}, []string{"host"})
	MailSessionRedials = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outreach_mail_session_redials_total",
		Help: "Total number of SMTP reconnects after a failed transmission",
	}, []string{"host"})

	RecordsSkipped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outreach_records_skipped_total",
		Help: "Total number of eligible records not sent, by reason",
	}, []string{"reason"})
	StatusUpdates = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outreach_status_updates_total",
		Help: "Total number of status write-backs by result",
	}, []string{"result"})

	// Event sink metrics
	EventsWritten = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outreach_events_written_total",
		Help: "Total number of run events written per sink",
	}, []string{"sink"})
	EventsFailed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outreach_events_failed_total",
		Help: "Total number of run events that failed to write per sink",
	}, []string{"sink"})
)

func init() {
	Registry.MustRegister(RecordsEligible)
	Registry.MustRegister(QueryTruncated)
	Registry.MustRegister(NotionRequests)
	Registry.MustRegister(MailSendSuccess)
	Registry.MustRegister(MailSendFailure)
	Registry.MustRegister(MailSessionRedials)
	Registry.MustRegister(RecordsSkipped)
	Registry.MustRegister(StatusUpdates)
	Registry.MustRegister(EventsWritten)
	Registry.MustRegister(EventsFailed)
}

// Push sends the current values of Registry to a Pushgateway under job,
// grouped by run so concurrent jobs do not overwrite each other.
func Push(ctx context.Context, gatewayURL, job, runID string) error {
	if gatewayURL == "" {
		return nil
	}
	p := push.New(gatewayURL, job).Gatherer(Registry)
	if runID != "" {
		p = p.Grouping("run", runID)
	}
	if err := p.PushContext(ctx); err != nil {
		return fmt.Errorf("pushing metrics to %s: %w", gatewayURL, err)
	}
	return nil
}
