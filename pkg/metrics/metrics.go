package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Job lifecycle metrics
	JobsSubmitted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tripmailer_jobs_submitted_total",
		Help: "Total number of jobs submitted to a queue",
	}, []string{"queue", "type"})
	JobsProcessed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tripmailer_jobs_processed_total",
		Help: "Total number of job attempts settled by workers",
	}, []string{"queue", "status"})
	JobDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tripmailer_job_duration_seconds",
		Help:    "Duration of job processing attempts",
		Buckets: prometheus.DefBuckets,
	}, []string{"queue", "type"})

	// Email pipeline metrics
	EmailsQueued = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tripmailer_emails_queued_total",
		Help: "Total number of emails accepted for delivery",
	}, []string{"template"})
	EmailsRedirected = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tripmailer_emails_redirected_total",
		Help: "Total number of emails redirected to the test recipient outside production",
	})

	// Mail provider metrics
	MailSendSuccess = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tripmailer_mail_send_success_total",
		Help: "Total number of successful mail-provider dispatches",
	}, []string{"provider"})
	MailSendFailure = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tripmailer_mail_send_failure_total",
		Help: "Total number of failed mail-provider dispatches",
	}, []string{"provider"})

	// Delivery event sink metrics
	DeliveryEventsPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tripmailer_delivery_events_published_total",
		Help: "Total number of delivery events written to a sink",
	}, []string{"sink"})
	DeliveryEventsDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tripmailer_delivery_events_dropped_total",
		Help: "Total number of delivery events dropped before reaching a sink",
	}, []string{"sink", "reason"})
)

func init() {
	prometheus.MustRegister(JobsSubmitted)
	prometheus.MustRegister(JobsProcessed)
	prometheus.MustRegister(JobDuration)
	prometheus.MustRegister(EmailsQueued)
	prometheus.MustRegister(EmailsRedirected)
	prometheus.MustRegister(MailSendSuccess)
	prometheus.MustRegister(MailSendFailure)
	prometheus.MustRegister(DeliveryEventsPublished)
	prometheus.MustRegister(DeliveryEventsDropped)
}

// MetricsHandler returns an http.Handler exposing Prometheus metrics.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
