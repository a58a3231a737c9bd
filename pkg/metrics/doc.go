// Package metrics defines Prometheus metrics for tripmailer, covering job
// submission and processing, the email delivery pipeline, mail-provider
// dispatch outcomes, and the delivery event sinks.
package metrics
