package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestJobMetricsExistAndIncrement(t *testing.T) {
	// Use test labels to avoid colliding with other tests
	JobsSubmitted.WithLabelValues("test-queue", "send-email").Inc()
	if v := testutil.ToFloat64(JobsSubmitted.WithLabelValues("test-queue", "send-email")); v < 1 {
		t.Fatalf("expected JobsSubmitted >= 1, got %v", v)
	}

	JobsProcessed.WithLabelValues("test-queue", "completed").Add(2)
	if v := testutil.ToFloat64(JobsProcessed.WithLabelValues("test-queue", "completed")); v < 2 {
		t.Fatalf("expected JobsProcessed >= 2, got %v", v)
	}

	MailSendSuccess.WithLabelValues("test-provider").Inc()
	if v := testutil.ToFloat64(MailSendSuccess.WithLabelValues("test-provider")); v < 1 {
		t.Fatalf("expected MailSendSuccess >= 1, got %v", v)
	}
}

func TestDeliveryEventMetricsLabelCardinality(t *testing.T) {
	DeliveryEventsDropped.Reset()
	defer DeliveryEventsDropped.Reset()
	labels := []string{"kafka", "queue_full"}
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("DeliveryEventsDropped panicked with labels %v: %v", labels, r)
		}
	}()

	DeliveryEventsDropped.WithLabelValues(labels...).Inc()
	if v := testutil.ToFloat64(DeliveryEventsDropped.WithLabelValues(labels...)); v != 1 {
		t.Fatalf("expected metric value 1 after increment, got %v", v)
	}
}
