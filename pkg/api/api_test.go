package api

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ldruley/tripmailer/pkg/config"
	"github.com/ldruley/tripmailer/pkg/email"
	"github.com/ldruley/tripmailer/pkg/queue"
)

type testHarness struct {
	server   *Server
	registry *queue.Registry
	service  *email.Service
	redis    *miniredis.Miniredis
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()
	mr := miniredis.RunT(t)
	host, portStr, err := net.SplitHostPort(mr.Addr())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	broker, err := queue.Connect(context.Background(), queue.BrokerConfig{Host: host, Port: port, Prefix: "test"}, zap.NewNop().Sugar())
	require.NoError(t, err)
	t.Cleanup(func() { _ = broker.Close() })

	registry := queue.NewRegistry(broker, zap.NewNop().Sugar())
	service := email.NewService(registry, zap.NewNop().Sugar())

	cfg := config.Config{}
	server := NewServer(zap.NewNop(), cfg, false, broker)
	require.NoError(t, server.RegisterAll([]APIController{
		NewEmailController(service, zap.NewNop().Sugar()),
		NewQueueController(service, zap.NewNop().Sugar()),
		NewWorkerController(registry),
	}))

	return &testHarness{server: server, registry: registry, service: service, redis: mr}
}

func (h *testHarness) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.server.Engine().ServeHTTP(rec, req)
	return rec
}

func TestSendEmailEndpoint(t *testing.T) {
	h := newTestHarness(t)

	t.Run("queues a valid submission", func(t *testing.T) {
		rec := h.do(t, http.MethodPost, "/api/emails",
			`{"to":"user@example.com","subject":"Welcome to TripPlanner!","template":"welcome","variables":{"firstName":"Ada"}}`)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var resp email.Response
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.NotEmpty(t, resp.ID)
		assert.Equal(t, email.StatusQueued, resp.Status)
	})

	t.Run("rejects malformed JSON", func(t *testing.T) {
		rec := h.do(t, http.MethodPost, "/api/emails", `{not json`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects unknown templates", func(t *testing.T) {
		rec := h.do(t, http.MethodPost, "/api/emails",
			`{"to":"user@example.com","subject":"Hello","template":"newsletter"}`)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "unknown email template")
	})
}

func TestBuiltinFlowEndpoints(t *testing.T) {
	h := newTestHarness(t)

	for _, path := range []string{
		"/api/emails/welcome",
		"/api/emails/password-reset",
		"/api/emails/verification",
	} {
		t.Run(path, func(t *testing.T) {
			rec := h.do(t, http.MethodPost, path, `{"to":"user@example.com","variables":{"firstName":"Ada"}}`)
			require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		})
	}

	t.Run("requires a recipient", func(t *testing.T) {
		rec := h.do(t, http.MethodPost, "/api/emails/welcome", `{"variables":{}}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestEmailStatusEndpoint(t *testing.T) {
	h := newTestHarness(t)

	submitted, err := h.service.SendWelcomeEmail(context.Background(), "user@example.com", nil)
	require.NoError(t, err)

	t.Run("returns the projected status", func(t *testing.T) {
		rec := h.do(t, http.MethodGet, "/api/emails/"+submitted.ID, "")
		require.Equal(t, http.StatusOK, rec.Code)

		var resp email.Response
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, submitted.ID, resp.ID)
		assert.Equal(t, email.StatusQueued, resp.Status)
	})

	t.Run("unknown ids are 404", func(t *testing.T) {
		rec := h.do(t, http.MethodGet, "/api/emails/no-such-id", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestQueueStatsEndpoint(t *testing.T) {
	h := newTestHarness(t)

	_, err := h.service.SendWelcomeEmail(context.Background(), "user@example.com", nil)
	require.NoError(t, err)

	rec := h.do(t, http.MethodGet, "/api/queue/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var counts queue.Counts
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &counts))
	assert.EqualValues(t, 1, counts.Waiting)
}

func TestWorkerEndpoints(t *testing.T) {
	h := newTestHarness(t)

	_, err := h.registry.CreateWorker(email.WorkerName, queue.WorkerOptions{
		Queue:        email.QueueName,
		Handler:      func(context.Context, *queue.Job) error { return nil },
		PollInterval: 50 * time.Millisecond,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.registry.Shutdown(context.Background()) })

	t.Run("reports stats", func(t *testing.T) {
		rec := h.do(t, http.MethodGet, "/api/workers/"+email.WorkerName, "")
		require.Equal(t, http.StatusOK, rec.Code)

		var stats queue.WorkerStats
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
		assert.Equal(t, email.QueueName, stats.Queue)
		assert.False(t, stats.Paused)
	})

	t.Run("pause and resume", func(t *testing.T) {
		rec := h.do(t, http.MethodPost, "/api/workers/"+email.WorkerName+"/pause", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, h.registry.GetWorker(email.WorkerName).Stats().Paused)

		rec = h.do(t, http.MethodPost, "/api/workers/"+email.WorkerName+"/resume", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.False(t, h.registry.GetWorker(email.WorkerName).Stats().Paused)
	})

	t.Run("unknown workers are 404", func(t *testing.T) {
		rec := h.do(t, http.MethodGet, "/api/workers/no-such-worker", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestOperationalEndpoints(t *testing.T) {
	h := newTestHarness(t)

	t.Run("healthz pings the broker", func(t *testing.T) {
		rec := h.do(t, http.MethodGet, "/healthz", "")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("healthz degrades when the broker is down", func(t *testing.T) {
		h.redis.Close()
		rec := h.do(t, http.MethodGet, "/healthz", "")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		h.redis.Restart()
	})

	t.Run("version reports build info", func(t *testing.T) {
		rec := h.do(t, http.MethodGet, "/api/version", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "dev")
	})

	t.Run("metrics are exported", func(t *testing.T) {
		rec := h.do(t, http.MethodGet, "/metrics", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "tripmailer_")
	})
}
