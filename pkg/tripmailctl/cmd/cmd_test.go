package cmd

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ldruley/tripmailer/pkg/email"
	"github.com/ldruley/tripmailer/pkg/queue"
)

func newFakeAPI(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/emails", func(w http.ResponseWriter, r *http.Request) {
		var req email.Request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(email.Response{ID: "job-42", Status: email.StatusQueued})
	})
	mux.HandleFunc("GET /api/emails/job-42", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(email.Response{ID: "job-42", Status: email.StatusSent})
	})
	mux.HandleFunc("GET /api/queue/stats", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(queue.Counts{Waiting: 1, Failed: 2})
	})
	mux.HandleFunc("GET /api/workers/email", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(queue.WorkerStats{Name: "email", Queue: "email", Running: true, Concurrency: 1})
	})
	mux.HandleFunc("POST /api/workers/email/pause", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(queue.WorkerStats{Name: "email", Queue: "email", Running: true, Paused: true, Concurrency: 1})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func runCommand(t *testing.T, server string, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	root := NewRootCommand(Config{Server: server, OutputWriter: &buf})
	root.SetArgs(args)
	root.SetOut(&buf)
	root.SetErr(&buf)
	err := root.Execute()
	return buf.String(), err
}

func TestSendCommand(t *testing.T) {
	srv := newFakeAPI(t)

	out, err := runCommand(t, srv.URL, "send",
		"--to", "user@example.com",
		"--subject", "Welcome to TripPlanner!",
		"--template", "welcome",
		"--var", "firstName=Ada")
	require.NoError(t, err)
	assert.Contains(t, out, "job-42")
	assert.Contains(t, out, "queued")
}

func TestSendCommandRejectsBadVar(t *testing.T) {
	srv := newFakeAPI(t)

	_, err := runCommand(t, srv.URL, "send",
		"--to", "user@example.com",
		"--subject", "Hello",
		"--template", "welcome",
		"--var", "not-a-pair")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "key=value")
}

func TestStatusCommand(t *testing.T) {
	srv := newFakeAPI(t)

	out, err := runCommand(t, srv.URL, "status", "job-42")
	require.NoError(t, err)
	assert.Contains(t, out, "sent")
}

func TestStatusCommandNotFound(t *testing.T) {
	srv := newFakeAPI(t)

	_, err := runCommand(t, srv.URL, "status", "nope")
	require.Error(t, err)
}

func TestStatsCommand(t *testing.T) {
	srv := newFakeAPI(t)

	out, err := runCommand(t, srv.URL, "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "waiting: 1")
	assert.Contains(t, out, "failed: 2")
}

func TestStatsCommandJSON(t *testing.T) {
	srv := newFakeAPI(t)

	out, err := runCommand(t, srv.URL, "stats", "-o", "json")
	require.NoError(t, err)

	var counts queue.Counts
	require.NoError(t, json.Unmarshal([]byte(out), &counts))
	assert.EqualValues(t, 1, counts.Waiting)
}

func TestWorkerCommands(t *testing.T) {
	srv := newFakeAPI(t)

	out, err := runCommand(t, srv.URL, "worker", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "running")

	out, err = runCommand(t, srv.URL, "worker", "pause")
	require.NoError(t, err)
	assert.Contains(t, out, "paused")
}

func TestParseVariables(t *testing.T) {
	vars, err := parseVariables([]string{"a=1", "b=x=y"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": "1", "b": "x=y"}, vars)

	_, err = parseVariables([]string{"=missingkey"})
	require.Error(t, err)
}
