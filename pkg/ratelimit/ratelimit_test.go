package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllow(t *testing.T) {
	rl := New(Config{Rate: 1, Burst: 2})
	defer rl.Stop()

	assert.True(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.1"))
	assert.False(t, rl.Allow("10.0.0.1"), "burst exhausted")

	// Other IPs have their own bucket.
	assert.True(t, rl.Allow("10.0.0.2"))
}

func TestAllowRefills(t *testing.T) {
	rl := New(Config{Rate: 100, Burst: 1})
	defer rl.Stop()

	require.True(t, rl.Allow("10.0.0.1"))
	require.False(t, rl.Allow("10.0.0.1"))

	assert.Eventually(t, func() bool {
		return rl.Allow("10.0.0.1")
	}, time.Second, 5*time.Millisecond)
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	rl := New(Config{Rate: 1, Burst: 1})
	defer rl.Stop()

	router := gin.New()
	router.Use(rl.Middleware())
	router.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	doRequest := func() int {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		router.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, doRequest())
	assert.Equal(t, http.StatusTooManyRequests, doRequest())
}

func TestCleanupRemovesStaleEntries(t *testing.T) {
	rl := New(Config{Rate: 1, Burst: 1, CleanupInterval: 5 * time.Millisecond, MaxAge: 10 * time.Millisecond})
	defer rl.Stop()

	rl.Allow("10.0.0.1")
	rl.Allow("10.0.0.2")
	require.Equal(t, 2, rl.Len())

	assert.Eventually(t, func() bool {
		return rl.Len() == 0
	}, time.Second, 5*time.Millisecond)
}

func TestDefaultConfigs(t *testing.T) {
	api := DefaultAPIConfig()
	submit := DefaultSubmitConfig()
	assert.Greater(t, api.Rate, submit.Rate)
	assert.Greater(t, api.Burst, submit.Burst)
}
