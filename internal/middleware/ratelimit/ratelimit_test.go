package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newLimiter(t *testing.T, perMinute int) (*Limiter, *clock) {
	c := &clock{t: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	rl := NewLimiter(Config{RequestsPerMinute: perMinute, Now: c.Now})
	t.Cleanup(rl.Stop)
	return rl, c
}

func TestLimiter_Allow(t *testing.T) {
	rl, c := newLimiter(t, 3)

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow("1.2.3.4"), "request %d", i+1)
	}
	assert.False(t, rl.Allow("1.2.3.4"))
	assert.True(t, rl.Allow("5.6.7.8"), "other clients are independent")
	assert.Equal(t, int64(1), rl.GetMetrics().Rejected)

	assert.Equal(t, time.Minute, rl.RetryAfter("1.2.3.4"))
	c.Advance(time.Minute)
	assert.True(t, rl.Allow("1.2.3.4"), "new window")
}

func TestLimiter_ZeroDisables(t *testing.T) {
	rl, _ := newLimiter(t, 0)
	for i := 0; i < 500; i++ {
		assert.True(t, rl.Allow("x"))
	}
	assert.Equal(t, 0, rl.ActiveClients())
}

func TestLimiter_CleanupStaleEntries(t *testing.T) {
	rl, c := newLimiter(t, 10)
	rl.Allow("a")
	c.Advance(11 * time.Minute)
	rl.Allow("b")

	assert.Equal(t, 1, rl.cleanupStaleEntries())
	assert.Equal(t, 1, rl.ActiveClients())
}

func TestLimiter_Middleware(t *testing.T) {
	rl, _ := newLimiter(t, 1)
	h := rl.Middleware(
		func(*http.Request) string { return "ip" },
		UnsafeMethods,
		nil,
	)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	do := func(method string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(method, "/wizard/save", nil))
		return rec
	}

	assert.Equal(t, http.StatusNoContent, do(http.MethodPost).Code)
	rec := do(http.MethodPost)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "61", rec.Header().Get("Retry-After"))
	assert.Equal(t, http.StatusNoContent, do(http.MethodGet).Code, "reads are never limited")
}

func TestLimiter_StopTwice(t *testing.T) {
	rl := NewLimiter(DefaultConfig())
	rl.Stop()
	rl.Stop()
}
