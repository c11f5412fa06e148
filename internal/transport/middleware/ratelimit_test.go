package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func limitedHandler(t *testing.T, maxPerMinute int) http.Handler {
	t.Helper()
	rl := NewRateLimiter(time.Minute)
	t.Cleanup(rl.Stop)
	return rl.Limit(maxPerMinute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func limitedRequest(addr string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/delta/analyze", nil)
	req.RemoteAddr = addr
	return req
}

func TestRateLimiter_AllowsUpToTheLimit(t *testing.T) {
	handler := limitedHandler(t, 10)

	for i := 0; i < 10; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, limitedRequest("1.2.3.4:1234"))
		assert.Equal(t, http.StatusOK, rec.Code, "request %d should pass", i)
	}
}

func TestRateLimiter_RejectsOverTheLimit(t *testing.T) {
	handler := limitedHandler(t, 5)

	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, limitedRequest("1.2.3.4:1234"))
		assert.Equal(t, http.StatusOK, rec.Code)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, limitedRequest("1.2.3.4:1234"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestRateLimiter_BucketsArePerAddress(t *testing.T) {
	handler := limitedHandler(t, 2)

	for i := 0; i < 2; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), limitedRequest("1.1.1.1:1234"))
	}

	// The first address is exhausted; a different one still passes.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, limitedRequest("2.2.2.2:5678"))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimiter_TokensRefillOverTime(t *testing.T) {
	// 60 per minute refills one token per second.
	handler := limitedHandler(t, 60)

	for i := 0; i < 60; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), limitedRequest("3.3.3.3:1234"))
	}

	time.Sleep(1100 * time.Millisecond)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, limitedRequest("3.3.3.3:1234"))
	assert.Equal(t, http.StatusOK, rec.Code)
}
