package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventpass/internal/delivery/http/helpers"
)

// fakeCounter implements counter with an in-memory count per key.
type fakeCounter struct {
	counts  map[string]int64
	incrErr error
	expired map[string]time.Duration
}

func newFakeCounter() *fakeCounter {
	return &fakeCounter{counts: make(map[string]int64), expired: make(map[string]time.Duration)}
}

func (f *fakeCounter) Incr(ctx context.Context, key string) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx)
	if f.incrErr != nil {
		cmd.SetErr(f.incrErr)
		return cmd
	}
	f.counts[key]++
	cmd.SetVal(f.counts[key])
	return cmd
}

func (f *fakeCounter) Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	f.expired[key] = expiration
	cmd := redis.NewBoolCmd(ctx)
	cmd.SetVal(true)
	return cmd
}

func limiterLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func registerRequest(userID string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/events/ev-1/registrations", nil)
	if userID != "" {
		req = req.WithContext(SetUserID(req.Context(), userID))
	}
	return req
}

func TestRateLimit_NilClientFailsOpen(t *testing.T) {
	var nextCalled bool
	next := func(w http.ResponseWriter, r *http.Request) { nextCalled = true }

	rec := httptest.NewRecorder()
	RateLimit(nil, 1, time.Minute, limiterLogger())(next)(rec, registerRequest("user-1"))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, nextCalled)
}

func TestRateLimit_RedisErrorFailsOpen(t *testing.T) {
	c := newFakeCounter()
	c.incrErr = errors.New("connection refused")

	var nextCalled bool
	next := func(w http.ResponseWriter, r *http.Request) { nextCalled = true }

	rec := httptest.NewRecorder()
	rateLimit(c, 1, time.Minute, limiterLogger())(next)(rec, registerRequest("user-1"))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, nextCalled)
}

func TestRateLimit_OverLimitRejected(t *testing.T) {
	c := newFakeCounter()
	var calls int
	next := func(w http.ResponseWriter, r *http.Request) { calls++ }

	limited := rateLimit(c, 2, time.Minute, limiterLogger())(next)

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		limited(rec, registerRequest("user-1"))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := httptest.NewRecorder()
	limited(rec, registerRequest("user-1"))

	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, 2, calls)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))

	var resp helpers.APIResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, helpers.ErrCodeTooManyRequests, resp.Error.Code)
}

func TestRateLimit_WindowSetOnFirstHit(t *testing.T) {
	c := newFakeCounter()
	next := func(w http.ResponseWriter, r *http.Request) {}

	limited := rateLimit(c, 5, time.Minute, limiterLogger())(next)
	limited(httptest.NewRecorder(), registerRequest("user-1"))
	limited(httptest.NewRecorder(), registerRequest("user-1"))

	require.Len(t, c.expired, 1)
	for _, ttl := range c.expired {
		assert.Equal(t, time.Minute, ttl)
	}
}

func TestRateLimit_CallersCountedSeparately(t *testing.T) {
	c := newFakeCounter()
	next := func(w http.ResponseWriter, r *http.Request) {}

	limited := rateLimit(c, 1, time.Minute, limiterLogger())(next)
	limited(httptest.NewRecorder(), registerRequest("user-1"))

	rec := httptest.NewRecorder()
	limited(rec, registerRequest("user-2"))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	limited(rec, registerRequest("user-1"))
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
}
