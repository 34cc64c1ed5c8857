package slm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry(attempts int) RetryPolicy {
	return RetryPolicy{MaxAttempts: attempts, BaseDelay: time.Millisecond, Multiplier: 2.0}
}

func newTestClient(url string, attempts int) *Client {
	return NewClient(Config{
		Endpoint: url,
		Retry:    fastRetry(attempts),
		Timeout:  5 * time.Second,
	})
}

func TestCompleteSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"generated_text": "module counter(); endmodule"}`))
	}))
	defer srv.Close()

	got, err := newTestClient(srv.URL, 3).Complete(context.Background(), "write a counter")
	require.NoError(t, err)
	assert.Equal(t, "module counter(); endmodule", got)
}

func TestCompleteRetriesOn429(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"text": "ok"}`))
	}))
	defer srv.Close()

	got, err := newTestClient(srv.URL, 5).Complete(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, int32(3), calls.Load())
}

func TestCompleteRetriesOn5xx(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"response": "recovered"}`))
	}))
	defer srv.Close()

	got, err := newTestClient(srv.URL, 3).Complete(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "recovered", got)
}

func TestCompleteNoRetryOn4xx(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	got, err := newTestClient(srv.URL, 5).Complete(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, NoResult, got, "hard failures degrade to the sentinel")
	assert.Equal(t, int32(1), calls.Load(), "400 must not be retried")
}

func TestCompleteExhaustedRetriesReturnsNoResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	got, err := newTestClient(srv.URL, 3).Complete(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, NoResult, got)
}

func TestCompleteContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(time.Second)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := newTestClient(srv.URL, 3).Complete(ctx, "p")
	assert.Error(t, err)
}

func TestCompleteWithTemperatureSendsTemperature(t *testing.T) {
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, r.ContentLength)
		r.Body.Read(buf)
		gotBody = string(buf)
		w.Write([]byte(`{"text": "ok"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, 1).CompleteWithTemperature(context.Background(), "p", 0.4)
	require.NoError(t, err)
	assert.Contains(t, gotBody, `"temperature":0.4`)
}

func TestParseResult(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    string
	}{
		{"generated_text field", `{"generated_text": "a"}`, "a"},
		{"text field", `{"text": "b"}`, "b"},
		{"response field", `{"response": "c"}`, "c"},
		{"output field", `{"output": "d"}`, "d"},
		{"result field", `{"result": "e"}`, "e"},
		{"probe order prefers generated_text", `{"result": "low", "generated_text": "high"}`, "high"},
		{"array payload", `[{"generated_text": "first"}]`, "first"},
		{"unknown fields fall back to raw payload", `{"completion": "x"}`, `{"completion": "x"}`},
		{"non-json falls back trimmed", "  plain text  ", "plain text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseResult([]byte(tt.payload)))
		})
	}
}

func TestRetryDelayGeometric(t *testing.T) {
	p := RetryPolicy{BaseDelay: 100 * time.Millisecond, Multiplier: 2.0}
	assert.Equal(t, 100*time.Millisecond, p.delay(0))
	assert.Equal(t, 200*time.Millisecond, p.delay(1))
	assert.Equal(t, 400*time.Millisecond, p.delay(2))
}
