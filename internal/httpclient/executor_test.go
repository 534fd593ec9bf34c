package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// recordingSleeper captures backoff durations without sleeping.
type recordingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *recordingSleeper) sleep(_ context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delays = append(r.delays, d)
	return nil
}

func newExec(attempts int, client *http.Client) (*Executor, *recordingSleeper) {
	rec := &recordingSleeper{}
	policy := DefaultRetryPolicy()
	policy.MaxAttempts = attempts
	return New(zap.NewNop(), nil, client, policy, "test").WithSleeper(rec.sleep), rec
}

func getReq(url string) func(ctx context.Context) (*http.Request, error) {
	return func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	}
}

// countingHandler returns a handler that fails the first failCount calls with failStatus
// and then answers 200 with body.
func countingHandler(failCount int, failStatus int, successBody []byte) (http.Handler, *atomic.Int32) {
	var n atomic.Int32
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if int(n.Add(1)) <= failCount {
			w.WriteHeader(failStatus)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(successBody)
	}), &n
}

// ─── Backoff policy ──────────────────────────────────────────────────────────

func TestRetryPolicy_Backoff(t *testing.T) {
	p := DefaultRetryPolicy()
	assert.Equal(t, 100*time.Millisecond, p.Backoff(0))
	assert.Equal(t, 200*time.Millisecond, p.Backoff(1))
	assert.Equal(t, 400*time.Millisecond, p.Backoff(2))

	flat := RetryPolicy{InitialBackoff: 50 * time.Millisecond, Multiplier: 0.5, MaxAttempts: 2}
	assert.Equal(t, 50*time.Millisecond, flat.Backoff(3), "multiplier below 1 is clamped")
}

// ─── Basic success ────────────────────────────────────────────────────────────

func TestDoJSON_SuccessFirstAttempt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"result": "ok"})
	}))
	defer srv.Close()

	exec, rec := newExec(3, srv.Client())

	var out map[string]string
	require.NoError(t, exec.DoJSON(context.Background(), getReq(srv.URL), "k", &out, nil))
	assert.Equal(t, "ok", out["result"])
	assert.Empty(t, rec.delays)
}

// ─── non-2xx retry then success ──────────────────────────────────────────────

func TestDoJSON_TwoFailuresThenSuccess(t *testing.T) {
	h, count := countingHandler(2, http.StatusBadGateway, []byte(`{"v":1}`))
	srv := httptest.NewServer(h)
	defer srv.Close()

	exec, rec := newExec(3, srv.Client())

	var out map[string]int
	require.NoError(t, exec.DoJSON(context.Background(), getReq(srv.URL), "k", &out, nil))
	assert.EqualValues(t, 3, count.Load(), "expected 3 total attempts")
	assert.Equal(t, 1, out["v"])
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}, rec.delays)
}

func TestDoJSON_4xxIsRetried(t *testing.T) {
	h, count := countingHandler(1, http.StatusTooManyRequests, []byte(`{}`))
	srv := httptest.NewServer(h)
	defer srv.Close()

	exec, _ := newExec(3, srv.Client())
	require.NoError(t, exec.DoJSON(context.Background(), getReq(srv.URL), "k", nil, nil))
	assert.EqualValues(t, 2, count.Load())
}

// ─── POST body is re-sent on retry ───────────────────────────────────────────

func TestDoJSON_PostBodyResentOnRetry(t *testing.T) {
	var mu sync.Mutex
	var received []string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		received = append(received, string(b))
		n := len(received)
		mu.Unlock()
		if n == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("{}"))
	}))
	defer srv.Close()

	exec, _ := newExec(2, srv.Client())

	bodyBytes, _ := json.Marshal(map[string]string{"value": "hello"})
	newReq := func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, srv.URL, bytes.NewReader(bodyBytes))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}

	require.NoError(t, exec.DoJSON(context.Background(), newReq, "k", nil, nil))
	require.Len(t, received, 2, "expected two attempts")
	assert.JSONEq(t, `{"value":"hello"}`, received[0], "first attempt body")
	assert.JSONEq(t, `{"value":"hello"}`, received[1], "retry must re-send the full body")
}

// ─── All retries exhausted ────────────────────────────────────────────────────

func TestDoJSON_ExhaustAllAttempts(t *testing.T) {
	var count atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		count.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	exec, rec := newExec(3, srv.Client())

	err := exec.DoJSON(context.Background(), getReq(srv.URL), "k", nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed after 3 attempts")
	assert.Contains(t, err.Error(), "status 500")
	assert.EqualValues(t, 3, count.Load())
	assert.Len(t, rec.delays, 2, "no sleep after the final attempt")
}

func TestDoJSON_SingleAttempt(t *testing.T) {
	var count atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		count.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	exec, _ := newExec(0, srv.Client())

	require.Error(t, exec.DoJSON(context.Background(), getReq(srv.URL), "k", nil, nil))
	assert.EqualValues(t, 1, count.Load(), "MaxAttempts<1 still makes exactly one attempt")
}

// ─── accept callback ─────────────────────────────────────────────────────────

func TestDoJSON_AcceptRejectionIsRetried(t *testing.T) {
	var count atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if count.Add(1) == 1 {
			_, _ = w.Write([]byte(`{"error":"busy"}`))
			return
		}
		_, _ = w.Write([]byte(`{"result":"done"}`))
	}))
	defer srv.Close()

	exec, _ := newExec(3, srv.Client())

	var out struct {
		Result string `json:"result"`
		Error  string `json:"error"`
	}
	accept := func() error {
		if out.Error != "" {
			return errors.New(out.Error)
		}
		return nil
	}
	require.NoError(t, exec.DoJSON(context.Background(), getReq(srv.URL), "k", &out, accept))
	assert.EqualValues(t, 2, count.Load())
	assert.Equal(t, "done", out.Result)
	assert.Empty(t, out.Error, "fields from the rejected attempt must not survive")
}

// ─── JSON decode error ────────────────────────────────────────────────────────

func TestDoJSON_DecodeErrorIsRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte("<html>bad gateway</html>"))
			return
		}
		_, _ = w.Write([]byte(`{"result":"ok"}`))
	}))
	defer srv.Close()

	exec, rec := newExec(3, srv.Client())

	var out map[string]string
	require.NoError(t, exec.DoJSON(context.Background(), getReq(srv.URL), "k", &out, nil))
	assert.EqualValues(t, 2, calls.Load())
	assert.Equal(t, "ok", out["result"])
	assert.Len(t, rec.delays, 1)
}

func TestDoJSON_DecodeErrorExhaustsAttempts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("not-json"))
	}))
	defer srv.Close()

	exec, _ := newExec(3, srv.Client())

	var out map[string]string
	err := exec.DoJSON(context.Background(), getReq(srv.URL), "k", &out, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed after 3 attempts")
	assert.Contains(t, err.Error(), "decode failed")
}

func TestDoJSON_EmptyBodyClearsPreviousAttempt(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			_, _ = w.Write([]byte(`{"error":"busy"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	exec, _ := newExec(3, srv.Client())

	var out struct {
		Error string `json:"error"`
	}
	accept := func() error {
		if out.Error != "" {
			return errors.New(out.Error)
		}
		return nil
	}
	require.NoError(t, exec.DoJSON(context.Background(), getReq(srv.URL), "k", &out, accept))
	assert.EqualValues(t, 2, calls.Load())
	assert.Empty(t, out.Error)
}

// ─── Context cancellation during backoff ─────────────────────────────────────

func TestDoJSON_ContextCanceledDuringBackoff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	policy := RetryPolicy{InitialBackoff: time.Hour, Multiplier: 2, MaxAttempts: 3}
	exec := New(zap.NewNop(), nil, srv.Client(), policy, "test")

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := exec.DoJSON(ctx, getReq(srv.URL), "k", nil, nil)
	require.ErrorIs(t, err, context.Canceled)
}
