package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"reflect"
	"time"

	"go.uber.org/zap"

	"github.com/redstone-finance/solana-connector/internal/rate"
)

// RetryPolicy is a bounded exponential backoff: attempt n (0-based) that fails waits
// InitialBackoff * Multiplier^n before the next one, up to MaxAttempts total attempts.
type RetryPolicy struct {
	InitialBackoff time.Duration
	Multiplier     float64
	MaxAttempts    int
}

// DefaultRetryPolicy is 100ms initial delay, doubling, three attempts in total.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		InitialBackoff: 100 * time.Millisecond,
		Multiplier:     2,
		MaxAttempts:    3,
	}
}

// Backoff returns the sleep duration after the given failed attempt.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}
	return time.Duration(float64(p.InitialBackoff) * math.Pow(mult, float64(attempt)))
}

func (p RetryPolicy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Executor handles rate-limited, retrying HTTP execution with JSON decoding.
type Executor struct {
	logger  *zap.Logger
	rateMgr *rate.Manager
	http    *http.Client
	policy  RetryPolicy
	tag     string
	sleep   Sleeper
}

// New creates an Executor. rateMgr may be nil to disable rate limiting.
func New(
	logger *zap.Logger,
	rateMgr *rate.Manager,
	httpClient *http.Client,
	policy RetryPolicy,
	tag string,
) *Executor {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Executor{
		logger:  logger,
		rateMgr: rateMgr,
		http:    httpClient,
		policy:  policy,
		tag:     tag,
		sleep:   sleepCtx,
	}
}

// WithSleeper replaces the backoff sleep, mostly for tests.
func (e *Executor) WithSleeper(s Sleeper) *Executor {
	e.sleep = s
	return e
}

// Policy returns the retry policy in use.
func (e *Executor) Policy() RetryPolicy {
	return e.policy
}

// DoJSON executes the request built by newReq with rate limiting and retries, and
// JSON-decodes a 2xx response into out. A fresh request is built for every attempt so
// request bodies are re-sent in full.
//
// Transport errors, non-2xx statuses and undecodable bodies are retried. When accept is
// non-nil it runs after a successful decode; a non-nil result is treated as a failed
// attempt and retried too. out is zeroed before every attempt.
func (e *Executor) DoJSON(
	ctx context.Context,
	newReq func(ctx context.Context) (*http.Request, error),
	rateLimitKey string,
	out any,
	accept func() error,
) error {
	attempts := e.policy.attempts()

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			wait := e.policy.Backoff(attempt - 1)
			if err := e.sleep(ctx, wait); err != nil {
				return fmt.Errorf("%s retry aborted: %w (last error: %v)", e.tag, err, lastErr)
			}
		}

		if e.rateMgr != nil {
			if err := e.rateMgr.Wait(ctx, rateLimitKey); err != nil {
				return fmt.Errorf("rate limit wait: %w", err)
			}
		}

		req, err := newReq(ctx)
		if err != nil {
			return fmt.Errorf("%s build request: %w", e.tag, err)
		}
		if out != nil {
			resetValue(out)
		}

		start := time.Now()
		resp, err := e.http.Do(req)
		if err != nil {
			lastErr = err
			e.logger.Warn(e.tag+".http_failed",
				zap.String("url", req.URL.String()),
				zap.Error(err),
				zap.Int("attempt", attempt+1))
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		elapsed := time.Since(start)

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			lastErr = fmt.Errorf("%s http error: status %d", e.tag, resp.StatusCode)
			e.logger.Warn(e.tag+".http_status",
				zap.Int("status", resp.StatusCode),
				zap.String("url", req.URL.String()),
				zap.Duration("latency", elapsed),
				zap.Int("attempt", attempt+1))
			continue
		}
		if readErr != nil {
			lastErr = fmt.Errorf("%s read body: %w", e.tag, readErr)
			continue
		}

		if out != nil && len(body) > 0 {
			if err := json.Unmarshal(body, out); err != nil {
				lastErr = fmt.Errorf("decode failed: %w", err)
				e.logger.Warn(e.tag+".decode_failed",
					zap.Error(err),
					zap.String("url", req.URL.String()),
					zap.String("body", string(body)),
					zap.Int("attempt", attempt+1))
				continue
			}
		}

		if accept != nil {
			if err := accept(); err != nil {
				lastErr = err
				e.logger.Warn(e.tag+".rejected",
					zap.String("url", req.URL.String()),
					zap.Error(err),
					zap.Int("attempt", attempt+1))
				continue
			}
		}

		e.logger.Debug(e.tag+".http_success",
			zap.String("url", req.URL.String()),
			zap.Int("status", resp.StatusCode),
			zap.Duration("elapsed", elapsed),
			zap.Int("attempt", attempt+1))

		return nil
	}

	return fmt.Errorf("%s request failed after %d attempts: %w", e.tag, attempts, lastErr)
}

// resetValue zeroes the value out points to so fields from an earlier attempt's
// response do not leak into the next decode.
func resetValue(out any) {
	v := reflect.ValueOf(out)
	if v.Kind() == reflect.Pointer && !v.IsNil() {
		v.Elem().Set(reflect.Zero(v.Elem().Type()))
	}
}
