// Package retry implements the exponential-backoff-with-jitter policy of
// spec.md §4.1, as both a generic retry.Do helper for adapter-declared
// transient errors and a hashicorp/go-retryablehttp CheckRetry hook for
// the L1/L2 transport clients (grounded on the teacher's
// flights/session.go customRetryPolicy, and on the repeated
// async_retry(max_retries, base_delay, max_delay, exceptions) decorator
// pattern in original_source's kiwi/client.py, lufthansa_group/client.py,
// hainan_airlines/client.py, air_premia/l2_client.py).
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/gilby125/flightcrawler/xerrors"
)

// Policy holds the tunables named in spec.md §4.1: N attempts after the
// first, base delay B, max delay M, and the classifier deciding whether a
// given error should be retried at all.
type Policy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	// Classify overrides xerrors.KindOf when set, letting a caller widen
	// or narrow what counts as retryable without touching the taxonomy.
	Classify func(err error) xerrors.Kind
	// Jitter disables the random component when false — used by tests
	// asserting exact sleep windows (spec.md §8 Scenario 4, "no jitter").
	Jitter bool
	// Sleep is overridable for tests; defaults to time.Sleep.
	Sleep func(d time.Duration)
}

// DefaultPolicy matches the properties tested in spec.md §8: N=3,
// base=1.0s, max=30.0s, jitter enabled.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries: 3,
		BaseDelay:  1 * time.Second,
		MaxDelay:   30 * time.Second,
		Jitter:     true,
	}
}

func (p Policy) classify(err error) xerrors.Kind {
	if p.Classify != nil {
		return p.Classify(err)
	}
	return xerrors.KindOf(err)
}

func (p Policy) sleep(d time.Duration) {
	if p.Sleep != nil {
		p.Sleep(d)
		return
	}
	time.Sleep(d)
}

// delay computes min(M, B*2^(k-1)) plus jitter in [0, B*2^(k-1)*0.25] for
// the k-th retry (k starts at 1), exactly as spec.md §4.1 states it.
func (p Policy) delay(k int) time.Duration {
	raw := float64(p.BaseDelay) * math.Pow(2, float64(k-1))
	capped := math.Min(float64(p.MaxDelay), raw)
	if !p.Jitter {
		return time.Duration(capped)
	}
	jitter := rand.Float64() * raw * 0.25
	return time.Duration(capped + jitter)
}

// Do runs fn, retrying per Policy while ctx is live and the classifier
// says the error is retryable. The final failure's error is returned
// unchanged. A non-classified (non-retryable) error surfaces immediately,
// as spec.md §4.1 requires.
func Do[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error
	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err
		if attempt == p.MaxRetries {
			break
		}
		if !p.classify(err).Retryable() {
			return zero, err
		}
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		default:
		}
		p.sleep(p.delay(attempt + 1))
	}
	return zero, lastErr
}

// CheckRetry adapts Policy into a retryablehttp.CheckRetry hook, grounded
// on the teacher's flights/session.go customRetryPolicy: bail out on
// context cancellation/deadline first, then classify the HTTP status
// (falling through to retryablehttp's own default for anything this
// taxonomy doesn't recognize).
func (p Policy) CheckRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			return false, ctx.Err()
		}
		return xerrors.KindTransport.Retryable(), err
	}
	if resp == nil {
		return true, errors.New("retry: nil response")
	}
	kind := xerrors.ClassifyHTTPStatus(resp.StatusCode)
	if kind != xerrors.KindUnknown {
		return kind.Retryable(), nil
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

// Backoff adapts Policy's delay formula to retryablehttp's Backoff
// signature so an L1/L2 client built on retryablehttp reproduces the same
// timing as retry.Do.
func (p Policy) Backoff(_, _ time.Duration, attemptNum int, _ *http.Response) time.Duration {
	return p.delay(attemptNum + 1)
}
