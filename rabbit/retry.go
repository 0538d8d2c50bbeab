package rabbit

import (
	"context"
	"time"

	"github.com/nlds-io/nlds/common"
)

// RetryPolicy is the exponential-backoff schedule every bus operation is
// wrapped in (spec.md §4.1, §4.8): 1s initial delay, factor 2, capped at
// 60s, unbounded attempts — ported from the original's
// `@retry(tries=-1, delay=1, backoff=2, max_delay=60)`.
type RetryPolicy struct {
	InitialDelay time.Duration
	Factor       float64
	MaxDelay     time.Duration
}

// DefaultRetryPolicy is the schedule spec.md §4.1/§4.8 mandates.
var DefaultRetryPolicy = RetryPolicy{
	InitialDelay: time.Second,
	Factor:       2,
	MaxDelay:     60 * time.Second,
}

// Retry runs fn until it succeeds or ctx is cancelled, sleeping according
// to p between attempts. There is no attempt cap — transport errors
// against the bus are retried indefinitely per spec.md §7.
func (p RetryPolicy) Retry(ctx context.Context, logger *common.ContextLogger, op string, fn func() error) error {
	delay := p.InitialDelay
	if delay <= 0 {
		delay = time.Second
	}
	factor := p.Factor
	if factor <= 1 {
		factor = 2
	}
	maxDelay := p.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 60 * time.Second
	}

	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if logger != nil {
			logger.WithFields(map[string]interface{}{
				"operation": op,
				"attempt":   attempt,
				"delay":     delay.String(),
			}).WithError(err).Warn("bus operation failed, retrying")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		next := time.Duration(float64(delay) * factor)
		if next > maxDelay {
			next = maxDelay
		}
		delay = next
	}
}
