package llm

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// Throttled paces outbound provider calls with a token bucket.
type Throttled struct {
	next    Provider
	limiter *rate.Limiter
}

// Throttle wraps p so calls are admitted at most rps per second with the given burst.
// A non-positive rps disables pacing and returns p unchanged.
func Throttle(p Provider, rps float64, burst int) Provider {
	if rps <= 0 || p == nil {
		return p
	}
	if burst < 1 {
		burst = 1
	}
	return &Throttled{next: p, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

// Generate waits for a token, then delegates.
func (t *Throttled) Generate(ctx context.Context, req Request) (string, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		// Wait refuses early when the next token lands past the deadline.
		if _, ok := ctx.Deadline(); ok {
			return "", fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
		}
		return "", err
	}
	return t.next.Generate(ctx, req)
}
