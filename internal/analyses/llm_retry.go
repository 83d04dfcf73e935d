package analyses

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"

	"google.golang.org/api/googleapi"
)

// rateWord matches "rate" at the start of a word so that "rate limit" and
// "RATE_LIMIT_EXCEEDED" count but "generate" and "accurate" do not.
var rateWord = regexp.MustCompile(`(?i)\brate`)

// isRateLimited reports whether a provider error is a transient rate/quota signal.
func isRateLimited(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") || strings.Contains(msg, "quota") || rateWord.MatchString(msg)
}

// ModelForAttempt picks the model for a zero-based attempt, clamping at the last entry.
func ModelForAttempt(models []string, attempt int) string {
	if len(models) == 0 {
		return ""
	}
	if attempt < 0 {
		attempt = 0
	}
	if attempt >= len(models) {
		attempt = len(models) - 1
	}
	return models[attempt]
}

// backoff returns 2^(attempt+1) seconds.
func backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 10 {
		attempt = 10
	}
	return time.Duration(1<<(attempt+1)) * time.Second
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func sanitizeError(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.ReplaceAll(err.Error(), "\n", " ")
	msg = strings.ReplaceAll(msg, "\r", " ")
	msg = strings.TrimSpace(msg)
	const maxLen = 500
	if len(msg) > maxLen {
		msg = msg[:maxLen]
	}
	return msg
}
