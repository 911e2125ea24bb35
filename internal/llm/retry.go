package llm

import (
	"context"
	"errors"
	"time"

	"github.com/schoolsim/campus-engine/internal/simerrors"
)

// Retry runs do up to maxRetries times, pacing retries by the typed failure
// kind: rate limits sleep the interval the server asked for, timeouts back
// off exponentially (1s · 2^attempt), and every other error surfaces
// immediately. Errors that are not LlmErrors also surface immediately.
func Retry(ctx context.Context, maxRetries int, do func() error) error {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		err := do()
		if err == nil {
			return nil
		}
		lastErr = err

		var le *simerrors.LlmError
		if !errors.As(err, &le) {
			return err
		}

		var wait time.Duration
		switch le.Kind {
		case simerrors.LlmRateLimited:
			wait = time.Duration(le.RetryAfter) * time.Millisecond
			if wait <= 0 {
				wait = time.Second
			}
		case simerrors.LlmTimeout:
			wait = time.Duration(1<<attempt) * time.Second
		default:
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return lastErr
}
