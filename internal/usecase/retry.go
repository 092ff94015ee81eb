package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/example/artifact-api/internal/logging"
)

// retryPolicy retries transient Redis failures with capped exponential backoff.
type retryPolicy struct {
	attempts       uint64
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

func defaultRetryPolicy() retryPolicy {
	return retryPolicy{attempts: 3, initialBackoff: 50 * time.Millisecond, maxBackoff: time.Second}
}

func (p retryPolicy) backoff() retry.Backoff {
	b := retry.NewExponential(p.initialBackoff)
	b = retry.WithCappedDuration(p.maxBackoff, b)
	if p.attempts <= 1 {
		return retry.WithMaxRetries(0, b)
	}
	return retry.WithMaxRetries(p.attempts-1, b)
}

func (p retryPolicy) do(ctx context.Context, logger *zap.Logger, requestID, operation string, fn func() error) error {
	opLogger := logging.WithOperation(logger, operation, requestID)
	attempt := 0
	err := retry.Do(ctx, p.backoff(), func(ctx context.Context) error {
		attempt++
		err := fn()
		switch {
		case err == nil:
			if attempt > 1 {
				opLogger.Info("redis operation succeeded after retry", zap.Int("attempt", attempt))
			}
			return nil
		case isTransientError(err):
			opLogger.Warn("transient redis error", zap.Error(err), zap.Int("attempt", attempt))
			return retry.RetryableError(err)
		default:
			return err
		}
	})
	return logging.NewOperationError(operation, requestID, err)
}

func isTransientError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var temporary interface{ Temporary() bool }
	if errors.As(err, &temporary) && temporary.Temporary() {
		return true
	}

	return false
}
