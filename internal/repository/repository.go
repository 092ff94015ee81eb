package repository

import (
	"context"
	"database/sql/driver"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/artifact-api/internal/logging"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")
)

// Repository provides persistence APIs for items, photos, juries and analyses.
type Repository struct {
	db             *gorm.DB
	logger         *zap.Logger
	retryAttempts  int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// New creates a new repository instance.
func New(db *gorm.DB, logger *zap.Logger) *Repository {
	return &Repository{
		db:             db,
		logger:         logger.Named("repository"),
		retryAttempts:  3,
		initialBackoff: 50 * time.Millisecond,
		maxBackoff:     time.Second,
	}
}

// AutoMigrate ensures the schema is available.
func (r *Repository) AutoMigrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&Item{}, &Photo{}, &Jury{}, &AnalysisRecord{})
}

func (r *Repository) backoff() retry.Backoff {
	b := retry.WithCappedDuration(r.maxBackoff, retry.NewExponential(r.initialBackoff))
	if r.retryAttempts <= 1 {
		return retry.WithMaxRetries(0, b)
	}
	return retry.WithMaxRetries(uint64(r.retryAttempts-1), b)
}

func (r *Repository) executeWithRetry(ctx context.Context, operation, requestID string, fn func() error) error {
	opLogger := logging.WithOperation(r.logger, operation, requestID)
	attempt := 0
	err := retry.Do(ctx, r.backoff(), func(ctx context.Context) error {
		attempt++
		err := translateError(fn())
		switch {
		case err == nil:
			if attempt > 1 {
				opLogger.Info("database operation succeeded after retry", zap.Int("attempt", attempt))
			}
			return nil
		case isTransientError(err) && attempt < r.retryAttempts:
			opLogger.Warn("transient database error", zap.Error(err), zap.Int("attempt", attempt))
			return retry.RetryableError(err)
		default:
			return err
		}
	})
	if err != nil && !errors.Is(err, ErrNotFound) {
		opLogger.Error("database operation failed", zap.Error(err), zap.Int("attempt", attempt))
	}
	return logging.NewOperationError(operation, requestID, err)
}

func translateError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	}
	return err
}

func isTransientError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, driver.ErrBadConn) {
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
