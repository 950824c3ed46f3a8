package postgres

import (
	"context"
	"database/sql/driver"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// withRetry runs op with bounded exponential backoff on transient failures.
// Transient means connection-level errors or Postgres resource/availability
// conditions (connection exception, insufficient resources, server starting,
// deadlock). Anything else (constraint violations, syntax errors, context
// cancellation) is permanent and returned immediately.
//
// The context bounds total retry time: a per-call timeout or a cancelled
// invocation stops the retry loop.
func withRetry(ctx context.Context, logger *zap.Logger, budget int, baseDelay time.Duration, label string, op func() error) error {
	var lastErr error
	for attempt := 0; attempt < budget; attempt++ {
		if attempt > 0 {
			backoff := baseDelay * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		err := op()
		if err == nil {
			return nil
		}
		lastErr = err

		if !isTransient(err) {
			return err
		}

		logger.Warn("transient storage failure, retrying",
			zap.String("operation", label),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
	}
	return lastErr
}

// isTransient classifies a storage error as retryable.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		class := string(pqErr.Code.Class())
		switch class {
		case "08": // connection exception
			return true
		case "53": // insufficient resources (throttling)
			return true
		case "57": // operator intervention (cannot_connect_now etc.)
			return pqErr.Code != "57014" // query_canceled is permanent
		case "40": // transaction rollback (serialization, deadlock)
			return true
		}
		return false
	}

	// Driver-level connection failures surface as plain errors
	msg := err.Error()
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset")
}
