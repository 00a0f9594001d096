package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/username/tradeledger/src/logger"
)

var ErrStoreLocked = errors.New("trade store is locked by another process")

const lockRetryDelay = 100 * time.Millisecond

// WithLock runs fn while holding an exclusive advisory lock on
// <store>.lock. Acquisition is retried until the repository's lock timeout
// or ctx expires. The store directory is created if missing, since the
// lock file lives next to the store.
func (r *Repository) WithLock(ctx context.Context, fn func() error) error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}
	lock := flock.New(r.path + ".lock")

	lockCtx, cancel := context.WithTimeout(ctx, r.lockTimeout)
	defer cancel()

	locked, err := lock.TryLockContext(lockCtx, lockRetryDelay)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("failed to acquire store lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("%w: waited %s for %s", ErrStoreLocked, r.lockTimeout, lock.Path())
	}
	defer func() {
		if uerr := lock.Unlock(); uerr != nil {
			logger.L.Warn("Failed to release store lock", "path", lock.Path(), "error", uerr)
		}
	}()

	logger.L.Debug("Store lock acquired", "path", lock.Path())
	return fn()
}
