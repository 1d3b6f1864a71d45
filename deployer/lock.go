package deployer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/cockroachdb/pebble/vfs"
	"github.com/rs/zerolog/log"
)

// ErrLockTimeout is returned when another deployer holds the data root.
var ErrLockTimeout = errors.New("timed out waiting for data root lock")

const lockRetryInterval = 100 * time.Millisecond

// AcquireLock takes the cross-process lock at path, retrying until timeout
// or ctx is done. The returned closer releases the lock.
func AcquireLock(ctx context.Context, fs vfs.FS, path string, timeout time.Duration) (io.Closer, error) {
	if err := fs.MkdirAll(fs.PathDir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(lockRetryInterval)
	defer ticker.Stop()

	attempts := 0
	for {
		closer, err := fs.Lock(path)
		if err == nil {
			log.Debug().Str("path", path).Int("attempts", attempts+1).Msg("Acquired data root lock")
			return closer, nil
		}
		attempts++

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w after %s (%d attempts): %v", ErrLockTimeout, timeout, attempts, err)
		case <-ticker.C:
		}
	}
}
