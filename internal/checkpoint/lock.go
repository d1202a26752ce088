package checkpoint

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"time"

	"vibesafe/internal/vserrors"
)

// fileLock is an OS-level advisory lock realized as a lockfile created
// with O_CREATE|O_EXCL. No flock-style library appears anywhere in the
// example corpus, so index.toml's read-modify-write cycle is serialized
// this way instead (documented in DESIGN.md).
type fileLock struct {
	path string
}

// acquireLock retries with jittered backoff until the lockfile is created or
// ctx's deadline (or the given timeout) elapses.
func acquireLock(ctx context.Context, path string, timeout time.Duration) (*fileLock, error) {
	deadline := time.Now().Add(timeout)
	for {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			_ = f.Close()
			return &fileLock{path: path}, nil
		}
		if !os.IsExist(err) {
			return nil, vserrors.NewStorageError("", "IndexLockContended", fmt.Sprintf("create lockfile: %v", err))
		}
		if time.Now().After(deadline) {
			return nil, vserrors.NewStorageError("", "IndexLockContended", "timed out waiting for index lock")
		}

		jitter := time.Duration(rand.Intn(50)) * time.Millisecond
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(25*time.Millisecond + jitter):
		}
	}
}

func (l *fileLock) release() error {
	return os.Remove(l.path)
}
