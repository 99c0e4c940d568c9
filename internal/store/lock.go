package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

var ErrLocked = errors.New("data directory is in use by another careerwatch process")

// InstanceLock takes a non-blocking exclusive lock on dir so only one poller
// writes a given snapshot file. Release it with Unlock on shutdown.
func InstanceLock(dir string) (*flock.Flock, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: mkdir %s: %w", dir, err)
	}
	l := flock.New(filepath.Join(dir, "careerwatch.lock"))
	ok, err := l.TryLock()
	if err != nil {
		return nil, fmt.Errorf("store: instance lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("store: %s: %w", dir, ErrLocked)
	}
	return l, nil
}
