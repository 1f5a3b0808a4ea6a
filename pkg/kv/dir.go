package kv

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// lockRetry is how often a blocked writer retries the file lock.
const lockRetry = 20 * time.Millisecond

// Dir implements Store as one file per key under a local directory.
//
// Writes go to a temporary file that is renamed over the target, so readers
// see either the old or the new value. A sibling "<key>.lock" file, held
// with flock during writes, serializes writers across processes.
type Dir struct {
	root string
}

// NewDir creates a Dir store rooted at dir.
// The directory is created (with parents) if it does not already exist.
func NewDir(dir string) (*Dir, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("kv: resolve %s: %w", dir, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("kv: create %s: %w", abs, err)
	}
	return &Dir{root: abs}, nil
}

// Root returns the absolute directory path.
func (d *Dir) Root() string {
	return d.root
}

func (d *Dir) path(key string) string {
	return filepath.Join(d.root, key)
}

func (d *Dir) Get(_ context.Context, key string) ([]byte, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(d.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("kv: read %s: %w", key, err)
	}
	return data, nil
}

func (d *Dir) Set(ctx context.Context, key string, value []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}
	unlock, err := d.lock(ctx, key)
	if err != nil {
		return err
	}
	defer unlock()

	tmp, err := os.CreateTemp(d.root, "."+key+".tmp-*")
	if err != nil {
		return fmt.Errorf("kv: write %s: %w", key, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		return fmt.Errorf("kv: write %s: %w", key, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("kv: sync %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("kv: write %s: %w", key, err)
	}
	if err := os.Rename(tmpName, d.path(key)); err != nil {
		return fmt.Errorf("kv: commit %s: %w", key, err)
	}
	return nil
}

func (d *Dir) Delete(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	unlock, err := d.lock(ctx, key)
	if err != nil {
		return err
	}
	defer unlock()

	err = os.Remove(d.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func (d *Dir) Close() error {
	return nil
}

func (d *Dir) lock(ctx context.Context, key string) (func(), error) {
	fl := flock.New(d.path(key) + ".lock")
	ok, err := fl.TryLockContext(ctx, lockRetry)
	if err != nil {
		return nil, fmt.Errorf("kv: lock %s: %w", key, err)
	}
	if !ok {
		return nil, fmt.Errorf("kv: lock %s: not acquired", key)
	}
	return func() { _ = fl.Unlock() }, nil
}
