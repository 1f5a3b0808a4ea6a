// Package kv provides the durable slots that hold the enrolled profile set.
//
// A slot is a flat string key mapped to an opaque value. Four backends are
// available:
//
//   - Memory: process-local map, for tests and ephemeral sessions
//   - Badger: embedded BadgerDB v4 database
//   - Dir: one file per key in a local directory, written atomically under
//     a file lock so concurrent processes never interleave writes
//   - S3: one object per key in an S3-compatible bucket
package kv

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors.
var (
	// ErrNotFound is returned when a key does not exist in the store.
	ErrNotFound = errors.New("kv: not found")
)

// Store is the interface for a slot store.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get retrieves the value for a key. Returns ErrNotFound if not present.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value, replacing any existing one.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes a key. No error if the key does not exist.
	Delete(ctx context.Context, key string) error

	// Close releases any resources held by the store.
	Close() error
}

// validateKey rejects keys that cannot be mapped onto every backend.
func validateKey(key string) error {
	if key == "" {
		return errors.New("kv: empty key")
	}
	if strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return fmt.Errorf("kv: invalid key %q", key)
	}
	return nil
}
