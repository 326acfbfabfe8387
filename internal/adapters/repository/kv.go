// Package repository provides the key-value stores behind the result cache.
package repository

import "context"

// KV is a string-keyed byte store. Entries are never expired or evicted.
type KV interface {
	// Get returns the value for key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Put stores value under key, replacing any existing value.
	Put(ctx context.Context, key string, value []byte) error
	// Contains reports whether key is present.
	Contains(ctx context.Context, key string) (bool, error)
	// Len returns the number of stored keys.
	Len(ctx context.Context) (int, error)
	Close() error
}
