// Package persist durably snapshots the workflow graph keyed by board
// name, restores the most recent snapshot at startup, and runs the
// debounced autosave loop. Storage goes through a small key–value
// capability interface so the same reconciliation logic works against
// an in-memory map, a directory of files, or Redis.
package persist

import (
	"context"
	"errors"
	"time"
)

// Common errors.
var (
	ErrNotFound        = errors.New("not found")
	ErrStoreClosed     = errors.New("store is closed")
	ErrInvalidDocument = errors.New("invalid flow document: expected nodes array")
)

// StoreType selects the storage backend.
type StoreType string

const (
	StoreTypeMemory StoreType = "memory"
	StoreTypeFile   StoreType = "file"
	StoreTypeRedis  StoreType = "redis"
)

// Store is the key–value capability the persistence layer runs on.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the value for key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set writes the value for key, superseding any prior value.
	Set(ctx context.Context, key string, value []byte) error
	// List returns all keys with the given prefix.
	List(ctx context.Context, prefix string) ([]string, error)
	// Delete removes a key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Close releases backend resources.
	Close() error
}

// RedisConfig configures the Redis backend.
type RedisConfig struct {
	Addr      string `json:"addr" yaml:"addr"`
	Password  string `json:"password" yaml:"password"`
	DB        int    `json:"db" yaml:"db"`
	KeyPrefix string `json:"key_prefix" yaml:"key_prefix"`
	PoolSize  int    `json:"pool_size" yaml:"pool_size"`
}

// Config is the base configuration for all store backends.
type Config struct {
	// Type is the storage backend type.
	Type StoreType `json:"type" yaml:"type"`

	// BaseDir is the directory for file-based storage.
	BaseDir string `json:"base_dir" yaml:"base_dir"`

	// Redis configuration (only used when Type is "redis").
	Redis RedisConfig `json:"redis" yaml:"redis"`

	// Debounce is the autosave trailing debounce window.
	Debounce time.Duration `json:"debounce" yaml:"debounce"`
}

// DefaultConfig returns the default persistence configuration: memory
// backend, one-second autosave debounce.
func DefaultConfig() Config {
	return Config{
		Type:     StoreTypeMemory,
		BaseDir:  ".mediaflow",
		Debounce: time.Second,
		Redis: RedisConfig{
			Addr:      "localhost:6379",
			KeyPrefix: "mediaflow:",
			PoolSize:  10,
		},
	}
}
