// Package store provides the minimal durable key-value contract the
// delivery fallback channel and draft persistence depend on, with
// memory, file, and redis backends.
//
// Supported backends:
// - Memory: for development and testing (default)
// - File: for single-node deployments
// - Redis: for multi-process deployments (separate browser contexts)
package store

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Common errors
var (
	ErrNotFound    = errors.New("not found")
	ErrStoreClosed = errors.New("store is closed")
)

// KeyValueStore is the durable store contract. Get returns ErrNotFound
// for missing keys; Remove of a missing key is a no-op.
type KeyValueStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
	Close() error
}

// StoreType represents the type of storage backend.
type StoreType string

const (
	StoreTypeMemory StoreType = "memory"
	StoreTypeFile   StoreType = "file"
	StoreTypeRedis  StoreType = "redis"
)

// RedisConfig configures the redis backend.
type RedisConfig struct {
	Addr      string `json:"addr" yaml:"addr"`
	Password  string `json:"password" yaml:"password"`
	DB        int    `json:"db" yaml:"db"`
	PoolSize  int    `json:"pool_size" yaml:"pool_size"`
	KeyPrefix string `json:"key_prefix" yaml:"key_prefix"`
}

// Config is the base configuration for all store implementations.
type Config struct {
	// Type is the storage backend type.
	Type StoreType `json:"type" yaml:"type"`

	// BaseDir is the base directory for file-based storage.
	BaseDir string `json:"base_dir" yaml:"base_dir"`

	// Redis configuration (only used when Type is "redis").
	Redis RedisConfig `json:"redis" yaml:"redis"`
}

// DefaultConfig returns the default store configuration.
func DefaultConfig() Config {
	return Config{
		Type:    StoreTypeMemory,
		BaseDir: "./data/store",
		Redis: RedisConfig{
			Addr:      "localhost:6379",
			PoolSize:  10,
			KeyPrefix: "canvasflow:",
		},
	}
}

// NewKeyValueStore creates a KeyValueStore based on the configuration.
func NewKeyValueStore(config Config, logger *zap.Logger) (KeyValueStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch config.Type {
	case StoreTypeMemory:
		return NewMemoryStore(), nil
	case StoreTypeFile:
		return NewFileStore(config.BaseDir)
	case StoreTypeRedis:
		return NewRedisStore(config.Redis, logger)
	default:
		return nil, fmt.Errorf("unsupported store type: %s", config.Type)
	}
}
