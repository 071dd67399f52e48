package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// ErrKeyNotFound is returned by Get when the key has never been set.
var ErrKeyNotFound = errors.New("key not found")

// Store is an opaque string key-value store. Every value is a complete
// serialized record or collection; there is no partial update at this
// layer.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Open selects a backend from STORAGE_BACKEND: "memory" (default),
// "file", "redis" or "postgres".
func Open(ctx context.Context) (Store, error) {
	backend := os.Getenv("STORAGE_BACKEND")
	switch backend {
	case "", "memory":
		return NewMemoryStore(), nil
	case "file":
		path := os.Getenv("DATA_FILE")
		if path == "" {
			path = "data/habitflow.json"
		}
		return NewFileStore(path)
	case "redis":
		url := os.Getenv("REDIS_URL")
		if url == "" {
			return nil, fmt.Errorf("REDIS_URL must be set for the redis backend")
		}
		return NewRedisStore(ctx, url)
	case "postgres":
		url := os.Getenv("DATABASE_URL")
		if url == "" {
			return nil, fmt.Errorf("DATABASE_URL must be set for the postgres backend")
		}
		return NewPostgresStore(ctx, url)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}

// HabitsKey is the per-user key holding the full serialized habit
// collection.
func HabitsKey(userID string) string {
	return "habits-" + userID
}

const (
	KeyUser                 = "user"
	KeyTheme                = "theme"
	KeyAccentColor          = "accentColor"
	KeyNotificationSettings = "notificationSettings"
)
