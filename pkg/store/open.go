package store

import (
	"context"
	"fmt"
)

// Backend kinds accepted by Open.
const (
	KindFile   = "file"
	KindSQLite = "sqlite"
	KindRedis  = "redis"
)

// Backend is a Store that may hold a connection.
type Backend interface {
	Store
	Close() error
}

// Open opens a backend by kind. target is the directory for KindFile, the
// database path for KindSQLite and the server address for KindRedis.
func Open(ctx context.Context, kind, target string) (Backend, error) {
	switch kind {
	case KindFile, "":
		return NewFileStore(target), nil
	case KindSQLite:
		if target == "" {
			target = DefaultSQLitePath
		}
		return OpenSQLite(ctx, target)
	case KindRedis:
		if target == "" {
			target = DefaultRedisAddr
		}
		return OpenRedis(ctx, target)
	default:
		return nil, fmt.Errorf("store: unknown backend %q", kind)
	}
}
