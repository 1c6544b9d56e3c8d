// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"

	"github.com/BnaryBlade/loyalty-hive-core/internal/domain"
)

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}

// LevelChangePublisher delivers level-change events to interested systems.
type LevelChangePublisher interface {
	PublishLevelChange(ctx context.Context, evt domain.LevelChangeEvent) error
}

// Store is everything the engine needs from persistence.
// Implemented by the in-memory store and the gorm store.
type Store interface {
	AccountStore
	LedgerStore
	AdminStore
	Ping(ctx context.Context) error
}
