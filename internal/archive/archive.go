package archive

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/park285/leela-coach/pkg/coachdto"
)

var ErrDuplicateGame = errors.New("game already archived")

// Store persists finished game records. Stores are observers of the coach
// core: the game flow never depends on one succeeding, and the in-memory
// implementation is the default when nothing external is configured.
type Store interface {
	SaveGame(ctx context.Context, rec coachdto.GameRecord) error
	GetGame(ctx context.Context, id string) (*coachdto.GameRecord, error)
	RecentGames(ctx context.Context, limit int) ([]coachdto.GameRecord, error)
	Close() error
}

// Open selects a backend by name: "memory" (the default when empty),
// "redis", or "postgres".
func Open(backend, redisURL, databaseURL string) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", "memory":
		return NewMemoryStore(), nil
	case "redis":
		return NewRedisStore(redisURL)
	case "postgres":
		return NewPostgresStore(databaseURL)
	default:
		return nil, fmt.Errorf("unknown archive backend %q", backend)
	}
}
