package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	redislib "github.com/redis/go-redis/v9"

	redisclient "github.com/tablewise/floorstaff-backend/pkg/redis"
)

type sessionStore interface {
	Get(ctx context.Context, key string) (string, error)
}

type sessionKeyer interface {
	AccessSessionKey(accessID string) string
}

// Manager answers whether an access token's session is still live. Sessions
// are written to the shared Redis by the identity service that mints the
// tokens; this service only reads them.
type Manager struct {
	store sessionStore
	keyer sessionKeyer
}

// AccessSessionChecker exposes the read-only surface needed by middleware.
type AccessSessionChecker interface {
	HasSession(ctx context.Context, accessID string) (bool, error)
}

// NewManager constructs a session manager backed by the shared Redis.
func NewManager(client *redisclient.Client) (*Manager, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	return &Manager{store: client, keyer: client}, nil
}

// HasSession reports whether the provided access ID still maps to a live session.
func (m *Manager) HasSession(ctx context.Context, accessID string) (bool, error) {
	if strings.TrimSpace(accessID) == "" {
		return false, fmt.Errorf("access id is required")
	}
	key := m.keyer.AccessSessionKey(accessID)
	if _, err := m.store.Get(ctx, key); err != nil {
		if errors.Is(err, redislib.Nil) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
