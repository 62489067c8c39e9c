package cache

import (
	"context"
	"errors"
	"time"

	"github.com/lshigami/testcert/internal/model"
)

var ErrSessionNotFound = errors.New("session not found in cache")

// SessionCache holds in-progress TestSessions. Entries expire after the TTL
// given on Set; the durable TestAttempt row stays the source of truth.
type SessionCache interface {
	Set(ctx context.Context, session *model.TestSession, ttl time.Duration) error
	Get(ctx context.Context, sessionID uint) (*model.TestSession, error)
	Delete(ctx context.Context, sessionID uint) error
	List(ctx context.Context) ([]*model.TestSession, error)
}
