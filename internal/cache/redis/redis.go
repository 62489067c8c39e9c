package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lshigami/testcert/internal/cache"
	"github.com/lshigami/testcert/internal/model"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const keyPrefix = "test_session:"

// SessionCache stores each TestSession as a JSON string under
// test_session:<id> with a TTL.
type SessionCache struct {
	rdb *redis.Client
}

// NewClient initializes a Redis client.
func NewClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

func NewSessionCache(rdb *redis.Client) *SessionCache {
	return &SessionCache{rdb: rdb}
}

func sessionKey(sessionID uint) string {
	return fmt.Sprintf("%s%d", keyPrefix, sessionID)
}

// Ping helper
func (c *SessionCache) Ping(ctx context.Context) error { return c.rdb.Ping(ctx).Err() }

func (c *SessionCache) Set(ctx context.Context, session *model.TestSession, ttl time.Duration) error {
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, sessionKey(session.ID), data, ttl).Err()
}

func (c *SessionCache) Get(ctx context.Context, sessionID uint) (*model.TestSession, error) {
	raw, err := c.rdb.Get(ctx, sessionKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, cache.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	var session model.TestSession
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("decode session %d: %w", sessionID, err)
	}
	if session.Answers == nil {
		session.Answers = map[uint]string{}
	}
	return &session, nil
}

func (c *SessionCache) Delete(ctx context.Context, sessionID uint) error {
	return c.rdb.Del(ctx, sessionKey(sessionID)).Err()
}

// List walks test_session:* with SCAN; keys that vanish mid-scan are skipped.
func (c *SessionCache) List(ctx context.Context) ([]*model.TestSession, error) {
	var sessions []*model.TestSession
	var cursor uint64
	for {
		keys, nextCursor, err := c.rdb.Scan(ctx, cursor, keyPrefix+"*", 100).Result()
		if err != nil {
			return nil, err
		}
		for _, key := range keys {
			id, err := strconv.ParseUint(strings.TrimPrefix(key, keyPrefix), 10, 64)
			if err != nil {
				log.Warn().Str("key", key).Msg("Skipping malformed session key")
				continue
			}
			session, err := c.Get(ctx, uint(id))
			if errors.Is(err, cache.ErrSessionNotFound) {
				continue
			}
			if err != nil {
				return nil, err
			}
			sessions = append(sessions, session)
		}
		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}
	return sessions, nil
}
