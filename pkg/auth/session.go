package auth

import (
	"context"
	"encoding/json"
	"time"

	"agendify/pkg/model"

	"github.com/go-redis/redis/v8"
)

const sessionKeyPrefix = "session:"

// SessionCache keeps a short-lived token-hash -> account mapping in Redis so
// the auth middleware does not hit Mongo on every request. Entries are keyed
// by SHA-256 of the token, never the token itself.
type SessionCache struct {
	rdb *redis.Client
	ttl time.Duration
}

type cachedSession struct {
	AccountID string     `json:"account_id"`
	Role      model.Role `json:"role"`
}

func NewSessionCache(rdb *redis.Client, ttl time.Duration) *SessionCache {
	return &SessionCache{
		rdb: rdb,
		ttl: ttl,
	}
}

func (c *SessionCache) Get(ctx context.Context, tokenHash string) (Identity, bool) {
	if c == nil || c.rdb == nil {
		return Identity{}, false
	}

	data, err := c.rdb.Get(ctx, sessionKeyPrefix+tokenHash).Bytes()
	if err != nil {
		return Identity{}, false
	}

	var session cachedSession
	if err := json.Unmarshal(data, &session); err != nil {
		return Identity{}, false
	}
	if !session.Role.Valid() {
		return Identity{}, false
	}

	return Identity{
		AccountID: session.AccountID,
		Role:      session.Role,
	}, true
}

func (c *SessionCache) Set(ctx context.Context, tokenHash string, id Identity) {
	if c == nil || c.rdb == nil {
		return
	}

	data, err := json.Marshal(cachedSession{
		AccountID: id.AccountID,
		Role:      id.Role,
	})
	if err != nil {
		return
	}

	// Cache misses fall back to the account store, so a failed write here
	// is not an error worth surfacing.
	c.rdb.Set(ctx, sessionKeyPrefix+tokenHash, data, c.ttl)
}

func (c *SessionCache) Invalidate(ctx context.Context, tokenHash string) {
	if c == nil || c.rdb == nil {
		return
	}
	c.rdb.Del(ctx, sessionKeyPrefix+tokenHash)
}
