package credential

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"notify-service/internal/shared/logging"
)

// DefaultSkew is how long before expiry a cached token stops being handed out.
const DefaultSkew = time.Minute

// TokenStore shares tokens between replicas.
type TokenStore interface {
	Load(ctx context.Context) (BearerToken, bool, error)
	Store(ctx context.Context, tok BearerToken, ttl time.Duration) error
}

// CachingMinter reuses a token until it is about to expire. Concurrent
// callers that miss the cache share one mint. A broken shared store never
// blocks minting.
type CachingMinter struct {
	next  Minter
	store TokenStore
	skew  time.Duration
	now   func() time.Time

	group singleflight.Group

	mu  sync.Mutex
	tok BearerToken
}

// NewCachingMinter caches in process memory. store is optional; pass nil to
// keep tokens out of any shared cache.
func NewCachingMinter(next Minter, store TokenStore) *CachingMinter {
	return &CachingMinter{next: next, store: store, skew: DefaultSkew, now: time.Now}
}

func (c *CachingMinter) cached() (BearerToken, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tok.Valid(c.now(), c.skew) {
		return c.tok, true
	}
	return BearerToken{}, false
}

// Mint returns the cached token or waits for a fresh one. A caller whose ctx
// ends stops waiting; the mint in flight still completes for the others.
func (c *CachingMinter) Mint(ctx context.Context) (BearerToken, error) {
	if tok, ok := c.cached(); ok {
		return tok, nil
	}

	ch := c.group.DoChan("mint", func() (any, error) {
		return c.refresh(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return BearerToken{}, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return BearerToken{}, r.Err
		}
		return r.Val.(BearerToken), nil
	}
}

func (c *CachingMinter) refresh(ctx context.Context) (BearerToken, error) {
	if tok, ok := c.cached(); ok {
		return tok, nil
	}

	lg := logging.Component("credential")
	now := c.now()
	if c.store != nil {
		tok, ok, err := c.store.Load(ctx)
		switch {
		case err != nil:
			lg.Warn().Err(err).Msg("shared token cache read failed")
		case ok && tok.Valid(now, c.skew):
			c.set(tok)
			return tok, nil
		}
	}

	tok, err := c.next.Mint(ctx)
	if err != nil {
		return BearerToken{}, err
	}
	c.set(tok)

	if c.store != nil {
		if ttl := tok.Expiry.Sub(now) - c.skew; ttl > 0 {
			if err := c.store.Store(ctx, tok, ttl); err != nil {
				lg.Warn().Err(err).Msg("shared token cache write failed")
			}
		}
	}
	return tok, nil
}

func (c *CachingMinter) set(tok BearerToken) {
	c.mu.Lock()
	c.tok = tok
	c.mu.Unlock()
}

type redisTokenStore struct {
	rdb *redis.Client
	key string
}

// NewRedisTokenStore shares the tokens of one service account between
// replicas. The key names the account and its key id, so a rotated key or a
// second project on the same Redis never reads another account's token.
func NewRedisTokenStore(rdb *redis.Client, cred *ServiceCredential) TokenStore {
	return &redisTokenStore{rdb: rdb, key: TokenCacheKey(cred)}
}

func TokenCacheKey(cred *ServiceCredential) string {
	return "fcm:token:" + cred.ClientEmail + ":" + cred.PrivateKeyID
}

func (s *redisTokenStore) Load(ctx context.Context) (BearerToken, bool, error) {
	raw, err := s.rdb.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return BearerToken{}, false, nil
	}
	if err != nil {
		return BearerToken{}, false, err
	}
	var tok BearerToken
	if err := json.Unmarshal(raw, &tok); err != nil {
		return BearerToken{}, false, err
	}
	return tok, true, nil
}

func (s *redisTokenStore) Store(ctx context.Context, tok BearerToken, ttl time.Duration) error {
	b, err := json.Marshal(tok)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, s.key, b, ttl).Err()
}
