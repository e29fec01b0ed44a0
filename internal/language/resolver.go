// Package language resolves a user's preferred language.
package language

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/vovakirdan/babelchat-server/internal/store"
)

// Resolver maps a user to a language code. It never fails: when nothing is
// stored, or the store is unavailable, the default language is returned.
type Resolver interface {
	Resolve(ctx context.Context, userID int64) string
}

// StoreResolver reads the preference from the profile store on every call.
type StoreResolver struct {
	profiles store.ProfileStore
	fallback string
	log      *zerolog.Logger
}

var _ Resolver = (*StoreResolver)(nil)

// NewStoreResolver creates a resolver that falls back to defaultLanguage.
func NewStoreResolver(profiles store.ProfileStore, defaultLanguage string, logger *zerolog.Logger) *StoreResolver {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &StoreResolver{profiles: profiles, fallback: defaultLanguage, log: logger}
}

// Default returns the language used when no preference is stored.
func (r *StoreResolver) Default() string {
	return r.fallback
}

// Lookup reads the stored preference. A missing or empty preference yields
// the default with a nil error; store failures are returned.
func (r *StoreResolver) Lookup(ctx context.Context, userID int64) (string, error) {
	lang, err := r.profiles.GetLanguage(ctx, userID)
	switch {
	case err == nil && lang != "":
		return lang, nil
	case err == nil, errors.Is(err, store.ErrNotFound):
		return r.fallback, nil
	default:
		return "", err
	}
}

// Resolve implements Resolver.
func (r *StoreResolver) Resolve(ctx context.Context, userID int64) string {
	lang, err := r.Lookup(ctx, userID)
	if err != nil {
		r.log.Warn().Err(err).Int64("user_id", userID).Msg("language lookup failed, using default")
		return r.fallback
	}
	return lang
}

// Source is a fallible preference lookup that a cache can sit in front of.
type Source interface {
	Lookup(ctx context.Context, userID int64) (string, error)
	Default() string
}

var _ Source = (*StoreResolver)(nil)

// CachedResolver keeps resolved languages for a bounded time. Concurrent
// misses for the same user share one lookup. Only successful lookups are
// cached, and a lookup that started before Invalidate never writes.
type CachedResolver struct {
	next  Source
	ttl   time.Duration
	cache *ristretto.Cache[int64, string]
	group singleflight.Group
	log   *zerolog.Logger

	mu          sync.Mutex
	generations map[int64]uint64
}

var _ Resolver = (*CachedResolver)(nil)

// NewCachedResolver wraps next with a TTL cache.
func NewCachedResolver(next Source, ttl time.Duration, logger *zerolog.Logger) (*CachedResolver, error) {
	cache, err := ristretto.NewCache(&ristretto.Config[int64, string]{
		NumCounters: 100_000,
		MaxCost:     10_000,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &CachedResolver{
		next:        next,
		ttl:         ttl,
		cache:       cache,
		log:         logger,
		generations: make(map[int64]uint64),
	}, nil
}

// Resolve implements Resolver. A caller whose ctx ends while waiting gets
// the default; the shared lookup itself runs to completion.
func (c *CachedResolver) Resolve(ctx context.Context, userID int64) string {
	if lang, ok := c.cache.Get(userID); ok {
		return lang
	}

	lookupCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(strconv.FormatInt(userID, 10), func() (interface{}, error) {
		gen := c.generation(userID)
		lang, err := c.next.Lookup(lookupCtx, userID)
		if err != nil {
			return nil, err
		}
		c.store(userID, lang, gen)
		return lang, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			c.log.Warn().Err(res.Err).Int64("user_id", userID).Msg("language lookup failed, using default")
			return c.next.Default()
		}
		return res.Val.(string)
	case <-ctx.Done():
		return c.next.Default()
	}
}

func (c *CachedResolver) generation(userID int64) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generations[userID]
}

// store caches lang unless userID was invalidated after gen was read.
func (c *CachedResolver) store(userID int64, lang string, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generations[userID] != gen {
		return
	}
	c.cache.SetWithTTL(userID, lang, 1, c.ttl)
	c.cache.Wait()
}

// Invalidate drops the cached language for userID and discards the result of
// any lookup already in flight.
func (c *CachedResolver) Invalidate(userID int64) {
	c.mu.Lock()
	c.generations[userID]++
	c.cache.Del(userID)
	c.group.Forget(strconv.FormatInt(userID, 10))
	c.mu.Unlock()
}

// Close releases the cache.
func (c *CachedResolver) Close() {
	c.cache.Close()
}
