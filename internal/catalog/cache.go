// internal/catalog/cache.go
// Read-through redis cache in front of the content provider

package catalog

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/goccy/go-json"

	"github.com/imadgeboyega/movienight-backend/internal/common/logging"
)

const cacheKeyPrefix = "catalog:"

// CachedProvider caches provider listings in redis. Redis problems are
// logged and bypassed; only provider errors reach the caller.
type CachedProvider struct {
	next  Provider
	redis *redis.Client
	ttl   time.Duration
}

// NewCachedProvider wraps next. A nil client disables caching.
func NewCachedProvider(next Provider, client *redis.Client, ttl time.Duration) *CachedProvider {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &CachedProvider{next: next, redis: client, ttl: ttl}
}

func (p *CachedProvider) GetPopular(ctx context.Context) ([]MovieSummary, error) {
	return p.cached(ctx, cacheKeyPrefix+"popular", func() ([]MovieSummary, error) {
		return p.next.GetPopular(ctx)
	})
}

func (p *CachedProvider) DiscoverByGenres(ctx context.Context, genreIDs []int) ([]MovieSummary, error) {
	return p.cached(ctx, discoverKey(genreIDs), func() ([]MovieSummary, error) {
		return p.next.DiscoverByGenres(ctx, genreIDs)
	})
}

func discoverKey(genreIDs []int) string {
	ids := make([]string, len(genreIDs))
	for i, id := range genreIDs {
		ids[i] = strconv.Itoa(id)
	}
	return cacheKeyPrefix + "discover:" + strings.Join(ids, ",")
}

func (p *CachedProvider) cached(ctx context.Context, key string, load func() ([]MovieSummary, error)) ([]MovieSummary, error) {
	if p.redis == nil {
		return load()
	}

	data, err := p.redis.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var movies []MovieSummary
		if err := json.Unmarshal(data, &movies); err == nil {
			cacheLookups.WithLabelValues("hit").Inc()
			return movies, nil
		}
		logging.Warn().Str("key", key).Msg("discarding undecodable catalog cache entry")
	case errors.Is(err, redis.Nil):
	default:
		logging.Warn().Err(err).Str("key", key).Msg("catalog cache read failed")
	}

	cacheLookups.WithLabelValues("miss").Inc()
	movies, err := load()
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(movies); err == nil {
		if err := p.redis.Set(ctx, key, data, p.ttl).Err(); err != nil {
			logging.Warn().Err(err).Str("key", key).Msg("catalog cache write failed")
		}
	}
	return movies, nil
}
