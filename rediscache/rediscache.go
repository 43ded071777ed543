// Package rediscache wraps the warehouse and document-store sources with a
// cache-aside layer: Redis for shared state plus an in-process TinyLFU cache
// for hot keys. Concurrent misses for the same key are coalesced into a
// single backend query.
package rediscache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/go-redis/cache/v9"
	"github.com/redis/go-redis/v9"

	"github.com/whitespace-ai/oja/retail"
)

// prefix string for all the Redis keys this cache uses
var keyPrefix = "oja/"

// keyPart escapes a user-supplied value so it cannot collide with the '/'
// separators in cache keys.
func keyPart(s string) string {
	return url.QueryEscape(s)
}

type Source struct {
	Metrics retail.MetricsSource
	Records retail.RecordSource

	// HitTTL bounds successful entries, ErrTTL errored ones. ErrTTL is
	// expected to be shorter than HitTTL.
	HitTTL time.Duration
	ErrTTL time.Duration

	logger      *slog.Logger
	rdb         *redis.Client
	cache       *cache.Cache
	lookupChans sync.Map
}

var _ retail.MetricsSource = (*Source)(nil)
var _ retail.RecordSource = (*Source)(nil)

// entry is the serialized cache record. Errors are carried as text plus a
// not-found flag so they survive the msgpack round trip; the matching
// sentinel is restored on read.
type entry[T any] struct {
	Updated  time.Time
	Value    T
	ErrMsg   string
	NotFound bool
	Invalid  bool
}

// New connects to redis and wraps the given sources.
//
// `redisURL` contains all the redis connection config options.
// `lruSize` is the size of the in-process cache. 10000 is a reasonable default.
func New(metrics retail.MetricsSource, records retail.RecordSource, redisURL string, hitTTL, errTTL time.Duration, lruSize int, logger *slog.Logger) (*Source, error) {
	if logger == nil {
		logger = slog.Default()
	}
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("could not configure redis cache: %w", err)
	}
	rdb := redis.NewClient(opt)
	// check redis connection
	_, err = rdb.Ping(context.TODO()).Result()
	if err != nil {
		return nil, fmt.Errorf("could not connect to redis cache: %w", err)
	}
	c := cache.New(&cache.Options{
		Redis:      rdb,
		LocalCache: cache.NewTinyLFU(lruSize, hitTTL),
	})
	return &Source{
		Metrics: metrics,
		Records: records,
		HitTTL:  hitTTL,
		ErrTTL:  errTTL,
		logger:  logger,
		rdb:     rdb,
		cache:   c,
	}, nil
}

func (s *Source) isStale(updated time.Time, errMsg string) bool {
	return errMsg != "" && time.Since(updated) > s.ErrTTL
}

// restore rebuilds the error a cached entry captured. NotFound entries map
// back to the operation's sentinel; other errors lose their concrete type
// across serialization, so equality checks beyond the message may break.
func restore[T any](e *entry[T], notFound error) (T, error) {
	var zero T
	if e.NotFound {
		return zero, notFound
	}
	if e.Invalid {
		return zero, fmt.Errorf("%w: %s", retail.ErrInvalidFilter, e.ErrMsg)
	}
	if e.ErrMsg != "" {
		return zero, fmt.Errorf("%w: %s", retail.ErrQueryFailed, e.ErrMsg)
	}
	return e.Value, nil
}

// getCached is the cache-aside core: check the cache, coalesce concurrent
// misses per key, fetch from the inner source, write back with the
// appropriate TTL.
func getCached[T any](ctx context.Context, s *Source, key string, notFound error, fetch func(context.Context) (T, error)) (T, error) {
	var zero T
	var e entry[T]
	err := s.cache.Get(ctx, key, &e)
	if err != nil && err != cache.ErrCacheMiss {
		return zero, fmt.Errorf("cache read failed: %w", err)
	}
	if err == nil && !s.isStale(e.Updated, e.ErrMsg) { // if no error...
		cacheHits.Inc()
		return restore(&e, notFound)
	}
	cacheMisses.Inc()

	// Coalesce multiple requests for the same key
	res := make(chan struct{})
	val, loaded := s.lookupChans.LoadOrStore(key, res)
	if loaded {
		requestsCoalesced.Inc()
		// Wait for the result from the pending request
		select {
		case <-val.(chan struct{}):
			// The result should now be in the cache
			err := s.cache.Get(ctx, key, &e)
			if err != nil && err != cache.ErrCacheMiss {
				return zero, fmt.Errorf("cache read failed: %w", err)
			}
			if err == nil && !s.isStale(e.Updated, e.ErrMsg) {
				return restore(&e, notFound)
			}
			return zero, errors.New("entry not found in cache after coalesce returned")
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}

	// Fetch from the inner source and cache the result
	newEntry := refresh(ctx, s, key, notFound, fetch)

	// Cleanup the coalesce map and close the results channel
	s.lookupChans.Delete(key)
	// Callers waiting will now get the result from the cache
	close(res)

	return restore(&newEntry, notFound)
}

func (s *Source) refreshTTL(failed bool) time.Duration {
	if failed {
		return s.ErrTTL
	}
	return s.HitTTL
}

func refresh[T any](ctx context.Context, s *Source, key string, notFound error, fetch func(context.Context) (T, error)) entry[T] {
	value, err := fetch(ctx)
	e := entry[T]{
		Updated: time.Now(),
		Value:   value,
	}
	if err != nil {
		switch {
		case errors.Is(err, notFound):
			e.NotFound = true
		case errors.Is(err, retail.ErrInvalidFilter):
			e.Invalid = true
			e.ErrMsg = err.Error()
		default:
			e.ErrMsg = err.Error()
		}
	}

	setErr := s.cache.Set(&cache.Item{
		Ctx:   ctx,
		Key:   key,
		Value: e,
		TTL:   s.refreshTTL(err != nil),
	})
	if setErr != nil {
		// cache write failure degrades to pass-through
		s.logger.Error("cache write failed", "key", key, "err", setErr)
	}
	return e
}

// Purge drops a single cache entry, both from Redis and the local cache.
func (s *Source) Purge(ctx context.Context, key string) error {
	err := s.cache.Delete(ctx, key)
	if err == cache.ErrCacheMiss {
		return nil
	}
	return err
}

// PurgePrefix scans redis for keys under the given prefix and deletes them.
// Local cache copies are not enumerable and age out on their TTL.
func (s *Source) PurgePrefix(ctx context.Context, prefix string) (int, error) {
	var deleted int
	iter := s.rdb.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := s.cache.Delete(ctx, iter.Val()); err != nil && err != cache.ErrCacheMiss {
			return deleted, err
		}
		deleted++
	}
	if err := iter.Err(); err != nil {
		return deleted, fmt.Errorf("scanning cache keys: %w", err)
	}
	return deleted, nil
}

// PurgeLGAs drops all cached LGA entities and listings, for use after a
// boundary load rewrites the underlying collection.
func (s *Source) PurgeLGAs(ctx context.Context) (int, error) {
	n, err := s.PurgePrefix(ctx, keyPrefix+"lga")
	if err != nil {
		return n, err
	}
	m, err := s.PurgePrefix(ctx, keyPrefix+"lgas/")
	return n + m, err
}

// MetricsSource

func (s *Source) Cities(ctx context.Context) ([]retail.CityName, error) {
	return getCached(ctx, s, keyPrefix+"cities", retail.ErrCityNotFound, s.Metrics.Cities)
}

func (s *Source) CityMetrics(ctx context.Context, city string) (*retail.CityMetrics, error) {
	key := keyPrefix + "city/" + keyPart(city)
	return getCached(ctx, s, key, retail.ErrCityNotFound, func(ctx context.Context) (*retail.CityMetrics, error) {
		return s.Metrics.CityMetrics(ctx, city)
	})
}

func (s *Source) NeighborhoodMetrics(ctx context.Context, city, name string) (*retail.NeighborhoodMetrics, error) {
	key := keyPrefix + "neighborhood/" + keyPart(city) + "/" + keyPart(name)
	return getCached(ctx, s, key, retail.ErrNeighborhoodNotFound, func(ctx context.Context) (*retail.NeighborhoodMetrics, error) {
		return s.Metrics.NeighborhoodMetrics(ctx, city, name)
	})
}

func (s *Source) RetailerMetrics(ctx context.Context, sellerID int64) (*retail.RetailerMetrics, error) {
	key := keyPrefix + "retailer/" + strconv.FormatInt(sellerID, 10)
	return getCached(ctx, s, key, retail.ErrRetailerNotFound, func(ctx context.Context) (*retail.RetailerMetrics, error) {
		return s.Metrics.RetailerMetrics(ctx, sellerID)
	})
}

func searchKey(query, city string) string {
	return keyPrefix + "search/" + keyPart(city) + "/" + keyPart(query)
}

func (s *Source) SearchRetailers(ctx context.Context, query, city string) ([]retail.RetailerMetrics, error) {
	key := searchKey(query, city)
	return getCached(ctx, s, key, retail.ErrRetailerNotFound, func(ctx context.Context) ([]retail.RetailerMetrics, error) {
		return s.Metrics.SearchRetailers(ctx, query, city)
	})
}

// RecordSource

func pageKey(kind string, p retail.PageArgs, filter string) string {
	return fmt.Sprintf("%s%s/%d/%d/%s", keyPrefix, kind, p.Skip(), p.Limit(), keyPart(filter))
}

func (s *Source) States(ctx context.Context, p retail.PageArgs, stateCode string) (*retail.Page[retail.State], error) {
	return getCached(ctx, s, pageKey("states", p, stateCode), retail.ErrRecordNotFound, func(ctx context.Context) (*retail.Page[retail.State], error) {
		return s.Records.States(ctx, p, stateCode)
	})
}

func (s *Source) StateByCode(ctx context.Context, code string) (*retail.State, error) {
	return getCached(ctx, s, keyPrefix+"state/"+keyPart(code), retail.ErrRecordNotFound, func(ctx context.Context) (*retail.State, error) {
		return s.Records.StateByCode(ctx, code)
	})
}

func (s *Source) LGAs(ctx context.Context, p retail.PageArgs, stateCode string) (*retail.Page[retail.LGA], error) {
	return getCached(ctx, s, pageKey("lgas", p, stateCode), retail.ErrRecordNotFound, func(ctx context.Context) (*retail.Page[retail.LGA], error) {
		return s.Records.LGAs(ctx, p, stateCode)
	})
}

func (s *Source) LGAByCode(ctx context.Context, code string) (*retail.LGA, error) {
	return getCached(ctx, s, keyPrefix+"lga/"+keyPart(code), retail.ErrRecordNotFound, func(ctx context.Context) (*retail.LGA, error) {
		return s.Records.LGAByCode(ctx, code)
	})
}

func (s *Source) Brands(ctx context.Context, p retail.PageArgs, brandName string) (*retail.Page[retail.Brand], error) {
	return getCached(ctx, s, pageKey("brands", p, brandName), retail.ErrRecordNotFound, func(ctx context.Context) (*retail.Page[retail.Brand], error) {
		return s.Records.Brands(ctx, p, brandName)
	})
}

func (s *Source) BrandByName(ctx context.Context, name string) (*retail.Brand, error) {
	return getCached(ctx, s, keyPrefix+"brand/"+keyPart(name), retail.ErrRecordNotFound, func(ctx context.Context) (*retail.Brand, error) {
		return s.Records.BrandByName(ctx, name)
	})
}

func (s *Source) Categories(ctx context.Context, p retail.PageArgs, category string) (*retail.Page[retail.Category], error) {
	return getCached(ctx, s, pageKey("categories", p, category), retail.ErrRecordNotFound, func(ctx context.Context) (*retail.Page[retail.Category], error) {
		return s.Records.Categories(ctx, p, category)
	})
}

func (s *Source) CategoryByName(ctx context.Context, name string) (*retail.Category, error) {
	return getCached(ctx, s, keyPrefix+"category/"+keyPart(name), retail.ErrRecordNotFound, func(ctx context.Context) (*retail.Category, error) {
		return s.Records.CategoryByName(ctx, name)
	})
}

func (s *Source) SalesMetrics(ctx context.Context, p retail.PageArgs, f retail.SalesFilter) (*retail.Page[retail.SalesMetric], error) {
	return getCached(ctx, s, salesKey(p, f), retail.ErrRecordNotFound, func(ctx context.Context) (*retail.Page[retail.SalesMetric], error) {
		return s.Records.SalesMetrics(ctx, p, f)
	})
}

func salesKey(p retail.PageArgs, f retail.SalesFilter) string {
	start, end := "", ""
	if f.StartDate != nil {
		start = f.StartDate.UTC().Format(time.RFC3339)
	}
	if f.EndDate != nil {
		end = f.EndDate.UTC().Format(time.RFC3339)
	}
	return fmt.Sprintf("%ssales/%d/%d/%s/%s/%s/%s/%s/%s",
		keyPrefix, p.Skip(), p.Limit(), start, end,
		keyPart(f.LGAID), keyPart(f.StateID), keyPart(f.BrandID), keyPart(f.ProductCategory))
}
