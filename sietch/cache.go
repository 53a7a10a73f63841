package sietch

import (
	"context"
	"errors"
)

// Cache holds rows by id. Get returns ErrItemNotFound on a miss.
type Cache interface {
	Get(ctx context.Context, id int64) (Row, error)
	Set(ctx context.Context, row Row) error
	Delete(ctx context.Context, id int64) error
}

// CacheStrategy defines how caching should behave
type CacheStrategy string

const (
	// CacheStrategyWriteThrough caches created rows immediately
	CacheStrategyWriteThrough CacheStrategy = "write_through"

	// CacheStrategyWriteAround writes only to base storage, next Get populates the cache
	CacheStrategyWriteAround CacheStrategy = "write_around"
)

var (
	_ Store    = (*CachedStore)(nil)
	_ Uncached = (*CachedStore)(nil)
)

// CachedStore wraps a base store with a read cache for id lookups.
// Updates always invalidate the cached row since they carry partial changes.
type CachedStore struct {
	base     Store
	cache    Cache
	strategy CacheStrategy
}

func NewCachedStore(base Store, cache Cache, strategy CacheStrategy) *CachedStore {
	if strategy == "" {
		strategy = CacheStrategyWriteAround
	}
	return &CachedStore{
		base:     base,
		cache:    cache,
		strategy: strategy,
	}
}

func (r *CachedStore) Name() string {
	return r.base.Name()
}

// Get tries cache first, falls back to base on cache miss
func (r *CachedStore) Get(ctx context.Context, id int64) (Row, error) {
	row, err := r.cache.Get(ctx, id)
	if err == nil {
		return row, nil
	}

	row, err = r.base.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	// a failed cache write only costs a future miss
	_ = r.cache.Set(ctx, row)
	return row, nil
}

// GetUncached reads the base store and refreshes the cached copy
func (r *CachedStore) GetUncached(ctx context.Context, id int64) (Row, error) {
	row, err := GetAuthoritative(ctx, r.base, id)
	if err != nil {
		if errors.Is(err, ErrItemNotFound) {
			_ = r.cache.Delete(ctx, id)
		}
		return nil, err
	}
	_ = r.cache.Set(ctx, row)
	return row, nil
}

// Exists answers from the cache when it can
func (r *CachedStore) Exists(ctx context.Context, id int64) (bool, error) {
	if _, err := r.cache.Get(ctx, id); err == nil {
		return true, nil
	}
	return r.base.Exists(ctx, id)
}

func (r *CachedStore) Create(ctx context.Context, row Row) error {
	if err := r.base.Create(ctx, row); err != nil {
		return err
	}
	if r.strategy == CacheStrategyWriteThrough {
		_ = r.cache.Set(ctx, row)
	}
	return nil
}

func (r *CachedStore) Update(ctx context.Context, id int64, changes Row) error {
	return r.UpdateWhere(ctx, id, nil, changes)
}

// UpdateWhere guards against the base store, never the cached copy
func (r *CachedStore) UpdateWhere(ctx context.Context, id int64, guard *Filter, changes Row) error {
	err := r.base.UpdateWhere(ctx, id, guard, changes)
	if delErr := r.cache.Delete(ctx, id); delErr != nil && !errors.Is(delErr, ErrItemNotFound) && err == nil {
		return delErr
	}
	return err
}

// Find delegates to base (caching queries is complex and often not worthwhile)
func (r *CachedStore) Find(ctx context.Context, q *Query) ([]Row, error) {
	return r.base.Find(ctx, q)
}

// Count delegates to base
func (r *CachedStore) Count(ctx context.Context, filter *Filter) (int64, error) {
	return r.base.Count(ctx, filter)
}
