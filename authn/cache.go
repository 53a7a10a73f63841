package authn

import (
	"context"
	"time"

	"github.com/dwidge/table-api/records"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// CachingResolver remembers successful resolutions for a while.
// Failures are never cached.
type CachingResolver struct {
	next  Resolver
	cache *expirable.LRU[string, *records.Auth]
}

func NewCachingResolver(next Resolver, size int, ttl time.Duration) *CachingResolver {
	return &CachingResolver{
		next:  next,
		cache: expirable.NewLRU[string, *records.Auth](size, nil, ttl),
	}
}

func (r *CachingResolver) Resolve(ctx context.Context, header string) (*records.Auth, error) {
	token, err := BearerToken(header)
	if err != nil {
		return nil, err
	}
	if auth, ok := r.cache.Get(token); ok {
		return auth, nil
	}

	auth, err := r.next.Resolve(ctx, header)
	if err != nil {
		return nil, err
	}
	r.cache.Add(token, auth)

	return auth, nil
}

// Forget drops a cached token, e.g. after logout
func (r *CachingResolver) Forget(header string) {
	if token, err := BearerToken(header); err == nil {
		r.cache.Remove(token)
	}
}
