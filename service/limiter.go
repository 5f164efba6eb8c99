package service

import (
	"sync"

	"golang.org/x/time/rate"

	"github.com/c360/sitekit/pkg/cache"
)

// maxLimitedTenants bounds how many per-tenant save limiters are kept.
const maxLimitedTenants = 4096

// saveLimiter throttles saves per tenant. A nil saveLimiter allows everything.
type saveLimiter struct {
	limit    rate.Limit
	burst    int
	mu       sync.Mutex
	limiters cache.Cache[*rate.Limiter]
}

// newSaveLimiter returns nil when perMinute is not positive.
func newSaveLimiter(perMinute float64, burst int) (*saveLimiter, error) {
	if perMinute <= 0 {
		return nil, nil
	}
	if burst < 1 {
		burst = 1
	}
	limiters, err := cache.NewLRU[*rate.Limiter](maxLimitedTenants)
	if err != nil {
		return nil, err
	}
	return &saveLimiter{
		limit:    rate.Limit(perMinute / 60),
		burst:    burst,
		limiters: limiters,
	}, nil
}

// Allow reports whether tenantID may save now and consumes a token if so.
func (l *saveLimiter) Allow(tenantID string) bool {
	if l == nil {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.limiters.Get(tenantID)
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		if _, err := l.limiters.Set(tenantID, lim); err != nil {
			return true
		}
	}
	return lim.Allow()
}
