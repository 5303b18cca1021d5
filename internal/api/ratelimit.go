package api

import (
	"sync"

	"golang.org/x/time/rate"
)

// TenantLimiter applies a per-tenant token bucket so one tenant hammering
// the optimizer cannot starve the others.
type TenantLimiter struct {
	rps   rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func NewTenantLimiter(rps float64, burst int) *TenantLimiter {
	if rps <= 0 {
		rps = 2
	}
	if burst <= 0 {
		burst = 5
	}
	return &TenantLimiter{rps: rate.Limit(rps), burst: burst, limiters: map[string]*rate.Limiter{}}
}

// Allow reports whether the tenant may run one more optimization now.
func (t *TenantLimiter) Allow(tenantID string) bool {
	t.mu.Lock()
	l, ok := t.limiters[tenantID]
	if !ok {
		l = rate.NewLimiter(t.rps, t.burst)
		t.limiters[tenantID] = l
	}
	t.mu.Unlock()
	return l.Allow()
}
