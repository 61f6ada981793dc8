package httpcache

import (
	"context"
	"log/slog"
	"net/url"
	"sync"
	"time"
)

// DefaultDomainDelay is the minimum spacing between requests to the same host.
const DefaultDomainDelay = 1100 * time.Millisecond

var globalRateLimiter = newDomainRateLimiter(DefaultDomainDelay)

// SetDomainDelay overrides the request spacing for one host ("example.com" or "127.0.0.1:8080").
// A zero delay disables rate limiting for that host.
func SetDomainDelay(host string, d time.Duration) {
	globalRateLimiter.setOverride(host, d)
}

type domainRateLimiter struct {
	overridesMu sync.RWMutex
	overrides   map[string]time.Duration
	lastRequest sync.Map
	mu          sync.Map
	minDelay    time.Duration
}

func newDomainRateLimiter(minDelay time.Duration) *domainRateLimiter {
	return &domainRateLimiter{
		minDelay:  minDelay,
		overrides: map[string]time.Duration{},
	}
}

func (r *domainRateLimiter) setOverride(host string, d time.Duration) {
	r.overridesMu.Lock()
	defer r.overridesMu.Unlock()
	r.overrides[host] = d
}

func (r *domainRateLimiter) delayFor(host string) time.Duration {
	r.overridesMu.RLock()
	defer r.overridesMu.RUnlock()
	if d, ok := r.overrides[host]; ok {
		return d
	}
	return r.minDelay
}

// Wait blocks until a request to u's host is allowed or ctx is done.
func (r *domainRateLimiter) Wait(ctx context.Context, u *url.URL, logger *slog.Logger) error {
	if u == nil || u.Host == "" {
		return nil
	}
	host := u.Host

	delay := r.delayFor(host)
	if delay <= 0 {
		return nil
	}

	muI, _ := r.mu.LoadOrStore(host, &sync.Mutex{})
	mu, ok := muI.(*sync.Mutex)
	if !ok {
		return nil
	}

	mu.Lock()
	defer mu.Unlock()

	if lastI, ok := r.lastRequest.Load(host); ok {
		if last, ok := lastI.(time.Time); ok {
			if elapsed := time.Since(last); elapsed < delay {
				waitTime := delay - elapsed
				if logger != nil {
					logger.Debug("rate limit pause", "domain", host, "wait", waitTime)
				}
				timer := time.NewTimer(waitTime)
				select {
				case <-ctx.Done():
					timer.Stop()
					return ctx.Err()
				case <-timer.C:
				}
			}
		}
	}

	r.lastRequest.Store(host, time.Now())
	return nil
}
