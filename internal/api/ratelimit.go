package api

import (
	"context"
	"net"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultRequestsPerMinute = 100

	maxTrackedIPs   = 10000
	cleanupInterval = time.Minute
	staleThreshold  = 5 * time.Minute
)

type ipEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter is a token bucket per client IP. The bucket holds a full
// minute of requests and refills continuously.
type RateLimiter struct {
	mu        sync.Mutex
	entries   map[string]*ipEntry
	perMinute int
	now       func() time.Time
	cancel    context.CancelFunc
}

// NewRateLimiter starts a limiter whose idle entries are swept until ctx is
// done or Stop is called. perMinute <= 0 selects DefaultRequestsPerMinute.
func NewRateLimiter(ctx context.Context, perMinute int) *RateLimiter {
	if perMinute <= 0 {
		perMinute = DefaultRequestsPerMinute
	}
	ctx, cancel := context.WithCancel(ctx)
	rl := &RateLimiter{
		entries:   make(map[string]*ipEntry),
		perMinute: perMinute,
		now:       time.Now,
		cancel:    cancel,
	}
	go rl.cleanup(ctx)
	return rl
}

// Allow consumes one token for ip.
func (rl *RateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	e, ok := rl.entries[ip]
	if !ok {
		if len(rl.entries) >= maxTrackedIPs {
			rl.evictOldestLocked()
		}
		e = &ipEntry{limiter: rate.NewLimiter(rate.Limit(float64(rl.perMinute)/60.0), rl.perMinute)}
		rl.entries[ip] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}

func (rl *RateLimiter) Stop() {
	rl.cancel()
}

func (rl *RateLimiter) cleanup(ctx context.Context) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.removeStale()
		}
	}
}

func (rl *RateLimiter) removeStale() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := rl.now()
	for ip, e := range rl.entries {
		if now.Sub(e.lastSeen) > staleThreshold {
			delete(rl.entries, ip)
		}
	}
}

func (rl *RateLimiter) evictOldestLocked() {
	var oldestIP string
	var oldest time.Time
	for ip, e := range rl.entries {
		if oldestIP == "" || e.lastSeen.Before(oldest) {
			oldestIP, oldest = ip, e.lastSeen
		}
	}
	delete(rl.entries, oldestIP)
}

// ExtractIP strips the port from a RemoteAddr.
func ExtractIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
