// Package ratelimit provides per-client rate limiting built on token buckets
// from golang.org/x/time/rate.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// bucket is one client's token bucket for one endpoint.
type bucket struct {
	lim      *rate.Limiter
	capacity int
}

// newBucket creates a full bucket holding capacity tokens that refills at refillRate tokens per second.
func newBucket(capacity int, refillRate float64) *bucket {
	return &bucket{
		lim:      rate.NewLimiter(rate.Limit(refillRate), capacity),
		capacity: capacity,
	}
}

// allow consumes a token if one is available.
func (b *bucket) allow(now time.Time) bool {
	return b.lim.AllowN(now, 1)
}

// status returns the whole tokens left and when the bucket will be full again.
func (b *bucket) status(now time.Time) (remaining int, resetTime time.Time) {
	tokens := b.lim.TokensAt(now)
	remaining = max(int(tokens), 0)

	if tokens < float64(b.capacity) && b.lim.Limit() > 0 {
		secondsUntilFull := (float64(b.capacity) - tokens) / float64(b.lim.Limit())
		return remaining, now.Add(time.Duration(secondsUntilFull * float64(time.Second)))
	}
	return remaining, now
}

// retryAfter returns how long until one token is available.
func (b *bucket) retryAfter(now time.Time) time.Duration {
	tokens := b.lim.TokensAt(now)
	if tokens >= 1 || b.lim.Limit() <= 0 {
		return 0
	}
	return time.Duration((1 - tokens) / float64(b.lim.Limit()) * float64(time.Second))
}

// Info contains information about rate limit status.
type Info struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetTime  time.Time
	RetryAfter time.Duration
}

// Limiter manages rate limiting for multiple clients.
type Limiter struct {
	buckets       map[string]*bucket // client + rule pattern, or client + method and path
	mu            sync.RWMutex
	config        *Config
	routes        *routeTable
	cleanupTicker *time.Ticker
	cleanupStop   chan struct{}
	stopOnce      sync.Once
	lastAccess    map[string]time.Time
	accessMu      sync.RWMutex
}

// Config holds rate limiting configuration.
type Config struct {
	Enabled         bool
	DefaultLimit    int
	DefaultWindow   time.Duration
	CleanupInterval time.Duration
	Whitelist       map[string]bool
	Blacklist       map[string]bool
	EndpointConfigs []EndpointConfig
}

// NewLimiter creates a rate limiter. A nil config uses DefaultConfig.
func NewLimiter(config *Config) (*Limiter, error) {
	if config == nil {
		config = DefaultConfig()
	}
	routes, err := newRouteTable(config.EndpointConfigs)
	if err != nil {
		return nil, err
	}

	limiter := &Limiter{
		buckets:    make(map[string]*bucket),
		config:     config,
		routes:     routes,
		lastAccess: make(map[string]time.Time),
	}

	if config.Enabled && config.CleanupInterval > 0 {
		limiter.cleanupTicker = time.NewTicker(config.CleanupInterval)
		limiter.cleanupStop = make(chan struct{})
		go limiter.cleanup()
	}

	return limiter, nil
}

// Allow checks if a request from the given client is allowed for the specified endpoint.
func (l *Limiter) Allow(clientID string, endpoint string, method string) (bool, Info) {
	if !l.config.Enabled || l.config.Whitelist[clientID] {
		return true, Info{Allowed: true}
	}
	if l.config.Blacklist[clientID] {
		return false, Info{Allowed: false}
	}

	endpointConfig, pattern := l.routes.match(method, endpoint)
	bucketKey := clientID + " " + pattern
	if endpointConfig == nil {
		bucketKey = clientID + " " + method + " " + endpoint
		endpointConfig = &EndpointConfig{
			Limit:  l.config.DefaultLimit,
			Window: l.config.DefaultWindow,
			Burst:  l.config.DefaultLimit,
		}
	}

	// Unlimited endpoint (e.g., health check)
	if endpointConfig.Limit <= 0 {
		return true, Info{Allowed: true}
	}

	now := time.Now()
	b := l.getBucket(bucketKey, endpointConfig.Limit, endpointConfig.Window, endpointConfig.Burst)

	l.accessMu.Lock()
	l.lastAccess[bucketKey] = now
	l.accessMu.Unlock()

	allowed := b.allow(now)
	remaining, resetTime := b.status(now)

	var retryAfter time.Duration
	if !allowed {
		retryAfter = b.retryAfter(now)
	}

	return allowed, Info{
		Allowed:    allowed,
		Limit:      endpointConfig.Limit,
		Remaining:  remaining,
		ResetTime:  resetTime,
		RetryAfter: retryAfter,
	}
}

// getBucket gets or creates the bucket for key.
func (l *Limiter) getBucket(key string, limit int, window time.Duration, burst int) *bucket {
	l.mu.RLock()
	b, exists := l.buckets[key]
	l.mu.RUnlock()
	if exists {
		return b
	}

	if window <= 0 {
		window = time.Minute
	}
	refillRate := float64(limit) / window.Seconds()
	capacity := burst
	if capacity <= 0 {
		capacity = limit
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if existing, exists := l.buckets[key]; exists {
		return existing
	}
	b = newBucket(capacity, refillRate)
	l.buckets[key] = b
	return b
}

// cleanup removes old unused buckets to prevent memory leaks.
func (l *Limiter) cleanup() {
	for {
		select {
		case <-l.cleanupTicker.C:
			l.cleanupBuckets(time.Now().Add(-1 * time.Hour))
		case <-l.cleanupStop:
			return
		}
	}
}

// cleanupBuckets removes buckets not accessed since cutoff.
func (l *Limiter) cleanupBuckets(cutoff time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.accessMu.Lock()
	defer l.accessMu.Unlock()

	for key, lastAccess := range l.lastAccess {
		if lastAccess.Before(cutoff) {
			delete(l.buckets, key)
			delete(l.lastAccess, key)
		}
	}
}

// Stop stops the cleanup goroutine.
func (l *Limiter) Stop() {
	if l.cleanupTicker != nil {
		l.cleanupTicker.Stop()
	}
	if l.cleanupStop != nil {
		l.stopOnce.Do(func() { close(l.cleanupStop) })
	}
}
