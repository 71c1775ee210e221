// Package ratelimit throttles the login endpoints per client.
package ratelimit

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const idleExpiry = 10 * time.Minute

// Config configures a KeyedLimiter
type Config struct {
	// Rate is the number of requests per second refilled for each key
	Rate float64
	// Burst is the bucket capacity
	Burst int
	// CleanupInterval controls how often idle keys are dropped
	CleanupInterval time.Duration
}

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// KeyedLimiter keeps one token bucket per key
type KeyedLimiter struct {
	mu      sync.Mutex
	entries map[string]*entry
	limit   rate.Limit
	burst   int
	now     func() time.Time

	ticker *time.Ticker
	stopCh chan struct{}
	once   sync.Once
}

// New creates a limiter and starts its cleanup loop. Stop releases it.
func New(cfg Config) *KeyedLimiter {
	if cfg.Rate <= 0 {
		cfg.Rate = 1
	}
	if cfg.Burst <= 0 {
		cfg.Burst = int(math.Max(1, cfg.Rate))
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 5 * time.Minute
	}

	kl := &KeyedLimiter{
		entries: make(map[string]*entry),
		limit:   rate.Limit(cfg.Rate),
		burst:   cfg.Burst,
		now:     time.Now,
		ticker:  time.NewTicker(cfg.CleanupInterval),
		stopCh:  make(chan struct{}),
	}
	go kl.cleanupLoop()
	return kl
}

// Allow consumes one token of key. The returned duration is the wait before
// the next token when the request is refused.
func (kl *KeyedLimiter) Allow(key string) (bool, time.Duration) {
	kl.mu.Lock()
	defer kl.mu.Unlock()

	now := kl.now()
	e, ok := kl.entries[key]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(kl.limit, kl.burst)}
		kl.entries[key] = e
	}
	e.lastSeen = now

	r := e.limiter.ReserveN(now, 1)
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, delay
	}
	return true, 0
}

// Len returns the number of tracked keys
func (kl *KeyedLimiter) Len() int {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	return len(kl.entries)
}

// Stop ends the cleanup loop
func (kl *KeyedLimiter) Stop() {
	kl.once.Do(func() {
		kl.ticker.Stop()
		close(kl.stopCh)
	})
}

func (kl *KeyedLimiter) cleanupLoop() {
	for {
		select {
		case <-kl.ticker.C:
			kl.prune(idleExpiry)
		case <-kl.stopCh:
			return
		}
	}
}

func (kl *KeyedLimiter) prune(idle time.Duration) {
	kl.mu.Lock()
	defer kl.mu.Unlock()

	now := kl.now()
	for key, e := range kl.entries {
		if now.Sub(e.lastSeen) > idle {
			delete(kl.entries, key)
		}
	}
}

// ByClientIP refuses requests of a client IP whose bucket is empty with a
// 429 envelope and a Retry-After header
func ByClientIP(kl *KeyedLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed, wait := kl.Allow(c.ClientIP())
		if allowed {
			c.Next()
			return
		}

		seconds := int(math.Ceil(wait.Seconds()))
		if seconds < 1 {
			seconds = 1
		}
		c.Header("Retry-After", strconv.Itoa(seconds))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"success": false,
			"error":   "Trop de tentatives, réessayez plus tard",
		})
	}
}
