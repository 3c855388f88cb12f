package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/inf-mc/NoteBot-sub001/config"
	"github.com/inf-mc/NoteBot-sub001/events"
	"github.com/inf-mc/NoteBot-sub001/models"
)

// keyedLimiters holds one token bucket per caller identity and evicts
// buckets unused for an hour.
type keyedLimiters struct {
	mu      sync.Mutex
	entries map[string]*limiterEntry
	rps     float64
	burst   int
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newKeyedLimiters(rps float64, burst int) *keyedLimiters {
	kl := &keyedLimiters{
		entries: make(map[string]*limiterEntry),
		rps:     rps,
		burst:   burst,
	}
	go kl.evictLoop()
	return kl
}

func (kl *keyedLimiters) get(identity string) *rate.Limiter {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	entry, ok := kl.entries[identity]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(rate.Limit(kl.rps), kl.burst)}
		kl.entries[identity] = entry
	}
	entry.lastSeen = time.Now()
	return entry.limiter
}

func (kl *keyedLimiters) evictLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		cutoff := time.Now().Add(-1 * time.Hour)
		kl.mu.Lock()
		for id, entry := range kl.entries {
			if entry.lastSeen.Before(cutoff) {
				delete(kl.entries, id)
			}
		}
		kl.mu.Unlock()
	}
}

// RateLimit returns per-identity (API key or IP) token-bucket rate limiting
// middleware powered by golang.org/x/time/rate.
//
// Rejections carry a Retry-After header derived from the refill rate and,
// when a bus is supplied, publish an error event so the monitor counts
// rate-limited requests alongside engine failures.
func RateLimit(cfg config.RateLimitConfig, bus *events.Bus) gin.HandlerFunc {
	limiters := newKeyedLimiters(cfg.RequestsPerSecond, cfg.Burst)

	retryAfter := "1"
	if cfg.RequestsPerSecond > 0 && cfg.RequestsPerSecond < 1 {
		retryAfter = strconv.Itoa(int(1/cfg.RequestsPerSecond) + 1)
	}

	return func(c *gin.Context) {
		// Prefer API key as identity (set by auth middleware); fall back to IP.
		identity, exists := c.Get("api_key")
		if !exists {
			identity = c.ClientIP()
		}

		if !limiters.get(identity.(string)).Allow() {
			if bus != nil {
				bus.Publish(events.Event{
					Type: events.Error,
					Code: models.ErrCodeRateLimited,
				})
			}
			c.Header("Retry-After", retryAfter)
			reject(c, http.StatusTooManyRequests, models.New(models.ErrCodeRateLimited,
				"rate limit exceeded, please slow down", nil))
			return
		}

		c.Next()
	}
}
