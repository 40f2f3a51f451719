package middleware

import (
	"net/http"
	"sync"
	"time"

	"dutyfree/internal/apierror"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// rateEntry tracks request counts per client IP within a fixed window.
type rateEntry struct {
	count     int
	windowEnd time.Time
	mu        sync.Mutex
}

// RateLimiter allows limit requests per window per client IP. Expired
// entries are purged every five minutes for the life of the process.
func RateLimiter(limit int, window time.Duration) gin.HandlerFunc {
	var (
		entries = make(map[string]*rateEntry)
		mu      sync.Mutex
	)
	go purgeExpired(&mu, entries)

	return func(c *gin.Context) {
		ip := c.ClientIP()

		mu.Lock()
		entry, ok := entries[ip]
		if !ok {
			entry = &rateEntry{}
			entries[ip] = entry
		}
		mu.Unlock()

		entry.mu.Lock()
		defer entry.mu.Unlock()

		now := time.Now()
		if now.After(entry.windowEnd) {
			entry.count = 0
			entry.windowEnd = now.Add(window)
		}
		entry.count++
		if entry.count > limit {
			c.Header("Retry-After", entry.windowEnd.Format(time.RFC1123))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, apierror.New("too many requests, try again shortly"))
			return
		}
		c.Next()
	}
}

const purgeInterval = 5 * time.Minute

func purgeExpired(mu *sync.Mutex, entries map[string]*rateEntry) {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()
	for range ticker.C {
		now := time.Now()
		mu.Lock()
		purged := 0
		for ip, e := range entries {
			e.mu.Lock()
			if now.After(e.windowEnd) {
				delete(entries, ip)
				purged++
			}
			e.mu.Unlock()
		}
		remaining := len(entries)
		mu.Unlock()
		if purged > 0 {
			log.Debug().Int("purged", purged).Int("remaining", remaining).Msg("rate limiter entries purged")
		}
	}
}
