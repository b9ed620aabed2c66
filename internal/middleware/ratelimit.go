package middleware

import (
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
)

type rateLimitEntry struct {
	count     int
	resetTime time.Time
}

// RateLimiter allows maxRequests per client IP in each fixed window.
// maxRequests <= 0 disables limiting.
func RateLimiter(maxRequests int, window time.Duration) fiber.Handler {
	if maxRequests <= 0 {
		return func(c *fiber.Ctx) error { return c.Next() }
	}

	var (
		mu      sync.Mutex
		entries = map[string]*rateLimitEntry{}
		lastGC  time.Time
	)

	return func(c *fiber.Ctx) error {
		ip := c.IP()
		now := time.Now()

		mu.Lock()
		if now.Sub(lastGC) > window {
			for k, e := range entries {
				if now.After(e.resetTime) {
					delete(entries, k)
				}
			}
			lastGC = now
		}

		entry, exists := entries[ip]
		if !exists || now.After(entry.resetTime) {
			entries[ip] = &rateLimitEntry{count: 1, resetTime: now.Add(window)}
			mu.Unlock()
			return c.Next()
		}

		if entry.count >= maxRequests {
			remaining := int(entry.resetTime.Sub(now).Seconds()) + 1
			mu.Unlock()
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(remaining))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"success": false,
				"message": "Rate limit exceeded. Try again in " + strconv.Itoa(remaining) + " seconds",
			})
		}

		entry.count++
		mu.Unlock()
		return c.Next()
	}
}
