package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"course-platform-backend/internal/config"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimitMiddleware limits the request rate per client IP.
func RateLimitMiddleware(manager *RateLimitManager, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if manager == nil || cfg == nil || shouldBypassRateLimit(c.Request) {
			c.Next()
			return
		}

		limiter := manager.GetVisitor(c.ClientIP(), cfg.RateLimitRequests, cfg.RateLimitWindow, cfg.RateLimitBurst)
		if limiter != nil && !limiter.Allow() {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many requests, please try again later"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// OperationRateLimit applies a tighter per-IP budget to one expensive
// operation such as opening a checkout.
func OperationRateLimit(manager *RateLimitManager, operation string, requestsPerWindow, windowSeconds int) gin.HandlerFunc {
	return func(c *gin.Context) {
		if manager == nil {
			c.Next()
			return
		}
		limiter := manager.GetOperationLimiter(c.ClientIP(), operation, requestsPerWindow, windowSeconds)
		if limiter != nil && !limiter.Allow() {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many " + operation + " requests, please try again later"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// shouldBypassRateLimit exempts probes and gateway callbacks. Webhook
// deliveries are retried by the gateway and must not be throttled.
func shouldBypassRateLimit(r *http.Request) bool {
	if r == nil || r.URL == nil {
		return false
	}

	path := r.URL.Path
	switch path {
	case "/health", "/metrics":
		return r.Method == http.MethodGet || r.Method == http.MethodHead
	}

	return r.Method == http.MethodPost && strings.HasSuffix(path, "/payments/webhook")
}
