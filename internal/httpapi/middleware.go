package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"logistria/internal/domain"
	"logistria/internal/identity"
)

const (
	requestIDHeader = "X-Request-ID"

	principalKey = "principal"
	profileKey   = "profile"
)

// requestID tags every request with a correlation id, reusing the
// caller's when present.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDHeader, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// customErrorLogger logs the errors handlers attached to the context.
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			logger.WithFields(logrus.Fields{
				"request_id": c.GetString(requestIDHeader),
				"method":     c.Request.Method,
				"path":       c.FullPath(),
				"status":     c.Writer.Status(),
			}).Error(c.Errors.String())
		}
	}
}

// authRequired verifies the bearer token and loads (or creates) the
// caller's profile. EventSource clients cannot set headers, so the token
// is also accepted as the access_token query parameter.
func (s *server) authRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader("Authorization")
		if token == "" {
			token = c.Query("access_token")
		}
		principal, err := s.Verifier.Verify(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		profile, err := s.Profiles.Ensure(c.Request.Context(), principal)
		if err != nil {
			_ = c.Error(err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "could not load profile"})
			return
		}
		c.Set(principalKey, principal)
		c.Set(profileKey, profile)
		c.Next()
	}
}

// operatorOnly restricts a group to logistics officers.
func operatorOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !domain.IsOperator(profileFrom(c).Role) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "operations console requires a logistics officer role"})
			return
		}
		c.Next()
	}
}

func principalFrom(c *gin.Context) identity.Principal {
	p, _ := c.Get(principalKey)
	principal, _ := p.(identity.Principal)
	return principal
}

func profileFrom(c *gin.Context) domain.Profile {
	p, _ := c.Get(profileKey)
	profile, _ := p.(domain.Profile)
	return profile
}

// ── Rate limiting ──────────────────────────────────────────

// RateLimiter is a fixed-window request counter kept in Redis.
type RateLimiter struct {
	client redis.Cmdable
	prefix string
	limit  int64
	window time.Duration
}

// NewRateLimiter allows limit requests per window for each caller.
func NewRateLimiter(client redis.Cmdable, prefix string, limit int64, window time.Duration) *RateLimiter {
	return &RateLimiter{
		client: client,
		prefix: prefix,
		limit:  limit,
		window: window,
	}
}

// RateLimitMiddleware counts requests per signed-in user, or per client
// IP for anonymous callers.
func (rl *RateLimiter) RateLimitMiddleware(c *gin.Context) {
	caller := principalFrom(c).UID
	if caller == "" {
		caller = c.ClientIP()
	}
	key := rl.prefix + caller

	exists, err := rl.client.Exists(c.Request.Context(), key).Result()
	if err != nil {
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	if exists == 0 {
		if err := rl.client.Set(c.Request.Context(), key, 1, rl.window).Err(); err != nil {
			_ = c.AbortWithError(http.StatusInternalServerError, err)
			return
		}
		c.Next()
		return
	}

	count, err := rl.client.Incr(c.Request.Context(), key).Result()
	if err != nil {
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	if count > rl.limit {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error": fmt.Sprintf("Rate limit exceeded. Try again in %d seconds", int(rl.window.Seconds())),
		})
		return
	}

	c.Next()
}
