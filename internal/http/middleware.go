package http

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/example/buildco/backend/internal/auth"
	"github.com/example/buildco/backend/internal/locale"
)

const (
	ctxLocale = "locale"
	ctxAdmin  = "admin"
)

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		entry := s.log.WithFields(log.Fields{
			"method":    c.Request.Method,
			"path":      c.Request.URL.Path,
			"status":    c.Writer.Status(),
			"latency":   time.Since(start).String(),
			"client_ip": c.ClientIP(),
		})
		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			entry.Error("request failed")
		case c.Writer.Status() >= http.StatusBadRequest:
			entry.Warn("request rejected")
		default:
			entry.Debug("request handled")
		}
	}
}

// localeMiddleware resolves the response language from ?lang= first, then
// Accept-Language.
func localeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		lc, ok := locale.Parse(c.Query("lang"))
		if !ok {
			lc = locale.Match(c.GetHeader("Accept-Language"))
		}
		c.Set(ctxLocale, lc)
		c.Next()
	}
}

func localeOf(c *gin.Context) locale.Context {
	if v, ok := c.Get(ctxLocale); ok {
		if lc, ok := v.(locale.Context); ok {
			return lc
		}
	}
	return locale.New(locale.English)
}

func (s *Server) adminClaims(c *gin.Context) (*auth.Claims, error) {
	return s.auth.ValidateToken(c.GetHeader("Authorization"))
}

func (s *Server) requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := s.adminClaims(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": localeOf(c).T(locale.MsgUnauthorized)})
			return
		}
		c.Set(ctxAdmin, claims)
		c.Next()
	}
}

func actorOf(c *gin.Context) string {
	if v, ok := c.Get(ctxAdmin); ok {
		if claims, ok := v.(*auth.Claims); ok {
			if claims.Name != "" {
				return claims.Name
			}
			return claims.Email
		}
	}
	return "admin"
}

// rateLimiter is a fixed-window counter per client IP kept in Redis. Errors
// talking to Redis let the request through.
type rateLimiter struct {
	rdb    *redis.Client
	limit  int
	window time.Duration
	now    func() time.Time
}

func newRateLimiter(rdb *redis.Client, limit int, window time.Duration) *rateLimiter {
	if rdb == nil || limit <= 0 {
		return nil
	}
	if window <= 0 {
		window = time.Minute
	}
	return &rateLimiter{rdb: rdb, limit: limit, window: window, now: time.Now}
}

func (s *Server) rateLimit() gin.HandlerFunc {
	rl := s.limiter
	if rl == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		if _, err := s.adminClaims(c); err == nil {
			c.Next()
			return
		}
		now := rl.now()
		slot := now.UnixNano() / int64(rl.window)
		key := fmt.Sprintf("ratelimit:maintenance:%s:%d", c.ClientIP(), slot)

		ctx := c.Request.Context()
		pipe := rl.rdb.TxPipeline()
		incr := pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, rl.window)
		if _, err := pipe.Exec(ctx); err != nil {
			s.log.WithError(err).WithField("key", key).Warn("rate limiter unavailable")
			c.Next()
			return
		}

		count := incr.Val()
		remaining := int64(rl.limit) - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(rl.limit))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if count > int64(rl.limit) {
			windowEnd := time.Unix(0, (slot+1)*int64(rl.window))
			secs := int(math.Ceil(windowEnd.Sub(now).Seconds()))
			c.Header("Retry-After", strconv.Itoa(secs))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success":     false,
				"error":       localeOf(c).T(locale.MsgRateLimited),
				"retry_after": secs,
			})
			return
		}
		c.Next()
	}
}
