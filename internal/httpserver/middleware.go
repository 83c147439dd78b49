package httpserver

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"storefront/internal/authz"
	"storefront/internal/domain"
	"storefront/internal/metrics"
)

const (
	principalKey    = "principal"
	requestIDKey    = "request_id"
	requestIDHeader = "X-Request-Id"
)

// accessLog writes one event per request and tags it with a request id.
func accessLog(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)

		c.Next()

		status := c.Writer.Status()
		ev := logger.Info()
		if status >= http.StatusInternalServerError {
			ev = logger.Error()
		} else if status >= http.StatusBadRequest {
			ev = logger.Warn()
		}
		ev.Str("request_id", id).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("ip", c.ClientIP()).
			Msg("request")
	}
}

// recovery turns a panic into a generic 500 the client can recover from by reloading.
func recovery(logger zerolog.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.Error().
			Interface("panic", recovered).
			Str("request_id", c.GetString(requestIDKey)).
			Str("path", c.Request.URL.Path).
			Msg("handler panicked")
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorResponse{
			Error:   "internal_error",
			Message: "internal error",
			Action:  "reload",
		})
	})
}

func recordMetrics(m *metrics.AppMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.RecordHTTP(c.Request.Context(), c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}

type ipLimiter struct {
	limiter *rate.Limiter
	last    time.Time
}

// ipRateLimiter hands out one token bucket per client IP.
type ipRateLimiter struct {
	mu        sync.Mutex
	rps       rate.Limit
	burst     int
	limiters  map[string]*ipLimiter
	lastSweep time.Time
}

func newIPRateLimiter(rps, burst int) *ipRateLimiter {
	if rps <= 0 {
		rps = 5
	}
	if burst <= 0 {
		burst = rps
	}
	return &ipRateLimiter{rps: rate.Limit(rps), burst: burst, limiters: map[string]*ipLimiter{}, lastSweep: time.Now()}
}

func (l *ipRateLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	if now.Sub(l.lastSweep) > 5*time.Minute {
		for key, il := range l.limiters {
			if now.Sub(il.last) > 30*time.Minute {
				delete(l.limiters, key)
			}
		}
		l.lastSweep = now
	}
	il, ok := l.limiters[ip]
	if !ok {
		il = &ipLimiter{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.limiters[ip] = il
	}
	il.last = now
	return il.limiter.Allow()
}

func (l *ipRateLimiter) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, errorResponse{Error: "rate_limited", Message: "too many attempts, try again later"})
			return
		}
		c.Next()
	}
}

// authenticate resolves a bearer token into a principal. Requests without a
// valid token continue as anonymous; gates decide what that means.
func authenticate(customers CustomerService, logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			c.Next()
			return
		}
		cust, err := customers.LookupByToken(c.Request.Context(), token)
		if err != nil {
			logger.Debug().Err(err).Str("request_id", c.GetString(requestIDKey)).Msg("bearer token rejected")
			c.Next()
			return
		}
		c.Set(principalKey, principalOf(cust))
		c.Next()
	}
}

// require applies an authz gate to a route group.
func require(req authz.Requirement) gin.HandlerFunc {
	return func(c *gin.Context) {
		d := authz.Check(principal(c), req)
		if d.Allowed {
			c.Next()
			return
		}
		status := http.StatusForbidden
		if d.Reason == authz.ReasonUnauthenticated {
			status = http.StatusUnauthorized
		}
		c.AbortWithStatusJSON(status, d)
	}
}

func principal(c *gin.Context) authz.Principal {
	if v, ok := c.Get(principalKey); ok {
		if p, ok := v.(authz.Principal); ok {
			return p
		}
	}
	return authz.Principal{}
}

func principalOf(c *domain.Customer) authz.Principal {
	return authz.Principal{CustomerID: c.ID, Email: c.Email, Roles: c.Roles}
}

func bearerToken(header string) string {
	const prefix = "bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
