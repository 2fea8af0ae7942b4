package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

const (
	// limiterIdleTTL is how long a client's limiter is kept after its last request
	limiterIdleTTL = 10 * time.Minute
	// limiterSweepThreshold triggers removal of idle limiters
	limiterSweepThreshold = 1024
)

// UploadLimiter throttles requests per client IP with a token bucket. Idle
// client buckets expire from the cache.
type UploadLimiter struct {
	limit      rate.Limit
	burst      int
	clients    *cache.Cache
	onThrottle func()
}

// NewUploadLimiter allows perSecond requests per client with a burst of
// burst. onThrottle, if not nil, is called for every rejected request.
func NewUploadLimiter(perSecond float64, burst int, onThrottle func()) *UploadLimiter {
	if burst < 1 {
		burst = 1
	}
	return &UploadLimiter{
		limit: rate.Limit(perSecond),
		burst: burst,
		// no janitor goroutine; idle entries are swept in Allow
		clients:    cache.New(limiterIdleTTL, 0),
		onThrottle: onThrottle,
	}
}

// Allow reports whether the client identified by key may proceed
func (l *UploadLimiter) Allow(key string) bool {
	if l.clients.ItemCount() > limiterSweepThreshold {
		l.clients.DeleteExpired()
	}

	var limiter *rate.Limiter
	if v, found := l.clients.Get(key); found {
		limiter = v.(*rate.Limiter)
	} else {
		limiter = rate.NewLimiter(l.limit, l.burst)
		// Add fails if another request stored a limiter first
		if err := l.clients.Add(key, limiter, cache.DefaultExpiration); err != nil {
			if v, found := l.clients.Get(key); found {
				limiter = v.(*rate.Limiter)
			}
		}
	}
	l.clients.Set(key, limiter, cache.DefaultExpiration)
	return limiter.Allow()
}

// Middleware rejects throttled requests with 429 and a Retry-After header
func (l *UploadLimiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if l.Allow(c.RealIP()) {
				return next(c)
			}
			if l.onThrottle != nil {
				l.onThrottle()
			}
			retry := time.Second
			if l.limit > 0 {
				retry = time.Duration(float64(time.Second) / float64(l.limit))
			}
			c.Response().Header().Set("Retry-After", retryAfterSeconds(retry))
			return echo.NewHTTPError(http.StatusTooManyRequests, "too many uploads, retry later")
		}
	}
}

func retryAfterSeconds(d time.Duration) string {
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}
