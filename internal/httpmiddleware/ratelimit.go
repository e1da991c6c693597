package httpmiddleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"gateattend/internal/auth"
)

// idleAfter is how long an untouched bucket is kept before it is evicted.
const idleAfter = 10 * time.Minute

// Limiter is an in-memory token bucket per gate station. A station that
// floods the API (a stuck scanner, a replay loop) is throttled without
// affecting the other gates behind the same NAT.
type Limiter struct {
	burst    float64
	perSec   float64
	mu       sync.Mutex
	stations map[string]*allowance
	swept    time.Time
	now      func() time.Time
}

type allowance struct {
	tokens float64
	seen   time.Time
}

// NewLimiter allows burst requests at once and perMinute sustained. A
// non-positive burst uses perMinute.
func NewLimiter(burst, perMinute int) *Limiter {
	if burst <= 0 {
		burst = perMinute
	}
	return &Limiter{
		burst:    float64(burst),
		perSec:   float64(perMinute) / 60,
		stations: make(map[string]*allowance),
		now:      time.Now,
	}
}

// Middleware throttles by the authenticated station, falling back to the
// client IP for unauthenticated routes.
func (l *Limiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		wait, ok := l.take(requestKey(c))
		if !ok {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit", "retryable": true})
			return
		}
		c.Next()
	}
}

func requestKey(c *gin.Context) string {
	if claims, ok := auth.FromContext(c); ok && claims.StationID != "" {
		return "station:" + claims.StationID
	}
	ip := c.ClientIP()
	if ip == "" {
		ip = "unknown"
	}
	return "ip:" + ip
}

// take spends one token for key. When none is left it returns how long until
// the next one is available.
func (l *Limiter) take(key string) (time.Duration, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.swept) > idleAfter {
		for k, a := range l.stations {
			if now.Sub(a.seen) > idleAfter {
				delete(l.stations, k)
			}
		}
		l.swept = now
	}

	a, ok := l.stations[key]
	if !ok {
		a = &allowance{tokens: l.burst, seen: now}
		l.stations[key] = a
	}
	if elapsed := now.Sub(a.seen).Seconds(); elapsed > 0 {
		a.tokens = math.Min(l.burst, a.tokens+elapsed*l.perSec)
	}
	a.seen = now

	if a.tokens < 1 {
		if l.perSec <= 0 {
			return time.Minute, false
		}
		return time.Duration((1 - a.tokens) / l.perSec * float64(time.Second)), false
	}
	a.tokens--
	return 0, true
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.stations)
}
