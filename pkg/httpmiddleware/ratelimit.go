package httpmiddleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig bounds how often a single client may hit a route.
type RateLimitConfig struct {
	// Max requests are allowed per Window, refilled evenly. Max is also the
	// burst size.
	Max    int           `json:"max" yaml:"max"`
	Window time.Duration `json:"window" yaml:"window"`
	// KeyFunc identifies the client. Defaults to the client IP.
	KeyFunc func(*http.Request) string `json:"-" yaml:"-"`
}

type client struct {
	lim  *rate.Limiter
	seen time.Time
}

// limiters keeps one token bucket per client key.
type limiters struct {
	cfg     RateLimitConfig
	every   rate.Limit
	mu      sync.Mutex
	clients map[string]*client
}

func newLimiters(cfg RateLimitConfig) *limiters {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = ClientIP
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	return &limiters{
		cfg:     cfg,
		every:   rate.Every(cfg.Window / time.Duration(max(cfg.Max, 1))),
		clients: make(map[string]*client),
	}
}

// reserve takes a token for key. When none is available it returns false and
// the delay until one is.
func (l *limiters) reserve(key string, now time.Time) (remaining int, wait time.Duration, ok bool) {
	l.mu.Lock()
	c, found := l.clients[key]
	if !found {
		c = &client{lim: rate.NewLimiter(l.every, l.cfg.Max)}
		l.clients[key] = c
	}
	c.seen = now
	l.mu.Unlock()

	r := c.lim.ReserveN(now, 1)
	if !r.OK() {
		return 0, l.cfg.Window, false
	}
	if d := r.DelayFrom(now); d > 0 {
		r.CancelAt(now)
		return 0, d, false
	}
	return int(math.Floor(c.lim.TokensAt(now))), 0, true
}

// evict drops clients idle for longer than a window, whose buckets are full
// again anyway.
func (l *limiters) evict(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, c := range l.clients {
		if now.Sub(c.seen) > l.cfg.Window {
			delete(l.clients, key)
		}
	}
}

func (l *limiters) evictLoop(ctx context.Context) {
	ticker := time.NewTicker(l.cfg.Window)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			l.evict(now)
		}
	}
}

// RateLimit rejects clients exceeding cfg with 429 and a Retry-After header.
// Idle client state is never evicted; prefer RateLimitWithCleanup for
// long-running servers.
func RateLimit(cfg RateLimitConfig) Middleware {
	return newLimiters(cfg).middleware
}

// RateLimitWithCleanup is RateLimit with a goroutine evicting idle clients
// until ctx is done.
func RateLimitWithCleanup(ctx context.Context, cfg RateLimitConfig) Middleware {
	l := newLimiters(cfg)
	go l.evictLoop(ctx)
	return l.middleware
}

func (l *limiters) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		remaining, wait, ok := l.reserve(l.cfg.KeyFunc(r), time.Now())

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.cfg.Max))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		if !ok {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			WriteError(w, http.StatusTooManyRequests, "too many requests, try again later")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ClientIP returns the first X-Forwarded-For hop, then X-Real-IP, then the
// remote address host.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
