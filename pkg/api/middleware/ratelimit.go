package middleware

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// RateLimitConfig configures per-client token buckets.
type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
	// ClientExpiration drops buckets of clients idle this long.
	ClientExpiration time.Duration
	// MaxClients bounds tracked clients; the least recently seen is evicted.
	MaxClients uint64
}

// DefaultRateLimitConfig suits analysis endpoints, which are CPU-bound.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 20,
		BurstSize:         40,
		ClientExpiration:  10 * time.Minute,
		MaxClients:        100000,
	}
}

type tokenBucket struct {
	mu         sync.Mutex
	tokens     float64
	lastRefill time.Time
}

// RateLimiter tracks one token bucket per client.
type RateLimiter struct {
	config  RateLimitConfig
	clients *ttlcache.Cache[string, *tokenBucket]
	mu      sync.Mutex
	now     func() time.Time
}

// NewRateLimiter starts the bucket expiry loop; Stop ends it.
func NewRateLimiter(config RateLimitConfig) *RateLimiter {
	rl := &RateLimiter{
		config: config,
		clients: ttlcache.New[string, *tokenBucket](
			ttlcache.WithTTL[string, *tokenBucket](config.ClientExpiration),
			ttlcache.WithCapacity[string, *tokenBucket](config.MaxClients),
		),
		now: time.Now,
	}
	go rl.clients.Start()
	return rl
}

// Allow takes one token from clientID's bucket.
func (rl *RateLimiter) Allow(clientID string) bool {
	b := rl.bucket(clientID)

	b.mu.Lock()
	defer b.mu.Unlock()

	now := rl.now()
	b.tokens += now.Sub(b.lastRefill).Seconds() * rl.config.RequestsPerSecond
	if burst := float64(rl.config.BurstSize); b.tokens > burst {
		b.tokens = burst
	}
	b.lastRefill = now

	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

func (rl *RateLimiter) bucket(clientID string) *tokenBucket {
	// Get refreshes the TTL, so active clients never expire.
	if item := rl.clients.Get(clientID); item != nil {
		return item.Value()
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if item := rl.clients.Get(clientID); item != nil {
		return item.Value()
	}
	b := &tokenBucket{tokens: float64(rl.config.BurstSize), lastRefill: rl.now()}
	rl.clients.Set(clientID, b, ttlcache.DefaultTTL)
	return b
}

// Clients returns the number of tracked clients.
func (rl *RateLimiter) Clients() int {
	return rl.clients.Len()
}

// Stop ends the expiry loop.
func (rl *RateLimiter) Stop() {
	rl.clients.Stop()
}

// ClientIP identifies clients by remote address. Forwarding headers are not
// trusted.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RateLimit answers 429 once a client exhausts its bucket. A nil limiter
// disables limiting.
func RateLimit(limiter *RateLimiter, clientID func(*http.Request) string) func(http.Handler) http.Handler {
	if clientID == nil {
		clientID = ClientIP
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter != nil && !limiter.Allow(clientID(r)) {
				w.Header().Set("Retry-After", "1")
				w.Header().Set("X-RateLimit-Limit", strconv.FormatFloat(limiter.config.RequestsPerSecond, 'f', -1, 64))
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
