package middleware

import (
	"net"
	"net/http"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"

	"github.com/platinummonkey/identity/pkg/httputil"
)

// RateLimitConfig defines rate limiting configuration
type RateLimitConfig struct {
	// RequestsPerWindow is the max requests allowed in the time window
	RequestsPerWindow int
	// WindowDuration is the time window for rate limiting
	WindowDuration time.Duration
	// BurstSize allows temporary bursts above the rate
	BurstSize int
	// MaxClients bounds the number of tracked client addresses
	MaxClients int
}

// LoginRateLimitConfig returns the limits applied to /login
func LoginRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerWindow: 30,
		WindowDuration:    time.Minute,
		BurstSize:         10,
		MaxClients:        10000,
	}
}

// RateLimiter keeps one token bucket per client address. Idle buckets are
// forgotten after one window.
type RateLimiter struct {
	config  RateLimitConfig
	buckets *lru.LRU[string, *rate.Limiter]
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(config RateLimitConfig) *RateLimiter {
	if config.MaxClients <= 0 {
		config.MaxClients = LoginRateLimitConfig().MaxClients
	}
	return &RateLimiter{
		config:  config,
		buckets: lru.NewLRU[string, *rate.Limiter](config.MaxClients, nil, config.WindowDuration),
	}
}

// Allow reports whether key may make one more request now
func (rl *RateLimiter) Allow(key string) bool {
	limiter, ok := rl.buckets.Get(key)
	if !ok {
		every := rl.config.WindowDuration / time.Duration(rl.config.RequestsPerWindow)
		limiter = rate.NewLimiter(rate.Every(every), rl.config.BurstSize)
		rl.buckets.Add(key, limiter)
	}
	return limiter.Allow()
}

// Handler answers 429 once a client address exhausts its bucket
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.Allow(clientAddress(r)) {
			w.Header().Set("Retry-After", "60")
			httputil.WriteErrorMessage(w, http.StatusTooManyRequests, "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientAddress(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
