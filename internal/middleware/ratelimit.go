package middleware

import (
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/ai-assistant-tgbot-go/internal/config"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// RateLimiter interface for rate limiting
type RateLimiter interface {
	Allow(userID int64) bool
}

type userLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// UserRateLimiter implements per-user rate limiting of AI calls
type UserRateLimiter struct {
	enabled  bool
	limiters map[int64]*userLimiter
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	idleTTL  time.Duration
	now      func() time.Time
	logger   *logrus.Logger
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(cfg *config.RateLimitConfig, logger *logrus.Logger) *UserRateLimiter {
	if !cfg.Enabled {
		return &UserRateLimiter{enabled: false}
	}

	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	return &UserRateLimiter{
		enabled:  true,
		limiters: make(map[int64]*userLimiter),
		// Rate per second = RPM / 60
		limit:   rate.Limit(float64(cfg.RequestsPerMinute) / 60.0),
		burst:   burst,
		idleTTL: time.Hour,
		now:     time.Now,
		logger:  logger,
	}
}

// Allow checks if a user is allowed to make a request
func (r *UserRateLimiter) Allow(userID int64) bool {
	if !r.enabled {
		return true
	}

	r.mu.Lock()
	now := r.now()
	entry, exists := r.limiters[userID]
	if !exists {
		entry = &userLimiter{limiter: rate.NewLimiter(r.limit, r.burst)}
		r.limiters[userID] = entry
	}
	entry.lastSeen = now
	allowed := entry.limiter.AllowN(now, 1)
	r.mu.Unlock()

	if !allowed {
		r.logger.WithField("user_id", userID).Warn("Rate limit exceeded")
	}
	return allowed
}

// Cleanup drops limiters of users idle for longer than the idle TTL and
// returns how many were removed.
func (r *UserRateLimiter) Cleanup() int {
	if !r.enabled {
		return 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-r.idleTTL)
	removed := 0
	for id, entry := range r.limiters {
		if entry.lastSeen.Before(cutoff) {
			delete(r.limiters, id)
			removed++
		}
	}
	return removed
}

// MaxMessageLength is the Telegram limit for a text message.
const MaxMessageLength = 4096

// ValidateInput rejects messages Telegram itself would never deliver
func ValidateInput(text string) error {
	if !utf8.ValidString(text) {
		return fmt.Errorf("message is not valid utf-8")
	}
	if n := utf8.RuneCountInString(text); n > MaxMessageLength {
		return fmt.Errorf("message too long: %d characters", n)
	}
	return nil
}
