// Package ratelimit implements a per-user fixed-window request limiter.
//
// A window is identified by (user, floor(now/window)). Counters live behind
// the Counter interface: MemoryCounter keeps them in the current process, so
// a caller balanced across several instances can exceed the nominal limit;
// RedisCounter shares them between instances with the same algorithm.
package ratelimit

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	DefaultLimit  = 30
	DefaultWindow = 60 * time.Second
)

// Counter atomically increments the counter for key and returns the new value.
// ttl is how long the key must survive; implementations may keep it longer.
type Counter interface {
	Incr(ctx context.Context, key WindowKey, ttl time.Duration) (int64, error)
}

type WindowKey struct {
	UserID      uint
	WindowStart int64
}

type Decision struct {
	Allowed    bool
	Count      int64
	Remaining  int
	RetryAfter time.Duration
}

type Limiter struct {
	counter Counter
	limit   int
	window  time.Duration
	now     func() time.Time
}

type Option func(*Limiter)

// WithClock подменяет источник времени (для тестов)
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

func New(counter Counter, limit int, window time.Duration, opts ...Option) *Limiter {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if window <= 0 {
		window = DefaultWindow
	}

	l := &Limiter{
		counter: counter,
		limit:   limit,
		window:  window,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Limiter) Limit() int {
	return l.limit
}

func (l *Limiter) Window() time.Duration {
	return l.window
}

// Allow считает запрос пользователя в текущем окне.
// Ошибка счетчика не блокирует запрос: она логируется и возвращается вместе с Allowed=true.
func (l *Limiter) Allow(ctx context.Context, userID uint) (Decision, error) {
	now := l.now()
	start := now.Truncate(l.window)
	key := WindowKey{UserID: userID, WindowStart: start.Unix()}

	count, err := l.counter.Incr(ctx, key, l.window)
	if err != nil {
		log.Warn().Err(err).Uint("user_id", userID).Msg("Rate limit counter unavailable, allowing request")
		return Decision{Allowed: true, Remaining: l.limit}, err
	}

	d := Decision{
		Allowed:   count <= int64(l.limit),
		Count:     count,
		Remaining: max(l.limit-int(count), 0),
	}
	if !d.Allowed {
		d.RetryAfter = start.Add(l.window).Sub(now)
	}
	return d, nil
}
