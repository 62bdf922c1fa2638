package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"
)

const (
	rateLimitWindow  = time.Minute
	rateLimitMaxIP   = 200
	rateLimitMaxUser = 100
)

type rateLimiter struct {
	mu     sync.Mutex
	times  map[string][]time.Time
	max    int
	window time.Duration
	now    func() time.Time
}

func newRateLimiter(max int, window time.Duration) *rateLimiter {
	return &rateLimiter{times: make(map[string][]time.Time), max: max, window: window, now: time.Now}
}

func (r *rateLimiter) allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	cutoff := now.Add(-r.window)
	slice := r.times[key]
	i := 0
	for _, t := range slice {
		if t.After(cutoff) {
			slice[i] = t
			i++
		}
	}
	slice = slice[:i]
	if len(slice) >= r.max {
		r.times[key] = slice
		return false
	}
	r.times[key] = append(slice, now)
	return true
}

// sweep удаляет ключи без запросов в текущем окне, чтобы карта не росла бесконечно.
func (r *rateLimiter) sweep() {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := r.now().Add(-r.window)
	for k, slice := range r.times {
		if len(slice) == 0 || !slice[len(slice)-1].After(cutoff) {
			delete(r.times, k)
		}
	}
}

// RateLimiter ограничивает запросы по IP и по user_id.
type RateLimiter struct {
	byIP   *rateLimiter
	byUser *rateLimiter
}

func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		byIP:   newRateLimiter(rateLimitMaxIP, rateLimitWindow),
		byUser: newRateLimiter(rateLimitMaxUser, rateLimitWindow),
	}
}

// Sweep чистит устаревшие ключи; вызывается периодически (startup.RunPeriodic).
func (l *RateLimiter) Sweep() {
	l.byIP.sweep()
	l.byUser.sweep()
}

// RateLimitAPI ограничивает запросы к /api/* по IP и по user_id (если есть в контексте). 429 при превышении.
func (l *RateLimiter) RateLimitAPI(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.byIP.allow(clientIP(r)) {
			writeJSONError(w, http.StatusTooManyRequests, "too many requests")
			return
		}
		if userID := GetUserID(r.Context()); userID != 0 {
			if !l.byUser.allow("u:" + strconv.FormatInt(userID, 10)) {
				writeJSONError(w, http.StatusTooManyRequests, "too many requests")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
