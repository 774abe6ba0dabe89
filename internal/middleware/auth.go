// Package middleware holds the HTTP middleware shared by every route:
// token authentication, role and permission checks, rate limiting and
// request logging.
package middleware

import (
	"context"
	"errors"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ukydev/fleet-maintenance/internal/auth"
	"github.com/ukydev/fleet-maintenance/internal/models"
	"github.com/zoobzio/clockz"
)

type contextKey string

const (
	UserContextKey      contextKey = "user"
	RequestIDContextKey contextKey = "request_id"
)

// publicPaths are served without a token.
var publicPaths = map[string]bool{
	"/api/auth/login":    true,
	"/api/auth/register": true,
	"/health":            true,
	"/metrics":           true,
}

func isPublic(path string) bool {
	return publicPaths[strings.TrimSuffix(path, "/")]
}

// AuthMiddleware turns a bearer token into claims on the request context.
type AuthMiddleware struct {
	authService *auth.Service
}

func NewAuthMiddleware(authService *auth.Service) *AuthMiddleware {
	return &AuthMiddleware{authService: authService}
}

// Authenticate rejects requests to non-public paths that lack a valid token.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isPublic(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		header := r.Header.Get("Authorization")
		if header == "" {
			http.Error(w, "Authorization header required", http.StatusUnauthorized)
			return
		}
		token, err := m.authService.ExtractTokenFromHeader(header)
		if err != nil {
			http.Error(w, "Invalid authorization header", http.StatusUnauthorized)
			return
		}

		claims, err := m.authService.ValidateToken(token)
		switch {
		case errors.Is(err, auth.ErrExpiredToken):
			http.Error(w, "Token expired", http.StatusUnauthorized)
			return
		case err != nil:
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), UserContextKey, claims)))
	})
}

// RequireRole lets through requiredRole and admins.
func (m *AuthMiddleware) RequireRole(requiredRole models.Role) func(http.Handler) http.Handler {
	return m.guard(func(c *models.Claims) bool {
		return c.Role == requiredRole || c.Role == models.RoleAdmin
	})
}

// RequirePermission lets through roles whose permission table includes action.
func (m *AuthMiddleware) RequirePermission(action string) func(http.Handler) http.Handler {
	return m.guard(func(c *models.Claims) bool {
		return (&models.User{Role: c.Role}).HasPermission(action)
	})
}

func (m *AuthMiddleware) guard(allowed func(*models.Claims) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := GetUserFromContext(r.Context())
			if !ok {
				http.Error(w, "User context not found", http.StatusUnauthorized)
				return
			}
			if !allowed(claims) {
				http.Error(w, "Insufficient permissions", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func GetUserFromContext(ctx context.Context) (*models.Claims, bool) {
	claims, ok := ctx.Value(UserContextKey).(*models.Claims)
	return claims, ok
}

// RateLimitMiddleware builds per-client sliding-window limiters.
type RateLimitMiddleware struct {
	clock clockz.Clock
}

func NewRateLimitMiddleware(clock clockz.Clock) *RateLimitMiddleware {
	if clock == nil {
		clock = clockz.RealClock
	}
	return &RateLimitMiddleware{clock: clock}
}

// window tracks recent request times per client IP.
type window struct {
	mu        sync.Mutex
	seen      map[string][]time.Time
	max       int
	span      time.Duration
	clock     clockz.Clock
	lastSweep time.Time
}

// sweep drops clients with no request after cutoff, at most once per span.
func (w *window) sweep(now, cutoff time.Time) {
	if now.Sub(w.lastSweep) < w.span {
		return
	}
	w.lastSweep = now
	for ip, times := range w.seen {
		if len(times) == 0 || !times[len(times)-1].After(cutoff) {
			delete(w.seen, ip)
		}
	}
}

// allow records a request from ip and reports how long to wait when the
// limit is already reached.
func (w *window) allow(ip string) (time.Duration, bool) {
	now := w.clock.Now()
	cutoff := now.Add(-w.span)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.sweep(now, cutoff)

	recent := w.seen[ip][:0]
	for _, t := range w.seen[ip] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}
	if len(recent) >= w.max {
		if len(recent) == 0 {
			delete(w.seen, ip)
			return w.span, false
		}
		w.seen[ip] = recent
		return recent[0].Sub(cutoff), false
	}
	if len(recent) == 0 {
		recent = nil
	}
	w.seen[ip] = append(recent, now)
	return 0, true
}

// RateLimit allows maxRequests per client IP within windowSeconds. Every call
// returns a middleware with its own counters.
func (m *RateLimitMiddleware) RateLimit(maxRequests int, windowSeconds int) func(http.Handler) http.Handler {
	lim := &window{
		seen:  make(map[string][]time.Time),
		max:   maxRequests,
		span:  time.Duration(windowSeconds) * time.Second,
		clock: m.clock,
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			wait, ok := lim.allow(getClientIP(r))
			if !ok {
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
				http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// getClientIP prefers proxy headers over the socket address.
func getClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
