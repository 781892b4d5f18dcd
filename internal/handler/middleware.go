package handler

import (
	"context"
	"math"
	"net/http"
	"strconv"

	"tush00nka/bbbab_chatsync/internal/metrics"
	"tush00nka/bbbab_chatsync/internal/pkg/auth"
	"tush00nka/bbbab_chatsync/internal/pkg/httputils"
	"tush00nka/bbbab_chatsync/internal/ratelimit"
	"tush00nka/bbbab_chatsync/internal/service"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/hlog"
)

// Authenticator определяет пользователя по запросу
type Authenticator interface {
	UserFromRequest(r *http.Request) (uint, error)
}

// RateLimiter решает, пропускать ли запрос пользователя
type RateLimiter interface {
	Allow(ctx context.Context, userID uint) (ratelimit.Decision, error)
	Limit() int
}

// Authenticate отклоняет запросы без действительного токена
func Authenticate(identity Authenticator) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			userID, err := identity.UserFromRequest(r)
			if err != nil {
				hlog.FromRequest(r).Debug().Err(err).Msg("Rejected unauthenticated request")
				writeError(w, r, service.ErrUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithUser(r.Context(), userID)))
		})
	}
}

// RateLimit ограничивает число запросов пользователя в окне; чтения тоже считаются
func RateLimit(limiter RateLimiter) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := auth.UserFromContext(r.Context())
			if !ok || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			decision, _ := limiter.Allow(r.Context(), userID)
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limiter.Limit()))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))

			if !decision.Allowed {
				metrics.RateLimited.Inc()
				retryAfter := int(math.Ceil(decision.RetryAfter.Seconds()))
				w.Header().Set("Retry-After", strconv.Itoa(max(retryAfter, 1)))
				httputils.ResponseKindError(w, http.StatusTooManyRequests,
					string(service.KindRateLimited), "rate limit exceeded, try again later")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// writeError переводит вид ошибки в HTTP-статус
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := service.KindOf(err)
	if kind == service.KindTransientIO {
		hlog.FromRequest(r).Error().Err(err).Msg("Request failed")
	}
	httputils.ResponseKindError(w, kind.HTTPStatus(), string(kind), service.PublicMessage(err))
}

func currentUser(r *http.Request) uint {
	userID, _ := auth.UserFromContext(r.Context())
	return userID
}
