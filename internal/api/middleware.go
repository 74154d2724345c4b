package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/leca/image-vault/internal/database"
	"github.com/leca/image-vault/internal/metrics"
	"github.com/leca/image-vault/internal/model"
)

type contextKey string

const userKey contextKey = "user"

// UserHeader names the already-authenticated caller.
const UserHeader = "X-Auth-User"

// AuthMiddleware returns middleware that validates the Bearer token.
// If token is empty, any request carrying a Bearer token is accepted.
// If token is non-empty, the Bearer token must match exactly.
func AuthMiddleware(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const prefix = "Bearer "
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, prefix) {
				Unauthorized(w)
				return
			}
			bearerValue := authHeader[len(prefix):]
			if bearerValue == "" || (token != "" && bearerValue != token) {
				Unauthorized(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// UserFinder resolves a username to its identity.
type UserFinder interface {
	FindUser(ctx context.Context, username string) (*model.UserInfo, error)
}

// UserMiddleware resolves the X-Auth-User header and stores the user in
// the request context. Unknown users are rejected with 401.
func UserMiddleware(users UserFinder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			username := r.Header.Get(UserHeader)
			if username == "" {
				UnknownUser(w)
				return
			}
			user, err := users.FindUser(r.Context(), username)
			if errors.Is(err, database.ErrNotFound) {
				UnknownUser(w)
				return
			}
			if err != nil {
				InternalError(w, err)
				return
			}
			ctx := context.WithValue(r.Context(), userKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUser retrieves the user stored in the context by UserMiddleware.
func GetUser(ctx context.Context) *model.UserInfo {
	u, _ := ctx.Value(userKey).(*model.UserInfo)
	return u
}

// RequestLogger logs every request and records its latency by route pattern.
func RequestLogger(logger zerolog.Logger, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			elapsed := time.Since(start)
			m.ObserveRequest(r.Method, route, status, elapsed)

			logger.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", status).
				Dur("duration", elapsed).
				Int("bytes", ww.BytesWritten()).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("request")
		})
	}
}
