package auth

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/odyssey-erp/gudang/internal/platform/httpx"
	"github.com/odyssey-erp/gudang/internal/shared"
)

// Middleware authenticates requests and stores the actor in context.
func Middleware(svc *Service, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok {
				httpx.RespondError(w, fmt.Errorf("%w: bearer credential required", shared.ErrUnauthorized))
				return
			}
			actor, err := svc.Authenticate(token)
			if err != nil {
				if logger != nil {
					logger.Warn("authentication failed", slog.String("path", r.URL.Path))
				}
				httpx.RespondError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(shared.ContextWithActor(r.Context(), actor)))
		})
	}
}

// RequireRole rejects actors lacking role.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := shared.ActorFromContext(r.Context())
			if !ok {
				httpx.RespondError(w, shared.ErrUnauthorized)
				return
			}
			if !actor.HasRole(role) {
				httpx.RespondError(w, fmt.Errorf("%w: role %s required", shared.ErrForbidden, role))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
