package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/JonMunkholm/chemequip/internal/core"
	"github.com/JonMunkholm/chemequip/internal/logging"
)

// Authenticator resolves an API token to its user.
type Authenticator interface {
	Authenticate(ctx context.Context, key string) (core.User, error)
}

// ErrorResponder writes an error response for a failed request.
type ErrorResponder func(w http.ResponseWriter, r *http.Request, err error)

// TokenAuth returns middleware that requires an "Authorization: Token <key>"
// header ("Bearer" is accepted too). The resolved user is stored in the
// request context for handlers and in the logging context for log lines.
func TokenAuth(auth Authenticator, fail ErrorResponder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := TokenFromRequest(r)
			if key == "" {
				slog.Warn("auth: missing token",
					"path", r.URL.Path,
					"method", r.Method,
					"remote_addr", r.RemoteAddr,
				)
				fail(w, r, core.ErrUnauthorized)
				return
			}

			user, err := auth.Authenticate(r.Context(), key)
			if err != nil {
				slog.Warn("auth: rejected token",
					"path", r.URL.Path,
					"method", r.Method,
					"remote_addr", r.RemoteAddr,
					"error", err,
				)
				fail(w, r, err)
				return
			}

			ctx := core.ContextWithUser(r.Context(), user)
			ctx = logging.WithUserID(ctx, user.ID.String())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// TokenFromRequest extracts the token key from the Authorization header.
// It returns "" when the header is absent or uses another scheme.
func TokenFromRequest(r *http.Request) string {
	scheme, key, ok := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " ")
	if !ok {
		return ""
	}
	switch strings.ToLower(scheme) {
	case "token", "bearer":
		return strings.TrimSpace(key)
	}
	return ""
}
