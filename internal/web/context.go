package web

import (
	"context"
	"net/http"

	"github.com/JonMunkholm/chemequip/internal/core"
)

// WithRequestMetadata adds client IP and User-Agent to ctx for logging.
func WithRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	ctx = core.ContextWithIPAddress(ctx, r.RemoteAddr) // resolved by TrustedRealIP
	ctx = core.ContextWithUserAgent(ctx, r.Header.Get("User-Agent"))
	return ctx
}

// requestUser returns the user TokenAuth stored on the request.
func requestUser(r *http.Request) (core.User, error) {
	user, ok := core.UserFromContext(r.Context())
	if !ok {
		return core.User{}, core.ErrUnauthorized
	}
	return user, nil
}
