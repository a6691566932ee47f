package middleware

import (
	"log/slog"
	"net/http"

	jwttoken "docverify/internal/jwt_token"
	authmw "docverify/pkg/platform/middleware/auth"
)

// OptionalAuth returns bearer-token enforcement when a signing key is
// configured and a pass-through middleware otherwise.
func OptionalAuth(signingKey, issuer string, logger *slog.Logger) func(http.Handler) http.Handler {
	if signingKey == "" {
		return func(next http.Handler) http.Handler { return next }
	}
	validator := jwttoken.NewJWTServiceAdapter(jwttoken.NewJWTService(signingKey, issuer))
	return authmw.RequireAuth(validator, logger)
}
