package middleware

import (
	"errors"
	"net/http"

	"wheelaway/pkg/auth"
	apperrors "wheelaway/pkg/errors"
	"wheelaway/pkg/logger"
)

// PublicRoute reports whether a request may proceed without an actor.
type PublicRoute func(r *http.Request) bool

// Authenticate resolves the actor of each request and stores it on the context.
// A request that already carries an actor, such as a verified payment callback,
// is passed through untouched.
func Authenticate(authn *auth.Authenticator, public PublicRoute, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := auth.FromContext(r.Context()); ok {
				next.ServeHTTP(w, r)
				return
			}

			actor, err := authn.Authenticate(r)
			if err != nil {
				if public != nil && public(r) {
					next.ServeHTTP(w, r)
					return
				}

				log.Warn("Authentication failed",
					"request_id", requestID(r),
					"path", r.URL.Path,
					"error", err,
				)
				if errors.Is(err, auth.ErrInvalidRole) {
					writeJSONError(w, http.StatusForbidden, apperrors.CodeForbidden, "Role not permitted")
					return
				}
				writeJSONError(w, http.StatusUnauthorized, apperrors.CodeUnauthorized, "Unauthorized")
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithActor(r.Context(), actor)))
		})
	}
}
