package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"garantias.org/internal/apperr"
	"garantias.org/internal/auth"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

// withAuth resolves the bearer token into an Actor stored on the request context.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.auth == nil {
			writeUnauthorized(w, r, "authentication is not configured")
			return
		}
		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			writeUnauthorized(w, r, err.Error())
			return
		}

		actor, err := a.auth.Authenticate(r.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrInactiveProfile):
				writeUnauthorized(w, r, "profile is inactive")
			case errors.Is(err, apperr.ErrUnauthenticated):
				writeUnauthorized(w, r, "invalid token")
			default:
				a.logger.Error("authentication failed", zap.Error(err),
					zap.String("request_id", RequestIDFromContext(r.Context())))
				writeError(w, r, http.StatusInternalServerError, "authentication error")
			}
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.ContextWithActor(r.Context(), actor)))
	})
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if len(header) < len(bearer) || !strings.EqualFold(header[:len(bearer)], bearer) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

func writeUnauthorized(w http.ResponseWriter, r *http.Request, msg string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="garantias"`)
	writeError(w, r, http.StatusUnauthorized, msg)
}
