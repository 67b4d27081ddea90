package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/dvloznov/expense-tracker/internal/auth"
	"github.com/dvloznov/expense-tracker/internal/logger"
)

// SessionCookie is the cookie that may carry the session token.
const SessionCookie = "session"

// TokenVerifier validates session tokens.
type TokenVerifier interface {
	Verify(token string) (auth.Claims, error)
}

// ListChecker reports whether an email may still use the service.
type ListChecker interface {
	IsListed(email string) (bool, error)
}

// Auth requires a valid session token, from the Authorization header or the
// session cookie, whose email is still whitelisted. Paths in public skip the
// check.
func Auth(verifier TokenVerifier, list ListChecker, public ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, p := range public {
				if r.URL.Path == p {
					next.ServeHTTP(w, r)
					return
				}
			}

			token := bearerToken(r)
			if token == "" {
				WriteError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			claims, err := verifier.Verify(token)
			if err != nil {
				log := logger.FromContext(r.Context())
				log.Debug().Err(err).Msg("rejected session token")
				WriteError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			listed, err := list.IsListed(claims.Email)
			if err != nil {
				log := logger.FromContext(r.Context())
				log.Error().Err(err).Msg("whitelist lookup failed")
				WriteError(w, http.StatusInternalServerError, "Internal server error")
				return
			}
			if !listed {
				WriteError(w, http.StatusForbidden, "Access denied")
				return
			}

			ctx := auth.WithClaims(r.Context(), claims)
			log := logger.FromContext(ctx).With().Str("user", claims.Email).Logger()
			ctx = logger.WithContext(ctx, log)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	c, err := r.Cookie(SessionCookie)
	if errors.Is(err, http.ErrNoCookie) {
		return ""
	}
	return c.Value
}

// RequirePermission rejects requests whose claims lack p. Members of the
// admin group pass.
func RequirePermission(p string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := auth.FromContext(r.Context())
		if !ok {
			WriteError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		if !claims.Can(p) {
			WriteError(w, http.StatusForbidden, "Access denied")
			return
		}
		next(w, r)
	}
}
