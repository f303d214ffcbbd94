package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// contextKey is unexported so only this package can read or write the
// session stored in a request context.
type contextKey string

const sessionKey contextKey = "session"

// SessionCookie is the HttpOnly cookie the entry handlers set on login.
const SessionCookie = "token"

var errNoToken = errors.New("auth: no session token")

// RequireSession rejects requests without a valid session token with 401 and
// stores the verified payload in the context for the rest.
//
// The token is read from "Authorization: Bearer <token>" first (API clients,
// the SPA) and from the session cookie second (browser navigations).
func RequireSession(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := sessionFromRequest(r, tokens)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized","message":"Access token required"}`))
				return
			}

			ctx := context.WithValue(r.Context(), sessionKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionFromContext returns the session stored by RequireSession.
func SessionFromContext(ctx context.Context) (*SessionClaims, bool) {
	c, ok := ctx.Value(sessionKey).(*SessionClaims)
	return c, ok && c != nil
}

// BearerToken extracts the token from an "Authorization: Bearer ..." header.
func BearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// TokenFromRequest returns the bearer token, or the session cookie when no
// bearer token is present. It returns "" when the request carries neither.
func TokenFromRequest(r *http.Request) string {
	if token := BearerToken(r); token != "" {
		return token
	}
	if cookie, err := r.Cookie(SessionCookie); err == nil {
		return cookie.Value
	}
	return ""
}

func sessionFromRequest(r *http.Request, tokens *TokenService) (*SessionClaims, error) {
	token := TokenFromRequest(r)
	if token == "" {
		return nil, errNoToken
	}
	return tokens.Verify(token)
}
