package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/pasarlokal/backend-pasar/internal/common"
)

var errNoToken = errors.New("auth: token missing")

// Middleware resolves the marketplace access token into a user identity.
// Tokens are issued by the upstream auth service; this gateway only
// verifies the signature and claims, it never mints tokens itself.
type Middleware struct {
	Parser       *TokenParser
	AccessCookie string
}

// Authenticate attaches the user id when a valid token is present and lets
// anonymous requests through untouched.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if userID, err := m.resolveUser(r); err == nil {
			r = r.WithContext(common.WithUserID(r.Context(), userID))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAuth rejects requests without a verifiable token.
func (m Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := m.resolveUser(r)
		if err != nil {
			common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(common.WithUserID(r.Context(), userID)))
	})
}

func (m Middleware) resolveUser(r *http.Request) (string, error) {
	if m.Parser == nil {
		return "", errors.New("auth: parser not configured")
	}
	token := m.bearerToken(r)
	if token == "" {
		token = m.cookieToken(r)
	}
	if token == "" {
		return "", errNoToken
	}
	return m.Parser.ParseSubject(token)
}

func (m Middleware) bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func (m Middleware) cookieToken(r *http.Request) string {
	if m.AccessCookie == "" {
		return ""
	}
	cookie, err := r.Cookie(m.AccessCookie)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(cookie.Value)
}
