// Package middleware gates chi routes on the session cookie.
package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/terraconstructs/squircle/cmd/squircle/internal/auth"
	"github.com/terraconstructs/squircle/cmd/squircle/internal/gateway"
)

// SessionAuthenticator verifies a session credential.
type SessionAuthenticator interface {
	Authenticate(ctx context.Context, credential string) (*gateway.Identity, error)
}

// Authenticate rejects requests without a valid stytch_session cookie with
// 401 {"message":"Unauthorized"}. On success the principal and credential are
// stored on the request context.
func Authenticate(authn SessionAuthenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			credential := sessionCredential(r)
			id, err := authn.Authenticate(r.Context(), credential)
			if err != nil {
				unauthorized(w)
				return
			}
			next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), id)))
		})
	}
}

func sessionCredential(r *http.Request) string {
	cookie, err := r.Cookie(auth.SessionCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

type identityContextKey struct{}

func withIdentity(ctx context.Context, id *gateway.Identity) context.Context {
	ctx = auth.SetPrincipalContext(ctx, id.Principal())
	ctx = auth.SetCredentialContext(ctx, id.Credential)
	return context.WithValue(ctx, identityContextKey{}, id)
}

// IdentityFromContext returns the identity resolved by Authenticate or
// AuthenticateAndAuthorize.
func IdentityFromContext(ctx context.Context) (*gateway.Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(*gateway.Identity)
	return id, ok && id != nil
}

// unauthorized writes the single response used for every authentication and
// authorization failure.
func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": "Unauthorized"})
}
