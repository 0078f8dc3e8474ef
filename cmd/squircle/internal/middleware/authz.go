package middleware

import (
	"context"
	"net/http"

	"github.com/terraconstructs/squircle/cmd/squircle/internal/gateway"
)

// PermissionChecker decides (resource, action) for a credential.
type PermissionChecker interface {
	Check(ctx context.Context, credential, resource, action string) (*gateway.Identity, error)
}

// AuthenticateAndAuthorize lets a request through only when the session store
// authorizes the caller for (resource, action) in its current organization.
// Unauthenticated, unauthorized and unreachable-store outcomes all produce
// the same 401 response.
func AuthenticateAndAuthorize(gate PermissionChecker, resource, action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := gate.Check(r.Context(), sessionCredential(r), resource, action)
			if err != nil {
				unauthorized(w)
				return
			}
			next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), id)))
		})
	}
}
