package auth

import "context"

// Principal captures the verified member identity propagated through the request context.
type Principal struct {
	// MemberID is the session store's member identifier
	MemberID string
	// OrganizationID is the organization the current session is bound to
	OrganizationID string
	// OrganizationName is the display name of that organization when known
	OrganizationName string
	// Name is the member's display name
	Name string
	// EmailAddress is the member's email address
	EmailAddress string
	// Roles lists the role identifiers assigned by the session store
	Roles []string
}

type principalContextKey struct{}

// SetPrincipalContext stores the authenticated principal on the context for downstream consumers.
func SetPrincipalContext(ctx context.Context, principal Principal) context.Context {
	principal.Roles = append([]string(nil), principal.Roles...)
	return context.WithValue(ctx, principalContextKey{}, principal)
}

// PrincipalFromContext retrieves the authenticated principal from the context.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	principal, ok := ctx.Value(principalContextKey{}).(Principal)
	return principal, ok
}

type credentialContextKey struct{}

// SetCredentialContext stores the raw session credential for handlers that forward it
// to the session store (RBAC-enforced calls).
func SetCredentialContext(ctx context.Context, credential string) context.Context {
	return context.WithValue(ctx, credentialContextKey{}, credential)
}

// CredentialFromContext retrieves the session credential stored by SetCredentialContext.
func CredentialFromContext(ctx context.Context) string {
	credential, _ := ctx.Value(credentialContextKey{}).(string)
	return credential
}
