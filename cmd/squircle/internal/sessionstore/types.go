package sessionstore

import "time"

// Canonical policy values used by organizations.
const (
	AllAllowed = "ALL_ALLOWED"
	Restricted = "RESTRICTED"
	NotAllowed = "NOT_ALLOWED"
)

// Authentication methods an organization can allow.
const (
	AuthMethodSSO            = "sso"
	AuthMethodMagicLink      = "magic_link"
	AuthMethodPassword       = "password"
	AuthMethodGoogleOAuth    = "google_oauth"
	AuthMethodMicrosoftOAuth = "microsoft_oauth"
)

// AllAuthMethods lists every method an organization can restrict to.
var AllAuthMethods = []string{
	AuthMethodSSO,
	AuthMethodMagicLink,
	AuthMethodPassword,
	AuthMethodGoogleOAuth,
	AuthMethodMicrosoftOAuth,
}

// Default role ids assigned by the session store.
const (
	RoleAdmin  = "stytch_admin"
	RoleMember = "stytch_member"
)

// RoleSource records why a member holds a role ("direct_assignment", "email_assignment", ...).
type RoleSource struct {
	Type    string            `json:"type"`
	Details map[string]string `json:"details,omitempty"`
}

// Role is an opaque role id with its sources. Role ids the gateway does not
// know are carried through unchanged.
type Role struct {
	RoleID  string       `json:"role_id"`
	Sources []RoleSource `json:"sources,omitempty"`
}

// Member is a member of exactly one organization.
type Member struct {
	MemberID       string `json:"member_id"`
	OrganizationID string `json:"organization_id"`
	EmailAddress   string `json:"email_address"`
	Status         string `json:"status"`
	Name           string `json:"name"`
	Roles          []Role `json:"roles"`
}

// HasRole reports whether the member holds roleID. Matching is exact.
func (m *Member) HasRole(roleID string) bool {
	if m == nil {
		return false
	}
	for _, r := range m.Roles {
		if r.RoleID == roleID {
			return true
		}
	}
	return false
}

// RoleIDs returns the member's role ids in store order.
func (m *Member) RoleIDs() []string {
	if m == nil {
		return nil
	}
	ids := make([]string, 0, len(m.Roles))
	for _, r := range m.Roles {
		ids = append(ids, r.RoleID)
	}
	return ids
}

// Organization holds the organization record and its authentication policy.
type Organization struct {
	OrganizationID       string   `json:"organization_id"`
	OrganizationName     string   `json:"organization_name"`
	OrganizationSlug     string   `json:"organization_slug"`
	EmailInvites         string   `json:"email_invites"`
	AuthMethods          string   `json:"auth_methods"`
	AllowedAuthMethods   []string `json:"allowed_auth_methods"`
	EmailAllowedDomains  []string `json:"email_allowed_domains"`
	EmailJITProvisioning string   `json:"email_jit_provisioning"`
}

// AllowsAuthMethod reports whether method satisfies the organization's policy.
func (o *Organization) AllowsAuthMethod(method string) bool {
	if o.AuthMethods != Restricted {
		return true
	}
	for _, m := range o.AllowedAuthMethods {
		if m == method {
			return true
		}
	}
	return false
}

// Verdict is the result of an authorization check. Never cached.
type Verdict struct {
	Authorized    bool     `json:"authorized"`
	GrantingRoles []string `json:"granting_roles"`
}

// AuthenticationFactor records how a session was established.
type AuthenticationFactor struct {
	Type           string `json:"type"`
	DeliveryMethod string `json:"delivery_method"`
}

// MemberSession describes a live session.
type MemberSession struct {
	MemberSessionID       string                 `json:"member_session_id"`
	MemberID              string                 `json:"member_id"`
	OrganizationID        string                 `json:"organization_id"`
	StartedAt             time.Time              `json:"started_at"`
	LastAccessedAt        time.Time              `json:"last_accessed_at"`
	ExpiresAt             time.Time              `json:"expires_at"`
	AuthenticationFactors []AuthenticationFactor `json:"authentication_factors"`
	Roles                 []string               `json:"roles"`
}

// AuthorizationCheck asks the store to decide (organization, resource, action)
// for the session being authenticated.
type AuthorizationCheck struct {
	OrganizationID string `json:"organization_id"`
	ResourceID     string `json:"resource_id"`
	Action         string `json:"action"`
}

// AuthenticateRequest verifies a session credential.
type AuthenticateRequest struct {
	SessionToken       string              `json:"session_token"`
	AuthorizationCheck *AuthorizationCheck `json:"authorization_check,omitempty"`
}

// AuthenticateResponse carries the identity bound to a session.
type AuthenticateResponse struct {
	StatusCode    int           `json:"status_code"`
	RequestID     string        `json:"request_id"`
	Member        Member        `json:"member"`
	Organization  Organization  `json:"organization"`
	MemberSession MemberSession `json:"member_session"`
	SessionToken  string        `json:"session_token"`
	SessionJWT    string        `json:"session_jwt"`
	Verdict       *Verdict      `json:"verdict,omitempty"`
}

// ExchangeSessionRequest moves a session to another organization.
type ExchangeSessionRequest struct {
	OrganizationID string `json:"organization_id"`
	SessionToken   string `json:"session_token"`
}

// ExchangeIntermediateRequest binds an intermediate session to an organization.
type ExchangeIntermediateRequest struct {
	IntermediateSessionToken string `json:"intermediate_session_token"`
	OrganizationID           string `json:"organization_id"`
}

// ExchangeResponse is returned by both exchange operations. When the member's
// authentication does not satisfy the organization, MemberAuthenticated is
// false, SessionToken is empty and an IntermediateSessionToken is issued instead.
type ExchangeResponse struct {
	StatusCode               int          `json:"status_code"`
	RequestID                string       `json:"request_id"`
	MemberID                 string       `json:"member_id"`
	Member                   Member       `json:"member"`
	Organization             Organization `json:"organization"`
	SessionToken             string       `json:"session_token"`
	SessionJWT               string       `json:"session_jwt"`
	MemberAuthenticated      bool         `json:"member_authenticated"`
	IntermediateSessionToken string       `json:"intermediate_session_token"`
}

// Authenticated reports whether the exchange produced a full session.
func (r *ExchangeResponse) Authenticated() bool {
	return r != nil && r.MemberAuthenticated && r.SessionToken != ""
}

// RevokeRequest revokes every session of a member.
type RevokeRequest struct {
	MemberID string `json:"member_id"`
}

// OrganizationUpdate replaces an organization's authentication policy.
type OrganizationUpdate struct {
	OrganizationID       string   `json:"-"`
	AuthMethods          string   `json:"auth_methods"`
	AllowedAuthMethods   []string `json:"allowed_auth_methods"`
	EmailInvites         string   `json:"email_invites"`
	EmailAllowedDomains  []string `json:"email_allowed_domains"`
	EmailJITProvisioning string   `json:"email_jit_provisioning"`
}

// MemberUpdate changes a member's display name.
type MemberUpdate struct {
	OrganizationID string `json:"-"`
	MemberID       string `json:"-"`
	Name           string `json:"name"`
}

// MemberSearchResponse lists members with their organizations keyed by id.
type MemberSearchResponse struct {
	StatusCode    int                     `json:"status_code"`
	RequestID     string                  `json:"request_id"`
	Members       []Member                `json:"members"`
	Organizations map[string]Organization `json:"organizations"`
}
