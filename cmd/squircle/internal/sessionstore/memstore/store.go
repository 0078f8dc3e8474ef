// Package memstore is an in-process session store used by `serve --dev` and
// tests. Session credentials are HS256 JWTs backed by a revocable session
// table; role permissions are evaluated with casbin.
package memstore

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/casbin/casbin/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/terraconstructs/squircle/cmd/squircle/internal/auth"
	"github.com/terraconstructs/squircle/cmd/squircle/internal/sessionstore"
)

// Error types specific to the in-process store.
const (
	ErrorTypeMemberNotFound       = "member_not_found"
	ErrorTypeOrganizationNotFound = "organization_not_found"
)

const (
	defaultSessionTTL      = time.Hour
	defaultIntermediateTTL = 10 * time.Minute
)

type session struct {
	id             string
	memberID       string
	organizationID string
	method         string
	startedAt      time.Time
	lastAccessedAt time.Time
	expiresAt      time.Time
	revoked        bool
}

type intermediate struct {
	email     string
	name      string
	method    string
	expiresAt time.Time
}

type sessionClaims struct {
	jwt.RegisteredClaims
	OrganizationID string `json:"organization_id"`
}

// Store is an in-memory sessionstore.Store. Safe for concurrent use.
type Store struct {
	mu            sync.Mutex
	organizations map[string]*sessionstore.Organization
	members       map[string]*sessionstore.Member
	sessions      map[string]*session
	intermediates map[string]*intermediate

	enforcer        *casbin.Enforcer
	signingKey      []byte
	now             func() time.Time
	sessionTTL      time.Duration
	intermediateTTL time.Duration
}

var _ sessionstore.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithSigningKey sets the HS256 key for session tokens. A random key is used otherwise.
func WithSigningKey(key []byte) Option {
	return func(s *Store) { s.signingKey = key }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithSessionTTL sets the lifetime of new sessions.
func WithSessionTTL(ttl time.Duration) Option {
	return func(s *Store) { s.sessionTTL = ttl }
}

// New creates an empty store with the default role policies.
func New(opts ...Option) (*Store, error) {
	enforcer, err := newEnforcer()
	if err != nil {
		return nil, err
	}
	s := &Store{
		organizations:   make(map[string]*sessionstore.Organization),
		members:         make(map[string]*sessionstore.Member),
		sessions:        make(map[string]*session),
		intermediates:   make(map[string]*intermediate),
		enforcer:        enforcer,
		now:             time.Now,
		sessionTTL:      defaultSessionTTL,
		intermediateTTL: defaultIntermediateTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	if len(s.signingKey) == 0 {
		s.signingKey = make([]byte, 32)
		if _, err := rand.Read(s.signingKey); err != nil {
			return nil, fmt.Errorf("generate signing key: %w", err)
		}
	}
	return s, nil
}

// AddRolePolicy grants role the (resource, action) pair. Use "*" for any.
func (s *Store) AddRolePolicy(role, resource, action string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.enforcer.AddPolicy(role, resource, action)
	return err
}

// CreateOrganization stores org, filling in an id and open policies where unset.
func (s *Store) CreateOrganization(org sessionstore.Organization) *sessionstore.Organization {
	s.mu.Lock()
	defer s.mu.Unlock()

	if org.OrganizationID == "" {
		org.OrganizationID = "organization-test-" + uuid.NewString()
	}
	if org.OrganizationSlug == "" {
		org.OrganizationSlug = strings.ToLower(strings.ReplaceAll(org.OrganizationName, " ", "-"))
	}
	if org.EmailInvites == "" {
		org.EmailInvites = sessionstore.AllAllowed
	}
	if org.AuthMethods == "" {
		org.AuthMethods = sessionstore.AllAllowed
	}
	if org.EmailJITProvisioning == "" {
		org.EmailJITProvisioning = sessionstore.NotAllowed
	}
	stored := org
	s.organizations[org.OrganizationID] = &stored
	return copyOrganization(&stored)
}

// CreateMember adds a member to an organization. Without roles the member gets stytch_member.
func (s *Store) CreateMember(organizationID, email, name string, roles ...string) (*sessionstore.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.organizations[organizationID]; !ok {
		return nil, fmt.Errorf("organization %s not found", organizationID)
	}
	if s.memberByEmail(organizationID, email) != nil {
		return nil, fmt.Errorf("member %s already exists in %s", email, organizationID)
	}
	return copyMember(s.addMember(organizationID, email, name, "direct_assignment", roles...)), nil
}

// StartSession mints a session credential for memberID as if it had just
// authenticated with method.
func (s *Store) StartSession(memberID, method string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.members[memberID]
	if !ok {
		return "", fmt.Errorf("member %s not found", memberID)
	}
	return s.newSession(m, method)
}

// StartDiscovery mints an intermediate session token for an identity that has
// not yet chosen an organization.
func (s *Store) StartDiscovery(email, name, method string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	token := "intermediate-session-" + uuid.NewString()
	s.intermediates[token] = &intermediate{
		email:     strings.ToLower(email),
		name:      name,
		method:    method,
		expiresAt: s.now().Add(s.intermediateTTL),
	}
	return token
}

// ActiveSessions counts unrevoked, unexpired sessions of memberID.
func (s *Store) ActiveSessions(memberID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	now := s.now()
	for _, sess := range s.sessions {
		if sess.memberID == memberID && !sess.revoked && now.Before(sess.expiresAt) {
			n++
		}
	}
	return n
}

// MemberByEmail finds the member for email in an organization.
func (s *Store) MemberByEmail(organizationID, email string) (*sessionstore.Member, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := s.memberByEmail(organizationID, email)
	if m == nil {
		return nil, false
	}
	return copyMember(m), true
}

func (s *Store) AuthenticateSession(_ context.Context, req sessionstore.AuthenticateRequest) (*sessionstore.AuthenticateResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, member, err := s.resolve(req.SessionToken)
	if err != nil {
		return nil, err
	}
	org := s.organizations[member.OrganizationID]

	resp := &sessionstore.AuthenticateResponse{
		StatusCode:    http.StatusOK,
		RequestID:     requestID(),
		Member:        *copyMember(member),
		Organization:  *copyOrganization(org),
		MemberSession: s.memberSession(sess, member),
		SessionToken:  req.SessionToken,
		SessionJWT:    req.SessionToken,
	}

	if check := req.AuthorizationCheck; check != nil {
		if check.OrganizationID != member.OrganizationID {
			return nil, sessionstore.NewAPIError(http.StatusForbidden, sessionstore.ErrorTypeUnauthorizedAction,
				"the session does not belong to the requested organization")
		}
		granting, err := grantingRoles(s.enforcer, member.RoleIDs(), check.ResourceID, check.Action)
		if err != nil {
			return nil, sessionstore.NewAPIError(http.StatusInternalServerError, "internal_server_error", err.Error())
		}
		if len(granting) == 0 {
			return nil, sessionstore.NewAPIError(http.StatusForbidden, sessionstore.ErrorTypeUnauthorizedAction,
				fmt.Sprintf("member is not permitted to %s %s", check.Action, check.ResourceID))
		}
		resp.Verdict = &sessionstore.Verdict{Authorized: true, GrantingRoles: granting}
	}

	sess.lastAccessedAt = s.now()
	return resp, nil
}

func (s *Store) ExchangeSession(_ context.Context, req sessionstore.ExchangeSessionRequest) (*sessionstore.ExchangeResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, current, err := s.resolve(req.SessionToken)
	if err != nil {
		return nil, err
	}
	org, ok := s.organizations[req.OrganizationID]
	if !ok {
		return nil, sessionstore.NewAPIError(http.StatusNotFound, ErrorTypeOrganizationNotFound, "organization not found")
	}
	target := s.memberByEmail(org.OrganizationID, current.EmailAddress)
	if target == nil {
		return nil, sessionstore.NewAPIError(http.StatusNotFound, ErrorTypeMemberNotFound,
			"no member with this email exists in the target organization")
	}
	if !org.AllowsAuthMethod(sess.method) {
		return nil, sessionstore.NewAPIError(http.StatusBadRequest, sessionstore.ErrorTypeUnauthorizedAuthMethod,
			"the organization does not allow the authentication method used by this session")
	}

	token, err := s.newSession(target, sess.method)
	if err != nil {
		return nil, err
	}
	return s.exchangeResponse(target, org, token), nil
}

func (s *Store) ExchangeIntermediateSession(_ context.Context, req sessionstore.ExchangeIntermediateRequest) (*sessionstore.ExchangeResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ist, ok := s.intermediates[req.IntermediateSessionToken]
	if !ok || !s.now().Before(ist.expiresAt) {
		delete(s.intermediates, req.IntermediateSessionToken)
		return nil, sessionstore.NewAPIError(http.StatusNotFound, sessionstore.ErrorTypeIntermediateNotFound,
			"intermediate session not found")
	}
	org, ok := s.organizations[req.OrganizationID]
	if !ok {
		return nil, sessionstore.NewAPIError(http.StatusNotFound, ErrorTypeOrganizationNotFound, "organization not found")
	}
	if !org.AllowsAuthMethod(ist.method) {
		return nil, sessionstore.NewAPIError(http.StatusBadRequest, sessionstore.ErrorTypeUnauthorizedAuthMethod,
			"the organization does not allow the authentication method used by this session")
	}

	member := s.memberByEmail(org.OrganizationID, ist.email)
	if member == nil {
		if !jitAllowed(org, ist.email) {
			return nil, sessionstore.NewAPIError(http.StatusNotFound, ErrorTypeMemberNotFound,
				"no member with this email exists and JIT provisioning is not allowed")
		}
		member = s.addMember(org.OrganizationID, ist.email, ist.name, "jit_provisioning")
	}

	token, err := s.newSession(member, ist.method)
	if err != nil {
		return nil, err
	}
	delete(s.intermediates, req.IntermediateSessionToken)
	return s.exchangeResponse(member, org, token), nil
}

func (s *Store) RevokeSessions(_ context.Context, req sessionstore.RevokeRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.members[req.MemberID]; !ok {
		return sessionstore.NewAPIError(http.StatusNotFound, ErrorTypeMemberNotFound, "member not found")
	}
	for _, sess := range s.sessions {
		if sess.memberID == req.MemberID {
			sess.revoked = true
		}
	}
	return nil
}

func (s *Store) GetOrganization(_ context.Context, organizationID string) (*sessionstore.Organization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	org, ok := s.organizations[organizationID]
	if !ok {
		return nil, sessionstore.NewAPIError(http.StatusNotFound, ErrorTypeOrganizationNotFound, "organization not found")
	}
	return copyOrganization(org), nil
}

func (s *Store) UpdateOrganization(_ context.Context, sessionToken string, update sessionstore.OrganizationUpdate) (*sessionstore.Organization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.authorize(sessionToken, update.OrganizationID, auth.ResourceOrganization, auth.ActionUpdate); err != nil {
		return nil, err
	}
	org, ok := s.organizations[update.OrganizationID]
	if !ok {
		return nil, sessionstore.NewAPIError(http.StatusNotFound, ErrorTypeOrganizationNotFound, "organization not found")
	}

	org.AuthMethods = update.AuthMethods
	org.AllowedAuthMethods = slices.Clone(update.AllowedAuthMethods)
	org.EmailInvites = update.EmailInvites
	org.EmailAllowedDomains = slices.Clone(update.EmailAllowedDomains)
	org.EmailJITProvisioning = update.EmailJITProvisioning
	return copyOrganization(org), nil
}

func (s *Store) SearchMembers(_ context.Context, sessionToken string, organizationIDs []string) (*sessionstore.MemberSearchResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	resp := &sessionstore.MemberSearchResponse{
		StatusCode:    http.StatusOK,
		RequestID:     requestID(),
		Members:       []sessionstore.Member{},
		Organizations: make(map[string]sessionstore.Organization),
	}
	for _, orgID := range organizationIDs {
		if _, err := s.authorize(sessionToken, orgID, auth.ResourceMember, auth.ActionSearch); err != nil {
			return nil, err
		}
		org, ok := s.organizations[orgID]
		if !ok {
			continue
		}
		resp.Organizations[orgID] = *copyOrganization(org)
		for _, m := range s.members {
			if m.OrganizationID == orgID {
				resp.Members = append(resp.Members, *copyMember(m))
			}
		}
	}
	slices.SortFunc(resp.Members, func(a, b sessionstore.Member) int {
		return strings.Compare(a.EmailAddress, b.EmailAddress)
	})
	return resp, nil
}

func (s *Store) UpdateMember(_ context.Context, sessionToken string, update sessionstore.MemberUpdate) (*sessionstore.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, caller, err := s.resolve(sessionToken)
	if err != nil {
		return nil, err
	}
	resource := auth.ResourceMember
	if caller.MemberID == update.MemberID {
		resource = auth.ResourceSelf
	}
	if _, err := s.authorize(sessionToken, update.OrganizationID, resource, auth.ActionUpdate); err != nil {
		return nil, err
	}

	m, ok := s.members[update.MemberID]
	if !ok || m.OrganizationID != update.OrganizationID {
		return nil, sessionstore.NewAPIError(http.StatusNotFound, ErrorTypeMemberNotFound, "member not found")
	}
	m.Name = update.Name
	return copyMember(m), nil
}

// resolve verifies a session token and returns the live session and its member.
// Callers hold s.mu.
func (s *Store) resolve(token string) (*session, *sessionstore.Member, error) {
	if token == "" {
		return nil, nil, sessionstore.NewAPIError(http.StatusBadRequest, sessionstore.ErrorTypeBadRequest, "session_token is required")
	}

	var claims sessionClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return s.signingKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, nil, sessionstore.NewAPIError(http.StatusNotFound, sessionstore.ErrorTypeSessionNotFound, "session expired")
		}
		return nil, nil, sessionstore.NewAPIError(http.StatusUnauthorized, sessionstore.ErrorTypeUnauthorizedCredentials, "invalid session token")
	}

	sess, ok := s.sessions[claims.ID]
	if !ok || sess.revoked || !s.now().Before(sess.expiresAt) {
		return nil, nil, sessionstore.NewAPIError(http.StatusNotFound, sessionstore.ErrorTypeSessionNotFound, "session not found")
	}
	member, ok := s.members[sess.memberID]
	if !ok {
		return nil, nil, sessionstore.NewAPIError(http.StatusNotFound, sessionstore.ErrorTypeSessionNotFound, "session not found")
	}
	return sess, member, nil
}

// authorize resolves token and checks that its member may perform (resource, action) in organizationID.
func (s *Store) authorize(token, organizationID, resource, action string) (*sessionstore.Member, error) {
	_, member, err := s.resolve(token)
	if err != nil {
		return nil, err
	}
	if member.OrganizationID != organizationID {
		return nil, sessionstore.NewAPIError(http.StatusForbidden, sessionstore.ErrorTypeUnauthorizedAction,
			"the session does not belong to the requested organization")
	}
	granting, err := grantingRoles(s.enforcer, member.RoleIDs(), resource, action)
	if err != nil {
		return nil, sessionstore.NewAPIError(http.StatusInternalServerError, "internal_server_error", err.Error())
	}
	if len(granting) == 0 {
		return nil, sessionstore.NewAPIError(http.StatusForbidden, sessionstore.ErrorTypeUnauthorizedAction,
			fmt.Sprintf("member is not permitted to %s %s", action, resource))
	}
	return member, nil
}

func (s *Store) newSession(m *sessionstore.Member, method string) (string, error) {
	now := s.now()
	sess := &session{
		id:             uuid.NewString(),
		memberID:       m.MemberID,
		organizationID: m.OrganizationID,
		method:         method,
		startedAt:      now,
		lastAccessedAt: now,
		expiresAt:      now.Add(s.sessionTTL),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sess.id,
			Subject:   m.MemberID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(sess.expiresAt),
		},
		OrganizationID: m.OrganizationID,
	})
	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	s.sessions[sess.id] = sess
	return signed, nil
}

func (s *Store) addMember(organizationID, email, name, source string, roles ...string) *sessionstore.Member {
	if len(roles) == 0 {
		roles = []string{sessionstore.RoleMember}
	}
	m := &sessionstore.Member{
		MemberID:       "member-test-" + uuid.NewString(),
		OrganizationID: organizationID,
		EmailAddress:   strings.ToLower(email),
		Status:         "active",
		Name:           name,
	}
	for _, r := range roles {
		m.Roles = append(m.Roles, sessionstore.Role{RoleID: r, Sources: []sessionstore.RoleSource{{Type: source}}})
	}
	s.members[m.MemberID] = m
	return m
}

func (s *Store) memberByEmail(organizationID, email string) *sessionstore.Member {
	email = strings.ToLower(email)
	for _, m := range s.members {
		if m.OrganizationID == organizationID && m.EmailAddress == email {
			return m
		}
	}
	return nil
}

func (s *Store) memberSession(sess *session, m *sessionstore.Member) sessionstore.MemberSession {
	return sessionstore.MemberSession{
		MemberSessionID:       sess.id,
		MemberID:              sess.memberID,
		OrganizationID:        sess.organizationID,
		StartedAt:             sess.startedAt,
		LastAccessedAt:        sess.lastAccessedAt,
		ExpiresAt:             sess.expiresAt,
		AuthenticationFactors: []sessionstore.AuthenticationFactor{{Type: sess.method}},
		Roles:                 m.RoleIDs(),
	}
}

func (s *Store) exchangeResponse(m *sessionstore.Member, org *sessionstore.Organization, token string) *sessionstore.ExchangeResponse {
	return &sessionstore.ExchangeResponse{
		StatusCode:          http.StatusOK,
		RequestID:           requestID(),
		MemberID:            m.MemberID,
		Member:              *copyMember(m),
		Organization:        *copyOrganization(org),
		SessionToken:        token,
		SessionJWT:          token,
		MemberAuthenticated: true,
	}
}

func jitAllowed(org *sessionstore.Organization, email string) bool {
	if org.EmailJITProvisioning != sessionstore.Restricted {
		return false
	}
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return false
	}
	domain := email[at+1:]
	for _, d := range org.EmailAllowedDomains {
		if strings.EqualFold(d, domain) {
			return true
		}
	}
	return false
}

func requestID() string {
	return "request-id-test-" + uuid.NewString()
}

func copyMember(m *sessionstore.Member) *sessionstore.Member {
	c := *m
	c.Roles = make([]sessionstore.Role, len(m.Roles))
	for i, r := range m.Roles {
		c.Roles[i] = sessionstore.Role{RoleID: r.RoleID, Sources: slices.Clone(r.Sources)}
	}
	return &c
}

func copyOrganization(o *sessionstore.Organization) *sessionstore.Organization {
	c := *o
	c.AllowedAuthMethods = slices.Clone(o.AllowedAuthMethods)
	c.EmailAllowedDomains = slices.Clone(o.EmailAllowedDomains)
	return &c
}
