package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terraconstructs/squircle/cmd/squircle/internal/auth"
	"github.com/terraconstructs/squircle/cmd/squircle/internal/gateway"
	"github.com/terraconstructs/squircle/cmd/squircle/internal/sessionstore"
)

type mockAuthenticator struct {
	identities map[string]*gateway.Identity
}

func (m *mockAuthenticator) Authenticate(_ context.Context, credential string) (*gateway.Identity, error) {
	if id, ok := m.identities[credential]; ok {
		return id, nil
	}
	return nil, auth.ErrUnauthenticated
}

type mockGate struct {
	mockAuthenticator
	allowed map[string]bool // resource:action
	err     error

	lastResource, lastAction string
}

func (m *mockGate) Check(ctx context.Context, credential, resource, action string) (*gateway.Identity, error) {
	m.lastResource, m.lastAction = resource, action
	id, err := m.Authenticate(ctx, credential)
	if err != nil {
		return nil, err
	}
	if m.err != nil {
		return nil, m.err
	}
	if !m.allowed[resource+":"+action] {
		return nil, auth.ErrUnauthorized
	}
	return id, nil
}

func testIdentity() *gateway.Identity {
	return &gateway.Identity{
		Member: sessionstore.Member{
			MemberID:       "member-1",
			OrganizationID: "org-1",
			Name:           "Ada",
			Roles:          []sessionstore.Role{{RoleID: sessionstore.RoleMember}},
		},
		Organization: sessionstore.Organization{OrganizationID: "org-1", OrganizationName: "Acme"},
		Credential:   "good-token",
	}
}

func echoPrincipal(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := auth.PrincipalFromContext(r.Context())
		require.True(t, ok)
		assert.Equal(t, "good-token", auth.CredentialFromContext(r.Context()))
		id, ok := IdentityFromContext(r.Context())
		require.True(t, ok)
		assert.Equal(t, "Acme", id.Organization.OrganizationName)
		_, _ = w.Write([]byte(p.MemberID + "@" + p.OrganizationID))
	})
}

func request(credential string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/ideas", nil)
	if credential != "" {
		req.AddCookie(&http.Cookie{Name: auth.SessionCookieName, Value: credential})
	}
	return req
}

func assertUnauthorized(t *testing.T, rec *httptest.ResponseRecorder) {
	t.Helper()
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"message":"Unauthorized"}`, rec.Body.String())
}

func TestAuthenticate(t *testing.T) {
	authn := &mockAuthenticator{identities: map[string]*gateway.Identity{"good-token": testIdentity()}}
	handler := Authenticate(authn)(echoPrincipal(t))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, request("good-token"))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "member-1@org-1", rec.Body.String())

	for _, credential := range []string{"", "expired-token"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, request(credential))
		assertUnauthorized(t, rec)
	}
}

func TestAuthenticateAndAuthorize(t *testing.T) {
	gate := &mockGate{
		mockAuthenticator: mockAuthenticator{identities: map[string]*gateway.Identity{"good-token": testIdentity()}},
		allowed:           map[string]bool{"idea:read": true},
	}

	t.Run("allowed", func(t *testing.T) {
		rec := httptest.NewRecorder()
		AuthenticateAndAuthorize(gate, auth.ResourceIdea, auth.ActionRead)(echoPrincipal(t)).ServeHTTP(rec, request("good-token"))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, auth.ResourceIdea, gate.lastResource)
		assert.Equal(t, auth.ActionRead, gate.lastAction)
	})

	t.Run("denied and unauthenticated look the same", func(t *testing.T) {
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler must not run")
		})

		denied := httptest.NewRecorder()
		AuthenticateAndAuthorize(gate, auth.ResourceIdea, auth.ActionDelete)(next).ServeHTTP(denied, request("good-token"))
		assertUnauthorized(t, denied)

		anonymous := httptest.NewRecorder()
		AuthenticateAndAuthorize(gate, auth.ResourceIdea, auth.ActionRead)(next).ServeHTTP(anonymous, request(""))
		assertUnauthorized(t, anonymous)

		assert.Equal(t, denied.Body.String(), anonymous.Body.String())
	})

	t.Run("store failure fails closed", func(t *testing.T) {
		gate.err = errors.Join(auth.ErrRemoteUnavailable, errors.New("timeout"))
		defer func() { gate.err = nil }()

		rec := httptest.NewRecorder()
		AuthenticateAndAuthorize(gate, auth.ResourceIdea, auth.ActionRead)(echoPrincipal(t)).ServeHTTP(rec, request("good-token"))
		assertUnauthorized(t, rec)
	})
}

func TestIdentityFromContext_Empty(t *testing.T) {
	_, ok := IdentityFromContext(context.Background())
	assert.False(t, ok)
}
