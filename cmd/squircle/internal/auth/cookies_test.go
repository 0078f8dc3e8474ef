package auth

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCookieOptions_Cookie(t *testing.T) {
	opts := CookieOptions{Domain: "example.com", Secure: true}

	c := opts.Cookie(SessionCookieName, "token-abc")

	assert.Equal(t, "stytch_session", c.Name)
	assert.Equal(t, "token-abc", c.Value)
	assert.Equal(t, "/", c.Path)
	assert.Equal(t, "example.com", c.Domain)
	assert.True(t, c.Secure)
	assert.False(t, c.HttpOnly, "browser SDK must be able to read the session cookie")
}

func TestCookieOptions_Expired(t *testing.T) {
	c := DefaultCookieOptions().Expired(IntermediateTokenCookieName)

	assert.Equal(t, "intermediate_token", c.Name)
	assert.Empty(t, c.Value)
	assert.Equal(t, -1, c.MaxAge)
	assert.Contains(t, c.String(), "Max-Age=0")
}

func TestCookieValues_FirstWins(t *testing.T) {
	values := CookieValues([]*http.Cookie{
		{Name: SessionCookieName, Value: "first"},
		{Name: SessionCookieName, Value: "second"},
		{Name: DiscoveredOrgsCookieName, Value: "orgs"},
	})

	assert.Equal(t, "first", values[SessionCookieName])
	assert.Equal(t, "orgs", values[DiscoveredOrgsCookieName])
}

func TestPrincipalContext(t *testing.T) {
	roles := []string{"stytch_member"}
	ctx := SetPrincipalContext(context.Background(), Principal{MemberID: "member-1", Roles: roles})
	roles[0] = "mutated"

	p, ok := PrincipalFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, "member-1", p.MemberID)
	assert.Equal(t, []string{"stytch_member"}, p.Roles)

	_, ok = PrincipalFromContext(context.Background())
	assert.False(t, ok)

	assert.Equal(t, "", CredentialFromContext(context.Background()))
	assert.Equal(t, "cred", CredentialFromContext(SetCredentialContext(context.Background(), "cred")))
}
