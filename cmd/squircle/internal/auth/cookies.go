package auth

import (
	"net/http"
	"time"
)

// Cookie names shared with the identity provider's browser SDK. Do not rename.
const (
	// SessionCookieName carries the session credential
	SessionCookieName = "stytch_session"

	// DiscoveredOrgsCookieName holds the organizations found during discovery login
	DiscoveredOrgsCookieName = "discovered_orgs"

	// IntermediateTokenCookieName holds the intermediate session token during discovery login
	IntermediateTokenCookieName = "intermediate_token"
)

// DiscoveryCookieNames lists the transient discovery-flow cookies.
var DiscoveryCookieNames = []string{DiscoveredOrgsCookieName, IntermediateTokenCookieName}

// CookieOptions holds the attributes applied to every cookie the gateway writes.
// Cookies are not HttpOnly: the browser SDK reads the session cookie.
type CookieOptions struct {
	Path   string
	Domain string
	Secure bool
}

// DefaultCookieOptions matches the path-only options the browser SDK expects.
func DefaultCookieOptions() CookieOptions {
	return CookieOptions{Path: "/"}
}

// Cookie builds a cookie carrying value.
func (o CookieOptions) Cookie(name, value string) *http.Cookie {
	path := o.Path
	if path == "" {
		path = "/"
	}
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Domain:   o.Domain,
		Secure:   o.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// Expired builds a cookie that deletes name from the browser.
func (o CookieOptions) Expired(name string) *http.Cookie {
	c := o.Cookie(name, "")
	c.Expires = time.Unix(0, 0)
	c.MaxAge = -1
	return c
}

// CookieValues flattens request cookies into a name → value map. The first
// cookie of a given name wins, matching net/http's Request.Cookie.
func CookieValues(cookies []*http.Cookie) map[string]string {
	values := make(map[string]string, len(cookies))
	for _, c := range cookies {
		if _, seen := values[c.Name]; !seen {
			values[c.Name] = c.Value
		}
	}
	return values
}
