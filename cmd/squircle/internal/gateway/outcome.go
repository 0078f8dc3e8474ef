package gateway

import (
	"net/http"
	"net/url"

	"github.com/terraconstructs/squircle/cmd/squircle/internal/auth"
)

// NewOrganizationSentinel is the organization_id a client submits to ask for
// a new organization instead of switching to an existing one.
const NewOrganizationSentinel = "new"

// Form fields read by the protocols.
const (
	FieldOrganizationID           = "organization_id"
	FieldIntermediateSessionToken = "intermediate_session_token"
)

// RequestContext is everything a protocol may read from the inbound request.
type RequestContext struct {
	Cookies map[string]string
	Form    url.Values
}

// NewRequestContext captures the cookies and parsed form of r.
func NewRequestContext(r *http.Request) RequestContext {
	form := r.Form
	if form == nil {
		form = url.Values{}
	}
	return RequestContext{Cookies: auth.CookieValues(r.Cookies()), Form: form}
}

// Cookie returns the named cookie value, or "".
func (rc RequestContext) Cookie(name string) string {
	return rc.Cookies[name]
}

// CookieMutation sets or clears one cookie.
type CookieMutation struct {
	Name  string
	Value string
	Clear bool
}

// SetCookie returns a mutation that writes value.
func SetCookie(name, value string) CookieMutation {
	return CookieMutation{Name: name, Value: value}
}

// ClearCookie returns a mutation that deletes name.
func ClearCookie(name string) CookieMutation {
	return CookieMutation{Name: name, Clear: true}
}

// Outcome is what a protocol wants written back. Exactly one of Redirect or
// Status is meaningful: a non-empty Redirect wins.
type Outcome struct {
	Cookies        []CookieMutation
	Redirect       string
	RedirectStatus int
	Status         int
	Body           any

	// RevokeErr records a failed best-effort revocation during logout.
	RevokeErr error
}

// IsRedirect reports whether the outcome is a redirect.
func (o Outcome) IsRedirect() bool {
	return o.Redirect != ""
}

// CookieFor returns the last mutation of name, if any.
func (o Outcome) CookieFor(name string) (CookieMutation, bool) {
	var found CookieMutation
	ok := false
	for _, m := range o.Cookies {
		if m.Name == name {
			found, ok = m, true
		}
	}
	return found, ok
}

func redirect(location string, status int, cookies ...CookieMutation) Outcome {
	return Outcome{Cookies: cookies, Redirect: location, RedirectStatus: status}
}

func respond(status int, body any, cookies ...CookieMutation) Outcome {
	return Outcome{Cookies: cookies, Status: status, Body: body}
}

type message struct {
	Message string `json:"message"`
}

func messageBody(msg string) message {
	return message{Message: msg}
}
