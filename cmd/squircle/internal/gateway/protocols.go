package gateway

import (
	"fmt"
	"net/url"

	"go.uber.org/zap"

	"github.com/terraconstructs/squircle/cmd/squircle/internal/auth"
	"github.com/terraconstructs/squircle/cmd/squircle/internal/repository"
	"github.com/terraconstructs/squircle/cmd/squircle/internal/sessionstore"
	"github.com/terraconstructs/squircle/cmd/squircle/internal/telemetry"
)

// Options holds the redirect targets used by the protocols. DashboardPath and
// LoginPath are resolved against AppURL; ReauthPath and CreateOrganizationPath
// are used as given.
type Options struct {
	AppURL                 string
	DashboardPath          string
	LoginPath              string
	ReauthPath             string
	CreateOrganizationPath string
}

// DefaultOptions returns the redirect targets used when none are configured.
func DefaultOptions(appURL string) Options {
	return Options{
		AppURL:                 appURL,
		DashboardPath:          "/dashboard",
		LoginPath:              "/dashboard/login",
		ReauthPath:             "/auth/logout",
		CreateOrganizationPath: "/auth/logout",
	}
}

// Protocols runs the session protocols that mutate the credential cookie.
type Protocols struct {
	stores  *sessionstore.Provider
	authn   *Authenticator
	members repository.MemberRepository
	opts    Options

	dashboardURL string
	loginURL     string

	logger  *zap.Logger
	metrics *telemetry.GatewayMetrics
}

// NewProtocols validates opts and wires the protocols.
func NewProtocols(authn *Authenticator, members repository.MemberRepository, opts Options) (*Protocols, error) {
	base, err := url.Parse(opts.AppURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("app URL must be absolute, got %q", opts.AppURL)
	}
	resolve := func(path string) (string, error) {
		ref, err := url.Parse(path)
		if err != nil {
			return "", fmt.Errorf("parse redirect path %q: %w", path, err)
		}
		return base.ResolveReference(ref).String(), nil
	}

	dashboardURL, err := resolve(opts.DashboardPath)
	if err != nil {
		return nil, err
	}
	loginURL, err := resolve(opts.LoginPath)
	if err != nil {
		return nil, err
	}
	if opts.ReauthPath == "" || opts.CreateOrganizationPath == "" {
		return nil, fmt.Errorf("re-authentication and organization creation paths are required")
	}

	return &Protocols{
		stores:       authn.stores,
		authn:        authn,
		members:      members,
		opts:         opts,
		dashboardURL: dashboardURL,
		loginURL:     loginURL,
		logger:       authn.logger,
		metrics:      authn.metrics,
	}, nil
}

// sessionCookies writes the new credential and drops any in-progress discovery state.
func sessionCookies(token string) []CookieMutation {
	mutations := make([]CookieMutation, 0, len(auth.DiscoveryCookieNames)+1)
	for _, name := range auth.DiscoveryCookieNames {
		mutations = append(mutations, ClearCookie(name))
	}
	return append(mutations, SetCookie(auth.SessionCookieName, token))
}

func exchangeOK(resp *sessionstore.ExchangeResponse) bool {
	return resp.Authenticated() && (resp.StatusCode == 0 || resp.StatusCode == 200)
}
