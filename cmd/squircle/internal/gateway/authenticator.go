package gateway

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/terraconstructs/squircle/cmd/squircle/internal/auth"
	"github.com/terraconstructs/squircle/cmd/squircle/internal/sessionstore"
	"github.com/terraconstructs/squircle/cmd/squircle/internal/telemetry"
)

// Authenticator resolves session credentials to identities.
type Authenticator struct {
	stores  *sessionstore.Provider
	logger  *zap.Logger
	metrics *telemetry.GatewayMetrics
}

// NewAuthenticator creates an Authenticator backed by the shared store handle.
func NewAuthenticator(stores *sessionstore.Provider, logger *zap.Logger, metrics *telemetry.GatewayMetrics) *Authenticator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Authenticator{stores: stores, logger: logger, metrics: metrics}
}

// Authenticate verifies credential. Every failure, whatever its cause, is
// reported as auth.ErrUnauthenticated.
func (a *Authenticator) Authenticate(ctx context.Context, credential string) (*Identity, error) {
	id, err := a.resolve(ctx, credential)
	if err != nil {
		a.metrics.AuthnFailed(ctx)
		a.logger.Debug("session rejected", zap.Error(err))
		return nil, auth.ErrUnauthenticated
	}
	return id, nil
}

// Lookup is the tolerant form of Authenticate: nil when the credential does not resolve.
func (a *Authenticator) Lookup(ctx context.Context, credential string) *Identity {
	id, err := a.resolve(ctx, credential)
	if err != nil {
		a.logger.Debug("session lookup found no member", zap.Error(err))
		return nil
	}
	return id
}

func (a *Authenticator) resolve(ctx context.Context, credential string) (*Identity, error) {
	if credential == "" {
		return nil, errors.New("no session credential")
	}
	store, err := a.stores.Get()
	if err != nil {
		return nil, Classify(err)
	}
	resp, err := store.AuthenticateSession(ctx, sessionstore.AuthenticateRequest{SessionToken: credential})
	if err != nil {
		return nil, Classify(err)
	}
	return identityFrom(resp, credential), nil
}

func identityFrom(resp *sessionstore.AuthenticateResponse, credential string) *Identity {
	return &Identity{
		Member:       resp.Member,
		Organization: resp.Organization,
		Credential:   credential,
	}
}

// Gate checks (resource, action) permissions for a credential.
type Gate struct {
	authn   *Authenticator
	stores  *sessionstore.Provider
	logger  *zap.Logger
	metrics *telemetry.GatewayMetrics
}

// NewGate creates a Gate that resolves members through authn.
func NewGate(authn *Authenticator) *Gate {
	return &Gate{authn: authn, stores: authn.stores, logger: authn.logger, metrics: authn.metrics}
}

// Check resolves the member behind credential and asks the store whether that
// member may perform action on resource in its current organization. It
// returns auth.ErrUnauthenticated when no member resolves and
// auth.ErrUnauthorized when the verdict is negative. A store failure during
// the check denies with the classified error.
func (g *Gate) Check(ctx context.Context, credential, resource, action string) (*Identity, error) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.TracerGateway, "gateway.Check",
		attribute.String(telemetry.AttrResourceID, resource),
		attribute.String(telemetry.AttrAction, action),
	)
	defer span.End()

	current := g.authn.Lookup(ctx, credential)
	if current == nil {
		g.metrics.AuthnFailed(ctx)
		return nil, auth.ErrUnauthenticated
	}
	span.SetAttributes(
		attribute.String(telemetry.AttrMemberID, current.Member.MemberID),
		attribute.String(telemetry.AttrOrganizationID, current.Member.OrganizationID),
	)

	id, err := g.authorize(ctx, current, resource, action)
	allowed := err == nil
	span.SetAttributes(attribute.Bool(telemetry.AttrAuthorized, allowed))
	g.metrics.AuthzDecided(ctx, resource, action, allowed)
	if err != nil {
		telemetry.RecordError(span, err)
		g.logger.Info("authorization denied",
			zap.String("member_id", current.Member.MemberID),
			zap.String("organization_id", current.Member.OrganizationID),
			zap.String("resource", resource),
			zap.String("action", action),
			zap.Error(err),
		)
		return nil, err
	}
	return id, nil
}

func (g *Gate) authorize(ctx context.Context, current *Identity, resource, action string) (*Identity, error) {
	store, err := g.stores.Get()
	if err != nil {
		return nil, Classify(err)
	}
	resp, err := store.AuthenticateSession(ctx, sessionstore.AuthenticateRequest{
		SessionToken: current.Credential,
		AuthorizationCheck: &sessionstore.AuthorizationCheck{
			OrganizationID: current.Member.OrganizationID,
			ResourceID:     resource,
			Action:         action,
		},
	})
	if err != nil {
		return nil, Classify(err)
	}
	if resp.Verdict == nil || !resp.Verdict.Authorized {
		return nil, auth.ErrUnauthorized
	}
	return identityFrom(resp, current.Credential), nil
}
