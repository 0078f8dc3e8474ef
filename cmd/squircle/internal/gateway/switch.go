package gateway

import (
	"context"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/terraconstructs/squircle/cmd/squircle/internal/auth"
	"github.com/terraconstructs/squircle/cmd/squircle/internal/sessionstore"
	"github.com/terraconstructs/squircle/cmd/squircle/internal/telemetry"
)

// Switch outcomes, as recorded in metrics.
const (
	SwitchCreate   = "create"
	SwitchReauth   = "reauth"
	SwitchSwitched = "switched"
)

// SwitchOrganization exchanges the current session for one bound to the
// organization named by the organization_id form field.
//
// The "new" sentinel redirects to organization creation without contacting
// the store. A missing credential or target, an unreachable store, or any
// refused exchange redirects (302) to re-authentication and leaves the
// session cookie alone. Success replaces the session cookie, clears discovery
// cookies and redirects (303) to the dashboard.
func (p *Protocols) SwitchOrganization(ctx context.Context, rc RequestContext) Outcome {
	target := strings.TrimSpace(rc.Form.Get(FieldOrganizationID))

	ctx, span := telemetry.StartSpan(ctx, telemetry.TracerGateway, "gateway.SwitchOrganization",
		attribute.String(telemetry.AttrOrganizationID, target),
	)
	defer span.End()

	finish := func(result string, out Outcome) Outcome {
		span.SetAttributes(attribute.String(telemetry.AttrOutcome, result))
		p.metrics.SwitchCompleted(ctx, result)
		return out
	}
	reauth := func(reason string, err error) Outcome {
		p.logger.Info("organization switch refused",
			zap.String("organization_id", target),
			zap.String("reason", reason),
			zap.Error(err),
		)
		return finish(SwitchReauth, redirect(p.opts.ReauthPath, http.StatusFound))
	}

	if target == NewOrganizationSentinel {
		return finish(SwitchCreate, redirect(p.opts.CreateOrganizationPath, http.StatusFound))
	}
	if target == "" {
		return reauth("missing organization_id", nil)
	}
	credential := rc.Cookie(auth.SessionCookieName)
	if credential == "" {
		return reauth("missing session", nil)
	}

	store, err := p.stores.Get()
	if err != nil {
		return reauth("session store unavailable", Classify(err))
	}
	resp, err := store.ExchangeSession(ctx, sessionstore.ExchangeSessionRequest{
		OrganizationID: target,
		SessionToken:   credential,
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return reauth("exchange failed", Classify(err))
	}
	if !exchangeOK(resp) {
		return reauth("exchange did not authenticate member", auth.ErrExchangeRejected)
	}

	p.logger.Info("organization switched",
		zap.String("member_id", resp.MemberID),
		zap.String("organization_id", resp.Organization.OrganizationID),
	)
	return finish(SwitchSwitched, redirect(p.dashboardURL, http.StatusSeeOther, sessionCookies(resp.SessionToken)...))
}
