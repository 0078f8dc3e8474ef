package gateway

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/terraconstructs/squircle/cmd/squircle/internal/auth"
	"github.com/terraconstructs/squircle/cmd/squircle/internal/sessionstore"
	"github.com/terraconstructs/squircle/cmd/squircle/internal/telemetry"
)

// Logout revokes every session of the member behind the current credential
// and clears the session cookie. The cookie is cleared and the redirect to
// the login page issued whether or not revocation succeeded; a failure is
// reported in Outcome.RevokeErr.
func (p *Protocols) Logout(ctx context.Context, rc RequestContext) Outcome {
	ctx, span := telemetry.StartSpan(ctx, telemetry.TracerGateway, "gateway.Logout")
	defer span.End()

	out := redirect(p.loginURL, http.StatusFound, ClearCookie(auth.SessionCookieName))

	current := p.authn.Lookup(ctx, rc.Cookie(auth.SessionCookieName))
	if current == nil {
		return out
	}

	if err := p.revoke(ctx, current.Member.MemberID); err != nil {
		telemetry.RecordError(span, err)
		p.metrics.RevokeFailed(ctx)
		p.logger.Warn("failed to revoke member sessions",
			zap.String("member_id", current.Member.MemberID),
			zap.Error(err),
		)
		out.RevokeErr = err
	}
	return out
}

func (p *Protocols) revoke(ctx context.Context, memberID string) error {
	store, err := p.stores.Get()
	if err != nil {
		return Classify(err)
	}
	if err := store.RevokeSessions(ctx, sessionstore.RevokeRequest{MemberID: memberID}); err != nil {
		return Classify(err)
	}
	return nil
}
