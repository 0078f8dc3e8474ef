package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/terraconstructs/squircle/cmd/squircle/internal/auth"
	"github.com/terraconstructs/squircle/cmd/squircle/internal/db/models"
	"github.com/terraconstructs/squircle/cmd/squircle/internal/repository"
	"github.com/terraconstructs/squircle/cmd/squircle/internal/sessionstore"
	"github.com/terraconstructs/squircle/cmd/squircle/internal/telemetry"
)

// Exchange outcomes, as recorded in metrics.
const (
	ExchangeRejected    = "rejected"
	ExchangeUnavailable = "unavailable"
	ExchangeFailed      = "provisioning_failed"
	ExchangeExchanged   = "exchanged"
)

// ExchangeIntermediate binds an intermediate session (form field
// intermediate_session_token, falling back to the intermediate_token cookie)
// to the organization in organization_id.
//
// A store rejection is returned with the store's status and payload and no
// cookie changes. On success the discovery cookies are cleared, the member is
// mirrored locally and the session cookie is set.
func (p *Protocols) ExchangeIntermediate(ctx context.Context, rc RequestContext) Outcome {
	token := strings.TrimSpace(rc.Form.Get(FieldIntermediateSessionToken))
	if token == "" {
		token = rc.Cookie(auth.IntermediateTokenCookieName)
	}
	orgID := strings.TrimSpace(rc.Form.Get(FieldOrganizationID))

	ctx, span := telemetry.StartSpan(ctx, telemetry.TracerGateway, "gateway.ExchangeIntermediate",
		attribute.String(telemetry.AttrOrganizationID, orgID),
	)
	defer span.End()

	finish := func(result string, out Outcome) Outcome {
		span.SetAttributes(attribute.String(telemetry.AttrOutcome, result))
		p.metrics.ExchangeCompleted(ctx, result)
		return out
	}

	if token == "" || orgID == "" {
		return finish(ExchangeRejected, respond(http.StatusBadRequest,
			messageBody("intermediate_session_token and organization_id are required")))
	}

	store, err := p.stores.Get()
	if err != nil {
		p.logger.Error("session store unavailable", zap.Error(err))
		return finish(ExchangeUnavailable, respond(http.StatusServiceUnavailable, messageBody("Session store unavailable")))
	}

	resp, err := store.ExchangeIntermediateSession(ctx, sessionstore.ExchangeIntermediateRequest{
		IntermediateSessionToken: token,
		OrganizationID:           orgID,
	})
	if err != nil {
		telemetry.RecordError(span, err)
		if apiErr, ok := sessionstore.AsAPIError(err); ok {
			return finish(ExchangeRejected, respond(apiErr.StatusCode, apiErr.Payload()))
		}
		p.logger.Error("intermediate exchange failed", zap.String("organization_id", orgID), zap.Error(err))
		return finish(ExchangeUnavailable, respond(http.StatusServiceUnavailable, messageBody("Session store unavailable")))
	}
	if !exchangeOK(resp) {
		// The member must complete another factor first; hand the store's
		// answer (including its new intermediate token) back to the client.
		return finish(ExchangeRejected, respond(http.StatusForbidden, resp))
	}

	if _, err := p.EnsureMember(ctx, resp.MemberID, resp.Member.Name); err != nil {
		telemetry.RecordError(span, err)
		p.logger.Error("failed to mirror member after exchange",
			zap.String("member_id", resp.MemberID),
			zap.Error(err),
		)
		return finish(ExchangeFailed, respond(http.StatusInternalServerError, messageBody("Failed to provision member")))
	}

	p.logger.Info("intermediate session exchanged",
		zap.String("member_id", resp.MemberID),
		zap.String("organization_id", resp.Organization.OrganizationID),
	)
	return finish(ExchangeExchanged, redirect(p.dashboardURL, http.StatusSeeOther, sessionCookies(resp.SessionToken)...))
}

// EnsureMember creates the local mirror record for memberID if it does not
// exist. It is safe to call from several trigger points at once: losing a
// create race counts as success. created reports whether this call inserted
// the record.
func (p *Protocols) EnsureMember(ctx context.Context, memberID, name string) (created bool, err error) {
	created, err = EnsureMember(ctx, p.members, memberID, name)
	if created {
		p.logger.Info("mirrored new member", zap.String("member_id", memberID))
	}
	return created, err
}

// EnsureMember is Protocols.EnsureMember against an explicit repository.
func EnsureMember(ctx context.Context, members repository.MemberRepository, memberID, name string) (created bool, err error) {
	if strings.TrimSpace(memberID) == "" {
		return false, fmt.Errorf("member id is required")
	}

	_, err = members.GetByID(ctx, memberID)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, repository.ErrMemberNotFound) {
		return false, fmt.Errorf("look up member: %w", err)
	}

	err = members.Create(ctx, &models.Member{ID: memberID, Name: name})
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, repository.ErrMemberExists):
		return false, nil
	default:
		return false, fmt.Errorf("create member: %w", err)
	}
}
