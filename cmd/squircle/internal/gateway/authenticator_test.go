package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/terraconstructs/squircle/cmd/squircle/internal/auth"
	"github.com/terraconstructs/squircle/cmd/squircle/internal/sessionstore"
)

func TestAuthenticator_Authenticate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	token := env.session(t, env.ada)
	id, err := env.authn.Authenticate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, env.ada.MemberID, id.Member.MemberID)
	assert.Equal(t, env.orgA.OrganizationID, id.Principal().OrganizationID)
	assert.Equal(t, "Org A", id.Principal().OrganizationName)
	assert.Equal(t, []string{sessionstore.RoleMember}, id.Principal().Roles)
	assert.Equal(t, token, id.Credential)

	revoked := env.session(t, env.admin)
	require.NoError(t, env.mem.RevokeSessions(ctx, sessionstore.RevokeRequest{MemberID: env.admin.MemberID}))

	for name, credential := range map[string]string{
		"missing":   "",
		"malformed": "not-a-token",
		"revoked":   revoked,
	} {
		t.Run(name, func(t *testing.T) {
			id, err := env.authn.Authenticate(ctx, credential)
			assert.Nil(t, id)
			assert.Same(t, auth.ErrUnauthenticated, err, "failures are not sub-classified")
			assert.Nil(t, env.authn.Lookup(ctx, credential))
		})
	}
}

func TestAuthenticator_StoreUnavailableIsUnauthenticated(t *testing.T) {
	provider := sessionstore.NewProvider(func() (sessionstore.Store, error) {
		return nil, errors.New("no credentials configured")
	})
	authn := NewAuthenticator(provider, zap.NewNop(), nil)

	_, err := authn.Authenticate(context.Background(), "anything")
	assert.Same(t, auth.ErrUnauthenticated, err)
	assert.Nil(t, authn.Lookup(context.Background(), "anything"))

	_, err = NewGate(authn).Check(context.Background(), "anything", auth.ResourceIdea, auth.ActionRead)
	assert.ErrorIs(t, err, auth.ErrUnauthenticated)
}

func TestGate_Check(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	memberToken := env.session(t, env.ada)
	adminToken := env.session(t, env.admin)

	tests := []struct {
		name       string
		credential string
		resource   string
		action     string
		wantErr    error
	}{
		{"member reads ideas", memberToken, auth.ResourceIdea, auth.ActionRead, nil},
		{"member creates ideas", memberToken, auth.ResourceIdea, auth.ActionCreate, nil},
		{"member cannot delete ideas", memberToken, auth.ResourceIdea, auth.ActionDelete, auth.ErrUnauthorized},
		{"member cannot administer organization", memberToken, auth.ResourceOrganization, auth.ActionAny, auth.ErrUnauthorized},
		{"admin deletes ideas", adminToken, auth.ResourceIdea, auth.ActionDelete, nil},
		{"admin administers organization", adminToken, auth.ResourceOrganization, auth.ActionAny, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := env.gate.Check(ctx, tt.credential, tt.resource, tt.action)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, id)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.credential, id.Credential)
		})
	}
}

func TestGate_UnauthenticatedForEveryResource(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for _, resource := range []string{auth.ResourceIdea, auth.ResourceOrganization, auth.ResourceMember, auth.ResourceSelf} {
		for _, action := range []string{auth.ActionRead, auth.ActionCreate, auth.ActionDelete, auth.ActionAny} {
			for _, credential := range []string{"", "garbage"} {
				before := env.store.calls.Load()
				_, err := env.gate.Check(ctx, credential, resource, action)
				assert.ErrorIs(t, err, auth.ErrUnauthenticated, "%s/%s", resource, action)

				// No authorization check is submitted without a resolved member.
				calls := env.store.calls.Load() - before
				assert.LessOrEqual(t, calls, int32(1))
			}
		}
	}
}

func TestGate_NegativeVerdictDenies(t *testing.T) {
	env := newTestEnv(t)
	env.store.verdict = &sessionstore.Verdict{Authorized: false}

	_, err := env.gate.Check(context.Background(), env.session(t, env.admin), auth.ResourceIdea, auth.ActionRead)
	assert.ErrorIs(t, err, auth.ErrUnauthorized)
}

func TestGate_FailsClosedWhenCheckCannotComplete(t *testing.T) {
	env := newTestEnv(t)
	token := env.session(t, env.admin)

	for name, checkErr := range map[string]error{
		"transport":  fmt.Errorf("%w: dial tcp: connection refused", auth.ErrRemoteUnavailable),
		"server":     sessionstore.NewAPIError(http.StatusBadGateway, "bad_gateway", "upstream"),
		"rate limit": sessionstore.NewAPIError(http.StatusTooManyRequests, "too_many_requests", "slow down"),
		"deadline":   context.DeadlineExceeded,
	} {
		t.Run(name, func(t *testing.T) {
			env.store.checkErr = checkErr
			id, err := env.gate.Check(context.Background(), token, auth.ResourceIdea, auth.ActionRead)
			assert.Nil(t, id)
			assert.ErrorIs(t, err, auth.ErrRemoteUnavailable)
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"forbidden", sessionstore.NewAPIError(http.StatusForbidden, sessionstore.ErrorTypeUnauthorizedAction, "no"), auth.ErrUnauthorized},
		{"not found", sessionstore.NewAPIError(http.StatusNotFound, sessionstore.ErrorTypeSessionNotFound, "gone"), auth.ErrUnauthenticated},
		{"unauthorized credentials", sessionstore.NewAPIError(http.StatusUnauthorized, sessionstore.ErrorTypeUnauthorizedCredentials, "bad"), auth.ErrUnauthenticated},
		{"bad request", sessionstore.NewAPIError(http.StatusBadRequest, sessionstore.ErrorTypeBadRequest, "bad"), auth.ErrUnauthenticated},
		{"server error", sessionstore.NewAPIError(http.StatusInternalServerError, "internal_server_error", "boom"), auth.ErrRemoteUnavailable},
		{"wrapped api error", fmt.Errorf("call: %w", sessionstore.NewAPIError(http.StatusForbidden, "x", "y")), auth.ErrUnauthorized},
		{"already classified", auth.ErrExchangeRejected, auth.ErrExchangeRejected},
		{"canceled", context.Canceled, auth.ErrRemoteUnavailable},
		{"unknown", errors.New("weird"), auth.ErrRemoteUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err)
			assert.ErrorIs(t, got, tt.want)
			assert.ErrorIs(t, got, tt.err, "original error stays reachable")
		})
	}
	assert.NoError(t, Classify(nil))
}
