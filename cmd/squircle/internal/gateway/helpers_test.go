package gateway

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/terraconstructs/squircle/cmd/squircle/internal/db/models"
	"github.com/terraconstructs/squircle/cmd/squircle/internal/repository"
	"github.com/terraconstructs/squircle/cmd/squircle/internal/sessionstore"
	"github.com/terraconstructs/squircle/cmd/squircle/internal/sessionstore/memstore"
	"github.com/terraconstructs/squircle/cmd/squircle/internal/telemetry"
)

// mockMemberRepository is an in-memory MemberRepository.
type mockMemberRepository struct {
	mu      sync.Mutex
	members map[string]*models.Member

	// forceCreateErr makes Create fail without storing, after GetByID missed.
	forceCreateErr error
	creates        int
}

func newMockMemberRepository() *mockMemberRepository {
	return &mockMemberRepository{members: make(map[string]*models.Member)}
}

func (m *mockMemberRepository) Create(_ context.Context, member *models.Member) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creates++
	if m.forceCreateErr != nil {
		return m.forceCreateErr
	}
	if _, ok := m.members[member.ID]; ok {
		return repository.ErrMemberExists
	}
	c := *member
	m.members[member.ID] = &c
	return nil
}

func (m *mockMemberRepository) GetByID(_ context.Context, id string) (*models.Member, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	member, ok := m.members[id]
	if !ok {
		return nil, repository.ErrMemberNotFound
	}
	c := *member
	return &c, nil
}

func (m *mockMemberRepository) Upsert(_ context.Context, member *models.Member) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *member
	m.members[member.ID] = &c
	return nil
}

func (m *mockMemberRepository) List(_ context.Context) ([]models.Member, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Member, 0, len(m.members))
	for _, member := range m.members {
		out = append(out, *member)
	}
	return out, nil
}

func (m *mockMemberRepository) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.members)
}

// instrumentedStore counts calls and can fail selected operations.
type instrumentedStore struct {
	sessionstore.Store

	calls atomic.Int32

	checkErr    error // AuthenticateSession with an authorization check
	exchangeErr error
	revokeErr   error
	verdict     *sessionstore.Verdict // overrides the verdict of authorization checks
	exchange    *sessionstore.ExchangeResponse
}

func (s *instrumentedStore) AuthenticateSession(ctx context.Context, req sessionstore.AuthenticateRequest) (*sessionstore.AuthenticateResponse, error) {
	s.calls.Add(1)
	if req.AuthorizationCheck != nil {
		if s.checkErr != nil {
			return nil, s.checkErr
		}
		if s.verdict != nil {
			resp, err := s.Store.AuthenticateSession(ctx, sessionstore.AuthenticateRequest{SessionToken: req.SessionToken})
			if err != nil {
				return nil, err
			}
			resp.Verdict = s.verdict
			return resp, nil
		}
	}
	return s.Store.AuthenticateSession(ctx, req)
}

func (s *instrumentedStore) ExchangeSession(ctx context.Context, req sessionstore.ExchangeSessionRequest) (*sessionstore.ExchangeResponse, error) {
	s.calls.Add(1)
	if s.exchangeErr != nil {
		return nil, s.exchangeErr
	}
	if s.exchange != nil {
		return s.exchange, nil
	}
	return s.Store.ExchangeSession(ctx, req)
}

func (s *instrumentedStore) ExchangeIntermediateSession(ctx context.Context, req sessionstore.ExchangeIntermediateRequest) (*sessionstore.ExchangeResponse, error) {
	s.calls.Add(1)
	if s.exchangeErr != nil {
		return nil, s.exchangeErr
	}
	if s.exchange != nil {
		return s.exchange, nil
	}
	return s.Store.ExchangeIntermediateSession(ctx, req)
}

func (s *instrumentedStore) RevokeSessions(ctx context.Context, req sessionstore.RevokeRequest) error {
	s.calls.Add(1)
	if s.revokeErr != nil {
		return s.revokeErr
	}
	return s.Store.RevokeSessions(ctx, req)
}

type testEnv struct {
	mem     *memstore.Store
	store   *instrumentedStore
	members *mockMemberRepository
	authn   *Authenticator
	gate    *Gate
	proto   *Protocols

	orgA, orgB, orgSSO *sessionstore.Organization
	ada, adaB, admin   *sessionstore.Member
}

const testAppURL = "http://localhost:3000"

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	mem, err := memstore.New()
	require.NoError(t, err)

	orgA := mem.CreateOrganization(sessionstore.Organization{OrganizationName: "Org A"})
	orgB := mem.CreateOrganization(sessionstore.Organization{OrganizationName: "Org B"})
	orgSSO := mem.CreateOrganization(sessionstore.Organization{
		OrganizationName:   "SSO Only",
		AuthMethods:        sessionstore.Restricted,
		AllowedAuthMethods: []string{sessionstore.AuthMethodSSO},
	})

	ada, err := mem.CreateMember(orgA.OrganizationID, "ada@example.com", "Ada")
	require.NoError(t, err)
	adaB, err := mem.CreateMember(orgB.OrganizationID, "ada@example.com", "Ada in B")
	require.NoError(t, err)
	_, err = mem.CreateMember(orgSSO.OrganizationID, "ada@example.com", "Ada in SSO")
	require.NoError(t, err)
	admin, err := mem.CreateMember(orgA.OrganizationID, "admin@example.com", "Admin", sessionstore.RoleAdmin)
	require.NoError(t, err)

	store := &instrumentedStore{Store: mem}
	members := newMockMemberRepository()
	authn := NewAuthenticator(sessionstore.StaticProvider(store), zaptest.NewLogger(t), telemetry.NoopGatewayMetrics())
	proto, err := NewProtocols(authn, members, DefaultOptions(testAppURL))
	require.NoError(t, err)

	return &testEnv{
		mem: mem, store: store, members: members,
		authn: authn, gate: NewGate(authn), proto: proto,
		orgA: orgA, orgB: orgB, orgSSO: orgSSO,
		ada: ada, adaB: adaB, admin: admin,
	}
}

func (e *testEnv) session(t *testing.T, member *sessionstore.Member) string {
	t.Helper()
	token, err := e.mem.StartSession(member.MemberID, sessionstore.AuthMethodMagicLink)
	require.NoError(t, err)
	return token
}
