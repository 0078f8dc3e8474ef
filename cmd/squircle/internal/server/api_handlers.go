package server

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/terraconstructs/squircle/cmd/squircle/internal/auth"
	"github.com/terraconstructs/squircle/cmd/squircle/internal/db/models"
	"github.com/terraconstructs/squircle/cmd/squircle/internal/gateway"
	gatewaymw "github.com/terraconstructs/squircle/cmd/squircle/internal/middleware"
	"github.com/terraconstructs/squircle/cmd/squircle/internal/repository"
	"github.com/terraconstructs/squircle/cmd/squircle/internal/sessionstore"
)

// APIHandlers serves the /api routes of the ideas board.
type APIHandlers struct {
	stores    *sessionstore.Provider
	authn     *gateway.Authenticator
	gate      *gateway.Gate
	protocols *gateway.Protocols
	members   repository.MemberRepository
	ideas     repository.IdeaRepository
	logger    *zap.Logger

	teamSettingsURL string
	accountURL      string
}

// APIDependencies groups what the /api routes need.
type APIDependencies struct {
	Stores        *sessionstore.Provider
	Authenticator *gateway.Authenticator
	Gate          *gateway.Gate
	Protocols     *gateway.Protocols
	Members       repository.MemberRepository
	Ideas         repository.IdeaRepository
	Logger        *zap.Logger

	// AppURL and DashboardPath locate the pages form posts redirect back to.
	AppURL        string
	DashboardPath string
}

// NewAPIHandlers creates the /api handler set.
func NewAPIHandlers(deps APIDependencies) (*APIHandlers, error) {
	base, err := url.Parse(deps.AppURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, errors.New("app URL must be absolute")
	}
	dashboard := strings.TrimRight(deps.DashboardPath, "/")
	if dashboard == "" {
		dashboard = "/dashboard"
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &APIHandlers{
		stores:          deps.Stores,
		authn:           deps.Authenticator,
		gate:            deps.Gate,
		protocols:       deps.Protocols,
		members:         deps.Members,
		ideas:           deps.Ideas,
		logger:          logger,
		teamSettingsURL: base.ResolveReference(&url.URL{Path: dashboard + "/team-settings"}).String(),
		accountURL:      base.ResolveReference(&url.URL{Path: dashboard + "/account"}).String(),
	}, nil
}

// Mount registers the handlers under r.
func (h *APIHandlers) Mount(r chi.Router) {
	r.Post("/add-member", h.AddMember)

	r.With(gatewaymw.AuthenticateAndAuthorize(h.gate, auth.ResourceIdea, auth.ActionRead)).Get("/ideas", h.ListIdeas)
	r.With(gatewaymw.AuthenticateAndAuthorize(h.gate, auth.ResourceIdea, auth.ActionCreate)).Post("/idea", h.CreateIdea)
	r.With(gatewaymw.AuthenticateAndAuthorize(h.gate, auth.ResourceIdea, auth.ActionDelete)).Delete("/idea", h.DeleteIdea)

	r.Group(func(r chi.Router) {
		r.Use(gatewaymw.Authenticate(h.authn))
		r.Get("/team", h.Team)
		r.Get("/team-settings", h.GetTeamSettings)
		r.Get("/account", h.GetAccount)
		r.Post("/account", h.UpdateAccount)
	})
	r.With(gatewaymw.AuthenticateAndAuthorize(h.gate, auth.ResourceOrganization, auth.ActionAny)).Post("/team-settings", h.UpdateTeamSettings)
}

// AddMember handles POST /api/add-member: mirror a member locally if absent.
func (h *APIHandlers) AddMember(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form body")
		return
	}
	memberID := strings.TrimSpace(r.Form.Get("member_id"))
	if memberID == "" {
		writeError(w, http.StatusBadRequest, ErrMemberIDRequired.Error())
		return
	}
	if _, err := h.protocols.EnsureMember(r.Context(), memberID, r.Form.Get("name")); err != nil {
		h.logger.Error("failed to add member", zap.String("member_id", memberID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to add member")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

type ideaResponse struct {
	ID        string            `json:"id"`
	Text      string            `json:"text"`
	Status    models.IdeaStatus `json:"status"`
	Creator   string            `json:"creator"`
	CreatorID string            `json:"creator_id,omitempty"`
	Team      string            `json:"team,omitempty"`
}

func toIdeaResponse(idea *models.Idea) ideaResponse {
	resp := ideaResponse{
		ID:        idea.ID,
		Text:      idea.Text,
		Status:    idea.Status,
		CreatorID: idea.CreatorID,
		Team:      idea.TeamID,
	}
	if idea.Creator != nil {
		resp.Creator = idea.Creator.Name
	}
	return resp
}

// ListIdeas handles GET /api/ideas for the caller's organization.
func (h *APIHandlers) ListIdeas(w http.ResponseWriter, r *http.Request) {
	id, _ := gatewaymw.IdentityFromContext(r.Context())

	ideas, err := h.ideas.ListByTeam(r.Context(), id.Member.OrganizationID)
	if err != nil {
		h.logger.Error("failed to list ideas", zap.String("organization_id", id.Member.OrganizationID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list ideas")
		return
	}

	out := make([]ideaResponse, 0, len(ideas))
	for i := range ideas {
		out = append(out, toIdeaResponse(&ideas[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

// CreateIdea handles POST /api/idea. New ideas start pending.
func (h *APIHandlers) CreateIdea(w http.ResponseWriter, r *http.Request) {
	id, _ := gatewaymw.IdentityFromContext(r.Context())
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form body")
		return
	}
	text := strings.TrimSpace(r.Form.Get("text"))
	if text == "" {
		writeError(w, http.StatusBadRequest, ErrIdeaTextRequired.Error())
		return
	}

	// Ideas reference the mirror record; members who skipped discovery may not have one yet.
	if _, err := h.protocols.EnsureMember(r.Context(), id.Member.MemberID, id.Member.Name); err != nil {
		h.logger.Error("failed to mirror idea creator", zap.String("member_id", id.Member.MemberID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create idea")
		return
	}

	idea := &models.Idea{
		Text:      text,
		Status:    models.IdeaStatusPending,
		CreatorID: id.Member.MemberID,
		TeamID:    id.Member.OrganizationID,
	}
	if err := h.ideas.Create(r.Context(), idea); err != nil {
		h.logger.Error("failed to create idea", zap.String("member_id", id.Member.MemberID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create idea")
		return
	}

	resp := toIdeaResponse(idea)
	resp.Creator = id.Member.Name
	writeJSON(w, http.StatusOK, resp)
}

// DeleteIdea handles DELETE /api/idea. Only ideas of the caller's
// organization can be deleted.
func (h *APIHandlers) DeleteIdea(w http.ResponseWriter, r *http.Request) {
	id, _ := gatewaymw.IdentityFromContext(r.Context())
	if err := parseForm(r); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form body")
		return
	}
	ideaID := strings.TrimSpace(r.Form.Get("ideaId"))
	if ideaID == "" {
		writeError(w, http.StatusBadRequest, ErrIdeaIDRequired.Error())
		return
	}

	err := h.ideas.Delete(r.Context(), id.Member.OrganizationID, ideaID)
	switch {
	case errors.Is(err, repository.ErrIdeaNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case err != nil:
		h.logger.Error("failed to delete idea", zap.String("idea_id", ideaID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to delete idea")
	default:
		writeJSON(w, http.StatusOK, map[string]string{"id": ideaID})
	}
}

type teamMember struct {
	ID     string              `json:"id"`
	Name   string              `json:"name"`
	Email  string              `json:"email"`
	Status string              `json:"status"`
	Roles  []sessionstore.Role `json:"roles"`
}

type teamResponse struct {
	Members []teamMember `json:"members"`
	Meta    struct {
		InvitesAllowed bool `json:"invites_allowed"`
	} `json:"meta"`
}

// Team handles GET /api/team. The caller's session is forwarded so the
// session store enforces its own member search permission.
func (h *APIHandlers) Team(w http.ResponseWriter, r *http.Request) {
	id, _ := gatewaymw.IdentityFromContext(r.Context())

	store, err := h.stores.Get()
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	resp, err := store.SearchMembers(r.Context(), id.Credential, []string{id.Member.OrganizationID})
	if err != nil {
		h.writeStoreError(w, err)
		return
	}

	var out teamResponse
	out.Members = make([]teamMember, 0, len(resp.Members))
	for _, m := range resp.Members {
		out.Members = append(out.Members, teamMember{
			ID:     m.MemberID,
			Name:   m.Name,
			Email:  m.EmailAddress,
			Status: m.Status,
			Roles:  m.Roles,
		})
	}
	if org, ok := resp.Organizations[id.Member.OrganizationID]; ok {
		out.Meta.InvitesAllowed = org.EmailInvites == sessionstore.AllAllowed
	}
	writeJSON(w, http.StatusOK, out)
}

// GetTeamSettings handles GET /api/team-settings.
func (h *APIHandlers) GetTeamSettings(w http.ResponseWriter, r *http.Request) {
	id, _ := gatewaymw.IdentityFromContext(r.Context())

	store, err := h.stores.Get()
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	org, err := store.GetOrganization(r.Context(), id.Member.OrganizationID)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, org)
}

// UpdateTeamSettings handles POST /api/team-settings and redirects back to
// the settings page.
func (h *APIHandlers) UpdateTeamSettings(w http.ResponseWriter, r *http.Request) {
	id, _ := gatewaymw.IdentityFromContext(r.Context())
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form body")
		return
	}

	update := organizationUpdateFromForm(id.Member.OrganizationID, r.Form)

	store, err := h.stores.Get()
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	if _, err := store.UpdateOrganization(r.Context(), id.Credential, update); err != nil {
		h.writeStoreError(w, err)
		return
	}
	h.logger.Info("organization settings updated",
		zap.String("organization_id", id.Member.OrganizationID),
		zap.String("member_id", id.Member.MemberID),
		zap.String("auth_methods", update.AuthMethods),
	)
	http.Redirect(w, r, h.teamSettingsURL, http.StatusFound)
}

// organizationUpdateFromForm maps the settings form onto the organization's
// authentication policy.
func organizationUpdateFromForm(orgID string, form url.Values) sessionstore.OrganizationUpdate {
	allowed := make([]string, 0, len(form["allowed_auth_methods"]))
	for _, m := range form["allowed_auth_methods"] {
		if m = strings.TrimSpace(m); m != "" {
			allowed = append(allowed, m)
		}
	}

	update := sessionstore.OrganizationUpdate{
		OrganizationID:       orgID,
		AllowedAuthMethods:   allowed,
		AuthMethods:          sessionstore.Restricted,
		EmailInvites:         sessionstore.NotAllowed,
		EmailJITProvisioning: sessionstore.NotAllowed,
	}
	if containsAll(allowed, sessionstore.AllAuthMethods) {
		update.AuthMethods = sessionstore.AllAllowed
	}
	if formBool(form, "email_invites") {
		update.EmailInvites = sessionstore.AllAllowed
	}

	domains := form.Get("email_allowed_domains")
	if domains != "" {
		for _, d := range strings.Split(domains, ",") {
			update.EmailAllowedDomains = append(update.EmailAllowedDomains, strings.TrimSpace(d))
		}
		if formBool(form, "email_jit_provisioning") {
			update.EmailJITProvisioning = sessionstore.Restricted
		}
	}
	return update
}

func containsAll(have, want []string) bool {
	set := make(map[string]struct{}, len(have))
	for _, h := range have {
		set[h] = struct{}{}
	}
	for _, w := range want {
		if _, ok := set[w]; !ok {
			return false
		}
	}
	return true
}

// GetAccount handles GET /api/account.
func (h *APIHandlers) GetAccount(w http.ResponseWriter, r *http.Request) {
	id, _ := gatewaymw.IdentityFromContext(r.Context())
	writeJSON(w, http.StatusOK, id.Member)
}

// UpdateAccount handles POST /api/account: rename the caller at the session
// store, then in the local mirror.
func (h *APIHandlers) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	id, _ := gatewaymw.IdentityFromContext(r.Context())
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form body")
		return
	}
	name := strings.TrimSpace(r.Form.Get("name"))
	if name == "" {
		writeError(w, http.StatusBadRequest, ErrNameRequired.Error())
		return
	}

	store, err := h.stores.Get()
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	if _, err := store.UpdateMember(r.Context(), id.Credential, sessionstore.MemberUpdate{
		OrganizationID: id.Member.OrganizationID,
		MemberID:       id.Member.MemberID,
		Name:           name,
	}); err != nil {
		h.writeStoreError(w, err)
		return
	}

	if err := h.members.Upsert(r.Context(), &models.Member{ID: id.Member.MemberID, Name: name}); err != nil {
		h.logger.Error("failed to update mirrored member name", zap.String("member_id", id.Member.MemberID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to update account")
		return
	}
	http.Redirect(w, r, h.accountURL, http.StatusFound)
}

// writeStoreError passes session store rejections through with their status
// and payload. Unreachable stores answer 503.
func (h *APIHandlers) writeStoreError(w http.ResponseWriter, err error) {
	if apiErr, ok := sessionstore.AsAPIError(err); ok {
		writeJSON(w, apiErr.StatusCode, apiErr.Payload())
		return
	}
	h.logger.Error("session store call failed", zap.Error(err))
	writeError(w, http.StatusServiceUnavailable, "Session store unavailable")
}
