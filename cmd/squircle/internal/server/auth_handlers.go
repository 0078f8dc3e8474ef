package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/terraconstructs/squircle/cmd/squircle/internal/auth"
	"github.com/terraconstructs/squircle/cmd/squircle/internal/gateway"
)

// AuthHandlers exposes the session protocols over HTTP.
type AuthHandlers struct {
	protocols *gateway.Protocols
	cookies   auth.CookieOptions
}

// NewAuthHandlers creates the /auth handler set.
func NewAuthHandlers(protocols *gateway.Protocols, cookies auth.CookieOptions) *AuthHandlers {
	return &AuthHandlers{protocols: protocols, cookies: cookies}
}

// SwitchTeam handles POST /auth/switch-team.
func (h *AuthHandlers) SwitchTeam(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form body")
		return
	}
	out := h.protocols.SwitchOrganization(r.Context(), gateway.NewRequestContext(r))
	writeOutcome(w, r, h.cookies, out)
}

// DiscoveryExchange handles POST /auth/discovery/exchange.
func (h *AuthHandlers) DiscoveryExchange(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form body")
		return
	}
	out := h.protocols.ExchangeIntermediate(r.Context(), gateway.NewRequestContext(r))
	writeOutcome(w, r, h.cookies, out)
}

// Logout handles GET /auth/logout. The session cookie is cleared even when
// revocation at the session store fails.
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	out := h.protocols.Logout(r.Context(), gateway.NewRequestContext(r))
	writeOutcome(w, r, h.cookies, out)
}

// Mount registers the handlers under r.
func (h *AuthHandlers) Mount(r chi.Router) {
	r.Post("/switch-team", h.SwitchTeam)
	r.Post("/discovery/exchange", h.DiscoveryExchange)
	r.Get("/logout", h.Logout)
}
