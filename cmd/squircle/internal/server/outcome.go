package server

import (
	"net/http"

	"github.com/terraconstructs/squircle/cmd/squircle/internal/auth"
	"github.com/terraconstructs/squircle/cmd/squircle/internal/gateway"
)

// writeOutcome applies a protocol outcome to the response: cookie mutations
// first, then either the redirect or the JSON body.
func writeOutcome(w http.ResponseWriter, r *http.Request, cookies auth.CookieOptions, out gateway.Outcome) {
	for _, m := range out.Cookies {
		if m.Clear {
			http.SetCookie(w, cookies.Expired(m.Name))
			continue
		}
		http.SetCookie(w, cookies.Cookie(m.Name, m.Value))
	}

	if out.IsRedirect() {
		status := out.RedirectStatus
		if status == 0 {
			status = http.StatusFound
		}
		http.Redirect(w, r, out.Redirect, status)
		return
	}

	status := out.Status
	if status == 0 {
		status = http.StatusOK
	}
	writeJSON(w, status, out.Body)
}
