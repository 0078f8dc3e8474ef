// Package gateway verifies session credentials, gates requests on
// authorization verdicts and runs the session protocols (organization
// switch, intermediate exchange, logout). Protocols take a RequestContext and
// return an Outcome; they never touch an http.ResponseWriter.
package gateway

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/terraconstructs/squircle/cmd/squircle/internal/auth"
	"github.com/terraconstructs/squircle/cmd/squircle/internal/sessionstore"
)

// Identity is the (member, organization) pair a credential is bound to.
type Identity struct {
	Member       sessionstore.Member
	Organization sessionstore.Organization
	Credential   string
}

// Principal projects the identity onto the request-context principal.
func (i *Identity) Principal() auth.Principal {
	return auth.Principal{
		MemberID:         i.Member.MemberID,
		OrganizationID:   i.Member.OrganizationID,
		OrganizationName: i.Organization.OrganizationName,
		Name:             i.Member.Name,
		EmailAddress:     i.Member.EmailAddress,
		Roles:            i.Member.RoleIDs(),
	}
}

// Classify maps a session store error onto the gateway taxonomy. The result
// wraps both the category and the original error.
//
//	403                    -> auth.ErrUnauthorized
//	other 4xx              -> auth.ErrUnauthenticated
//	429, 5xx, transport    -> auth.ErrRemoteUnavailable
func Classify(err error) error {
	if err == nil {
		return nil
	}
	for _, known := range []error{auth.ErrUnauthenticated, auth.ErrUnauthorized, auth.ErrExchangeRejected, auth.ErrRemoteUnavailable} {
		if errors.Is(err, known) {
			return err
		}
	}
	if apiErr, ok := sessionstore.AsAPIError(err); ok {
		switch {
		case apiErr.StatusCode == http.StatusForbidden:
			return fmt.Errorf("%w: %w", auth.ErrUnauthorized, err)
		case apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500:
			return fmt.Errorf("%w: %w", auth.ErrRemoteUnavailable, err)
		case apiErr.StatusCode >= 400:
			return fmt.Errorf("%w: %w", auth.ErrUnauthenticated, err)
		}
	}
	// Timeouts, cancellation and anything unrecognised fail closed.
	return fmt.Errorf("%w: %w", auth.ErrRemoteUnavailable, err)
}
