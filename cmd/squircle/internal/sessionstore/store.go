// Package sessionstore is the gateway's view of the remote session service:
// the Store contract, its wire types, an HTTP implementation and the
// process-wide client handle.
package sessionstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Store issues, verifies and revokes session credentials and answers
// authorization checks. Calls that act on behalf of a member take that
// member's session token so the store can enforce its own RBAC.
type Store interface {
	AuthenticateSession(ctx context.Context, req AuthenticateRequest) (*AuthenticateResponse, error)
	ExchangeSession(ctx context.Context, req ExchangeSessionRequest) (*ExchangeResponse, error)
	ExchangeIntermediateSession(ctx context.Context, req ExchangeIntermediateRequest) (*ExchangeResponse, error)
	RevokeSessions(ctx context.Context, req RevokeRequest) error

	GetOrganization(ctx context.Context, organizationID string) (*Organization, error)
	UpdateOrganization(ctx context.Context, sessionToken string, update OrganizationUpdate) (*Organization, error)
	SearchMembers(ctx context.Context, sessionToken string, organizationIDs []string) (*MemberSearchResponse, error)
	UpdateMember(ctx context.Context, sessionToken string, update MemberUpdate) (*Member, error)
}

// Error types returned by the store.
const (
	ErrorTypeSessionNotFound         = "session_not_found"
	ErrorTypeUnauthorizedCredentials = "unauthorized_credentials"
	ErrorTypeUnauthorizedAction      = "unauthorized_action"
	ErrorTypeUnauthorizedAuthMethod  = "unauthorized_auth_method"
	ErrorTypeNotFound                = "not_found"
	ErrorTypeBadRequest              = "bad_request"
	ErrorTypeIntermediateNotFound    = "intermediate_session_not_found"
)

// APIError is a non-2xx answer from the store. Body holds the response
// payload exactly as received so callers can pass it through.
type APIError struct {
	StatusCode   int             `json:"status_code"`
	RequestID    string          `json:"request_id"`
	ErrorType    string          `json:"error_type"`
	ErrorMessage string          `json:"error_message"`
	ErrorURL     string          `json:"error_url,omitempty"`
	Body         json.RawMessage `json:"-"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("session store: %d %s: %s", e.StatusCode, e.ErrorType, e.ErrorMessage)
}

// Payload returns the raw body, or a re-encoding of the error when the store
// sent none.
func (e *APIError) Payload() json.RawMessage {
	if len(e.Body) > 0 {
		return e.Body
	}
	b, err := json.Marshal(e)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return b
}

// NewAPIError builds an APIError with an encoded body.
func NewAPIError(status int, errorType, message string) *APIError {
	e := &APIError{StatusCode: status, ErrorType: errorType, ErrorMessage: message}
	e.Body = e.Payload()
	return e
}

// AsAPIError unwraps err to an *APIError.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
