package sessionstore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/terraconstructs/squircle/cmd/squircle/internal/auth"
	"github.com/terraconstructs/squircle/cmd/squircle/internal/logging"
	"github.com/terraconstructs/squircle/cmd/squircle/internal/telemetry"
)

// MemberSessionHeader carries the acting member's session for RBAC-enforced calls.
const MemberSessionHeader = "X-Stytch-Member-Session"

const maxResponseBytes = 1 << 20

// HTTPClientOptions configures NewHTTPClient.
type HTTPClientOptions struct {
	BaseURL    string
	ProjectID  string
	Secret     string
	Timeout    time.Duration // per call, retries included
	MaxRetries int

	// RetryWaitMin and RetryWaitMax bound the backoff between attempts.
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration

	Logger  *zap.Logger
	Metrics *telemetry.GatewayMetrics
}

// HTTPClient implements Store against the B2B REST API.
type HTTPClient struct {
	baseURL   string
	projectID string
	secret    string
	timeout   time.Duration
	client    *retryablehttp.Client
	logger    *zap.Logger
	metrics   *telemetry.GatewayMetrics
}

var _ Store = (*HTTPClient)(nil)

// NewHTTPClient validates opts and builds the client.
func NewHTTPClient(opts HTTPClientOptions) (*HTTPClient, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("session store base URL is required")
	}
	if _, err := url.Parse(opts.BaseURL); err != nil {
		return nil, fmt.Errorf("parse session store base URL: %w", err)
	}
	if opts.ProjectID == "" || opts.Secret == "" {
		return nil, fmt.Errorf("session store project id and secret are required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = opts.MaxRetries
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	if opts.RetryWaitMin > 0 {
		rc.RetryWaitMin = opts.RetryWaitMin
	}
	if opts.RetryWaitMax > 0 {
		rc.RetryWaitMax = opts.RetryWaitMax
	}
	rc.Logger = logging.RetryLogger{L: opts.Logger.Named("sessionstore.http")}
	// Hand the last response back instead of a "giving up" error so that a
	// final 5xx body still reaches the caller.
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &HTTPClient{
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		projectID: opts.ProjectID,
		secret:    opts.Secret,
		timeout:   opts.Timeout,
		client:    rc,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
	}, nil
}

func (c *HTTPClient) AuthenticateSession(ctx context.Context, req AuthenticateRequest) (*AuthenticateResponse, error) {
	var out AuthenticateResponse
	if err := c.do(ctx, "AuthenticateSession", http.MethodPost, "/v1/b2b/sessions/authenticate", "", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) ExchangeSession(ctx context.Context, req ExchangeSessionRequest) (*ExchangeResponse, error) {
	var out ExchangeResponse
	if err := c.do(ctx, "ExchangeSession", http.MethodPost, "/v1/b2b/sessions/exchange", "", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) ExchangeIntermediateSession(ctx context.Context, req ExchangeIntermediateRequest) (*ExchangeResponse, error) {
	var out ExchangeResponse
	if err := c.do(ctx, "ExchangeIntermediateSession", http.MethodPost, "/v1/b2b/discovery/intermediate_sessions/exchange", "", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) RevokeSessions(ctx context.Context, req RevokeRequest) error {
	return c.do(ctx, "RevokeSessions", http.MethodPost, "/v1/b2b/sessions/revoke", "", req, nil)
}

type organizationEnvelope struct {
	Organization Organization `json:"organization"`
}

func (c *HTTPClient) GetOrganization(ctx context.Context, organizationID string) (*Organization, error) {
	var out organizationEnvelope
	path := "/v1/b2b/organizations/" + url.PathEscape(organizationID)
	if err := c.do(ctx, "GetOrganization", http.MethodGet, path, "", nil, &out); err != nil {
		return nil, err
	}
	return &out.Organization, nil
}

func (c *HTTPClient) UpdateOrganization(ctx context.Context, sessionToken string, update OrganizationUpdate) (*Organization, error) {
	var out organizationEnvelope
	path := "/v1/b2b/organizations/" + url.PathEscape(update.OrganizationID)
	if err := c.do(ctx, "UpdateOrganization", http.MethodPut, path, sessionToken, update, &out); err != nil {
		return nil, err
	}
	return &out.Organization, nil
}

func (c *HTTPClient) SearchMembers(ctx context.Context, sessionToken string, organizationIDs []string) (*MemberSearchResponse, error) {
	var out MemberSearchResponse
	body := struct {
		OrganizationIDs []string `json:"organization_ids"`
	}{OrganizationIDs: organizationIDs}
	if err := c.do(ctx, "SearchMembers", http.MethodPost, "/v1/b2b/organizations/members/search", sessionToken, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) UpdateMember(ctx context.Context, sessionToken string, update MemberUpdate) (*Member, error) {
	var out struct {
		Member Member `json:"member"`
	}
	path := "/v1/b2b/organizations/" + url.PathEscape(update.OrganizationID) + "/members/" + url.PathEscape(update.MemberID)
	if err := c.do(ctx, "UpdateMember", http.MethodPut, path, sessionToken, update, &out); err != nil {
		return nil, err
	}
	return &out.Member, nil
}

// do performs one logical call (retries included) bounded by the client timeout.
// Non-2xx answers become *APIError; transport failures and timeouts wrap
// auth.ErrRemoteUnavailable.
func (c *HTTPClient) do(ctx context.Context, op, method, path, sessionToken string, in, out any) (err error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	ctx, span := telemetry.StartSpan(ctx, telemetry.TracerSessionStore, "sessionstore."+op,
		attribute.String("http.method", method),
	)
	start := time.Now()
	defer func() {
		telemetry.RecordError(span, err)
		span.End()
		c.metrics.RecordStoreCall(ctx, op, float64(time.Since(start).Microseconds())/1000, err)
	}()

	var rawBody interface{}
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", op, err)
		}
		rawBody = b
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.baseURL+path, rawBody)
	if err != nil {
		return fmt.Errorf("build %s request: %w", op, err)
	}
	req.SetBasicAuth(c.projectID, c.secret)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if sessionToken != "" {
		req.Header.Set(MemberSessionHeader, sessionToken)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", auth.ErrRemoteUnavailable, op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%w: %s: read response: %v", auth.ErrRemoteUnavailable, op, err)
	}
	span.SetAttributes(attribute.Int(telemetry.AttrStatusCode, resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{}
		if jsonErr := json.Unmarshal(body, apiErr); jsonErr != nil {
			apiErr.ErrorMessage = strings.TrimSpace(string(body))
		}
		apiErr.StatusCode = resp.StatusCode
		if json.Valid(body) {
			apiErr.Body = body
		}
		if apiErr.RequestID != "" {
			span.SetAttributes(attribute.String(telemetry.AttrRequestID, apiErr.RequestID))
		}
		c.logger.Debug("session store rejected call",
			zap.String("operation", op),
			zap.Int("status", apiErr.StatusCode),
			zap.String("error_type", apiErr.ErrorType),
			zap.String("request_id", apiErr.RequestID),
		)
		return apiErr
	}

	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %s: decode response: %v", auth.ErrRemoteUnavailable, op, err)
	}
	return nil
}
