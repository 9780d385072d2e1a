// Package wise is the outbound adapter for the Wise REST API: statements with
// 2FA challenge signing, profile and account listing, subscriptions, and the
// webhook signature check.
package wise

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/boddenberg/wise-recon-go/internal/domain"
	"github.com/boddenberg/wise-recon-go/internal/infra/observability"
	"github.com/boddenberg/wise-recon-go/internal/infra/resilience"
	"github.com/boddenberg/wise-recon-go/internal/port"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("wise")

const serviceName = "wise"

// API hosts per TRANSFERWISE_ENVIRONMENT.
const (
	SandboxBaseURL = "https://api.sandbox.transferwise.tech"
	LiveBaseURL    = "https://api.transferwise.com"
)

// BaseURL returns the API host for env.
func BaseURL(env string) (string, error) {
	switch env {
	case domain.EnvSandbox:
		return SandboxBaseURL, nil
	case domain.EnvLive:
		return LiveBaseURL, nil
	default:
		return "", &domain.ErrConfiguration{Message: fmt.Sprintf("unknown environment %q", env)}
	}
}

// Client talks to the Wise API with a bearer token.
// Calls go through a circuit breaker and a bulkhead and are never retried,
// apart from the single 2FA retry in FetchStatement.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	cb         *gobreaker.CircuitBreaker
	bulkhead   *resilience.Bulkhead
	signer     port.ChallengeSigner
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithChallengeSigner sets the key used to answer 2FA challenges.
// Without one, a challenged statement request fails.
func WithChallengeSigner(s port.ChallengeSigner) Option {
	return func(c *Client) { c.signer = s }
}

// WithBulkhead caps concurrent outbound calls.
func WithBulkhead(b *resilience.Bulkhead) Option {
	return func(c *Client) { c.bulkhead = b }
}

// NewClient creates a new Client for baseURL.
func NewClient(
	httpClient *http.Client,
	baseURL string,
	token string,
	cb *gobreaker.CircuitBreaker,
	metrics *observability.Metrics,
	logger *zap.Logger,
	opts ...Option,
) *Client {
	c := &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		token:      token,
		cb:         cb,
		bulkhead:   resilience.NewBulkhead(8),
		metrics:    metrics,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Me returns the owner of the API token.
func (c *Client) Me(ctx context.Context) (*domain.User, error) {
	var user domain.User
	if err := c.getJSON(ctx, "Me", "/v1/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// ListProfiles returns every profile visible to the token.
func (c *Client) ListProfiles(ctx context.Context) ([]domain.Profile, error) {
	var profiles []domain.Profile
	if err := c.getJSON(ctx, "ListProfiles", "/v1/profiles", nil, &profiles); err != nil {
		return nil, err
	}
	return profiles, nil
}

// ListBorderlessAccounts returns the multi-currency accounts of a profile.
func (c *Client) ListBorderlessAccounts(ctx context.Context, profileID int64) ([]domain.BorderlessAccount, error) {
	q := url.Values{}
	q.Set("profileId", fmt.Sprint(profileID))

	var accounts []domain.BorderlessAccount
	if err := c.getJSON(ctx, "ListBorderlessAccounts", "/v1/borderless-accounts", q, &accounts); err != nil {
		return nil, err
	}
	return accounts, nil
}

// ListSubscriptions returns the webhook subscriptions of a profile.
func (c *Client) ListSubscriptions(ctx context.Context, profileID int64) ([]domain.Subscription, error) {
	path := fmt.Sprintf("/v3/profiles/%d/subscriptions", profileID)

	var subs []domain.Subscription
	if err := c.getJSON(ctx, "ListSubscriptions", path, nil, &subs); err != nil {
		return nil, err
	}
	return subs, nil
}

// getJSON performs an authenticated GET and decodes a 200 response into out.
func (c *Client) getJSON(ctx context.Context, op, path string, query url.Values, out any) error {
	ctx, span := tracer.Start(ctx, "wise.Client."+op)
	defer span.End()
	span.SetAttributes(attribute.String("http.path", path))

	err := c.call(ctx, op, func() error {
		req, err := c.newRequest(ctx, path, query)
		if err != nil {
			return err
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return statusError(resp)
		}
		return json.NewDecoder(resp.Body).Decode(out)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// call runs fn inside the bulkhead and circuit breaker, mapping failures to
// domain errors and recording latency.
func (c *Client) call(ctx context.Context, op string, fn func() error) error {
	start := time.Now()
	defer func() {
		c.metrics.RecordRequestDuration("wise."+op, time.Since(start))
	}()

	err := c.bulkhead.Do(ctx, func() error {
		_, err := c.cb.Execute(func() (any, error) {
			return nil, fn()
		})
		return err
	})
	if err == nil {
		return nil
	}

	c.metrics.IncrExternalError(serviceName)
	c.logger.Warn("wise call failed", zap.String("operation", op), zap.Error(err))

	if resilience.IsOpen(err) {
		return &domain.ErrCircuitOpen{Service: serviceName}
	}
	return &domain.ErrExternalService{Service: serviceName, Err: err}
}

func (c *Client) newRequest(ctx context.Context, path string, query url.Values) (*http.Request, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// statusError reads a short excerpt of an unexpected response.
func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	if len(body) == 0 {
		return fmt.Errorf("wise API returned status %d", resp.StatusCode)
	}
	return fmt.Errorf("wise API returned status %d: %s", resp.StatusCode, body)
}
