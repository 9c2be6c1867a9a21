// Package ebay is the thin REST client behind the proxy routes. One
// Client per {access token, environment} pair; the pipeline builds it
// after the freshness stage so the token is always current.
package ebay

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	apperrors "github.com/ebaygate/ebaygate/internal/errors"
	"github.com/ebaygate/ebaygate/internal/logging"
	"github.com/ebaygate/ebaygate/internal/metrics"
	"github.com/ebaygate/ebaygate/internal/models"
	"github.com/ebaygate/ebaygate/pkg/headers"
)

const (
	ProductionAPIBase = "https://api.ebay.com"
	SandboxAPIBase    = "https://api.sandbox.ebay.com"

	defaultTimeout   = 30 * time.Second
	defaultPageLimit = 25
)

// APIBaseFor returns the Sell API host for an environment.
func APIBaseFor(env models.Environment) string {
	if env == models.EnvironmentSandbox {
		return SandboxAPIBase
	}
	return ProductionAPIBase
}

type Client struct {
	rest      *resty.Client
	logger    *logging.Logger
	metrics   *metrics.Metrics
	accountID string
}

type Option func(*Client)

func WithLogger(l *logging.Logger) Option {
	return func(c *Client) { c.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithAccountID labels proxy metrics with the seller account.
func WithAccountID(id string) Option {
	return func(c *Client) { c.accountID = id }
}

// WithBaseURL overrides the environment-derived host, for tests.
func WithBaseURL(base string) Option {
	return func(c *Client) { c.rest.SetBaseURL(base) }
}

func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) { c.rest.SetTransport(rt) }
}

func NewClient(accessToken string, env models.Environment, opts ...Option) *Client {
	rest := resty.New().
		SetBaseURL(APIBaseFor(env)).
		SetAuthToken(accessToken).
		SetTimeout(defaultTimeout).
		SetTransport(NewTransport(utlsEnabled())).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	c := &Client{
		rest:   rest,
		logger: logging.NewLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// execute issues one API call and maps every non-2xx response into a
// typed APIError at this boundary. out, when non-nil, receives the
// decoded 2xx body.
func (c *Client) execute(ctx context.Context, method, path string, body, out interface{}) error {
	// Sell API error bodies sometimes arrive without a content type.
	req := c.rest.R().SetContext(ctx).ForceContentType("application/json")
	if body != nil {
		req.SetBody(body)
	}
	if out != nil {
		req.SetResult(out)
	}
	if method == http.MethodPut || method == http.MethodPost {
		req.SetHeader("Content-Language", "en-US")
	}

	start := time.Now()
	resp, err := req.Execute(method, path)
	elapsed := time.Since(start).Seconds()

	if err != nil {
		c.recordCall(method, "error", elapsed)
		return fmt.Errorf("ebay %s %s: %w", method, path, err)
	}

	c.recordCall(method, strconv.Itoa(resp.StatusCode()), elapsed)
	c.captureRateLimit(resp.Header())

	if resp.IsError() {
		return &apperrors.APIError{
			StatusCode: resp.StatusCode(),
			Kind:       apperrors.ClassifyStatus(resp.StatusCode()),
			Body:       resp.String(),
		}
	}
	return nil
}

func (c *Client) recordCall(method, status string, elapsed float64) {
	if c.metrics == nil {
		return
	}
	account := c.accountID
	if account == "" {
		account = "unknown"
	}
	c.metrics.RecordProxyCall(account, method, status)
	c.metrics.RecordProxyLatency(account, method, elapsed)
}

func (c *Client) captureRateLimit(h http.Header) {
	rl := headers.ParseRateLimit(h)
	if !rl.Reported() {
		return
	}
	if c.metrics != nil && c.accountID != "" && rl.Remaining >= 0 {
		c.metrics.SetRateLimitRemaining(c.accountID, float64(rl.Remaining))
	}
	if rl.Remaining == 0 {
		c.logger.Warn("ebay rate limit exhausted",
			"account_id", c.accountID, "reset", rl.Reset.Format(time.RFC3339))
	}
}

func pageLimit(limit int) int {
	if limit <= 0 {
		return defaultPageLimit
	}
	return limit
}
