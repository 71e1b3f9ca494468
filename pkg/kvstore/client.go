// Package kvstore is an HTTP client for a remote JSON document store holding
// deals. It satisfies store.Store so the rest of dealdock can run against a
// shared remote database instead of a local one.
package kvstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/dealdock/internal/model"
	"github.com/sells-group/dealdock/internal/resilience"
	"github.com/sells-group/dealdock/internal/store"
)

// Option configures the client.
type Option func(*Client)

// WithToken sets the bearer token sent with every request.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithRetry replaces the default retry policy.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *Client) {
		c.retry = cfg
	}
}

// WithRateLimit caps outgoing requests per second. Zero or negative disables
// limiting.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		} else {
			c.limiter = nil
		}
	}
}

// Client talks to the remote deal store.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	retry   resilience.RetryConfig
	limiter *rate.Limiter
	now     func() time.Time
}

var _ store.Store = (*Client)(nil)

// NewClient creates a client for the store at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout: 15 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		retry:   resilience.DefaultRetryConfig(),
		limiter: rate.NewLimiter(10, 10),
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.retry.OnRetry == nil {
		c.retry.OnRetry = resilience.RetryLogger("kvstore", "request")
	}
	return c
}

func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

// statusError is a non-2xx response.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.code, e.body)
}

// do sends one logical request, retrying transient failures. out may be nil.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var payload []byte
	if in != nil {
		var err error
		payload, err = json.Marshal(in)
		if err != nil {
			return eris.Wrap(err, "marshal request")
		}
	}

	body, err := resilience.DoVal(ctx, c.retry, func(ctx context.Context) ([]byte, error) {
		return c.send(ctx, method, path, payload)
	})
	if err != nil {
		var se *statusError
		if errors.As(err, &se) && se.code == http.StatusNotFound {
			return store.ErrNotFound
		}
		return err
	}

	if out == nil || len(body) == 0 {
		return nil
	}
	return eris.Wrap(json.Unmarshal(body, out), "decode response")
}

func (c *Client) send(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	if err := c.wait(ctx); err != nil {
		return nil, eris.Wrap(err, "rate limit wait")
	}

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, eris.Wrap(err, "create request")
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "read response body"), resp.StatusCode)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		se := &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(data))}
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(se, resp.StatusCode)
		}
		return nil, se
	}
	return data, nil
}

func dealPath(id string) string {
	return "/deals/" + url.PathEscape(id)
}

func (c *Client) List(ctx context.Context) ([]model.Deal, error) {
	deals := []model.Deal{}
	if err := c.do(ctx, http.MethodGet, "/deals", nil, &deals); err != nil {
		return nil, eris.Wrap(err, "kvstore: list deals")
	}
	return deals, nil
}

func (c *Client) Get(ctx context.Context, id string) (*model.Deal, error) {
	var d model.Deal
	if err := c.do(ctx, http.MethodGet, dealPath(id), nil, &d); err != nil {
		return nil, eris.Wrapf(err, "kvstore: get deal %s", id)
	}
	return &d, nil
}

// Create stamps identity and initial phase locally so the remote side can
// stay a plain document store.
func (c *Client) Create(ctx context.Context, deal model.Deal) (*model.Deal, error) {
	d := store.PrepareNew(deal, c.now())
	var out model.Deal
	if err := c.do(ctx, http.MethodPost, "/deals", d, &out); err != nil {
		return nil, eris.Wrapf(err, "kvstore: create deal %s", d.ID)
	}
	if out.ID == "" {
		return &d, nil
	}
	return &out, nil
}

func (c *Client) Update(ctx context.Context, id string, patch model.DealPatch) (*model.Deal, error) {
	var out model.Deal
	if err := c.do(ctx, http.MethodPatch, dealPath(id), patch, &out); err != nil {
		return nil, eris.Wrapf(err, "kvstore: update deal %s", id)
	}
	return &out, nil
}

func (c *Client) Delete(ctx context.Context, id string) error {
	return eris.Wrapf(c.do(ctx, http.MethodDelete, dealPath(id), nil, nil), "kvstore: delete deal %s", id)
}

// Migrate is a no-op; the remote store owns its schema.
func (c *Client) Migrate(context.Context) error { return nil }

func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}
