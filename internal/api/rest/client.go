// Package rest is the HTTP client of the ProvaLab API. It prefixes the base
// URL, injects the bearer token, bounds every call with a deadline and turns
// every failure into a *model.APIError.
package rest

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

	"golang.org/x/sync/singleflight"

	"github.com/LorenzoCecattoPaim/Math/internal/logger"
	"github.com/LorenzoCecattoPaim/Math/internal/model"
)

// DefaultTimeout bounds ordinary calls.
const DefaultTimeout = 20 * time.Second

var errDeadline = errors.New("request deadline exceeded")

// Request describes one API call. At most one of JSON and Form is set.
type Request struct {
	Method   string
	Endpoint string
	Query    url.Values
	JSON     any
	Form     url.Values
	Header   http.Header
	// Timeout overrides the client default when non-zero.
	Timeout time.Duration
	// Fallback is the error message used when the server gives no detail.
	Fallback string
}

// Client executes API requests. It is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  model.TokenStore
	logger  *logger.Logger
	timeout time.Duration
	group   singleflight.Group
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the default per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying *http.Client. The client keeps a
// copy whose transport is wrapped with request logging; hc is not modified.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// NewClient creates a Client for the API rooted at baseURL.
func NewClient(baseURL string, tokens model.TokenStore, logger *logger.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
		tokens:  tokens,
		logger:  logger,
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}

	hc := *c.http
	next := hc.Transport
	if next == nil {
		next = http.DefaultTransport
	}
	hc.Transport = NewLoggingTransport(next, logger)
	c.http = &hc

	return c
}

// Do executes req and decodes a successful JSON response into out (which may
// be nil). Requests are attempted exactly once. Identical concurrent GETs
// made with the same credential share one network call.
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	if req.Timeout <= 0 {
		req.Timeout = c.timeout
	}

	var (
		data []byte
		err  error
	)
	if req.Method == http.MethodGet && req.JSON == nil && req.Form == nil {
		data, err = c.shared(ctx, req)
	} else {
		data, err = c.roundTrip(ctx, req)
	}
	if err != nil {
		return err
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return model.NewAPIError(model.ErrDecode, http.StatusOK, fmt.Sprintf("malformed response from %s: %v", req.Endpoint, err))
	}

	return nil
}

// shared runs a GET through the singleflight group. The network call is
// detached from every caller and bounded only by req.Timeout, which is part
// of the key; each caller still returns as soon as its own ctx is done.
func (c *Client) shared(ctx context.Context, req Request) ([]byte, error) {
	token, _ := c.tokens.AccessToken()
	key := req.Method + " " + c.url(req) + "\x00" + req.Timeout.String() + "\x00" + token

	ch := c.group.DoChan(key, func() (any, error) {
		return c.roundTrip(context.WithoutCancel(ctx), req)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			c.logger.Debug("HTTP client: shared in-flight request", "endpoint", req.Endpoint)
		}
		return res.Val.([]byte), nil
	case <-ctx.Done():
		return nil, fmt.Errorf("request to %s canceled: %w", req.Endpoint, ctx.Err())
	}
}

func (c *Client) url(req Request) string {
	u := c.baseURL + req.Endpoint
	if len(req.Query) > 0 {
		u += "?" + req.Query.Encode()
	}
	return u
}

func (c *Client) roundTrip(ctx context.Context, req Request) ([]byte, error) {
	body, contentType, err := encodeBody(req)
	if err != nil {
		return nil, err
	}

	tctx, cancel := context.WithTimeoutCause(ctx, req.Timeout, errDeadline)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(tctx, req.Method, c.url(req), body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	for key, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	if contentType != "" && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	if httpReq.Header.Get("Accept") == "" {
		httpReq.Header.Set("Accept", "application/json")
	}
	if token, ok := c.tokens.AccessToken(); ok {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, c.transportError(ctx, tctx, req, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.transportError(ctx, tctx, req, err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		if clearErr := c.tokens.Clear(); clearErr != nil {
			c.logger.Error("HTTP client: failed to clear rejected token", "error", clearErr.Error())
		}
		c.logger.Info("HTTP client: credential rejected, session cleared", "endpoint", req.Endpoint)
		return nil, model.NewAPIError(model.ErrUnauthorized, resp.StatusCode, messageFor(data, "session expired, please sign in again"))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		fallback := req.Fallback
		if fallback == "" {
			fallback = fmt.Sprintf("request failed: %s", http.StatusText(resp.StatusCode))
		}
		return nil, model.NewAPIError(kindForStatus(resp.StatusCode), resp.StatusCode, messageFor(data, fallback))
	}

	return data, nil
}

func (c *Client) transportError(parent, tctx context.Context, req Request, err error) error {
	if errors.Is(context.Cause(tctx), errDeadline) {
		c.logger.Warn("HTTP client: request timed out",
			"endpoint", req.Endpoint,
			"timeout", req.Timeout.String())
		return model.NewAPIError(model.ErrTimeout, 0, "communication timed out")
	}
	if parent.Err() != nil {
		return fmt.Errorf("request to %s canceled: %w", req.Endpoint, parent.Err())
	}
	return model.NewAPIError(model.ErrNetwork, 0, fmt.Sprintf("communication failed: %v", err))
}

func encodeBody(req Request) (io.Reader, string, error) {
	switch {
	case req.JSON != nil:
		data, err := json.Marshal(req.JSON)
		if err != nil {
			return nil, "", fmt.Errorf("failed to encode request body: %w", err)
		}
		return bytes.NewReader(data), "application/json", nil
	case req.Form != nil:
		return strings.NewReader(req.Form.Encode()), "application/x-www-form-urlencoded", nil
	}
	return nil, "", nil
}
