// Package backend is the single entry point for calls to the backend API.
//
// Every failure leaving a Client is exactly one *apierr.APIError or one
// *apierr.GenericError; raw transport errors never cross this boundary.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/learnify/learnify-gateway/apierr"
	"github.com/learnify/learnify-gateway/metrics"
)

// TokenSupplier produces the bearer token attached to an outgoing request.
// It is invoked immediately before every request
type TokenSupplier func(ctx context.Context) (string, error)

// WrapPolicy decides whether a failed response with the given status
// is surfaced as an APIError (true) or demoted to a GenericError (false)
type WrapPolicy func(method string, status int) bool

// DefaultWrapPolicy wraps every failed GET, and every other failed call
// except those answered with a plain 500, whose bodies are not surfaced
func DefaultWrapPolicy(method string, status int) bool {
	if method == http.MethodGet {
		return true
	}
	return status != http.StatusInternalServerError
}

// WrapAllPolicy wraps every failed response as an APIError
func WrapAllPolicy(method string, status int) bool {
	return true
}

// Poster is the part of the Client used to submit data
type Poster interface {
	Post(ctx context.Context, path string, body interface{}, out interface{}, opts ...RequestOption) error
}

// Client issues JSON requests against the backend API
type Client struct {
	baseURL         *url.URL
	httpClient      *http.Client
	tokenSupplier   TokenSupplier
	wrapPolicy      WrapPolicy
	maxResponseSize datasize.ByteSize
	timeout         time.Duration
	logger          zerolog.Logger
}

const defaultTimeout = 10 * time.Second

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying transport.
// The client is copied, so later options never modify the caller's value
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithTimeout sets the transport timeout for every request
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithTokenSupplier attaches a bearer token to every request
func WithTokenSupplier(supplier TokenSupplier) Option {
	return func(c *Client) {
		c.tokenSupplier = supplier
	}
}

// WithWrapPolicy replaces DefaultWrapPolicy
func WithWrapPolicy(policy WrapPolicy) Option {
	return func(c *Client) {
		c.wrapPolicy = policy
	}
}

// WithMaxResponseSize caps the size of response bodies that are read
func WithMaxResponseSize(size datasize.ByteSize) Option {
	return func(c *Client) {
		c.maxResponseSize = size
	}
}

// WithLogger sets the logger used for request logs
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a new Client for the given absolute base URL
func New(baseURL *url.URL, opts ...Option) (*Client, error) {
	if baseURL == nil || !baseURL.IsAbs() {
		return nil, fmt.Errorf("backend base URL must be absolute")
	}

	c := &Client{
		baseURL:         baseURL,
		httpClient:      &http.Client{},
		wrapPolicy:      DefaultWrapPolicy,
		maxResponseSize: datasize.MB,
		logger:          zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	httpClient := *c.httpClient
	if c.timeout > 0 {
		httpClient.Timeout = c.timeout
	} else if httpClient.Timeout == 0 {
		httpClient.Timeout = defaultTimeout
	}
	c.httpClient = &httpClient

	return c, nil
}

// Authorized returns a copy of the client that uses the given token supplier
func (c *Client) Authorized(supplier TokenSupplier) *Client {
	clone := *c
	clone.tokenSupplier = supplier
	return &clone
}

// Get fetches path and decodes the response into out (if non-nil)
func (c *Client) Get(ctx context.Context, path string, out interface{}, opts ...RequestOption) error {
	return c.Do(ctx, http.MethodGet, path, nil, out, opts...)
}

// Post sends body to path and decodes the response into out (if non-nil)
func (c *Client) Post(ctx context.Context, path string, body interface{}, out interface{}, opts ...RequestOption) error {
	return c.Do(ctx, http.MethodPost, path, body, out, opts...)
}

// Put sends body to path and decodes the response into out (if non-nil)
func (c *Client) Put(ctx context.Context, path string, body interface{}, out interface{}, opts ...RequestOption) error {
	return c.Do(ctx, http.MethodPut, path, body, out, opts...)
}

// Patch sends body to path and decodes the response into out (if non-nil)
func (c *Client) Patch(ctx context.Context, path string, body interface{}, out interface{}, opts ...RequestOption) error {
	return c.Do(ctx, http.MethodPatch, path, body, out, opts...)
}

// Delete deletes path and decodes the response into out (if non-nil)
func (c *Client) Delete(ctx context.Context, path string, out interface{}, opts ...RequestOption) error {
	return c.Do(ctx, http.MethodDelete, path, nil, out, opts...)
}

// Do issues a single request. It is not retried
func (c *Client) Do(ctx context.Context, method string, path string, body interface{}, out interface{}, opts ...RequestOption) error {
	start := time.Now()
	status, err := c.do(ctx, method, path, body, out, opts)
	duration := time.Since(start)

	outcome := metrics.OutcomeOK
	var apiErr *apierr.APIError
	if errors.As(err, &apiErr) {
		outcome = metrics.OutcomeAPIError
	} else if err != nil {
		outcome = metrics.OutcomeGenericError
	}
	metrics.RecordBackendRequest(method, outcome, duration)

	event := c.logger.Debug()
	if err != nil {
		event = c.logger.Warn().Err(err)
	}
	event.Str("method", method).
		Str("path", path).
		Int("status", status).
		Dur("duration", duration).
		Str("outcome", outcome).
		Msg("backend request")

	return err
}

func (c *Client) do(ctx context.Context, method string, path string, body interface{}, out interface{}, opts []RequestOption) (int, error) {
	options := requestOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	target, err := c.resolve(path, options.query)
	if err != nil {
		return 0, apierr.NewGenericError(err)
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return 0, apierr.NewGenericError(errors.Wrap(err, "encoding request body"))
		}
		reader = bytes.NewReader(encoded)
	}

	if options.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, options.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return 0, apierr.NewGenericError(errors.Wrap(err, "creating request"))
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, values := range options.header {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}

	// Fail closed: a request that should carry a token is never sent without one
	if c.tokenSupplier != nil {
		token, err := c.tokenSupplier(ctx)
		if err != nil {
			return 0, apierr.NewGenericError(errors.Wrap(err, "obtaining bearer token"))
		}
		if token == "" {
			return 0, apierr.NewGenericError(errors.New("token supplier returned an empty token"))
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return 0, apierr.NewGenericError(err)
	}
	defer res.Body.Close()

	limit := int64(c.maxResponseSize.Bytes())
	data, err := io.ReadAll(io.LimitReader(res.Body, limit+1))
	if err != nil {
		return res.StatusCode, apierr.NewGenericError(errors.Wrap(err, "reading response body"))
	}
	if int64(len(data)) > limit {
		return res.StatusCode, apierr.NewGenericError(
			fmt.Errorf("response body exceeds %s", c.maxResponseSize.HumanReadable()))
	}

	if res.StatusCode >= http.StatusBadRequest {
		return res.StatusCode, c.failure(method, res.StatusCode, data)
	}

	if out != nil && len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return res.StatusCode, apierr.NewGenericError(errors.Wrap(err, "decoding response body"))
		}
	}

	return res.StatusCode, nil
}

// failure converts a failed response into the error taxonomy
func (c *Client) failure(method string, status int, body []byte) error {
	if !c.wrapPolicy(method, status) {
		return apierr.NewGenericError(fmt.Errorf("backend responded to %s with status %d", method, status))
	}

	message := ""
	if built, ok := apierr.ParseBuiltError(body); ok {
		message = built.Title
	}
	return apierr.NewAPIError(message, apierr.TypeError, status)
}

// resolve joins path onto the base URL, keeping the base path
func (c *Client) resolve(path string, query url.Values) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", errors.New("request path is required")
	}

	base := strings.TrimRight(c.baseURL.String(), "/")
	u, err := url.Parse(base + "/" + strings.TrimLeft(path, "/"))
	if err != nil {
		return "", errors.Wrap(err, "parsing request path")
	}
	// A dot segment would let the path climb above the base path
	if HasDotSegment(u.Path) {
		return "", errors.New("request path cannot contain dot segments")
	}

	if len(query) > 0 {
		q := u.Query()
		for key, values := range query {
			for _, value := range values {
				q.Add(key, value)
			}
		}
		u.RawQuery = q.Encode()
	}

	return u.String(), nil
}

// HasDotSegment reports whether a decoded path contains a "." or ".." segment
func HasDotSegment(p string) bool {
	for _, segment := range strings.Split(p, "/") {
		if segment == "." || segment == ".." {
			return true
		}
	}
	return false
}
