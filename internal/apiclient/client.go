package apiclient

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

	"github.com/rs/zerolog/log"

	"mathify/internal/metrics"
)

// TokenSource supplies the bearer credential for a session and forgets it
// when the backend rejects it.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	ClearToken(ctx context.Context) error
}

// Error is a non-2xx answer from the backend.
type Error struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: backend error %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// Message returns the backend's error text when it sent one.
func (e *Error) Message() string {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal([]byte(e.Body), &body) == nil {
		if body.Error != "" {
			return body.Error
		}
		if body.Message != "" {
			return body.Message
		}
	}
	return http.StatusText(e.StatusCode)
}

// AsError unwraps a backend error from err.
func AsError(err error) (*Error, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	if apiErr, ok := AsError(err); ok {
		return apiErr.StatusCode
	}
	return 0
}

// IsUnauthorized reports whether the backend answered 401.
func IsUnauthorized(err error) bool {
	return StatusCode(err) == http.StatusUnauthorized
}

// Client calls the Mathify backend.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// New creates a client with configurable timeout.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: timeout},
	}
}

// For binds the client to one session's credentials.
func (c *Client) For(tokens TokenSource) *Caller {
	return &Caller{client: c, tokens: tokens}
}

// Health checks if the backend answers at all.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/", nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("backend unavailable: %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("backend unhealthy: %s", resp.Status)
	}
	return nil
}

// Option adjusts a single request.
type Option func(*requestOptions)

type requestOptions struct {
	binary bool
	header http.Header
}

// Binary asks for the raw response body, e.g. a PDF invoice.
func Binary() Option {
	return func(o *requestOptions) { o.binary = true }
}

// WithHeader adds a request header.
func WithHeader(key, value string) Option {
	return func(o *requestOptions) {
		if o.header == nil {
			o.header = http.Header{}
		}
		o.header.Add(key, value)
	}
}

// Caller issues requests on behalf of one session.
type Caller struct {
	client *Client
	tokens TokenSource
}

// Request performs method against path joined to the base URL. body, when
// non-nil, is sent as JSON; query is appended as the query string. The
// response body is returned undecoded.
func (s *Caller) Request(ctx context.Context, method, path string, body any, query url.Values, opts ...Option) ([]byte, error) {
	var o requestOptions
	for _, opt := range opts {
		opt(&o)
	}
	method = strings.ToUpper(method)

	full := s.client.BaseURL
	if !strings.HasPrefix(path, "/") {
		full += "/"
	}
	full += path
	if len(query) > 0 {
		full += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode %s %s body: %w", method, path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, full, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if o.binary {
		req.Header.Set("Accept", "application/pdf, application/octet-stream")
	} else {
		req.Header.Set("Accept", "application/json")
	}
	for k, vals := range o.header {
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}
	if s.tokens != nil {
		token, err := s.tokens.Token(ctx)
		if err != nil {
			return nil, fmt.Errorf("read session token: %w", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := s.client.HTTP.Do(req)
	if err != nil {
		metrics.ObserveBackend(method, path, 0, time.Since(start))
		log.Error().Err(err).Str("method", method).Str("path", path).Msg("backend request failed")
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	metrics.ObserveBackend(method, path, resp.StatusCode, time.Since(start))

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: read body: %w", method, path, err)
	}

	if resp.StatusCode >= 300 {
		if resp.StatusCode == http.StatusUnauthorized && s.tokens != nil {
			if cerr := s.tokens.ClearToken(ctx); cerr != nil {
				log.Error().Err(cerr).Msg("clear session token after 401")
			}
			metrics.SessionEvent("token_invalidated")
		}
		apiErr := &Error{Method: method, Path: path, StatusCode: resp.StatusCode, Body: string(data)}
		log.Error().Str("method", method).Str("path", path).Int("status", resp.StatusCode).Str("body", truncate(apiErr.Body, 512)).Msg("backend error")
		return nil, apiErr
	}
	return data, nil
}

// do performs a JSON request and decodes the answer into out when out is non-nil.
func (s *Caller) do(ctx context.Context, method, path string, body any, query url.Values, out any) error {
	data, err := s.Request(ctx, method, path, body, query)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", method, path, err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
