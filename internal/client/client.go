// Package client is the normalising HTTP client for the dealer API. It is
// the one place that knows about response envelopes: every list call
// returns a flat []domain.Record regardless of how the server wrapped it.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/johnwards/dealerhub/internal/domain"
)

// APIError is a failure reported by the server: a non-2xx status or a
// success:false envelope.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return e.Message
}

// TransportError is a failure to get any response at all.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// File is a downloaded attachment.
type File struct {
	Filename    string
	ContentType string
	Body        []byte
}

// Client talks to one dealer API deployment.
type Client struct {
	baseURL string
	http    *http.Client
	token   string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithToken sends the token as a bearer credential on every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// New creates a Client for the API rooted at baseURL, e.g.
// "http://127.0.0.1:8080".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type userKey struct{}

// WithUser returns a context whose requests are attributed to userID.
func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userKey{}, userID)
}

// List fetches a collection. query may be nil.
func (c *Client) List(ctx context.Context, collection string, query url.Values) ([]domain.Record, error) {
	body, _, err := c.do(ctx, http.MethodGet, c.collectionURL(collection, "", query), nil)
	if err != nil {
		return nil, err
	}
	return unwrapList(body)
}

// Get fetches one record.
func (c *Client) Get(ctx context.Context, collection, id string) (domain.Record, error) {
	body, _, err := c.do(ctx, http.MethodGet, c.collectionURL(collection, id, nil), nil)
	if err != nil {
		return nil, err
	}
	return unwrapRecord(body)
}

// Create posts a new record.
func (c *Client) Create(ctx context.Context, collection string, fields map[string]any) (domain.Record, error) {
	body, _, err := c.do(ctx, http.MethodPost, c.collectionURL(collection, "", nil), fields)
	if err != nil {
		return nil, err
	}
	return unwrapRecord(body)
}

// Update sends fields with method PATCH (merge) or PUT (replace).
func (c *Client) Update(ctx context.Context, collection, id, method string, fields map[string]any) (domain.Record, error) {
	if method == "" {
		method = http.MethodPatch
	}
	body, _, err := c.do(ctx, method, c.collectionURL(collection, id, nil), fields)
	if err != nil {
		return nil, err
	}
	return unwrapRecord(body)
}

// Delete removes a record.
func (c *Client) Delete(ctx context.Context, collection, id string) error {
	_, _, err := c.do(ctx, http.MethodDelete, c.collectionURL(collection, id, nil), nil)
	return err
}

// Download fetches a binary resource below /api, taking the suggested
// filename from Content-Disposition.
func (c *Client) Download(ctx context.Context, path string, query url.Values) (*File, error) {
	u := c.baseURL + "/api/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	body, header, err := c.do(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	f := &File{ContentType: header.Get("Content-Type"), Body: body}
	if cd := header.Get("Content-Disposition"); cd != "" {
		if _, params, err := mime.ParseMediaType(cd); err == nil {
			f.Filename = params["filename"]
		}
	}
	return f, nil
}

func (c *Client) collectionURL(collection, id string, query url.Values) string {
	u := c.baseURL + "/api/" + url.PathEscape(collection)
	if id != "" {
		u += "/" + url.PathEscape(id)
	}
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

func (c *Client) do(ctx context.Context, method, u string, payload any) ([]byte, http.Header, error) {
	var reqBody io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, nil, fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return nil, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if user, ok := ctx.Value(userKey{}).(string); ok && user != "" {
		req.Header.Set("X-User-Id", user)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, &TransportError{Op: method + " " + req.URL.Path, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, &TransportError{Op: "read " + req.URL.Path, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := serverMessage(body)
		if msg == "" {
			msg = fmt.Sprintf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
		}
		return nil, nil, &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	if failed, msg := envelopeFailure(body); failed {
		if msg == "" {
			msg = "Request failed"
		}
		return nil, nil, &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	return body, resp.Header, nil
}
