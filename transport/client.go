// Package transport is the HTTP gateway to the certificate API. Every call
// is a fresh request whose body is decoded as a Result envelope.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
)

// maxBodySize caps how much of a response body is read.
const maxBodySize = 8 << 20

// Client issues requests against a base URL.
type Client struct {
	base      string
	http      *http.Client
	timeout   time.Duration
	creds     CredentialSource
	logger    *slog.Logger
	userAgent string
}

// New builds a Client for baseURL, e.g. http://127.0.0.1:5000/api/v1.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBaseURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBaseURL, baseURL)
	}
	c := &Client{
		base:      strings.TrimRight(u.String(), "/"),
		http:      &http.Client{},
		timeout:   DefaultTimeout,
		logger:    slog.New(slog.NewJSONHandler(os.Stderr, nil)),
		userAgent: "certdash",
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "transport")
	return c, nil
}

// BaseURL returns the normalized base URL.
func (c *Client) BaseURL() string { return c.base }

// File is one file part of a multipart form.
type File struct {
	Field   string
	Name    string
	Content io.Reader
}

// Form is a multipart form body.
type Form struct {
	Fields map[string]string
	Files  []File
}

// Get issues GET resource and decodes the envelope value.
func Get[T any](ctx context.Context, c *Client, resource string) (T, error) {
	return do[T](ctx, c, http.MethodGet, resource, nil)
}

// Delete issues DELETE resource.
func Delete[T any](ctx context.Context, c *Client, resource string) (T, error) {
	return do[T](ctx, c, http.MethodDelete, resource, nil)
}

// Post issues POST resource with body encoded as JSON.
func Post[T any](ctx context.Context, c *Client, resource string, body any) (T, error) {
	return doJSON[T](ctx, c, http.MethodPost, resource, body)
}

// Put issues PUT resource with body encoded as JSON.
func Put[T any](ctx context.Context, c *Client, resource string, body any) (T, error) {
	return doJSON[T](ctx, c, http.MethodPut, resource, body)
}

// PostForm issues POST resource with a multipart form body.
func PostForm[T any](ctx context.Context, c *Client, resource string, form Form) (T, error) {
	return doForm[T](ctx, c, http.MethodPost, resource, form)
}

// PutForm issues PUT resource with a multipart form body.
func PutForm[T any](ctx context.Context, c *Client, resource string, form Form) (T, error) {
	return doForm[T](ctx, c, http.MethodPut, resource, form)
}

type payload struct {
	body        io.Reader
	contentType string
}

func doJSON[T any](ctx context.Context, c *Client, method, resource string, body any) (T, error) {
	data, err := json.Marshal(body)
	if err != nil {
		var zero T
		return zero, &TransportError{Method: method, Resource: resource, Err: fmt.Errorf("encoding body: %w", err)}
	}
	return do[T](ctx, c, method, resource, &payload{body: bytes.NewReader(data), contentType: "application/json"})
}

func doForm[T any](ctx context.Context, c *Client, method, resource string, form Form) (T, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	err := writeForm(mw, form)
	if err == nil {
		err = mw.Close()
	}
	if err != nil {
		var zero T
		return zero, &TransportError{Method: method, Resource: resource, Err: fmt.Errorf("encoding form: %w", err)}
	}
	return do[T](ctx, c, method, resource, &payload{body: &buf, contentType: mw.FormDataContentType()})
}

func writeForm(mw *multipart.Writer, form Form) error {
	for k, v := range form.Fields {
		if err := mw.WriteField(k, v); err != nil {
			return err
		}
	}
	for _, f := range form.Files {
		w, err := mw.CreateFormFile(f.Field, f.Name)
		if err != nil {
			return err
		}
		if _, err := io.Copy(w, f.Content); err != nil {
			return err
		}
	}
	return nil
}

func do[T any](ctx context.Context, c *Client, method, resource string, p *payload) (T, error) {
	var zero T
	fail := func(status int, msg string, err error) (T, error) {
		return zero, &TransportError{Method: method, Resource: resource, Status: status, Message: msg, Err: err}
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var body io.Reader
	if p != nil {
		body = p.body
	}
	req, err := http.NewRequestWithContext(ctx, method, c.resolve(resource), body)
	if err != nil {
		return fail(0, "", err)
	}
	reqID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", reqID)
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if p != nil {
		req.Header.Set("Content-Type", p.contentType)
	}
	if c.creds != nil {
		if token := c.creds.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("request failed", "method", method, "resource", resource, "request_id", reqID, "error", err)
		return fail(0, "", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	c.logger.Debug("request completed",
		"method", method,
		"resource", resource,
		"status", resp.StatusCode,
		"request_id", reqID,
		"duration", time.Since(start),
	)
	if err != nil {
		return fail(resp.StatusCode, "", fmt.Errorf("reading body: %w", err))
	}

	ok2xx := resp.StatusCode >= 200 && resp.StatusCode < 300
	var res Result[T]
	if len(bytes.TrimSpace(data)) == 0 {
		err = errors.New("empty body")
	} else {
		err = json.Unmarshal(data, &res)
	}
	switch {
	case err != nil && ok2xx:
		return fail(resp.StatusCode, "", fmt.Errorf("%w: %v", ErrMalformedEnvelope, err))
	case err != nil:
		return fail(resp.StatusCode, "", ErrStatus)
	case !res.Ok():
		return fail(resp.StatusCode, res.Message(), ErrRejected)
	case !ok2xx:
		return fail(resp.StatusCode, "", ErrStatus)
	}
	v, _ := res.Value()
	return v, nil
}

func (c *Client) resolve(resource string) string {
	return c.base + "/" + strings.TrimLeft(resource, "/")
}
