package apiclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// ErrResponseTooLarge reports a response body over the read limit.
var ErrResponseTooLarge = errors.New("response too large")

// Transport performs one network exchange. It returns an error only when no
// status was obtained.
type Transport interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, req *Request) (*Response, error)

func (f TransportFunc) Do(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

// Request is a fully formed request ready for dispatch.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte
}

// clone returns a copy safe to decorate for another attempt.
func (r *Request) clone() *Request {
	dup := *r
	dup.Header = r.Header.Clone()
	return &dup
}

// Response is what the backend answered.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

const (
	defaultBaseURL = "http://localhost:8080"
	maxBodyBytes   = 4 << 20
)

// HTTPTransport sends requests to a fixed base URL with net/http.
type HTTPTransport struct {
	baseURL *url.URL
	http    *http.Client
}

// Ensure HTTPTransport implements Transport at compile time.
var _ Transport = (*HTTPTransport)(nil)

// NewHTTPTransport builds a transport for baseURL. A nil httpClient uses a
// client without its own timeout; the caller's context bounds each exchange.
func NewHTTPTransport(baseURL string, httpClient *http.Client) (*HTTPTransport, error) {
	base, err := parseBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &HTTPTransport{baseURL: base, http: httpClient}, nil
}

// BaseURL returns the normalized base URL.
func (t *HTTPTransport) BaseURL() string {
	return t.baseURL.String()
}

func (t *HTTPTransport) Do(ctx context.Context, r *Request) (*Response, error) {
	rel := &url.URL{Path: r.Path}
	if len(r.Query) > 0 {
		rel.RawQuery = r.Query.Encode()
	}
	reqURL := t.baseURL.ResolveReference(rel)

	var body io.Reader
	if r.Body != nil {
		body = bytes.NewReader(r.Body)
	}
	req, err := http.NewRequestWithContext(ctx, r.Method, reqURL.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for name, values := range r.Header {
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}

	resp, err := t.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if len(data) > maxBodyBytes {
		return nil, fmt.Errorf("read response: status %d: %w (limit %d bytes)", resp.StatusCode, ErrResponseTooLarge, maxBodyBytes)
	}
	return &Response{Status: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

func parseBaseURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		trimmed = defaultBaseURL
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse base url %q: %w", raw, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("parse base url %q: missing host", raw)
	}
	u.Path = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
