package apiclient

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Header names set by the client.
const (
	HeaderAuthorization  = "Authorization"
	HeaderRequestID      = "X-Request-Id"
	HeaderIdempotencyKey = "Idempotency-Key"
)

// ErrInvalidDescriptor marks a descriptor the client refuses to send. It
// signals a programming error, not a backend failure.
var ErrInvalidDescriptor = errors.New("invalid request descriptor")

// Descriptor describes one logical backend call.
type Descriptor struct {
	Method string
	Path   string
	Query  url.Values
	// Body is JSON-encoded when non-nil.
	Body   any
	Header http.Header

	// IdempotencyKey declares the call a retry-sensitive mutation. The key is
	// sent verbatim on the first attempt and on the retry after a refresh.
	IdempotencyKey string

	// SkipRefresh makes a 401 terminal. Credential endpoints use it so that
	// a rejected password never consumes the stored refresh token.
	SkipRefresh bool
}

// Get returns a GET descriptor for path.
func Get(path string, query url.Values) Descriptor {
	return Descriptor{Method: http.MethodGet, Path: path, Query: query}
}

// Post returns a POST descriptor for path with a JSON body.
func Post(path string, body any) Descriptor {
	return Descriptor{Method: http.MethodPost, Path: path, Body: body}
}

// Put returns a PUT descriptor for path with a JSON body.
func Put(path string, body any) Descriptor {
	return Descriptor{Method: http.MethodPut, Path: path, Body: body}
}

// Delete returns a DELETE descriptor for path.
func Delete(path string, query url.Values) Descriptor {
	return Descriptor{Method: http.MethodDelete, Path: path, Query: query}
}

// WithQuery returns a copy of d with query set.
func (d Descriptor) WithQuery(query url.Values) Descriptor {
	d.Query = query
	return d
}

// WithIdempotencyKey returns a copy of d carrying key.
func (d Descriptor) WithIdempotencyKey(key string) Descriptor {
	d.IdempotencyKey = key
	return d
}

func (d Descriptor) validate() error {
	switch d.Method {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete:
	default:
		return fmt.Errorf("%w: unsupported method %q", ErrInvalidDescriptor, d.Method)
	}
	if !strings.HasPrefix(d.Path, "/") {
		return fmt.Errorf("%w: path %q must be absolute", ErrInvalidDescriptor, d.Path)
	}
	if strings.ContainsAny(d.Path, "?#") {
		return fmt.Errorf("%w: path %q must not carry a query or fragment", ErrInvalidDescriptor, d.Path)
	}
	if d.IdempotencyKey != "" && d.Method == http.MethodGet {
		return fmt.Errorf("%w: idempotency key on a GET request", ErrInvalidDescriptor)
	}
	return nil
}

// prepare validates d and renders it into a transport request without the
// per-attempt headers.
func (d Descriptor) prepare(userAgent string) (*Request, error) {
	if err := d.validate(); err != nil {
		return nil, err
	}
	req := &Request{
		Method: d.Method,
		Path:   d.Path,
		Query:  d.Query,
		Header: cloneHeader(d.Header),
	}
	// Per-attempt headers are owned by the client.
	req.Header.Del(HeaderAuthorization)
	req.Header.Del(HeaderRequestID)
	req.Header.Del(HeaderIdempotencyKey)
	req.Header.Set("Accept", "application/json")
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}
	if d.IdempotencyKey != "" {
		req.Header.Set(HeaderIdempotencyKey, d.IdempotencyKey)
	}
	if d.Body != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(d.Body); err != nil {
			return nil, fmt.Errorf("%w: encode body: %v", ErrInvalidDescriptor, err)
		}
		req.Body = buf.Bytes()
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func cloneHeader(h http.Header) http.Header {
	if h == nil {
		return make(http.Header)
	}
	return h.Clone()
}
