package apiclient

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/apptremind/remindctl/internal/credentials"
)

// IDSource mints request identifiers. *requestid.Generator implements it.
type IDSource interface {
	NewRequestID() string
}

const (
	// DefaultRefreshPath is the backend's refresh endpoint.
	DefaultRefreshPath = "/api/v1/auth/refresh"

	defaultTimeout        = 10 * time.Second
	defaultRefreshTimeout = 10 * time.Second
	defaultUserAgent      = "remindctl/0.1"
)

var errEmptyResponse = errors.New("transport returned no response")

// Client sends descriptors with bearer credentials and recovers from an
// expired access token with one coalesced refresh and one redispatch.
type Client struct {
	transport Transport
	creds     credentials.Store
	ids       IDSource
	log       zerolog.Logger

	refreshPath    string
	timeout        time.Duration
	refreshTimeout time.Duration
	userAgent      string

	// flight coalesces refresh exchanges for this client instance.
	flight singleflight.Group
}

// Option customizes a Client.
type Option func(*Client)

// WithLogger sets the logger. The default discards output.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// WithTimeout bounds each dispatch.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRefreshTimeout bounds the refresh exchange.
func WithRefreshTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.refreshTimeout = d
		}
	}
}

// WithRefreshPath overrides the refresh endpoint.
func WithRefreshPath(path string) Option {
	return func(c *Client) {
		if path != "" {
			c.refreshPath = path
		}
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// New builds a Client from its collaborators.
func New(transport Transport, creds credentials.Store, ids IDSource, opts ...Option) *Client {
	c := &Client{
		transport:      transport,
		creds:          creds,
		ids:            ids,
		log:            zerolog.Nop(),
		refreshPath:    DefaultRefreshPath,
		timeout:        defaultTimeout,
		refreshTimeout: defaultRefreshTimeout,
		userAgent:      defaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Send dispatches d and resolves it to an Outcome. The error is non-nil only
// when d itself is malformed; every backend or network failure is reported
// through the Outcome.
//
// States: dispatch → (401 → refresh → redispatch once) → outcome.
func (c *Client) Send(ctx context.Context, d Descriptor) (Outcome, error) {
	base, err := d.prepare(c.userAgent)
	if err != nil {
		return Outcome{}, err
	}
	log := c.log.With().Str("method", d.Method).Str("path", d.Path).Logger()

	pair, _ := c.creds.Get(ctx)
	resp, reqID, err := c.dispatch(ctx, base, pair.AccessToken)
	if err != nil {
		return c.finish(log, transportOutcome(err, reqID, 1)), nil
	}
	if resp.Status != http.StatusUnauthorized {
		return c.finish(log, responseOutcome(classify(resp.Status), resp, reqID, 1)), nil
	}
	if d.SkipRefresh {
		return c.finish(log, responseOutcome(KindAuthFailure, resp, reqID, 1)), nil
	}

	log.Debug().Str("request_id", reqID).Msg("access token rejected, refreshing")
	fresh, ok, err := c.refreshAfter(ctx, pair.AccessToken)
	if err != nil {
		// The caller gave up while the shared refresh was still running.
		return c.finish(log, transportOutcome(err, reqID, 1)), nil
	}
	if !ok {
		return c.finish(log, responseOutcome(KindAuthFailure, resp, reqID, 1)), nil
	}

	resp, reqID, err = c.dispatch(ctx, base, fresh.AccessToken)
	if err != nil {
		return c.finish(log, transportOutcome(err, reqID, 2)), nil
	}
	if resp.Status == http.StatusUnauthorized {
		// Rejected right after a successful refresh: terminal, no second refresh.
		return c.finish(log, responseOutcome(KindAuthFailure, resp, reqID, 2)), nil
	}
	return c.finish(log, responseOutcome(classify(resp.Status), resp, reqID, 2)), nil
}

// dispatch decorates a copy of base for one physical attempt and sends it.
func (c *Client) dispatch(ctx context.Context, base *Request, accessToken string) (*Response, string, error) {
	req := base.clone()
	if accessToken != "" {
		req.Header.Set(HeaderAuthorization, "Bearer "+accessToken)
	}
	reqID := c.ids.NewRequestID()
	req.Header.Set(HeaderRequestID, reqID)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.transport.Do(ctx, req)
	if err == nil && resp == nil {
		err = errEmptyResponse
	}
	ev := c.log.Debug().
		Str("request_id", reqID).
		Str("method", req.Method).
		Str("path", req.Path).
		Bool("authorized", accessToken != "").
		Dur("elapsed", time.Since(start))
	if err != nil {
		ev.Err(err).Msg("dispatch failed")
		return nil, reqID, err
	}
	ev.Int("status", resp.Status).Msg("dispatched")
	return resp, reqID, nil
}

func (c *Client) finish(log zerolog.Logger, out Outcome) Outcome {
	ev := log.Debug()
	if out.Kind != KindSuccess {
		ev = log.Info()
	}
	ev.Str("outcome", out.Kind.String()).
		Int("status", out.Status).
		Int("attempts", out.Attempts).
		Str("request_id", out.RequestID).
		Msg("request resolved")
	return out
}

func transportOutcome(err error, reqID string, attempts int) Outcome {
	return Outcome{Kind: KindTransportError, Cause: err, RequestID: reqID, Attempts: attempts}
}

func responseOutcome(kind Kind, resp *Response, reqID string, attempts int) Outcome {
	return Outcome{
		Kind:      kind,
		Status:    resp.Status,
		Header:    resp.Header,
		Body:      resp.Body,
		RequestID: reqID,
		Attempts:  attempts,
	}
}
