package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/apptremind/remindctl/internal/credentials"
)

const refreshFlightKey = "refresh"

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type refreshResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type refreshResult struct {
	pair credentials.Pair
	ok   bool
}

// Refresh exchanges the stored refresh token for a new pair. It reports
// whether the store now holds a fresh pair. Concurrent callers share one
// exchange.
func (c *Client) Refresh(ctx context.Context) bool {
	pair, _ := c.creds.Get(ctx)
	_, ok, err := c.refreshAfter(ctx, pair.AccessToken)
	return err == nil && ok
}

// refreshAfter joins or starts the single in-flight refresh. stale is the
// access token the backend just rejected. The error is only the caller's
// context error; abandoning the wait never cancels the shared exchange.
func (c *Client) refreshAfter(ctx context.Context, stale string) (credentials.Pair, bool, error) {
	detached := context.WithoutCancel(ctx)
	ch := c.flight.DoChan(refreshFlightKey, func() (any, error) {
		return c.exchange(detached, stale), nil
	})
	select {
	case res := <-ch:
		r := res.Val.(refreshResult)
		return r.pair, r.ok, nil
	case <-ctx.Done():
		return credentials.Pair{}, false, ctx.Err()
	}
}

// exchange runs inside the flight. It replaces the stored pair on success and
// clears it on any failure after a network exchange was attempted.
func (c *Client) exchange(ctx context.Context, stale string) refreshResult {
	ctx, cancel := context.WithTimeout(ctx, c.refreshTimeout)
	defer cancel()

	current, ok := c.creds.Get(ctx)
	if ok && current.AccessToken != stale {
		// A refresh that finished just before this one already rotated the
		// pair; spending the new refresh token again would revoke it.
		c.log.Debug().Msg("credentials already rotated, skipping refresh")
		return refreshResult{pair: current, ok: true}
	}
	if !ok || current.RefreshToken == "" {
		c.log.Debug().Msg("no refresh token, skipping refresh")
		return refreshResult{}
	}

	body, err := json.Marshal(refreshRequest{RefreshToken: current.RefreshToken})
	if err != nil {
		return c.refreshFailed(ctx, fmt.Errorf("encode refresh request: %w", err))
	}
	reqID := c.ids.NewRequestID()
	req := &Request{
		Method: http.MethodPost,
		Path:   c.refreshPath,
		Header: http.Header{},
		Body:   body,
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set(HeaderRequestID, reqID)

	resp, err := c.transport.Do(ctx, req)
	if err == nil && resp == nil {
		err = errEmptyResponse
	}
	if err != nil {
		return c.refreshFailed(ctx, fmt.Errorf("refresh exchange: %w", err))
	}
	if resp.Status < 200 || resp.Status >= 300 {
		return c.refreshFailed(ctx, fmt.Errorf("refresh returned status %d", resp.Status))
	}

	var payload refreshResponse
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return c.refreshFailed(ctx, fmt.Errorf("decode refresh response: %w", err))
	}
	next := credentials.Pair{AccessToken: payload.AccessToken, RefreshToken: payload.RefreshToken}
	if err := next.Validate(); err != nil {
		return c.refreshFailed(ctx, fmt.Errorf("refresh response: %w", err))
	}
	if err := c.creds.Set(ctx, next); err != nil {
		return c.refreshFailed(ctx, fmt.Errorf("store refreshed credentials: %w", err))
	}

	c.log.Info().Str("request_id", reqID).Msg("credentials refreshed")
	return refreshResult{pair: next, ok: true}
}

func (c *Client) refreshFailed(ctx context.Context, cause error) refreshResult {
	c.log.Warn().Err(cause).Msg("refresh failed, clearing credentials")
	if err := c.creds.Clear(ctx); err != nil {
		c.log.Error().Err(err).Msg("clear credentials after failed refresh")
	}
	return refreshResult{}
}
