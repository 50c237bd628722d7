package credentials

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultKey is the well-known name the pair is persisted under.
const DefaultKey = "apptremind.tokens"

// ErrIncompletePair is returned when a pair is missing either token.
var ErrIncompletePair = errors.New("credential pair requires both access and refresh tokens")

// Pair is the access/refresh credential pair. The zero value means "no session".
type Pair struct {
	AccessToken  string `json:"accessToken" toml:"access_token"`
	RefreshToken string `json:"refreshToken" toml:"refresh_token"`
}

// Complete reports whether both tokens are present.
func (p Pair) Complete() bool {
	return strings.TrimSpace(p.AccessToken) != "" && strings.TrimSpace(p.RefreshToken) != ""
}

// Validate returns ErrIncompletePair unless both tokens are present.
func (p Pair) Validate() error {
	if !p.Complete() {
		return ErrIncompletePair
	}
	return nil
}

// AccessClaims are the claims the backend embeds in its access tokens.
type AccessClaims struct {
	BusinessID string `json:"business_id"`
	Role       string `json:"role"`
	jwt.RegisteredClaims
}

// ExpiresAt returns the token expiry or the zero time when the claim is absent.
func (c AccessClaims) ExpiresAt() time.Time {
	if c.RegisteredClaims.ExpiresAt == nil {
		return time.Time{}
	}
	return c.RegisteredClaims.ExpiresAt.Time
}

// Claims decodes the access token payload without verifying its signature.
// The client is not the audience of the signature; the backend is. Claims are
// only used for display and to fill identity fields the backend omits.
func (p Pair) Claims() (AccessClaims, error) {
	var claims AccessClaims
	if strings.TrimSpace(p.AccessToken) == "" {
		return claims, ErrIncompletePair
	}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(p.AccessToken, &claims); err != nil {
		return AccessClaims{}, fmt.Errorf("parse access token: %w", err)
	}
	return claims, nil
}
