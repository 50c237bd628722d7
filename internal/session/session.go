package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/apptremind/remindctl/internal/apiclient"
	"github.com/apptremind/remindctl/internal/credentials"
)

const (
	pathLogin    = "/api/v1/auth/login"
	pathRegister = "/api/v1/auth/register"
	pathLogout   = "/api/v1/auth/logout"
	pathMe       = "/api/v1/auth/me"
)

var (
	// ErrNoSession is recorded when an operation needs a stored pair and there is none.
	ErrNoSession = errors.New("no session")
	// ErrTokenResponse is recorded when login or register answer without both tokens.
	ErrTokenResponse = errors.New("token response missing access or refresh token")
)

// Sender sends descriptors. *apiclient.Client implements it.
type Sender interface {
	Send(ctx context.Context, d apiclient.Descriptor) (apiclient.Outcome, error)
}

// RegisterRequest is the sign-up payload.
type RegisterRequest struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	BusinessName string `json:"business_name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type meResponse struct {
	ID         string `json:"id"`
	UserID     string `json:"user_id"`
	BusinessID string `json:"business_id"`
	Email      string `json:"email"`
	Role       string `json:"role"`
}

// Facade owns the session lifecycle on top of the authenticated client.
type Facade struct {
	client   Sender
	creds    credentials.Store
	log      zerolog.Logger
	identity identityStore
}

// Option configures a Facade.
type Option func(*Facade)

// WithLogger sets the logger used for session events.
func WithLogger(log zerolog.Logger) Option {
	return func(f *Facade) {
		f.log = log
	}
}

// New builds a Facade. creds must be the store the client reads from.
func New(client Sender, creds credentials.Store, opts ...Option) *Facade {
	f := &Facade{
		client: client,
		creds:  creds,
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Login exchanges email and password for a credential pair. It reports false
// and leaves the previous session untouched when the backend refuses or the
// response lacks either token; Snapshot().LastError carries the reason.
func (f *Facade) Login(ctx context.Context, email, password string) bool {
	req := loginRequest{Email: strings.TrimSpace(email), Password: password}
	return f.establish(ctx, "login", pathLogin, req)
}

// Register creates an account and signs in with the returned pair. Failure
// semantics match Login.
func (f *Facade) Register(ctx context.Context, req RegisterRequest) bool {
	req.Email = strings.TrimSpace(req.Email)
	req.BusinessName = strings.TrimSpace(req.BusinessName)
	return f.establish(ctx, "register", pathRegister, req)
}

func (f *Facade) establish(ctx context.Context, op, path string, body any) bool {
	log := f.log.With().Str("op", op).Logger()

	d := apiclient.Post(path, body)
	d.SkipRefresh = true
	out, err := f.client.Send(ctx, d)
	if err == nil {
		err = out.Err()
	}
	if err != nil {
		log.Warn().Err(err).Msg("credential exchange failed")
		f.identity.note(fmt.Errorf("%s: %w", op, err))
		return false
	}

	var tokens tokenResponse
	if err := out.Decode(&tokens); err != nil {
		log.Warn().Err(err).Msg("credential exchange returned malformed body")
		f.identity.note(fmt.Errorf("%s: %w", op, err))
		return false
	}
	pair := credentials.Pair{AccessToken: tokens.AccessToken, RefreshToken: tokens.RefreshToken}
	if !pair.Complete() {
		log.Warn().Msg("credential exchange returned incomplete pair")
		f.identity.note(fmt.Errorf("%s: %w", op, ErrTokenResponse))
		return false
	}
	if err := f.creds.Set(ctx, pair); err != nil {
		log.Error().Err(err).Msg("persist credentials failed")
		f.identity.note(fmt.Errorf("%s: %w", op, err))
		return false
	}

	log.Info().Msg("session established")
	f.CurrentIdentity(ctx)
	return true
}

// CurrentIdentity asks the backend who the session belongs to. On an auth
// failure the local identity is cleared and it reports false. Other failures
// keep the last known identity and count toward Snapshot().ConsecutiveFailures.
func (f *Facade) CurrentIdentity(ctx context.Context) (Identity, bool) {
	out, err := f.client.Send(ctx, apiclient.Get(pathMe, nil))
	if err == nil {
		err = out.Err()
	}
	switch {
	case err == nil:
	case errors.Is(err, apiclient.ErrAuthFailure):
		f.log.Info().Msg("session rejected, clearing identity")
		f.identity.clear(err)
		return Identity{}, false
	default:
		f.log.Warn().Err(err).Msg("identity lookup failed")
		f.identity.fail(err)
		snap := f.identity.get()
		return snap.Identity, snap.HasIdentity
	}

	var me meResponse
	if err := out.Decode(&me); err != nil {
		f.log.Warn().Err(err).Msg("identity response malformed")
		f.identity.fail(err)
		snap := f.identity.get()
		return snap.Identity, snap.HasIdentity
	}

	id := Identity{
		UserID:     firstNonEmpty(me.ID, me.UserID),
		BusinessID: me.BusinessID,
		Email:      me.Email,
		Role:       me.Role,
	}
	// The pair may have been rotated while the request was in flight.
	if pair, ok := f.creds.Get(ctx); ok {
		id = withClaims(id, pair)
	}
	f.identity.set(id)
	return id, true
}

// Hydrate restores the identity for a stored pair. Without a pair it clears the
// identity and makes no network call.
func (f *Facade) Hydrate(ctx context.Context) (Identity, bool) {
	if _, ok := f.creds.Get(ctx); !ok {
		f.identity.clear(nil)
		return Identity{}, false
	}
	return f.CurrentIdentity(ctx)
}

// Logout revokes the refresh token on a best-effort basis and then clears the
// stored pair and identity whatever the backend answered. The returned error is
// only about clearing local state.
func (f *Facade) Logout(ctx context.Context) error {
	if pair, ok := f.creds.Get(ctx); ok {
		d := apiclient.Post(pathLogout, logoutRequest{RefreshToken: pair.RefreshToken})
		d.SkipRefresh = true
		out, err := f.client.Send(ctx, d)
		if err == nil {
			err = out.Err()
		}
		if err != nil {
			f.log.Warn().Err(err).Msg("refresh token revocation failed")
		}
	}

	f.identity.clear(nil)
	if err := f.creds.Clear(ctx); err != nil {
		return fmt.Errorf("clear credentials: %w", err)
	}
	f.log.Info().Msg("signed out")
	return nil
}

// Snapshot returns a copy of the current identity state.
func (f *Facade) Snapshot() Snapshot {
	return f.identity.get()
}

// withClaims fills identity fields the backend left empty from the access token.
func withClaims(id Identity, pair credentials.Pair) Identity {
	claims, err := pair.Claims()
	if err != nil {
		return id
	}
	id.UserID = firstNonEmpty(id.UserID, claims.Subject)
	id.BusinessID = firstNonEmpty(id.BusinessID, claims.BusinessID)
	id.Role = firstNonEmpty(id.Role, claims.Role)
	id.ExpiresAt = claims.ExpiresAt()
	return id
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
