package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apptremind/remindctl/internal/apiclient"
	"github.com/apptremind/remindctl/internal/credentials"
	"github.com/apptremind/remindctl/internal/requestid"
)

func signedToken(t *testing.T, sub, business string, exp time.Time) string {
	t.Helper()
	claims := credentials.AccessClaims{
		BusinessID: business,
		Role:       "owner",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return tok
}

// authServer is a minimal auth backend. Handlers can be swapped per test.
type authServer struct {
	mu       sync.Mutex
	paths    []string
	bodies   map[string]map[string]any
	handlers map[string]http.HandlerFunc
}

func newAuthServer(t *testing.T) (*authServer, *httptest.Server) {
	t.Helper()
	as := &authServer{bodies: map[string]map[string]any{}, handlers: map[string]http.HandlerFunc{}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		as.mu.Lock()
		as.paths = append(as.paths, r.URL.Path)
		as.bodies[r.URL.Path] = body
		h := as.handlers[r.URL.Path]
		as.mu.Unlock()
		if h == nil {
			http.NotFound(w, r)
			return
		}
		h(w, r)
	}))
	t.Cleanup(srv.Close)
	return as, srv
}

func (a *authServer) handle(path string, h http.HandlerFunc) {
	a.mu.Lock()
	a.handlers[path] = h
	a.mu.Unlock()
}

func (a *authServer) calls() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.paths...)
}

func (a *authServer) body(path string) map[string]any {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.bodies[path]
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func tokens(access, refresh string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, tokenResponse{AccessToken: access, RefreshToken: refresh, TokenType: "Bearer"})
	}
}

func status(code int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(code), code)
	}
}

func newFacade(t *testing.T, baseURL string, store credentials.Store) *Facade {
	t.Helper()
	transport, err := apiclient.NewHTTPTransport(baseURL, nil)
	require.NoError(t, err)
	client := apiclient.New(transport, store, requestid.New())
	return New(client, store)
}

func count(paths []string, path string) int {
	n := 0
	for _, p := range paths {
		if p == path {
			n++
		}
	}
	return n
}

func TestLogin_PersistsPairAndHydratesIdentity(t *testing.T) {
	as, srv := newAuthServer(t)
	exp := time.Now().Add(15 * time.Minute).Truncate(time.Second)
	access := signedToken(t, "user-1", "biz-1", exp)

	as.handle(pathLogin, tokens(access, "R1"))
	as.handle(pathMe, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+access {
			status(http.StatusUnauthorized)(w, r)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"email": "ada@example.com", "business_id": "biz-1"})
	})

	store := &credentials.MemoryStore{}
	f := newFacade(t, srv.URL, store)

	require.True(t, f.Login(context.Background(), "  ada@example.com ", "secret"))

	pair, ok := store.Get(context.Background())
	require.True(t, ok)
	assert.Equal(t, credentials.Pair{AccessToken: access, RefreshToken: "R1"}, pair)

	snap := f.Snapshot()
	require.True(t, snap.HasIdentity)
	assert.Equal(t, "user-1", snap.Identity.UserID, "subject claim fills the missing id")
	assert.Equal(t, "ada@example.com", snap.Identity.Email)
	assert.Equal(t, "owner", snap.Identity.Role)
	assert.True(t, snap.Identity.ExpiresAt.Equal(exp))
	assert.NoError(t, snap.LastError)

	assert.Equal(t, map[string]any{"email": "ada@example.com", "password": "secret"}, as.body(pathLogin))
}

func TestLogin_RejectedKeepsPriorSessionAndSkipsRefresh(t *testing.T) {
	as, srv := newAuthServer(t)
	as.handle(pathLogin, status(http.StatusUnauthorized))
	as.handle(apiclient.DefaultRefreshPath, tokens("A2", "R2"))

	prior := credentials.Pair{AccessToken: "A1", RefreshToken: "R1"}
	store := credentials.NewMemoryStore(prior)
	f := newFacade(t, srv.URL, store)

	assert.False(t, f.Login(context.Background(), "ada@example.com", "wrong"))

	pair, ok := store.Get(context.Background())
	require.True(t, ok)
	assert.Equal(t, prior, pair)
	assert.Zero(t, count(as.calls(), apiclient.DefaultRefreshPath))
	assert.ErrorIs(t, f.Snapshot().LastError, apiclient.ErrAuthFailure)
}

func TestLogin_IncompleteTokenResponse(t *testing.T) {
	as, srv := newAuthServer(t)
	as.handle(pathLogin, tokens("A9", ""))

	store := &credentials.MemoryStore{}
	f := newFacade(t, srv.URL, store)

	assert.False(t, f.Login(context.Background(), "ada@example.com", "secret"))
	_, ok := store.Get(context.Background())
	assert.False(t, ok)
	assert.ErrorIs(t, f.Snapshot().LastError, ErrTokenResponse)
	assert.NotContains(t, as.calls(), pathMe)
}

func TestRegister_SendsPayload(t *testing.T) {
	as, srv := newAuthServer(t)
	as.handle(pathRegister, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusCreated, tokenResponse{AccessToken: "A1", RefreshToken: "R1"})
	})
	as.handle(pathMe, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, meResponse{UserID: "user-7", BusinessID: "biz-7", Role: "owner"})
	})

	f := newFacade(t, srv.URL, &credentials.MemoryStore{})
	ok := f.Register(context.Background(), RegisterRequest{Email: "bo@example.com", Password: "pw", BusinessName: " Bo's Barbers "})
	require.True(t, ok)

	assert.Equal(t, map[string]any{
		"email": "bo@example.com", "password": "pw", "business_name": "Bo's Barbers",
	}, as.body(pathRegister))
	snap := f.Snapshot()
	assert.Equal(t, "user-7", snap.Identity.UserID)
	assert.Equal(t, "biz-7", snap.Identity.BusinessID)
}

func TestCurrentIdentity_AuthFailureClearsIdentity(t *testing.T) {
	as, srv := newAuthServer(t)
	as.handle(pathMe, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, meResponse{ID: "user-1"})
	})

	store := credentials.NewMemoryStore(credentials.Pair{AccessToken: "A1", RefreshToken: "R1"})
	f := newFacade(t, srv.URL, store)
	ctx := context.Background()

	_, ok := f.CurrentIdentity(ctx)
	require.True(t, ok)

	as.handle(pathMe, status(http.StatusUnauthorized))
	as.handle(apiclient.DefaultRefreshPath, status(http.StatusUnauthorized))

	id, ok := f.CurrentIdentity(ctx)
	assert.False(t, ok)
	assert.Zero(t, id)
	snap := f.Snapshot()
	assert.False(t, snap.HasIdentity)
	assert.ErrorIs(t, snap.LastError, apiclient.ErrAuthFailure)

	_, stored := store.Get(ctx)
	assert.False(t, stored, "failed refresh clears the pair")
}

func TestCurrentIdentity_TransientFailureKeepsIdentity(t *testing.T) {
	as, srv := newAuthServer(t)
	as.handle(pathMe, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, meResponse{ID: "user-1", Email: "ada@example.com"})
	})

	store := credentials.NewMemoryStore(credentials.Pair{AccessToken: "A1", RefreshToken: "R1"})
	f := newFacade(t, srv.URL, store)
	ctx := context.Background()

	_, ok := f.CurrentIdentity(ctx)
	require.True(t, ok)

	as.handle(pathMe, status(http.StatusServiceUnavailable))

	id, ok := f.CurrentIdentity(ctx)
	assert.True(t, ok)
	assert.Equal(t, "user-1", id.UserID)
	assert.False(t, f.Snapshot().IsOffline())

	f.CurrentIdentity(ctx)
	snap := f.Snapshot()
	assert.True(t, snap.HasIdentity)
	assert.Equal(t, 2, snap.ConsecutiveFailures)
	assert.True(t, snap.IsOffline())
	assert.ErrorIs(t, snap.LastError, apiclient.ErrServerError)

	_, stored := store.Get(ctx)
	assert.True(t, stored)
}

func TestHydrate_NoPairMakesNoRequest(t *testing.T) {
	as, srv := newAuthServer(t)
	f := newFacade(t, srv.URL, &credentials.MemoryStore{})

	_, ok := f.Hydrate(context.Background())
	assert.False(t, ok)
	assert.Empty(t, as.calls())
	assert.False(t, f.Snapshot().HasIdentity)
}

func TestHydrate_WithPair(t *testing.T) {
	as, srv := newAuthServer(t)
	as.handle(pathMe, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, meResponse{UserID: "user-3"})
	})
	f := newFacade(t, srv.URL, credentials.NewMemoryStore(credentials.Pair{AccessToken: "A1", RefreshToken: "R1"}))

	id, ok := f.Hydrate(context.Background())
	require.True(t, ok)
	assert.Equal(t, "user-3", id.UserID)
	assert.Equal(t, []string{pathMe}, as.calls())
}

func TestLogout_RevokesAndClearsEvenOnFailure(t *testing.T) {
	for _, code := range []int{http.StatusNoContent, http.StatusInternalServerError, http.StatusUnauthorized} {
		t.Run(http.StatusText(code), func(t *testing.T) {
			as, srv := newAuthServer(t)
			as.handle(pathMe, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, meResponse{ID: "user-1"})
			})
			as.handle(pathLogout, status(code))
			as.handle(apiclient.DefaultRefreshPath, tokens("A2", "R2"))

			store := credentials.NewMemoryStore(credentials.Pair{AccessToken: "A1", RefreshToken: "R1"})
			f := newFacade(t, srv.URL, store)
			ctx := context.Background()
			_, ok := f.Hydrate(ctx)
			require.True(t, ok)

			require.NoError(t, f.Logout(ctx))

			_, stored := store.Get(ctx)
			assert.False(t, stored)
			assert.False(t, f.Snapshot().HasIdentity)
			assert.Equal(t, map[string]any{"refresh_token": "R1"}, as.body(pathLogout))
			assert.Zero(t, count(as.calls(), apiclient.DefaultRefreshPath))
		})
	}
}

func TestLogout_WithoutPairSkipsRevocation(t *testing.T) {
	as, srv := newAuthServer(t)
	f := newFacade(t, srv.URL, &credentials.MemoryStore{})

	require.NoError(t, f.Logout(context.Background()))
	assert.Empty(t, as.calls())
}
