// Package apiclient is the authenticated HTTP client runtime for the gateway API.
//
// # Overview
//
// Client wraps every backend call. It attaches the bearer access token and a
// fresh request identifier, recovers once from an expired access token by
// running the refresh protocol, and resolves each call to a typed Outcome.
//
// # Architecture
//
//   - descriptor.go: Descriptor, the caller's description of one logical call
//   - transport.go: Transport interface and the net/http implementation
//   - client.go: Send and the per-attempt decoration
//   - refresh.go: the coalesced refresh protocol
//   - outcome.go: Outcome kinds and their error form
//
// # Request Flow
//
//	Send(d)
//	  ├─> dispatch (Authorization if a pair exists, new X-Request-Id)
//	  │     └─> transport failure ──────────────> TransportError
//	  ├─> status != 401 ────────────────────────> Success | ClientError | ServerError
//	  ├─> 401 ─> refresh (single flight)
//	  │     └─> refresh failed, pair cleared ───> AuthFailure
//	  └─> redispatch once (new token, new X-Request-Id, same Idempotency-Key)
//	        └─> 401 again ──────────────────────> AuthFailure
//
// # Headers
//
//   - Authorization: Bearer <access token>, only while a pair is stored
//   - X-Request-Id: new value for every physical attempt
//   - Idempotency-Key: Descriptor.IdempotencyKey, identical on the retry
//
// Callers cannot override these three; values in Descriptor.Header are dropped.
//
// # Refresh Protocol
//
// The refresh endpoint receives only {"refresh_token": ...} and must answer
// with both access_token and refresh_token. Success replaces the stored pair;
// any failure after an exchange was attempted clears it. Without a refresh
// token the protocol fails immediately and makes no network call.
//
// Refresh tokens are single use, so concurrent 401s must not each run their
// own exchange. A singleflight.Group per Client joins them onto one exchange.
// A caller arriving after a refresh already rotated the pair sees the new
// access token in the store and redispatches without exchanging again.
//
// # Cancellation
//
// Each dispatch is bounded by the client timeout and the caller's context.
// The refresh exchange runs on a context detached from any one caller, bounded
// only by the refresh timeout, so a caller that gives up while waiting gets a
// TransportError carrying its context error and the other waiters are not
// affected.
//
// # Error Handling
//
// Send returns a Go error only for malformed descriptors (ErrInvalidDescriptor).
// HTTP statuses and network failures are Outcome kinds. Outcome.Err turns a
// non-success outcome into an *Error that matches ErrTransport,
// ErrAuthFailure, ErrClientError or ErrServerError with errors.Is.
//
// Nothing here retries transport failures or 5xx responses; only the single
// refresh-driven redispatch exists, and the idempotency key covers it.
package apiclient
