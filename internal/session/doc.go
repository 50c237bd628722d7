// Package session manages sign-in, sign-out and the signed-in identity.
//
// The Facade sits on top of an apiclient.Client and the credential store that
// client reads from. Credential endpoints (login, register, logout) are sent
// with SkipRefresh so a wrong password never spends the stored refresh token.
//
// # Lifecycle
//
//	Login / Register ──→ creds.Set(pair) ──→ CurrentIdentity
//	Hydrate ──(no pair)──→ identity cleared, no request
//	        ──(pair)────→ CurrentIdentity
//	Logout ──→ best-effort revoke ──→ creds.Clear + identity cleared
//
// A failed Login or Register leaves the previous pair and identity in place.
//
// # Identity State
//
// The latest identity is kept in a snapshot guarded by a RWMutex, in the same
// way a poller hands data to a UI:
//
//   - success replaces the identity and resets the failure count
//   - an auth failure clears the identity
//   - any other failure keeps the identity and records the error
//
// Snapshot().IsOffline reports two or more consecutive failures. Fields the
// "who am I" response omits are filled from the access token claims, and
// ExpiresAt always comes from the token.
package session
