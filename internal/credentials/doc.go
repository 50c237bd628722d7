// Package credentials stores the access/refresh credential pair.
//
// # Overview
//
// The pair is an opaque blob: nothing here validates token contents beyond
// requiring both halves to be present. The only helper that looks inside a
// token is Pair.Claims, which decodes the access token payload for display.
//
// # Backends
//
//   - MemoryStore: process memory, used by tests and one-shot commands
//   - FileStore: TOML file under ~/.config/remindctl, survives restarts
//   - RedisStore: one key in Redis, shared by several client processes
//
// # Atomicity
//
// A store never holds an access token without its refresh token. Set rejects
// incomplete pairs with ErrIncompletePair and replaces the stored pair in a
// single step (rename for files, SET for Redis). Clear removes both tokens.
//
// # Corrupt State
//
// Get has no error return. A missing, unreadable, unparseable or incomplete
// value is reported as absent and logged at warn level, so a damaged local
// file signs the user out instead of crashing the caller.
package credentials
