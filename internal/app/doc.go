// Package app is the composition root for remindctl.
//
// # Overview
//
// Open turns a config.Config into a Runtime: the zerolog logger, the
// credential store selected by credentials.backend, the HTTP transport, the
// refreshing apiclient.Client, the session facade and the typed gateway. The
// CLI in cmd/remindctl opens one Runtime per invocation and hands the command
// name to Execute.
//
//	┌──────────────┐
//	│   Open()     │
//	└──────┬───────┘
//	       │
//	       ├─────> config.Load()          TOML file + REMINDCTL_* env
//	       ├─────> logging.New()          console or JSON file sink
//	       ├─────> openStore()            file, redis or memory
//	       ├─────> apiclient.New()        refresh-on-401 client
//	       ├─────> session.New()          login, identity, logout
//	       └─────> gateway.New()          typed endpoints
//
// # Commands
//
//   - login, register: establish a session and print the identity
//   - whoami: hydrate and print the identity, warning when it is stale
//   - refresh: rotate the token pair now
//   - logout: revoke and forget the stored pair
//   - status: backend health probes and access token expiry
//   - book: public booking with an idempotency key, optionally re-submitted
//   - watch: keepalive poller plus the interactive console
//   - logs: tail of the JSON log file
//
// Bad flags and unknown commands return errors wrapping ErrUsage.
//
// # Keepalive
//
// StartKeepalive re-hydrates the session on an interval so the access token is
// refreshed before the console needs it. After failed lookups the wait doubles
// up to five minutes and drops back to the interval on the next success.
package app
