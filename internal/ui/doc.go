// Package ui provides the interactive session console for remindctl.
//
// # Architecture Overview
//
// The console is a Bubble Tea program with two screens:
//
//   - Login: email and masked password inputs; enter submits
//   - Dashboard: signed-in identity, token expiry, backend health and the
//     last lookup error
//
// The screen follows the session: when a lookup reports the session gone (for
// example after a rejected refresh) the dashboard switches back to the login
// form on the next snapshot.
//
// # Data Flow
//
// Nothing in Update blocks. Network work runs inside tea.Cmd functions and
// comes back as messages:
//
//	tickMsg ──→ healthCmd + snapshotCmd ──→ healthMsg / snapshotMsg
//	enter   ──→ loginCmd   ──→ loginResultMsg
//	r       ──→ refreshCmd ──→ refreshResultMsg
//	L       ──→ logoutCmd  ──→ logoutResultMsg
//
// The keepalive poller in package app re-hydrates the session in the
// background; the console only reads its snapshot.
//
// # Preferences
//
// The theme (T cycles Nightfox, Kanagawa and Slate) and the last email used
// are saved to the prefs file. Passwords are never stored.
package ui
