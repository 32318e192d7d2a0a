// Package session owns gateway session transport primitives.
//
// Ownership boundary:
// - connection/handshake tuning (Config)
// - reconnect backoff
// - the outbound payload queue shared by a session across reconnects
// - client transport security validation and TLS setup
package session
