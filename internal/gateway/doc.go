// Package gateway implements the client side of a sequenced, resumable
// gateway session.
//
// One Session exists per registered alias. Its supervisor dials a
// connection, runs the hello/identify/resume handshake, then runs three
// pumps (heartbeat, receive, send) until one of them ends the connection.
// The session code left behind decides what happens next: opcode 7
// resumes, opcode 9 re-identifies after a cooldown, anything else stops
// the session for good.
//
// Manager is the registration boundary: it owns the alias table, the
// pre-registration handler tables, and the thread-safe control calls
// (EnqueueSend, RequestStop, RequestRestart).
package gateway
