// Package protocol owns the gateway wire contract.
//
// Ownership boundary:
// - opcode table and frame envelope
// - inbound decoding into the Message tagged union
// - outbound identify/resume/heartbeat encoders
//
// Inbound text that cannot be decoded is never surfaced as an error: it is
// normalized to the malformed frame {"op":-2,"d":false} so callers branch
// on opcodes only.
package protocol
