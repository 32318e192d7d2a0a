package protocol

import "errors"

var (
	ErrInvalidJSON          = errors.New("protocol: invalid json")
	ErrMissingInterval      = errors.New("protocol: hello missing heartbeat_interval")
	ErrMissingSessionID     = errors.New("protocol: ready missing session_id")
	ErrUnexpectedOpcode     = errors.New("protocol: unexpected opcode")
	ErrEmptyToken           = errors.New("protocol: empty token")
	ErrSessionIDRequired    = errors.New("protocol: resume requires session id")
	ErrMalformedFrameOpcode = errors.New("protocol: malformed frame")
)
