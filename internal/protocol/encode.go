package protocol

import (
	"encoding/json"
	"strings"
)

// Encode marshals a frame envelope with op and d only.
func Encode(op Opcode, d any) ([]byte, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Frame{Op: op, Data: data})
}

// EncodeIdentify builds {op:2, d:{token, properties, intents?}}. Intents is
// omitted when zero.
func EncodeIdentify(id Identify) ([]byte, error) {
	if strings.TrimSpace(id.Token) == "" {
		return nil, ErrEmptyToken
	}
	return Encode(OpIdentify, id)
}

// EncodeResume builds {op:6, d:{token, session_id, seq}}.
func EncodeResume(r Resume) ([]byte, error) {
	if strings.TrimSpace(r.Token) == "" {
		return nil, ErrEmptyToken
	}
	if r.SessionID == "" {
		return nil, ErrSessionIDRequired
	}
	return Encode(OpResume, r)
}

// EncodeHeartbeat builds {op:1, d:<seq or null>}.
func EncodeHeartbeat(seq *int64) ([]byte, error) {
	return Encode(OpHeartbeat, seq)
}
