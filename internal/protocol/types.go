package protocol

import (
	"encoding/json"
	"strconv"
)

// Opcode identifies a gateway frame kind.
type Opcode int

const (
	OpDispatch            Opcode = 0
	OpHeartbeat           Opcode = 1
	OpIdentify            Opcode = 2
	OpPresenceUpdate      Opcode = 3
	OpVoiceStateUpdate    Opcode = 4
	OpResume              Opcode = 6
	OpReconnect           Opcode = 7
	OpRequestGuildMembers Opcode = 8
	OpInvalidSession      Opcode = 9
	OpHello               Opcode = 10
	OpHeartbeatAck        Opcode = 11

	// Local sentinels. Never sent by a server.
	OpStop      Opcode = -1
	OpMalformed Opcode = -2
)

var opcodeNames = map[Opcode]string{
	OpDispatch:            "dispatch",
	OpHeartbeat:           "heartbeat",
	OpIdentify:            "identify",
	OpPresenceUpdate:      "presence_update",
	OpVoiceStateUpdate:    "voice_state_update",
	OpResume:              "resume",
	OpReconnect:           "reconnect",
	OpRequestGuildMembers: "request_guild_members",
	OpInvalidSession:      "invalid_session",
	OpHello:               "hello",
	OpHeartbeatAck:        "heartbeat_ack",
	OpStop:                "stop",
	OpMalformed:           "malformed",
}

func (o Opcode) String() string {
	if name, ok := opcodeNames[o]; ok {
		return name
	}
	return "op(" + strconv.Itoa(int(o)) + ")"
}

// Frame is the JSON envelope shared by every gateway message.
type Frame struct {
	Op   Opcode          `json:"op"`
	Data json.RawMessage `json:"d"`
	Seq  *int64          `json:"s,omitempty"`
	Type *string         `json:"t,omitempty"`
}

// Sequence reports the frame's s field when present and non-null.
func (f Frame) Sequence() (int64, bool) {
	if f.Seq == nil {
		return 0, false
	}
	return *f.Seq, true
}

// EventName reports the frame's t field when present and non-null.
func (f Frame) EventName() (string, bool) {
	if f.Type == nil {
		return "", false
	}
	return *f.Type, true
}

// MalformedFrame is the normalized stand-in for undecodable input.
func MalformedFrame() Frame {
	return Frame{Op: OpMalformed, Data: json.RawMessage("false")}
}

// Properties is the client descriptor carried by identify.
type Properties struct {
	OS      string `json:"os"`
	Browser string `json:"browser"`
	Device  string `json:"device"`
}

// Identify is the opcode 2 payload.
type Identify struct {
	Token      string     `json:"token"`
	Properties Properties `json:"properties"`
	Intents    int        `json:"intents,omitempty"`
}

// Resume is the opcode 6 payload. Seq is null before the first dispatch.
type Resume struct {
	Token     string `json:"token"`
	SessionID string `json:"session_id"`
	Seq       *int64 `json:"seq"`
}

// Ready is the subset of the identify reply the session engine consumes.
type Ready struct {
	SessionID        string `json:"session_id"`
	ResumeGatewayURL string `json:"resume_gateway_url,omitempty"`
}
