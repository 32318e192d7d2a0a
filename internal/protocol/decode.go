package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
)

type wireFrame struct {
	Op   *Opcode         `json:"op"`
	Data json.RawMessage `json:"d"`
	Seq  *int64          `json:"s"`
	Type *string         `json:"t"`
}

type helloData struct {
	HeartbeatInterval *float64 `json:"heartbeat_interval"`
}

// Decode parses one inbound text frame. It never fails: undecodable input
// yields Malformed.
func Decode(raw []byte) Message {
	var wf wireFrame
	if err := json.Unmarshal(raw, &wf); err != nil {
		return Malformed{Err: fmt.Errorf("%w: %v", ErrInvalidJSON, err)}
	}
	if wf.Op == nil {
		return Malformed{Err: fmt.Errorf("%w: missing op", ErrInvalidJSON)}
	}
	frame := Frame{Op: *wf.Op, Data: wf.Data, Seq: wf.Seq, Type: wf.Type}
	if len(frame.Data) == 0 {
		frame.Data = json.RawMessage("null")
	}

	switch frame.Op {
	case OpHello:
		var d helloData
		if err := json.Unmarshal(frame.Data, &d); err != nil {
			return Malformed{Err: fmt.Errorf("%w: hello: %v", ErrInvalidJSON, err)}
		}
		if d.HeartbeatInterval == nil || *d.HeartbeatInterval < 0 {
			return Malformed{Err: ErrMissingInterval}
		}
		return Hello{Raw: frame, HeartbeatIntervalMS: int64(*d.HeartbeatInterval)}
	case OpDispatch:
		name, _ := frame.EventName()
		return Dispatch{Raw: frame, Name: name, Data: frame.Data}
	case OpHeartbeat:
		return HeartbeatRequest{Raw: frame}
	case OpHeartbeatAck:
		return HeartbeatAck{Raw: frame}
	case OpReconnect:
		return Reconnect{Raw: frame}
	case OpInvalidSession:
		var resumable bool
		_ = json.Unmarshal(frame.Data, &resumable)
		return InvalidSession{Raw: frame, Resumable: resumable}
	case OpMalformed:
		return Malformed{Err: ErrMalformedFrameOpcode}
	default:
		return Control{Raw: frame}
	}
}

// DecodeReady extracts the identify reply fields from a dispatch payload.
func DecodeReady(d json.RawMessage) (Ready, error) {
	var ready Ready
	if err := json.Unmarshal(d, &ready); err != nil {
		return Ready{}, fmt.Errorf("%w: ready: %v", ErrInvalidJSON, err)
	}
	if ready.SessionID == "" {
		return Ready{}, ErrMissingSessionID
	}
	return ready, nil
}

// IsNull reports whether a raw payload is absent or JSON null.
func IsNull(d json.RawMessage) bool {
	trimmed := bytes.TrimSpace(d)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
