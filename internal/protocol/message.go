package protocol

import "encoding/json"

// Message is the decoded form of one inbound frame. The concrete type is
// one of Hello, Dispatch, HeartbeatRequest, HeartbeatAck, Reconnect,
// InvalidSession, Malformed or Control.
type Message interface {
	Op() Opcode
	Frame() Frame
	isMessage()
}

type Hello struct {
	Raw                 Frame
	HeartbeatIntervalMS int64
}

type Dispatch struct {
	Raw  Frame
	Name string
	Data json.RawMessage
}

// HeartbeatRequest is a server-initiated opcode 1.
type HeartbeatRequest struct{ Raw Frame }

type HeartbeatAck struct{ Raw Frame }

type Reconnect struct{ Raw Frame }

type InvalidSession struct {
	Raw       Frame
	Resumable bool
}

// Malformed replaces any inbound text that failed to decode.
type Malformed struct {
	Err error
}

// Control carries every other opcode verbatim.
type Control struct{ Raw Frame }

func (m Hello) Op() Opcode            { return OpHello }
func (m Dispatch) Op() Opcode         { return OpDispatch }
func (m HeartbeatRequest) Op() Opcode { return OpHeartbeat }
func (m HeartbeatAck) Op() Opcode     { return OpHeartbeatAck }
func (m Reconnect) Op() Opcode        { return OpReconnect }
func (m InvalidSession) Op() Opcode   { return OpInvalidSession }
func (m Malformed) Op() Opcode        { return OpMalformed }
func (m Control) Op() Opcode          { return m.Raw.Op }

func (m Hello) Frame() Frame            { return m.Raw }
func (m Dispatch) Frame() Frame         { return m.Raw }
func (m HeartbeatRequest) Frame() Frame { return m.Raw }
func (m HeartbeatAck) Frame() Frame     { return m.Raw }
func (m Reconnect) Frame() Frame        { return m.Raw }
func (m InvalidSession) Frame() Frame   { return m.Raw }
func (m Malformed) Frame() Frame        { return MalformedFrame() }
func (m Control) Frame() Frame          { return m.Raw }

func (Hello) isMessage()            {}
func (Dispatch) isMessage()         {}
func (HeartbeatRequest) isMessage() {}
func (HeartbeatAck) isMessage()     {}
func (Reconnect) isMessage()        {}
func (InvalidSession) isMessage()   {}
func (Malformed) isMessage()        {}
func (Control) isMessage()          {}
