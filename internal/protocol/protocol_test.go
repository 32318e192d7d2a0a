package protocol

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/danmuck/gatectl/internal/testutil/testlog"
)

func TestDecodeHello(t *testing.T) {
	testlog.Start(t)
	msg := Decode([]byte(`{"op":10,"d":{"heartbeat_interval":41250}}`))
	hello, ok := msg.(Hello)
	if !ok {
		t.Fatalf("expected Hello, got %T", msg)
	}
	if hello.HeartbeatIntervalMS != 41250 {
		t.Fatalf("interval got=%d", hello.HeartbeatIntervalMS)
	}
	if hello.Op() != OpHello {
		t.Fatalf("op got=%v", hello.Op())
	}
}

func TestDecodeDispatchCarriesSequenceAndName(t *testing.T) {
	testlog.Start(t)
	msg := Decode([]byte(`{"op":0,"s":42,"t":"MESSAGE_CREATE","d":{"content":"hi"}}`))
	d, ok := msg.(Dispatch)
	if !ok {
		t.Fatalf("expected Dispatch, got %T", msg)
	}
	if d.Name != "MESSAGE_CREATE" {
		t.Fatalf("name got=%q", d.Name)
	}
	seq, ok := d.Frame().Sequence()
	if !ok || seq != 42 {
		t.Fatalf("sequence got=(%d,%v)", seq, ok)
	}
	if string(d.Data) != `{"content":"hi"}` {
		t.Fatalf("data got=%s", d.Data)
	}
}

func TestDecodeNullSequenceIsAbsent(t *testing.T) {
	testlog.Start(t)
	msg := Decode([]byte(`{"op":11,"d":null,"s":null,"t":null}`))
	if _, ok := msg.(HeartbeatAck); !ok {
		t.Fatalf("expected HeartbeatAck, got %T", msg)
	}
	if _, ok := msg.Frame().Sequence(); ok {
		t.Fatalf("null s must not report a sequence")
	}
}

func TestDecodeMalformedNormalizes(t *testing.T) {
	testlog.Start(t)
	tests := []struct {
		name    string
		raw     string
		wantErr error
	}{
		{name: "not json", raw: `not json at all`, wantErr: ErrInvalidJSON},
		{name: "missing op", raw: `{"d":1}`, wantErr: ErrInvalidJSON},
		{name: "hello without interval", raw: `{"op":10,"d":{}}`, wantErr: ErrMissingInterval},
		{name: "explicit sentinel", raw: `{"op":-2,"d":false}`, wantErr: ErrMalformedFrameOpcode},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			msg := Decode([]byte(tc.raw))
			m, ok := msg.(Malformed)
			if !ok {
				t.Fatalf("expected Malformed, got %T", msg)
			}
			if !errors.Is(m.Err, tc.wantErr) {
				t.Fatalf("err got=%v want=%v", m.Err, tc.wantErr)
			}
			if m.Op() != OpMalformed {
				t.Fatalf("op got=%v", m.Op())
			}
			encoded, err := json.Marshal(m.Frame())
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			if string(encoded) != `{"op":-2,"d":false}` {
				t.Fatalf("normalized frame got=%s", encoded)
			}
		})
	}
}

func TestDecodeControlVariants(t *testing.T) {
	testlog.Start(t)
	if _, ok := Decode([]byte(`{"op":7,"d":null}`)).(Reconnect); !ok {
		t.Fatalf("op 7 should decode as Reconnect")
	}
	inv, ok := Decode([]byte(`{"op":9,"d":true}`)).(InvalidSession)
	if !ok || !inv.Resumable {
		t.Fatalf("op 9 should decode as resumable InvalidSession")
	}
	if _, ok := Decode([]byte(`{"op":1,"d":null}`)).(HeartbeatRequest); !ok {
		t.Fatalf("op 1 should decode as HeartbeatRequest")
	}
	ctl, ok := Decode([]byte(`{"op":42,"d":null}`)).(Control)
	if !ok || ctl.Op() != Opcode(42) {
		t.Fatalf("unknown op should decode as Control, got %#v", ctl)
	}
}

func TestEncodeIdentifyOmitsZeroIntents(t *testing.T) {
	testlog.Start(t)
	props := Properties{OS: "linux", Browser: "gatectl", Device: "gatectl"}
	raw, err := EncodeIdentify(Identify{Token: "tkn", Properties: props})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	want := `{"op":2,"d":{"token":"tkn","properties":{"os":"linux","browser":"gatectl","device":"gatectl"}}}`
	if string(raw) != want {
		t.Fatalf("identify got=%s", raw)
	}

	raw, err = EncodeIdentify(Identify{Token: "tkn", Properties: props, Intents: 513})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var frame struct {
		D map[string]any `json:"d"`
	}
	if err := json.Unmarshal(raw, &frame); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if frame.D["intents"] != float64(513) {
		t.Fatalf("intents got=%v", frame.D["intents"])
	}
	if _, ok := frame.D["session_id"]; ok {
		t.Fatalf("identify must not carry a session id")
	}
}

func TestEncodeResumeCarriesSessionAndSequence(t *testing.T) {
	testlog.Start(t)
	seq := int64(1337)
	raw, err := EncodeResume(Resume{Token: "tkn", SessionID: "sess-1", Seq: &seq})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	want := `{"op":6,"d":{"token":"tkn","session_id":"sess-1","seq":1337}}`
	if string(raw) != want {
		t.Fatalf("resume got=%s", raw)
	}

	if _, err := EncodeResume(Resume{Token: "tkn"}); !errors.Is(err, ErrSessionIDRequired) {
		t.Fatalf("expected ErrSessionIDRequired, got %v", err)
	}
	if _, err := EncodeIdentify(Identify{}); !errors.Is(err, ErrEmptyToken) {
		t.Fatalf("expected ErrEmptyToken, got %v", err)
	}
}

func TestEncodeHeartbeat(t *testing.T) {
	testlog.Start(t)
	raw, err := EncodeHeartbeat(nil)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if string(raw) != `{"op":1,"d":null}` {
		t.Fatalf("heartbeat got=%s", raw)
	}
	seq := int64(7)
	raw, _ = EncodeHeartbeat(&seq)
	if string(raw) != `{"op":1,"d":7}` {
		t.Fatalf("heartbeat got=%s", raw)
	}
}

func TestDecodeReady(t *testing.T) {
	testlog.Start(t)
	ready, err := DecodeReady(json.RawMessage(`{"session_id":"abc","resume_gateway_url":"wss://r"}`))
	if err != nil {
		t.Fatalf("decode ready: %v", err)
	}
	if ready.SessionID != "abc" || ready.ResumeGatewayURL != "wss://r" {
		t.Fatalf("ready got=%+v", ready)
	}
	if _, err := DecodeReady(json.RawMessage(`{}`)); !errors.Is(err, ErrMissingSessionID) {
		t.Fatalf("expected ErrMissingSessionID, got %v", err)
	}
}

func TestOpcodeString(t *testing.T) {
	testlog.Start(t)
	if OpInvalidSession.String() != "invalid_session" {
		t.Fatalf("name got=%q", OpInvalidSession.String())
	}
	if Opcode(99).String() != "op(99)" {
		t.Fatalf("unknown name got=%q", Opcode(99).String())
	}
}
