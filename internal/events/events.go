// Package events decodes common dispatch payloads into typed values. Parse
// is suitable as a session default parser.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/danmuck/gatectl/internal/protocol"
)

const (
	MessageCreate  = "MESSAGE_CREATE"
	PresenceUpdate = "PRESENCE_UPDATE"
)

// Event is the generic form of any dispatch.
type Event struct {
	Name         string          `json:"-"`
	Sequence     *int64          `json:"-"`
	Raw          json.RawMessage `json:"-"`
	GuildRelated bool            `json:"-"`
}

type User struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	Discriminator string `json:"discriminator"`
	GlobalName    string `json:"global_name,omitempty"`
}

// UniqueName renders username#discriminator, or the bare username for
// accounts without a discriminator.
func (u User) UniqueName() string {
	if u.Discriminator == "" || u.Discriminator == "0" {
		return u.Username
	}
	return u.Username + "#" + u.Discriminator
}

type Message struct {
	Event
	ID        string `json:"id"`
	GuildID   string `json:"guild_id"`
	ChannelID string `json:"channel_id"`
	Content   string `json:"content"`
	Author    User   `json:"author"`
}

// IsDM reports whether the message arrived outside a guild.
func (m *Message) IsDM() bool { return !m.GuildRelated }

type Activity struct {
	Name  string `json:"name"`
	Type  int    `json:"type"`
	State string `json:"state,omitempty"`
}

type Presence struct {
	Event
	User       User       `json:"user"`
	GuildID    string     `json:"guild_id"`
	Status     string     `json:"status"`
	Activities []Activity `json:"activities"`
}

// Parse decodes MESSAGE_CREATE and PRESENCE_UPDATE into *Message and
// *Presence. Every other dispatch becomes *Event.
func Parse(_ context.Context, d protocol.Dispatch) (any, error) {
	base := newEvent(d)
	switch strings.ToUpper(d.Name) {
	case MessageCreate:
		msg := &Message{Event: base}
		if err := json.Unmarshal(d.Data, msg); err != nil {
			return nil, fmt.Errorf("events: decode %s: %w", d.Name, err)
		}
		return msg, nil
	case PresenceUpdate:
		p := &Presence{Event: base}
		if err := json.Unmarshal(d.Data, p); err != nil {
			return nil, fmt.Errorf("events: decode %s: %w", d.Name, err)
		}
		return p, nil
	default:
		return &base, nil
	}
}

func newEvent(d protocol.Dispatch) Event {
	ev := Event{Name: d.Name, Raw: d.Data}
	if seq, ok := d.Frame().Sequence(); ok {
		ev.Sequence = &seq
	}
	if protocol.IsNull(d.Data) {
		return ev
	}
	// Arrays and scalars carry no guild context.
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(d.Data, &fields); err == nil {
		_, ev.GuildRelated = fields["guild_id"]
	}
	return ev
}
