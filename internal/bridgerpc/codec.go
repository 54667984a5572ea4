package bridgerpc

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/waddle-social/app/internal/chat"
	"google.golang.org/protobuf/types/known/structpb"
)

// ToStruct converts a Go value into an open keyed record via its JSON form.
// The value must marshal to a JSON object.
func ToStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	s := new(structpb.Struct)
	if err := s.UnmarshalJSON(b); err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	return s, nil
}

// FromStruct decodes an open keyed record into v. Unknown keys are
// ignored, so either end can add fields without breaking the other.
func FromStruct(s *structpb.Struct, v any) error {
	b, err := s.MarshalJSON()
	if err != nil {
		return fmt.Errorf("decode record: %w", err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decode record: %w", err)
	}
	return nil
}

// Envelope is the wire form of one bus event. Payload stays an open record
// so plugin-defined channels can carry shapes the core never heard of.
type Envelope struct {
	Channel   string         `json:"channel"`
	Timestamp time.Time      `json:"timestamp"`
	ID        string         `json:"id"`
	Source    string         `json:"source"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// ListenRequest opens an event subscription. Channel is an exact channel
// name or a namespace prefix ending in ".".
type ListenRequest struct {
	Channel string `json:"channel"`
}

// SendMessageRequest carries one outgoing message.
type SendMessageRequest struct {
	To     string           `json:"to"`
	Body   string           `json:"body"`
	Type   chat.MessageType `json:"type,omitempty"`
	Thread string           `json:"thread,omitempty"`
}

// RosterResponse is the full roster snapshot.
type RosterResponse struct {
	Items []chat.RosterItem `json:"items"`
}

// SetPresenceRequest updates own presence.
type SetPresenceRequest struct {
	Show   chat.PresenceShow `json:"show"`
	Status string            `json:"status,omitempty"`
}

// RoomRequest names a multi-user chat room, with an optional nickname on
// join.
type RoomRequest struct {
	Room string `json:"room"`
	Nick string `json:"nick,omitempty"`
}

// HistoryRequest pages backwards through a chat's messages. Before is the
// id of the oldest already-loaded message; empty means newest page.
type HistoryRequest struct {
	Chat   string `json:"chat"`
	Limit  int    `json:"limit,omitempty"`
	Before string `json:"before,omitempty"`
}

// HistoryResponse is one page of messages, newest first.
type HistoryResponse struct {
	Messages []chat.Message `json:"messages"`
}

// StatusResponse reports the daemon connection state.
type StatusResponse struct {
	State string `json:"state"`
}

// Ack is the empty success response for commands with no payload.
type Ack struct {
	OK bool `json:"ok"`
}
