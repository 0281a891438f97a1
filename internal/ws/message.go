package ws

import (
	"encoding/json"
	"fmt"

	"github.com/codesync/collab-hub/internal/model"
)

// MessageType represents the type of WebSocket message.
type MessageType string

const (
	// Client -> room relay message types
	MessageTypeCodeChange     MessageType = "code_change"
	MessageTypeCursorPosition MessageType = "cursor_position"
	MessageTypeFileSelection  MessageType = "file_selection"
	MessageTypeUserTyping     MessageType = "user_typing"
	MessageTypeFileSaved      MessageType = "file_saved"
	MessageTypeChatMessage    MessageType = "chat_message"

	// Server -> client presence message types
	MessageTypeUserJoined MessageType = "user_joined"
	MessageTypeUserLeft   MessageType = "user_left"
)

// IsRelay reports whether messages of this type are relayed to the sender's room.
func (t MessageType) IsRelay() bool {
	switch t {
	case MessageTypeCodeChange,
		MessageTypeCursorPosition,
		MessageTypeFileSelection,
		MessageTypeUserTyping,
		MessageTypeFileSaved,
		MessageTypeChatMessage:
		return true
	}
	return false
}

// Message is the envelope of server-generated messages.
type Message struct {
	Type      MessageType `json:"type"`
	ProjectID string      `json:"projectId"`
	FileID    string      `json:"fileId,omitempty"`
	UserID    string      `json:"userId"`
	Content   string      `json:"content"`
	Data      any         `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// Inbound is a decoded client message: either a RelayMessage or an UnknownMessage.
type Inbound interface {
	inbound()
}

// RelayMessage is a client message of a known relay type. Fields holds every
// top-level field as sent, so payload details the hub does not know about
// survive the relay.
type RelayMessage struct {
	Type   MessageType
	Fields map[string]json.RawMessage
}

// UnknownMessage is a well-formed client message whose type the hub does not route.
type UnknownMessage struct {
	Type string
	Raw  []byte
}

func (RelayMessage) inbound()   {}
func (UnknownMessage) inbound() {}

// DecodeInbound parses a client frame. The frame must be a JSON object with a
// non-empty string "type".
func DecodeInbound(raw []byte) (Inbound, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("decode inbound message: %w", err)
	}

	rawType, ok := fields["type"]
	if !ok {
		return nil, model.ErrMissingMessageType
	}
	var typ string
	if err := json.Unmarshal(rawType, &typ); err != nil || typ == "" {
		return nil, model.ErrMissingMessageType
	}

	if mt := MessageType(typ); mt.IsRelay() {
		return RelayMessage{Type: mt, Fields: fields}, nil
	}
	return UnknownMessage{Type: typ, Raw: raw}, nil
}

// ForRoom returns the relay payload with projectId set to the room it is
// broadcast in.
func (m RelayMessage) ForRoom(projectID string) map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(m.Fields)+1)
	for k, v := range m.Fields {
		out[k] = v
	}
	pid, _ := json.Marshal(projectID)
	out["projectId"] = pid
	return out
}
