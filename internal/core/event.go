package core

import (
	"encoding/json"
	"fmt"
)

// EventKind tags the variant carried by an Event.
type EventKind int

const (
	// EventChatMessage carries a chat line published by a room member.
	EventChatMessage EventKind = iota + 1
)

var eventKindNames = map[EventKind]string{
	EventChatMessage: "chat_message",
}

func (k EventKind) String() string {
	if name, ok := eventKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("event_kind(%d)", int(k))
}

// MarshalText encodes the kind by name so remote processes do not depend on iota order.
func (k EventKind) MarshalText() ([]byte, error) {
	name, ok := eventKindNames[k]
	if !ok {
		return nil, fmt.Errorf("unknown event kind %d", int(k))
	}
	return []byte(name), nil
}

// UnmarshalText decodes a kind name.
func (k *EventKind) UnmarshalText(text []byte) error {
	for kind, name := range eventKindNames {
		if name == string(text) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown event kind %q", string(text))
}

// Event is the value distributed to room members. It is passed by value so
// no recipient can observe another recipient's changes. The payload field
// matching Kind is the only one that carries data.
type Event struct {
	Kind EventKind   `json:"kind"`
	Room string      `json:"room"`
	Chat ChatMessage `json:"chat"`
}

// NewChatEvent builds a chat message event. The source language is fixed here
// and never re-resolved by recipients.
func NewChatEvent(room, username, text, sourceLanguage string) Event {
	return Event{
		Kind: EventChatMessage,
		Room: room,
		Chat: ChatMessage{
			Text:           text,
			Username:       username,
			SourceLanguage: sourceLanguage,
		},
	}
}

// Validate checks that the payload matches the kind.
func (e Event) Validate() error {
	switch e.Kind {
	case EventChatMessage:
		if e.Chat.Username == "" {
			return fmt.Errorf("%s event without sender", e.Kind)
		}
		return nil
	default:
		return fmt.Errorf("unsupported event kind %s", e.Kind)
	}
}

// EncodeEvent serializes an event for an external broker.
func EncodeEvent(e Event) ([]byte, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(e)
}

// DecodeEvent parses an event produced by EncodeEvent.
func DecodeEvent(data []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	if err := e.Validate(); err != nil {
		return Event{}, err
	}
	return e, nil
}
