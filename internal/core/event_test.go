package core

import (
	"strings"
	"testing"
)

func TestEncodeEventUsesKindName(t *testing.T) {
	data, err := EncodeEvent(NewChatEvent("lobby", "alice", "hello", "en"))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !strings.Contains(string(data), `"kind":"chat_message"`) {
		t.Fatalf("expected kind name in payload, got %s", data)
	}

	ev, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.Room != "lobby" || ev.Chat.SourceLanguage != "en" {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestDecodeEventRejectsUnknownKind(t *testing.T) {
	if _, err := DecodeEvent([]byte(`{"kind":"typing","room":"lobby"}`)); err == nil {
		t.Fatalf("expected unknown kind to fail")
	}
	if _, err := DecodeEvent([]byte(`{"kind":"chat_message","room":"lobby","chat":{"text":"x"}}`)); err == nil {
		t.Fatalf("expected event without sender to fail")
	}
}
