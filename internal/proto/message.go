// Package proto defines the frames exchanged with websocket clients.
package proto

import (
	"encoding/json"
	"errors"
)

// ErrMissingMessage is returned for a frame without a string "message" field.
var ErrMissingMessage = errors.New(`frame must be an object with a string "message" field`)

// Inbound is a chat line sent by the client.
type Inbound struct {
	Message *string `json:"message"`
}

// Outbound is a chat line delivered to the client, already in the
// recipient's language.
type Outbound struct {
	Message  string `json:"message"`
	Username string `json:"username"`
}

// DecodeInbound parses a client frame. Extra fields are ignored; an empty
// message is accepted.
func DecodeInbound(data []byte) (string, error) {
	var in Inbound
	if err := json.Unmarshal(data, &in); err != nil {
		return "", errors.Join(ErrMissingMessage, err)
	}
	if in.Message == nil {
		return "", ErrMissingMessage
	}
	return *in.Message, nil
}
