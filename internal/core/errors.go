package core

import "errors"

var (
	// ErrHubClosed is returned once the coordinator loop has stopped.
	ErrHubClosed = errors.New("hub closed")
	// ErrEmptyRoom is returned for operations without a room name.
	ErrEmptyRoom = errors.New("room name is required")
	// ErrNilSubscriber is returned when joining or leaving without a subscriber.
	ErrNilSubscriber = errors.New("subscriber is required")
)
