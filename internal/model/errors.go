package model

import "errors"

var (
	// ErrMissingProjectID is returned when a handshake carries no resolvable project ID.
	ErrMissingProjectID = errors.New("missing project ID")

	// ErrConnectionClosed is returned when sending to a connection that has already closed.
	ErrConnectionClosed = errors.New("connection closed")

	// ErrMissingMessageType is returned when an inbound payload has no string "type" field.
	ErrMissingMessageType = errors.New("message type is required")

	// ErrRoomNotFound is returned when no live room exists for a project.
	ErrRoomNotFound = errors.New("room not found")

	// ErrCollabSessionNotFound is returned when a collaboration session record is not found.
	ErrCollabSessionNotFound = errors.New("collaboration session not found")
)
