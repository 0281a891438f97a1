package ws

import (
	"log"

	"github.com/codesync/collab-hub/internal/model"
)

// Service owns the room registry and the connection handler for the lifetime
// of the server.
type Service struct {
	registry *Registry
	handler  *Handler
}

// NewService creates a new WebSocket service. recorder may be nil.
func NewService(opts Options, recorder Recorder) *Service {
	registry := NewRegistry()
	handler := NewHandler(registry, opts, recorder)

	return &Service{
		registry: registry,
		handler:  handler,
	}
}

// Handler returns the WebSocket handler.
func (s *Service) Handler() *Handler {
	return s.handler
}

// Registry returns the room registry.
func (s *Service) Registry() *Registry {
	return s.registry
}

// Presence returns the live roster of a project's room.
func (s *Service) Presence(projectID string) ([]Presence, error) {
	members, ok := s.registry.Members(projectID)
	if !ok {
		return nil, model.ErrRoomNotFound
	}
	return members, nil
}

// Rooms returns a summary of every live room.
func (s *Service) Rooms() []RoomInfo {
	return s.registry.Rooms()
}

// Close closes every connection. Their pumps then run the leave protocol.
func (s *Service) Close() {
	clients := s.registry.Clients()
	for _, client := range clients {
		client.Close()
	}
	log.Printf("Closed %d WebSocket connections", len(clients))
}
