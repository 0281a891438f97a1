package ws

import (
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"sync"
)

// Room is the set of connections sharing one project ID.
type Room struct {
	projectID string
	members   map[string]*Client
	mu        sync.RWMutex

	// dead is set when the last member leaves; a dead room never takes members again.
	dead bool
}

func newRoom(projectID string) *Room {
	return &Room{
		projectID: projectID,
		members:   make(map[string]*Client),
	}
}

// add inserts c and returns the members that were present before it. It fails
// if the room has already been emptied.
func (r *Room) add(c *Client) ([]*Client, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.dead {
		return nil, false
	}
	others := make([]*Client, 0, len(r.members))
	for id, member := range r.members {
		if id != c.id {
			others = append(others, member)
		}
	}
	r.members[c.id] = c
	return others, true
}

// remove deletes the member and reports whether it was present and whether the
// room is now empty.
func (r *Room) remove(id string) (removed, empty bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.members[id]; !ok {
		return false, len(r.members) == 0
	}
	delete(r.members, id)
	if len(r.members) == 0 {
		r.dead = true
		return true, true
	}
	return true, false
}

// snapshot returns the current members. Joins and leaves after the call are not
// reflected.
func (r *Room) snapshot() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	clients := make([]*Client, 0, len(r.members))
	for _, member := range r.members {
		clients = append(clients, member)
	}
	return clients
}

// Size returns the number of members.
func (r *Room) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

// RoomInfo summarizes a live room.
type RoomInfo struct {
	ProjectID string `json:"projectId"`
	Members   int    `json:"members"`
}

// Registry maps project IDs to rooms. The registry lock only guards the map;
// each room has its own lock, so rooms never wait on each other's traffic.
type Registry struct {
	rooms map[string]*Room
	mu    sync.RWMutex
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		rooms: make(map[string]*Room),
	}
}

// Join adds the client to the room of its project, creating the room if needed,
// and returns the members that were already present.
func (reg *Registry) Join(c *Client) []*Client {
	projectID := c.ProjectID()
	for {
		reg.mu.Lock()
		room, ok := reg.rooms[projectID]
		if !ok {
			room = newRoom(projectID)
			room.members[c.id] = c
			reg.rooms[projectID] = room
			reg.mu.Unlock()
			return nil
		}
		reg.mu.Unlock()

		if others, ok := room.add(c); ok {
			return others
		}
		// The room emptied between lookup and insert; retry on a fresh one.
		reg.dropRoom(projectID, room)
	}
}

// Leave removes the client from its room and drops the room when it becomes
// empty. It reports whether the client was a member.
func (reg *Registry) Leave(c *Client) bool {
	room := reg.room(c.ProjectID())
	if room == nil {
		return false
	}

	removed, empty := room.remove(c.id)
	if empty {
		reg.dropRoom(c.ProjectID(), room)
	}
	return removed
}

func (reg *Registry) dropRoom(projectID string, room *Room) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if reg.rooms[projectID] == room {
		delete(reg.rooms, projectID)
	}
}

func (reg *Registry) room(projectID string) *Room {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return reg.rooms[projectID]
}

// Broadcast serializes v once and queues it for every open member of the
// project's room except the connection with ID exclude (empty excludes nobody).
// A member that cannot take the frame is logged and skipped. It returns the
// number of members the frame was queued for; an encoding error aborts the
// broadcast before any member is reached. Frames may be dropped by slow members.
func (reg *Registry) Broadcast(projectID string, v any, exclude string) (int, error) {
	return reg.broadcast(projectID, v, exclude, false)
}

// BroadcastPresence is Broadcast for presence messages, which members never drop.
func (reg *Registry) BroadcastPresence(projectID string, v any, exclude string) (int, error) {
	return reg.broadcast(projectID, v, exclude, true)
}

func (reg *Registry) broadcast(projectID string, v any, exclude string, pinned bool) (int, error) {
	room := reg.room(projectID)
	if room == nil {
		return 0, nil
	}
	members := room.snapshot()

	data, err := json.Marshal(v)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal broadcast for project %s: %w", projectID, err)
	}

	delivered := 0
	for _, member := range members {
		if member.id == exclude || member.IsClosed() {
			continue
		}
		if err := member.send(data, pinned); err != nil {
			log.Printf("Failed to queue message for connection %s: %v", member.id, err)
			continue
		}
		delivered++
	}
	return delivered, nil
}

// SendPresence serializes v and queues it for a single client as a frame the
// client never drops.
func (reg *Registry) SendPresence(c *Client, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal message for connection %s: %w", c.id, err)
	}
	return c.SendPinned(data)
}

// Members returns the presence of every member of a project's room, ordered by
// user ID, and false if no such room exists.
func (reg *Registry) Members(projectID string) ([]Presence, bool) {
	room := reg.room(projectID)
	if room == nil {
		return nil, false
	}

	members := room.snapshot()
	if len(members) == 0 {
		return nil, false
	}
	presences := make([]Presence, len(members))
	for i, member := range members {
		presences[i] = member.presence
	}
	sort.Slice(presences, func(i, j int) bool {
		return presences[i].UserID < presences[j].UserID
	})
	return presences, true
}

// Rooms returns a summary of every live room, ordered by project ID.
func (reg *Registry) Rooms() []RoomInfo {
	reg.mu.RLock()
	rooms := make([]*Room, 0, len(reg.rooms))
	for _, room := range reg.rooms {
		rooms = append(rooms, room)
	}
	reg.mu.RUnlock()

	infos := make([]RoomInfo, 0, len(rooms))
	for _, room := range rooms {
		if n := room.Size(); n > 0 {
			infos = append(infos, RoomInfo{ProjectID: room.projectID, Members: n})
		}
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].ProjectID < infos[j].ProjectID
	})
	return infos
}

// RoomCount returns the number of rooms in the registry.
func (reg *Registry) RoomCount() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.rooms)
}

// Clients returns every registered client across all rooms.
func (reg *Registry) Clients() []*Client {
	reg.mu.RLock()
	rooms := make([]*Room, 0, len(reg.rooms))
	for _, room := range reg.rooms {
		rooms = append(rooms, room)
	}
	reg.mu.RUnlock()

	var clients []*Client
	for _, room := range rooms {
		clients = append(clients, room.snapshot()...)
	}
	return clients
}
