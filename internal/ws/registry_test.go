package ws

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// newTestClient creates a client without a real WebSocket connection.
func newTestClient(projectID, userID, userName string) *Client {
	return NewClient(nil, Identity{ProjectID: projectID, UserID: userID, UserName: userName}, 256)
}

// drainMessages decodes every frame queued for the client.
func drainMessages(t *testing.T, c *Client) []map[string]any {
	t.Helper()
	var msgs []map[string]any
	for _, frame := range c.Drain() {
		var m map[string]any
		if err := json.Unmarshal(frame, &m); err != nil {
			t.Fatalf("queued frame is not JSON: %v", err)
		}
		msgs = append(msgs, m)
	}
	return msgs
}

func TestRegistryJoinAndLeave(t *testing.T) {
	reg := NewRegistry()

	a := newTestClient("42", "1", "A")
	b := newTestClient("42", "2", "B")

	if others := reg.Join(a); len(others) != 0 {
		t.Errorf("expected no existing members, got %d", len(others))
	}
	others := reg.Join(b)
	if len(others) != 1 || others[0] != a {
		t.Errorf("expected existing member a, got %v", others)
	}
	if reg.RoomCount() != 1 {
		t.Errorf("expected 1 room, got %d", reg.RoomCount())
	}

	if !reg.Leave(a) {
		t.Error("expected a to be removed")
	}
	if reg.Leave(a) {
		t.Error("expected second leave to report not a member")
	}
	members, ok := reg.Members("42")
	if !ok || len(members) != 1 || members[0].UserID != "2" {
		t.Errorf("unexpected members after leave: %v", members)
	}

	reg.Leave(b)
	if reg.RoomCount() != 0 {
		t.Errorf("expected empty room to be removed, got %d rooms", reg.RoomCount())
	}
	if _, ok := reg.Members("42"); ok {
		t.Error("expected no room for project 42")
	}
}

func TestRegistryRejoinAfterRoomEmptied(t *testing.T) {
	reg := NewRegistry()

	a := newTestClient("7", "1", "A")
	reg.Join(a)
	reg.Leave(a)

	b := newTestClient("7", "2", "B")
	if others := reg.Join(b); len(others) != 0 {
		t.Errorf("expected fresh room, got %d members", len(others))
	}
	if infos := reg.Rooms(); len(infos) != 1 || infos[0].Members != 1 {
		t.Errorf("unexpected rooms: %+v", infos)
	}
}

func TestRegistryBroadcastExclusion(t *testing.T) {
	reg := NewRegistry()

	a := newTestClient("42", "1", "A")
	b := newTestClient("42", "2", "B")
	c := newTestClient("42", "3", "C")
	for _, cl := range []*Client{a, b, c} {
		reg.Join(cl)
	}

	n, err := reg.Broadcast("42", map[string]string{"type": "code_change"}, a.ID())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 deliveries, got %d", n)
	}
	if msgs := drainMessages(t, a); len(msgs) != 0 {
		t.Errorf("sender received its own message: %v", msgs)
	}
	for _, cl := range []*Client{b, c} {
		if msgs := drainMessages(t, cl); len(msgs) != 1 {
			t.Errorf("expected 1 message for %s, got %d", cl.ID(), len(msgs))
		}
	}

	// Closed members are skipped without affecting the others.
	b.Close()
	n, err = reg.Broadcast("42", map[string]string{"type": "cursor_position"}, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 deliveries with one closed member, got %d", n)
	}
}

func TestRegistryBroadcastMarshalFailure(t *testing.T) {
	reg := NewRegistry()
	a := newTestClient("42", "1", "A")
	reg.Join(a)

	n, err := reg.Broadcast("42", map[string]any{"bad": func() {}}, "")
	if err == nil {
		t.Fatal("expected marshal error")
	}
	if n != 0 {
		t.Errorf("expected no deliveries, got %d", n)
	}
	if msgs := drainMessages(t, a); len(msgs) != 0 {
		t.Errorf("expected nothing queued after failed marshal, got %v", msgs)
	}
	if a.IsClosed() {
		t.Error("marshal failure must not close members")
	}
}

func TestRegistryBroadcastUnknownRoom(t *testing.T) {
	reg := NewRegistry()
	n, err := reg.Broadcast("missing", map[string]string{"type": "x"}, "")
	if err != nil || n != 0 {
		t.Errorf("expected silent no-op, got n=%d err=%v", n, err)
	}
}

func TestRegistryConcurrentJoinLeaveBroadcast(t *testing.T) {
	reg := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			projectID := fmt.Sprint(i % 5)
			c := newTestClient(projectID, fmt.Sprint(i), "user")
			for j := 0; j < 20; j++ {
				reg.Join(c)
				if _, err := reg.Broadcast(projectID, map[string]int{"n": j}, c.ID()); err != nil {
					t.Errorf("broadcast failed: %v", err)
				}
				reg.Rooms()
				reg.Leave(c)
			}
		}(i)
	}
	wg.Wait()

	if reg.RoomCount() != 0 {
		t.Errorf("expected all rooms removed, got %d", reg.RoomCount())
	}
}

func TestBroadcastIsolationProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("broadcast reaches exactly the other members of the room", prop.ForAll(
		func(projects []int, target int, senderIdx int) bool {
			reg := NewRegistry()
			clients := make([]*Client, len(projects))
			for i, p := range projects {
				clients[i] = newTestClient(fmt.Sprint(p), fmt.Sprint(i), "user")
				reg.Join(clients[i])
			}
			sender := clients[senderIdx%len(clients)]
			targetProject := fmt.Sprint(target)

			if _, err := reg.Broadcast(targetProject, map[string]string{"type": "chat_message"}, sender.ID()); err != nil {
				return false
			}

			for i, c := range clients {
				got := len(c.Drain())
				want := 0
				if fmt.Sprint(projects[i]) == targetProject && c != sender {
					want = 1
				}
				if got != want {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(8, gen.IntRange(0, 2)),
		gen.IntRange(0, 2),
		gen.IntRange(0, 7),
	))

	properties.TestingRun(t)
}
