package ws

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/codesync/collab-hub/internal/model"
)

const (
	// Time allowed to write a message to the peer.
	defaultWriteWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	defaultPongWait = 60 * time.Second

	// Maximum message size allowed from peer. Code changes can carry whole files.
	defaultMaxMessageSize = 512 * 1024

	defaultMailboxSize = 256

	// Time allowed for audit log writes.
	recordTimeout = 5 * time.Second
)

// Options configures a Handler. Zero values fall back to defaults.
type Options struct {
	// DefaultProjectID is used when a handshake names no project. Empty refuses
	// such handshakes.
	DefaultProjectID string
	MailboxSize      int
	MaxMessageSize   int64
	WriteWait        time.Duration
	PongWait         time.Duration
	CheckOrigin      func(r *http.Request) bool
}

func (o *Options) applyDefaults() {
	if o.MailboxSize <= 0 {
		o.MailboxSize = defaultMailboxSize
	}
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = defaultMaxMessageSize
	}
	if o.WriteWait <= 0 {
		o.WriteWait = defaultWriteWait
	}
	if o.PongWait <= 0 {
		o.PongWait = defaultPongWait
	}
}

// Recorder persists collaboration session records. The hub only reports to it;
// a failing recorder never affects live traffic.
type Recorder interface {
	Create(ctx context.Context, session *model.CollabSession) error
	MarkLeft(ctx context.Context, id string, leftAt time.Time) error
}

// Handler handles WebSocket connections for project rooms.
type Handler struct {
	registry *Registry
	opts     Options
	upgrader websocket.Upgrader
	recorder Recorder
	now      func() time.Time
}

// NewHandler creates a new WebSocket handler. recorder may be nil.
func NewHandler(registry *Registry, opts Options, recorder Recorder) *Handler {
	opts.applyDefaults()
	checkOrigin := opts.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = func(r *http.Request) bool { return true }
	}
	return &Handler{
		registry: registry,
		opts:     opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		recorder: recorder,
		now:      time.Now,
	}
}

// Registry returns the registry the handler joins connections to.
func (h *Handler) Registry() *Registry {
	return h.registry
}

// HandleConnection upgrades the request and runs the connection until the
// transport closes. attrs carries identity attributes attached by upstream
// middleware and may be nil.
func (h *Handler) HandleConnection(w http.ResponseWriter, r *http.Request, attrs map[string]any) error {
	identity, resolveErr := ResolveIdentity(r, attrs, h.opts.DefaultProjectID)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	if resolveErr != nil {
		log.Printf("Refusing WebSocket connection from %s: %v", r.RemoteAddr, resolveErr)
		h.refuse(conn, "Missing project ID")
		return nil
	}

	client := NewClient(conn, identity, h.opts.MailboxSize)
	h.join(client)

	go h.writePump(client)
	go h.readPump(client)

	return nil
}

// refuse closes a connection that never entered the registry with a bad data status.
func (h *Handler) refuse(conn *websocket.Conn, reason string) {
	msg := websocket.FormatCloseMessage(websocket.CloseInvalidFramePayloadData, reason)
	if err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(h.opts.WriteWait)); err != nil {
		log.Printf("Failed to send close frame: %v", err)
	}
	conn.Close()
}

// join registers the client, sends it one user_joined per existing member, and
// announces it to the whole room including itself. Presence frames are pinned
// in the mailboxes so no member misses a roster change.
func (h *Handler) join(client *Client) {
	projectID := client.ProjectID()
	others := h.registry.Join(client)

	log.Printf("Connection %s joined project %s (userId: %s, userName: %s), %d already present",
		client.ID(), projectID, client.identity.UserID, client.identity.UserName, len(others))

	now := h.now()
	for _, other := range others {
		// Queued while other is held open: a peer leaving concurrently is either
		// skipped here or has its user_left queued after this catch-up.
		// Locks nest in join order, earlier member first.
		msg := presenceMessage(MessageTypeUserJoined, projectID, other.Presence(), now)
		var err error
		if !other.whileOpen(func() { err = h.registry.SendPresence(client, msg) }) {
			continue
		}
		if err != nil {
			log.Printf("Failed to send existing user %s to connection %s: %v", other.identity.UserID, client.ID(), err)
		}
	}

	announce := presenceMessage(MessageTypeUserJoined, projectID, client.Presence(), now)
	if _, err := h.registry.BroadcastPresence(projectID, announce, ""); err != nil {
		log.Printf("Failed to announce connection %s: %v", client.ID(), err)
	}

	if h.recorder != nil {
		client.recorded = make(chan struct{})
		go h.recordJoin(client, now)
	}
}

// leave runs the leave protocol once per client, whichever pump gets there first.
func (h *Handler) leave(client *Client) {
	client.leaveOnce.Do(func() {
		client.Close()

		projectID := client.ProjectID()
		if !h.registry.Leave(client) {
			return
		}
		log.Printf("Connection %s left project %s", client.ID(), projectID)

		now := h.now()
		msg := presenceMessage(MessageTypeUserLeft, projectID, client.Presence(), now)
		if _, err := h.registry.BroadcastPresence(projectID, msg, client.ID()); err != nil {
			log.Printf("Failed to announce departure of connection %s: %v", client.ID(), err)
		}

		h.recordLeave(client, now)
	})
}

// route dispatches one inbound frame.
func (h *Handler) route(client *Client, raw []byte) {
	in, err := DecodeInbound(raw)
	if err != nil {
		log.Printf("Dropping malformed message from connection %s: %v", client.ID(), err)
		return
	}

	switch msg := in.(type) {
	case RelayMessage:
		h.relay(client, msg)
	case UnknownMessage:
		log.Printf("Unknown message type %q from connection %s", msg.Type, client.ID())
	}
}

// relay forwards a client message to the rest of its room.
func (h *Handler) relay(client *Client, msg RelayMessage) {
	projectID := client.ProjectID()
	if _, err := h.registry.Broadcast(projectID, msg.ForRoom(projectID), client.ID()); err != nil {
		log.Printf("Failed to relay %s from connection %s: %v", msg.Type, client.ID(), err)
	}
}

// recordJoin writes the audit record of a join off the connection's path and
// closes client.recorded when done.
func (h *Handler) recordJoin(client *Client, at time.Time) {
	defer close(client.recorded)

	session := &model.CollabSession{
		ID:           uuid.NewString(),
		ConnectionID: client.ID(),
		ProjectID:    client.ProjectID(),
		UserID:       client.identity.UserID,
		UserName:     client.identity.UserName,
		JoinedAt:     at,
	}

	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()
	if err := h.recorder.Create(ctx, session); err != nil {
		log.Printf("Failed to record join of connection %s: %v", client.ID(), err)
		return
	}
	client.auditID = session.ID
}

// recordLeave waits for the join record, then stamps its leave time.
func (h *Handler) recordLeave(client *Client, at time.Time) {
	if h.recorder == nil || client.recorded == nil {
		return
	}
	<-client.recorded
	if client.auditID == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()
	if err := h.recorder.MarkLeft(ctx, client.auditID, at); err != nil {
		log.Printf("Failed to record leave of connection %s: %v", client.ID(), err)
	}
}

// readPump pumps messages from the WebSocket connection to the router.
func (h *Handler) readPump(client *Client) {
	defer func() {
		h.leave(client)
		client.Conn().Close()
	}()

	conn := client.Conn()
	conn.SetReadLimit(h.opts.MaxMessageSize)
	conn.SetReadDeadline(time.Now().Add(h.opts.PongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(h.opts.PongWait))
		return nil
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("WebSocket transport error on connection %s: %v", client.ID(), err)
			}
			break
		}

		h.route(client, message)
	}
}

// writePump pumps queued frames from the client's mailbox to the WebSocket connection.
func (h *Handler) writePump(client *Client) {
	pingPeriod := (h.opts.PongWait * 9) / 10
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.Conn().Close()
	}()

	conn := client.Conn()
	for {
		select {
		case <-client.Notify():
			// Each frame goes out in its own WebSocket message so clients can JSON.parse it.
			for _, frame := range client.Drain() {
				conn.SetWriteDeadline(time.Now().Add(h.opts.WriteWait))
				if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
					log.Printf("Failed to write to connection %s: %v", client.ID(), err)
					return
				}
			}
		case <-client.Done():
			conn.SetWriteDeadline(time.Now().Add(h.opts.WriteWait))
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(h.opts.WriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
