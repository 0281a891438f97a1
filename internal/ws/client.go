package ws

import (
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/codesync/collab-hub/internal/buffer"
	"github.com/codesync/collab-hub/internal/model"
)

// Client represents one participant's WebSocket connection.
type Client struct {
	id       string
	identity Identity
	presence Presence
	conn     *websocket.Conn

	mailbox *buffer.RingBuffer
	notify  chan struct{}
	done    chan struct{}

	mu     sync.Mutex
	closed bool

	// auditID is the collaboration session record of this connection. It is
	// only read after recorded is closed, and is empty if the join was not recorded.
	auditID   string
	recorded  chan struct{}
	leaveOnce sync.Once
}

// NewClient creates a client with a fresh connection ID. mailboxSize bounds the
// number of frames queued for a slow reader.
func NewClient(conn *websocket.Conn, identity Identity, mailboxSize int) *Client {
	return &Client{
		id:       uuid.NewString(),
		identity: identity,
		presence: NewPresence(identity.UserID, identity.UserName),
		conn:     conn,
		mailbox:  buffer.NewRingBuffer(mailboxSize),
		notify:   make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// ID returns the connection ID.
func (c *Client) ID() string {
	return c.id
}

// ProjectID returns the project whose room the client belongs to.
func (c *Client) ProjectID() string {
	return c.identity.ProjectID
}

// Presence returns the client's presence entry.
func (c *Client) Presence() Presence {
	return c.presence
}

// Conn returns the underlying WebSocket connection.
func (c *Client) Conn() *websocket.Conn {
	return c.conn
}

// Send queues a droppable frame for the write pump. It never blocks: when the
// mailbox is full the oldest droppable frame is discarded.
func (c *Client) Send(data []byte) error {
	return c.send(data, false)
}

// SendPinned queues a frame that is never discarded, such as a presence
// message the client needs to keep its roster consistent.
func (c *Client) SendPinned(data []byte) error {
	return c.send(data, true)
}

func (c *Client) send(data []byte, pinned bool) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return model.ErrConnectionClosed
	}
	dropped := false
	if pinned {
		c.mailbox.PushPinned(data)
	} else {
		dropped = c.mailbox.Push(data)
	}
	c.mu.Unlock()

	if dropped {
		if n := c.mailbox.Dropped(); n == 1 || n%100 == 0 {
			log.Printf("Mailbox full for connection %s, %d frames dropped so far", c.id, n)
		}
	}

	select {
	case c.notify <- struct{}{}:
	default:
	}
	return nil
}

// whileOpen runs fn with the client's close held off and reports whether the
// client was still open.
func (c *Client) whileOpen(fn func()) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	fn()
	return true
}

// Notify is signalled whenever frames are queued.
func (c *Client) Notify() <-chan struct{} {
	return c.notify
}

// Drain removes and returns all queued frames, oldest first.
func (c *Client) Drain() [][]byte {
	return c.mailbox.DrainAll()
}

// Done is closed when the client is closed.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close marks the client closed. Further sends fail with model.ErrConnectionClosed.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.done)
}

// IsClosed returns true if the client is closed.
func (c *Client) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
