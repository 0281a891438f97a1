package handlers

import (
	"log"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/codesync/collab-hub/internal/ws"
)

// Identity headers set by a trusted reverse proxy in front of the hub.
const (
	HeaderProjectID = "X-Project-Id"
	HeaderUserID    = "X-User-Id"
	HeaderUserName  = "X-User-Name"
)

// WebSocketHandler handles WebSocket connections to project rooms.
type WebSocketHandler struct {
	wsHandler *ws.Handler
}

// NewWebSocketHandler creates a new WebSocketHandler.
func NewWebSocketHandler(wsHandler *ws.Handler) *WebSocketHandler {
	return &WebSocketHandler{
		wsHandler: wsHandler,
	}
}

// Collaborate handles WS /ws/collaboration[/:projectId] - joins the project's room.
// Identity attributes set on the gin context by earlier middleware take
// precedence over query parameters.
func (h *WebSocketHandler) Collaborate(c *gin.Context) {
	if err := h.wsHandler.HandleConnection(c.Writer, c.Request, c.Keys); err != nil {
		// The upgrader has already replied with an HTTP error.
		log.Printf("WebSocket upgrade failed for %s: %v", c.Request.URL.Path, err)
		return
	}
}

// RegisterRoutes registers the WebSocket handler routes on a Gin router.
func (h *WebSocketHandler) RegisterRoutes(r gin.IRouter) {
	r.GET("/ws/collaboration", h.Collaborate)
	r.GET("/ws/collaboration/:projectId", h.Collaborate)
}

// IdentityHeaders copies the identity headers of a trusted proxy into the
// context keys the WebSocket handler resolves identity from.
func IdentityHeaders() gin.HandlerFunc {
	headers := map[string]string{
		HeaderProjectID: ws.AttrProjectID,
		HeaderUserID:    ws.AttrUserID,
		HeaderUserName:  ws.AttrUserName,
	}

	return func(c *gin.Context) {
		for header, key := range headers {
			if v := strings.TrimSpace(c.GetHeader(header)); v != "" {
				c.Set(key, v)
			}
		}
		c.Next()
	}
}
