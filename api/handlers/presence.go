package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/codesync/collab-hub/internal/model"
	"github.com/codesync/collab-hub/internal/ws"
)

const (
	defaultSessionLimit = 50
	maxSessionLimit     = 500
)

// SessionStore reads collaboration session history.
type SessionStore interface {
	ListByProject(ctx context.Context, projectID string, limit int) ([]*model.CollabSession, error)
	CountActiveByProject(ctx context.Context, projectID string) (int, error)
}

// PresenceHandler serves live room state and collaboration history.
type PresenceHandler struct {
	service  *ws.Service
	sessions SessionStore
}

// NewPresenceHandler creates a new PresenceHandler. sessions may be nil when
// the audit log is disabled.
func NewPresenceHandler(service *ws.Service, sessions SessionStore) *PresenceHandler {
	return &PresenceHandler{
		service:  service,
		sessions: sessions,
	}
}

// PresenceResponse is the live roster of a project's room. RecordedActive is
// the number of open session records in the audit log, when it is enabled.
type PresenceResponse struct {
	ProjectID      string            `json:"projectId"`
	Members        []ws.PresenceUser `json:"members"`
	RecordedActive *int              `json:"recordedActive,omitempty"`
}

// SessionResponse represents a collaboration session in API responses.
type SessionResponse struct {
	ID           string `json:"id"`
	ConnectionID string `json:"connectionId"`
	ProjectID    string `json:"projectId"`
	UserID       string `json:"userId"`
	UserName     string `json:"userName"`
	Active       bool   `json:"active"`
	Duration     string `json:"duration"`
	JoinedAt     string `json:"joinedAt"`
	LeftAt       string `json:"leftAt,omitempty"`
}

func toSessionResponse(s *model.CollabSession) *SessionResponse {
	resp := &SessionResponse{
		ID:           s.ID,
		ConnectionID: s.ConnectionID,
		ProjectID:    s.ProjectID,
		UserID:       s.UserID,
		UserName:     s.UserName,
		Active:       s.Active(),
		Duration:     formatDuration(s.Duration()),
		JoinedAt:     s.JoinedAt.Format(time.RFC3339),
	}
	if s.LeftAt != nil {
		resp.LeftAt = s.LeftAt.Format(time.RFC3339)
	}
	return resp
}

// Rooms handles GET /api/rooms - lists live rooms with their member counts.
func (h *PresenceHandler) Rooms(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.Rooms())
}

// Presence handles GET /api/projects/:projectId/presence - lists who is in a room.
func (h *PresenceHandler) Presence(c *gin.Context) {
	projectID := c.Param("projectId")

	members, err := h.service.Presence(projectID)
	if err != nil {
		if errors.Is(err, model.ErrRoomNotFound) {
			sendError(c, http.StatusNotFound, "ROOM_NOT_FOUND", "No collaboration room for project "+projectID)
			return
		}
		sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to get presence: "+err.Error())
		return
	}

	users := make([]ws.PresenceUser, len(members))
	for i, m := range members {
		users[i] = m.User()
	}
	resp := PresenceResponse{ProjectID: projectID, Members: users}
	if h.sessions != nil {
		active, err := h.sessions.CountActiveByProject(c.Request.Context(), projectID)
		if err != nil {
			log.Printf("Failed to count recorded sessions of project %s: %v", projectID, err)
		} else {
			resp.RecordedActive = &active
		}
	}
	c.JSON(http.StatusOK, resp)
}

// Sessions handles GET /api/projects/:projectId/sessions - lists recent
// collaboration sessions of a project, newest first.
func (h *PresenceHandler) Sessions(c *gin.Context) {
	if h.sessions == nil {
		sendError(c, http.StatusServiceUnavailable, "AUDIT_DISABLED", "Collaboration session history is not enabled")
		return
	}

	limit := defaultSessionLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxSessionLimit {
			sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", "limit must be between 1 and "+strconv.Itoa(maxSessionLimit))
			return
		}
		limit = n
	}

	sessions, err := h.sessions.ListByProject(c.Request.Context(), c.Param("projectId"), limit)
	if err != nil {
		sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list sessions: "+err.Error())
		return
	}

	response := make([]*SessionResponse, len(sessions))
	for i, s := range sessions {
		response[i] = toSessionResponse(s)
	}
	c.JSON(http.StatusOK, response)
}

// RegisterRoutes registers the presence handler routes on a Gin router group.
func (h *PresenceHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/rooms", h.Rooms)

	projects := rg.Group("/projects/:projectId")
	{
		projects.GET("/presence", h.Presence)
		projects.GET("/sessions", h.Sessions)
	}
}
