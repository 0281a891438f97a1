package ws

import (
	"strconv"
	"time"
	"unicode/utf16"
)

// userColors is the palette participants are drawn from.
var userColors = []string{
	"#22c55e", "#3b82f6", "#f59e0b", "#ef4444", "#8b5cf6",
	"#06b6d4", "#ec4899", "#10b981", "#f97316", "#6366f1",
}

const (
	joinedContent = "User joined the collaboration"
	leftContent   = "User left the collaboration"
)

// UserColor maps a user ID to a palette color. The index is the absolute value
// of the 32-bit polynomial hash (h = 31*h + c over UTF-16 code units) modulo the
// palette size.
func UserColor(userID string) string {
	var h int32
	for _, c := range utf16.Encode([]rune(userID)) {
		h = 31*h + int32(c)
	}
	idx := int64(h)
	if idx < 0 {
		idx = -idx
	}
	return userColors[idx%int64(len(userColors))]
}

// Presence describes one participant of a room.
type Presence struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
	Color    string `json:"color"`
}

// NewPresence builds the presence entry for a user.
func NewPresence(userID, userName string) Presence {
	return Presence{UserID: userID, UserName: userName, Color: UserColor(userID)}
}

// PresenceUser is the data.user object of presence messages. Name, FullName and
// UserName all carry the display name.
type PresenceUser struct {
	ID       any    `json:"id"`
	Name     string `json:"name"`
	FullName string `json:"fullName"`
	UserName string `json:"userName"`
	Color    string `json:"color"`
}

// PresenceData is the data object of presence messages.
type PresenceData struct {
	User PresenceUser `json:"user"`
}

// User returns the wire form of the presence entry. Numeric user IDs are
// emitted as JSON numbers, anything else as a string.
func (p Presence) User() PresenceUser {
	var id any = p.UserID
	if n, err := strconv.ParseInt(p.UserID, 10, 64); err == nil {
		id = n
	}
	return PresenceUser{
		ID:       id,
		Name:     p.UserName,
		FullName: p.UserName,
		UserName: p.UserName,
		Color:    p.Color,
	}
}

func presenceMessage(typ MessageType, projectID string, p Presence, now time.Time) *Message {
	content := joinedContent
	if typ == MessageTypeUserLeft {
		content = leftContent
	}
	return &Message{
		Type:      typ,
		ProjectID: projectID,
		UserID:    p.UserID,
		Content:   content,
		Data:      PresenceData{User: p.User()},
		Timestamp: now.UnixMilli(),
	}
}
