package model

import "time"

// CollabSession is the audit record of one connection's stay in a project room.
// LeftAt is nil while the connection is still live.
type CollabSession struct {
	ID           string     `json:"id"`
	ConnectionID string     `json:"connectionId"`
	ProjectID    string     `json:"projectId"`
	UserID       string     `json:"userId"`
	UserName     string     `json:"userName"`
	JoinedAt     time.Time  `json:"joinedAt"`
	LeftAt       *time.Time `json:"leftAt,omitempty"`
}

// Active reports whether the connection has not left yet.
func (s *CollabSession) Active() bool {
	return s.LeftAt == nil
}

// Duration returns how long the connection stayed in the room, or has stayed so far.
func (s *CollabSession) Duration() time.Duration {
	if s.LeftAt != nil {
		return s.LeftAt.Sub(s.JoinedAt)
	}
	return time.Since(s.JoinedAt)
}
