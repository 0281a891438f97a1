package ws

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/codesync/collab-hub/internal/model"
)

// CollaborationPathPrefix is the path the hub is mounted under; a numeric
// segment after it names the project.
const CollaborationPathPrefix = "/ws/collaboration/"

// Keys looked up in pre-attached connection attributes and in the query string.
const (
	AttrProjectID = "projectId"
	AttrUserID    = "userId"
	AttrUserName  = "userName"
)

// Identity fallbacks for handshakes that do not name the user.
const (
	DefaultUserID   = "anonymous"
	DefaultUserName = "Anonymous"
)

// Identity is what a connection is known as for its whole lifetime.
type Identity struct {
	ProjectID string
	UserID    string
	UserName  string
}

// ResolveIdentity resolves the project, user and display name of a handshake.
// Each value is taken from the first source that has it: attrs (set by an
// upstream interceptor), then query parameters, then, for the project only, the
// numeric path segment after CollaborationPathPrefix. User fields fall back to
// DefaultUserID and DefaultUserName; the project falls back to
// defaultProjectID, and when that is empty too model.ErrMissingProjectID is returned.
func ResolveIdentity(r *http.Request, attrs map[string]any, defaultProjectID string) (Identity, error) {
	query := r.URL.Query()

	lookup := func(key string) string {
		if v := attrString(attrs, key); v != "" {
			return v
		}
		return strings.TrimSpace(query.Get(key))
	}

	id := Identity{
		ProjectID: lookup(AttrProjectID),
		UserID:    lookup(AttrUserID),
		UserName:  lookup(AttrUserName),
	}

	if id.ProjectID == "" {
		id.ProjectID = projectFromPath(r.URL.Path)
	}
	if id.ProjectID == "" {
		id.ProjectID = defaultProjectID
	}
	if id.UserID == "" {
		id.UserID = DefaultUserID
	}
	if id.UserName == "" {
		id.UserName = DefaultUserName
	}

	if id.ProjectID == "" {
		return id, model.ErrMissingProjectID
	}
	return id, nil
}

func attrString(attrs map[string]any, key string) string {
	v, ok := attrs[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

func projectFromPath(path string) string {
	i := strings.LastIndex(path, CollaborationPathPrefix)
	if i < 0 {
		return ""
	}
	segment := strings.TrimSuffix(path[i+len(CollaborationPathPrefix):], "/")
	if segment == "" {
		return ""
	}
	for _, c := range segment {
		if c < '0' || c > '9' {
			return ""
		}
	}
	return segment
}
