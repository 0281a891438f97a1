package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/codesync/collab-hub/internal/model"
)

// CollabSessionRepository provides data access for collaboration session audit records.
type CollabSessionRepository struct {
	db *sql.DB
}

// NewCollabSessionRepository creates a new CollabSessionRepository.
func NewCollabSessionRepository(db *sql.DB) *CollabSessionRepository {
	return &CollabSessionRepository{db: db}
}

const sessionColumns = `id, connection_id, project_id, user_id, user_name, joined_at, left_at`

// Create inserts a new collaboration session into the database.
func (r *CollabSessionRepository) Create(ctx context.Context, session *model.CollabSession) error {
	query := `
		INSERT INTO collab_sessions (` + sessionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		session.ID,
		session.ConnectionID,
		session.ProjectID,
		session.UserID,
		session.UserName,
		session.JoinedAt.UTC(),
		nullTime(session.LeftAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create collaboration session: %w", err)
	}

	return nil
}

// MarkLeft records the time a connection left its room.
func (r *CollabSessionRepository) MarkLeft(ctx context.Context, id string, leftAt time.Time) error {
	query := `UPDATE collab_sessions SET left_at = ? WHERE id = ? AND left_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, leftAt.UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to mark collaboration session left: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return model.ErrCollabSessionNotFound
	}

	return nil
}

// GetByID retrieves a collaboration session by its ID.
func (r *CollabSessionRepository) GetByID(ctx context.Context, id string) (*model.CollabSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM collab_sessions WHERE id = ?`

	session, err := scanSession(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, model.ErrCollabSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get collaboration session: %w", err)
	}

	return session, nil
}

// ListByProject retrieves the most recent collaboration sessions of a project,
// newest first. A non-positive limit returns every record.
func (r *CollabSessionRepository) ListByProject(ctx context.Context, projectID string, limit int) ([]*model.CollabSession, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM collab_sessions
		WHERE project_id = ?
		ORDER BY joined_at DESC, id
		LIMIT ?
	`
	if limit <= 0 {
		limit = -1
	}

	rows, err := r.db.QueryContext(ctx, query, projectID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list collaboration sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*model.CollabSession
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan collaboration session: %w", err)
		}
		sessions = append(sessions, session)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating collaboration sessions: %w", err)
	}

	return sessions, nil
}

// CountActiveByProject returns the number of sessions of a project that have not left.
func (r *CollabSessionRepository) CountActiveByProject(ctx context.Context, projectID string) (int, error) {
	query := `SELECT COUNT(*) FROM collab_sessions WHERE project_id = ? AND left_at IS NULL`

	var count int
	if err := r.db.QueryRowContext(ctx, query, projectID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count active collaboration sessions: %w", err)
	}

	return count, nil
}

// CloseDangling stamps left_at on every record still open, e.g. those left
// behind by a process that exited without running the leave protocol.
func (r *CollabSessionRepository) CloseDangling(ctx context.Context, at time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `UPDATE collab_sessions SET left_at = ? WHERE left_at IS NULL`, at.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to close dangling collaboration sessions: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*model.CollabSession, error) {
	session := &model.CollabSession{}
	var leftAt sql.NullTime

	err := row.Scan(
		&session.ID,
		&session.ConnectionID,
		&session.ProjectID,
		&session.UserID,
		&session.UserName,
		&session.JoinedAt,
		&leftAt,
	)
	if err != nil {
		return nil, err
	}

	if leftAt.Valid {
		t := leftAt.Time
		session.LeftAt = &t
	}

	return session, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
