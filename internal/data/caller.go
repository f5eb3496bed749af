package data

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/DevRickLin/feishu-meetbot/internal/biz/domain"
)

// callerRepo implements repo.CallerRepo on sqlite
type callerRepo struct {
	db *sql.DB
}

func (r *callerRepo) Add(ctx context.Context, c *domain.Caller) error {
	_, err := execTraced(ctx, r.db, "caller", "insert", `
		INSERT INTO callers (id, meeting_id, name, session_id) VALUES (?, ?, ?, ?)
	`, c.ID, c.MeetingID, c.Name, c.SessionID)
	return err
}

func (r *callerRepo) ListByMeeting(ctx context.Context, meetingID string) ([]*domain.Caller, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, meeting_id, name, session_id FROM callers WHERE meeting_id = ? ORDER BY rowid
	`, meetingID)
	if err != nil {
		return nil, mapSQLError("caller", err)
	}
	defer rows.Close()

	var callers []*domain.Caller
	for rows.Next() {
		var c domain.Caller
		if err := rows.Scan(&c.ID, &c.MeetingID, &c.Name, &c.SessionID); err != nil {
			return nil, fmt.Errorf("failed to scan caller: %w", err)
		}
		callers = append(callers, &c)
	}
	return callers, rows.Err()
}

func (r *callerRepo) DeleteBySession(ctx context.Context, meetingID, sessionID string) error {
	n, err := execTraced(ctx, r.db, "caller", "delete", `
		DELETE FROM callers WHERE meeting_id = ? AND session_id = ?
	`, meetingID, sessionID)
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.NewNotFoundError(fmt.Sprintf("caller %s not found", sessionID))
	}
	return nil
}
