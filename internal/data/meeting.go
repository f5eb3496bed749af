package data

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/DevRickLin/feishu-meetbot/internal/biz/domain"
)

const meetingColumns = `id, name, chat_id, voice_code, voice_used, audio_bridge, state,
	length_minutes, topic_time_limit, current_topic_id, queue_next_topic,
	start_requested, complete_msg_id, created_at, updated_at`

// meetingRepo implements repo.MeetingRepo on sqlite
type meetingRepo struct {
	db *sql.DB
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMeeting(row rowScanner) (*domain.Meeting, error) {
	var m domain.Meeting
	var state int
	var createdAt, updatedAt int64
	err := row.Scan(&m.ID, &m.Name, &m.ChatID, &m.VoiceCode, &m.VoiceUsed, &m.AudioBridge, &state,
		&m.LengthMinutes, &m.TopicTimeLimit, &m.CurrentTopicID, &m.QueueNextTopic,
		&m.StartRequested, &m.CompleteMsgID, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	m.State = domain.MeetingState(state)
	m.CreatedAt = time.UnixMilli(createdAt)
	m.UpdatedAt = time.UnixMilli(updatedAt)
	return &m, nil
}

// Create inserts the meeting and its topics in one transaction
func (r *meetingRepo) Create(ctx context.Context, m *domain.Meeting, topics []*domain.Topic) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.NewUnavailableError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	now := time.Now()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now

	_, err = execTraced(ctx, tx, "meeting", "insert", `
		INSERT INTO meetings (`+meetingColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		m.ID, m.Name, m.ChatID, m.VoiceCode, boolToInt(m.VoiceUsed), boolToInt(m.AudioBridge), int(m.State),
		m.LengthMinutes, m.TopicTimeLimit, m.CurrentTopicID, boolToInt(m.QueueNextTopic),
		boolToInt(m.StartRequested), m.CompleteMsgID, m.CreatedAt.UnixMilli(), m.UpdatedAt.UnixMilli(),
	)
	if err != nil {
		return err
	}

	for _, t := range topics {
		_, err = execTraced(ctx, tx, "topic", "insert", `
			INSERT INTO topics (id, meeting_id, seq, name, message_id, time_left, recording, transcription)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, t.ID, m.ID, t.Seq, t.Name, t.MessageID, t.TimeLeft, boolToInt(t.Recording), t.Transcription)
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return domain.NewInternalError("failed to commit meeting", err)
	}
	return nil
}

func (r *meetingRepo) getBy(ctx context.Context, column, value string) (*domain.Meeting, error) {
	ctx, span := startSpan(ctx, "sqlite", "get", "meeting")
	defer span.End()

	row := r.db.QueryRowContext(ctx, `SELECT `+meetingColumns+` FROM meetings WHERE `+column+` = ?`, value)
	m, err := scanMeeting(row)
	if err != nil {
		err = mapSQLError("meeting", err)
		endSpan(span, err)
		return nil, err
	}
	endSpan(span, nil)
	return m, nil
}

func (r *meetingRepo) Get(ctx context.Context, id string) (*domain.Meeting, error) {
	return r.getBy(ctx, "id", id)
}

func (r *meetingRepo) GetByChat(ctx context.Context, chatID string) (*domain.Meeting, error) {
	return r.getBy(ctx, "chat_id", chatID)
}

func (r *meetingRepo) GetByVoiceCode(ctx context.Context, code string) (*domain.Meeting, error) {
	return r.getBy(ctx, "voice_code", code)
}

// List returns all live meetings, newest first
func (r *meetingRepo) List(ctx context.Context) ([]*domain.Meeting, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+meetingColumns+` FROM meetings ORDER BY created_at DESC`)
	if err != nil {
		return nil, mapSQLError("meeting", err)
	}
	defer rows.Close()

	var meetings []*domain.Meeting
	for rows.Next() {
		m, err := scanMeeting(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan meeting: %w", err)
		}
		meetings = append(meetings, m)
	}
	return meetings, rows.Err()
}

// update runs a targeted update; zero affected rows means the meeting is gone
func (r *meetingRepo) update(ctx context.Context, op, id, set string, args ...any) error {
	return r.updateWhere(ctx, op, id, set, args, "")
}

// updateLive is update for lifecycle writes: a canceled meeting reports
// NotFound so Canceled is never overwritten
func (r *meetingRepo) updateLive(ctx context.Context, op, id, set string, args ...any) error {
	return r.updateWhere(ctx, op, id, set, args, ` AND state != ?`, int(domain.MeetingStateCanceled))
}

func (r *meetingRepo) updateWhere(ctx context.Context, op, id, set string, setArgs []any, cond string, condArgs ...any) error {
	query := `UPDATE meetings SET updated_at = ?`
	if set != "" {
		query += `, ` + set
	}
	query += ` WHERE id = ?` + cond

	args := append([]any{time.Now().UnixMilli()}, setArgs...)
	args = append(args, id)
	args = append(args, condArgs...)

	n, err := execTraced(ctx, r.db, "meeting", op, query, args...)
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.NewNotFoundError(fmt.Sprintf("meeting %s not found or canceled", id))
	}
	return nil
}

// SetState moves the meeting to state. Only Canceled may replace Canceled.
func (r *meetingRepo) SetState(ctx context.Context, id string, state domain.MeetingState) error {
	if state == domain.MeetingStateCanceled {
		return r.update(ctx, "set_state", id, `state = ?`, int(state))
	}
	return r.updateLive(ctx, "set_state", id, `state = ?`, int(state))
}

func (r *meetingRepo) SetCurrentTopic(ctx context.Context, id, topicID string) error {
	return r.update(ctx, "set_current_topic", id, `current_topic_id = ?`, topicID)
}

func (r *meetingRepo) SetCompleted(ctx context.Context, id, completeMsgID string) error {
	return r.updateLive(ctx, "set_completed", id, `state = ?, complete_msg_id = ?`,
		int(domain.MeetingStateCompleted), completeMsgID)
}

func (r *meetingRepo) MarkVoiceUsed(ctx context.Context, id string) error {
	return r.update(ctx, "mark_voice_used", id, `voice_used = 1`)
}

func (r *meetingRepo) RequestNextTopic(ctx context.Context, id string) error {
	return r.update(ctx, "request_next", id, `queue_next_topic = 1`)
}

func (r *meetingRepo) RequestStart(ctx context.Context, id string) error {
	return r.update(ctx, "request_start", id, `start_requested = 1`)
}

func (r *meetingRepo) Touch(ctx context.Context, id string) error {
	return r.update(ctx, "touch", id, "")
}

// ConsumeNextTopic clears the advance flag if it is set
func (r *meetingRepo) ConsumeNextTopic(ctx context.Context, id string) (bool, error) {
	n, err := execTraced(ctx, r.db, "meeting", "consume_next", `
		UPDATE meetings SET queue_next_topic = 0, updated_at = ?
		WHERE id = ? AND queue_next_topic = 1
	`, time.Now().UnixMilli(), id)
	if err != nil {
		return false, err
	}
	if n == 1 {
		return true, nil
	}
	if _, err := r.Get(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

// Delete removes the meeting; topics and callers go with it
func (r *meetingRepo) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.NewUnavailableError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	if _, err := execTraced(ctx, tx, "caller", "delete", `DELETE FROM callers WHERE meeting_id = ?`, id); err != nil {
		return err
	}
	if _, err := execTraced(ctx, tx, "topic", "delete", `DELETE FROM topics WHERE meeting_id = ?`, id); err != nil {
		return err
	}
	n, err := execTraced(ctx, tx, "meeting", "delete", `DELETE FROM meetings WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.NewNotFoundError(fmt.Sprintf("meeting %s not found", id))
	}

	if err := tx.Commit(); err != nil {
		return domain.NewInternalError("failed to commit delete", err)
	}
	return nil
}

// CleanupStale deletes meetings whose last activity is older than before
func (r *meetingRepo) CleanupStale(ctx context.Context, before time.Time) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, domain.NewUnavailableError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	cutoff := before.UnixMilli()
	stale := `SELECT id FROM meetings WHERE updated_at < ?`
	if _, err := execTraced(ctx, tx, "caller", "cleanup", `DELETE FROM callers WHERE meeting_id IN (`+stale+`)`, cutoff); err != nil {
		return 0, err
	}
	if _, err := execTraced(ctx, tx, "topic", "cleanup", `DELETE FROM topics WHERE meeting_id IN (`+stale+`)`, cutoff); err != nil {
		return 0, err
	}
	n, err := execTraced(ctx, tx, "meeting", "cleanup", `DELETE FROM meetings WHERE updated_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, domain.NewInternalError("failed to commit cleanup", err)
	}
	return n, nil
}
