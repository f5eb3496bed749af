package data

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/DevRickLin/feishu-meetbot/internal/biz/domain"
)

const topicColumns = `id, meeting_id, seq, name, message_id, time_left, recording, transcription`

// topicRepo implements repo.TopicRepo on sqlite
type topicRepo struct {
	db *sql.DB
}

func scanTopic(row rowScanner) (*domain.Topic, error) {
	var t domain.Topic
	if err := row.Scan(&t.ID, &t.MeetingID, &t.Seq, &t.Name, &t.MessageID, &t.TimeLeft, &t.Recording, &t.Transcription); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *topicRepo) Get(ctx context.Context, id string) (*domain.Topic, error) {
	ctx, span := startSpan(ctx, "sqlite", "get", "topic")
	defer span.End()

	t, err := scanTopic(r.db.QueryRowContext(ctx, `SELECT `+topicColumns+` FROM topics WHERE id = ?`, id))
	if err != nil {
		err = mapSQLError("topic", err)
		endSpan(span, err)
		return nil, err
	}
	endSpan(span, nil)
	return t, nil
}

func (r *topicRepo) ListByMeeting(ctx context.Context, meetingID string) ([]*domain.Topic, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+topicColumns+` FROM topics WHERE meeting_id = ? ORDER BY seq
	`, meetingID)
	if err != nil {
		return nil, mapSQLError("topic", err)
	}
	defer rows.Close()

	var topics []*domain.Topic
	for rows.Next() {
		t, err := scanTopic(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan topic: %w", err)
		}
		topics = append(topics, t)
	}
	return topics, rows.Err()
}

func (r *topicRepo) update(ctx context.Context, op, id, query string, args ...any) error {
	n, err := execTraced(ctx, r.db, "topic", op, query, append(args, id)...)
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.NewNotFoundError(fmt.Sprintf("topic %s not found", id))
	}
	return nil
}

func (r *topicRepo) Begin(ctx context.Context, id, messageID string, timeLeft int) error {
	return r.update(ctx, "begin", id, `UPDATE topics SET message_id = ?, time_left = ? WHERE id = ?`, messageID, timeLeft)
}

func (r *topicRepo) UpdateTimeLeft(ctx context.Context, id string, timeLeft int) error {
	return r.update(ctx, "update_time_left", id, `UPDATE topics SET time_left = ? WHERE id = ?`, timeLeft)
}

func (r *topicRepo) SetTranscription(ctx context.Context, id, text string) error {
	return r.update(ctx, "set_transcription", id, `UPDATE topics SET transcription = ? WHERE id = ?`, text)
}

// MarkRecording flips recording from 0 to 1; only one caller wins
func (r *topicRepo) MarkRecording(ctx context.Context, id string) (bool, error) {
	n, err := execTraced(ctx, r.db, "topic", "mark_recording",
		`UPDATE topics SET recording = 1 WHERE id = ? AND recording = 0`, id)
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
