package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/DevRickLin/feishu-meetbot/internal/biz/domain"
	"github.com/DevRickLin/feishu-meetbot/internal/biz/repo"

	_ "modernc.org/sqlite"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS meetings (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		chat_id TEXT NOT NULL UNIQUE,
		voice_code TEXT NOT NULL UNIQUE,
		voice_used INTEGER NOT NULL DEFAULT 0,
		audio_bridge INTEGER NOT NULL DEFAULT 0,
		state INTEGER NOT NULL DEFAULT 0,
		length_minutes INTEGER NOT NULL,
		topic_time_limit INTEGER NOT NULL,
		current_topic_id TEXT NOT NULL DEFAULT '',
		queue_next_topic INTEGER NOT NULL DEFAULT 0,
		start_requested INTEGER NOT NULL DEFAULT 0,
		complete_msg_id TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_meetings_updated_at ON meetings(updated_at)`,
	`CREATE TABLE IF NOT EXISTS topics (
		id TEXT PRIMARY KEY,
		meeting_id TEXT NOT NULL REFERENCES meetings(id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		name TEXT NOT NULL,
		message_id TEXT NOT NULL DEFAULT '',
		time_left INTEGER NOT NULL DEFAULT 0,
		recording INTEGER NOT NULL DEFAULT 0,
		transcription TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_topics_meeting ON topics(meeting_id, seq)`,
	`CREATE TABLE IF NOT EXISTS callers (
		id TEXT PRIMARY KEY,
		meeting_id TEXT NOT NULL REFERENCES meetings(id) ON DELETE CASCADE,
		name TEXT NOT NULL DEFAULT '',
		session_id TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_callers_meeting ON callers(meeting_id)`,
}

// SQLiteStore holds the meeting, topic and caller repositories backed by
// one sqlite database
type SQLiteStore struct {
	db      *sql.DB
	meeting *meetingRepo
	topic   *topicRepo
	caller  *callerRepo
}

// NewSQLiteStore opens (or creates) the database at dbPath
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Scheduler goroutines and inbound handlers share the file; one
	// connection keeps sqlite from returning SQLITE_BUSY under load.
	db.SetMaxOpenConns(1)

	for _, stmt := range sqliteSchema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}

	return &SQLiteStore{
		db:      db,
		meeting: &meetingRepo{db: db},
		topic:   &topicRepo{db: db},
		caller:  &callerRepo{db: db},
	}, nil
}

func (s *SQLiteStore) Meetings() repo.MeetingRepo { return s.meeting }
func (s *SQLiteStore) Topics() repo.TopicRepo { return s.topic }
func (s *SQLiteStore) Callers() repo.CallerRepo { return s.caller }

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// execer is satisfied by *sql.DB and *sql.Tx
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// execTraced runs a statement inside a client span and returns the affected row count
func execTraced(ctx context.Context, db execer, entity, op, query string, args ...any) (int64, error) {
	ctx, span := startSpan(ctx, "sqlite", op, entity)
	defer span.End()

	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		err = mapSQLError(entity, err)
		endSpan(span, err)
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		err = domain.NewInternalError("failed to read affected rows", err)
		endSpan(span, err)
		return 0, err
	}
	endSpan(span, nil)
	return n, nil
}

// mapSQLError converts driver errors into domain errors
func mapSQLError(entity string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NewNotFoundError(entity+" not found", err)
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return domain.NewConflictError(entity+" already exists", err)
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return domain.NewNotFoundError(entity+" owner not found", err)
	}
	return domain.NewInternalError(fmt.Sprintf("%s store operation failed", entity), err)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
