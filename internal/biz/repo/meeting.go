package repo

import (
	"context"
	"time"

	"github.com/DevRickLin/feishu-meetbot/internal/biz/domain"
)

// MeetingRepo is the meeting store interface.
// Every targeted update reports a NotFound DomainError when the meeting
// has been deleted in the meantime, so callers can stop quietly.
type MeetingRepo interface {
	// Create persists a staged meeting together with its topics atomically
	Create(ctx context.Context, meeting *domain.Meeting, topics []*domain.Topic) error

	Get(ctx context.Context, id string) (*domain.Meeting, error)
	GetByChat(ctx context.Context, chatID string) (*domain.Meeting, error)
	GetByVoiceCode(ctx context.Context, code string) (*domain.Meeting, error)
	List(ctx context.Context) ([]*domain.Meeting, error)

	// SetState and SetCompleted report NotFound on a canceled meeting;
	// only Canceled may be written over Canceled
	SetState(ctx context.Context, id string, state domain.MeetingState) error
	SetCurrentTopic(ctx context.Context, id, topicID string) error
	// SetCompleted records the completion banner and moves the meeting to Completed
	SetCompleted(ctx context.Context, id, completeMsgID string) error
	MarkVoiceUsed(ctx context.Context, id string) error

	// RequestNextTopic sets the advance flag; ConsumeNextTopic clears it
	// and reports whether it was set
	RequestNextTopic(ctx context.Context, id string) error
	ConsumeNextTopic(ctx context.Context, id string) (bool, error)
	RequestStart(ctx context.Context, id string) error

	// Touch bumps the activity timestamp
	Touch(ctx context.Context, id string) error

	// Delete removes the meeting with its topics and callers
	Delete(ctx context.Context, id string) error

	// CleanupStale deletes meetings untouched since before
	CleanupStale(ctx context.Context, before time.Time) (int64, error)
}
