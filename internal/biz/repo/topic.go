package repo

import (
	"context"

	"github.com/DevRickLin/feishu-meetbot/internal/biz/domain"
)

// TopicRepo is the topic store interface
type TopicRepo interface {
	Get(ctx context.Context, id string) (*domain.Topic, error)
	// ListByMeeting returns topics in creation order
	ListByMeeting(ctx context.Context, meetingID string) ([]*domain.Topic, error)

	// Begin stores the announcement message and resets the countdown
	Begin(ctx context.Context, id, messageID string, timeLeft int) error
	UpdateTimeLeft(ctx context.Context, id string, timeLeft int) error

	// MarkRecording sets the recording flag and reports whether this call set it
	MarkRecording(ctx context.Context, id string) (bool, error)
	SetTranscription(ctx context.Context, id, text string) error
}
