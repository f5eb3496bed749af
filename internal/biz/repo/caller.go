package repo

import (
	"context"

	"github.com/DevRickLin/feishu-meetbot/internal/biz/domain"
)

// CallerRepo is the voice participant store interface
type CallerRepo interface {
	Add(ctx context.Context, caller *domain.Caller) error
	ListByMeeting(ctx context.Context, meetingID string) ([]*domain.Caller, error)
	DeleteBySession(ctx context.Context, meetingID, sessionID string) error
}
