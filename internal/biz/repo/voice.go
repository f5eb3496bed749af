package repo

import (
	"context"

	"github.com/DevRickLin/feishu-meetbot/internal/biz/domain"
)

// VoiceRepo is the telephony gateway interface
type VoiceRepo interface {
	// StartSession dials address and speaks text
	StartSession(ctx context.Context, address, text string) error

	// Signal interrupts a live call session
	Signal(ctx context.Context, sessionID string, signal domain.VoiceSignal) error
}

// TranscriptRepo renders meeting transcripts as documents
type TranscriptRepo interface {
	Render(ctx context.Context, title string, entries []domain.TranscriptEntry) ([]byte, error)
}
