package data

import (
	"context"
	"log/slog"

	"github.com/DevRickLin/feishu-meetbot/internal/biz/domain"
	"github.com/DevRickLin/feishu-meetbot/internal/biz/repo"
	"github.com/DevRickLin/feishu-meetbot/internal/infra/tropo"
)

// tropoRepo implements the telephony gateway.
// A nil client disables voice: calls succeed without side effects.
type tropoRepo struct {
	client *tropo.Client
}

// NewVoiceRepo creates the voice repository
func NewVoiceRepo(client *tropo.Client) repo.VoiceRepo {
	return &tropoRepo{client: client}
}

func (r *tropoRepo) StartSession(ctx context.Context, address, text string) error {
	if r.client == nil {
		slog.DebugContext(ctx, "voice disabled, skipping session", "address", address)
		return nil
	}
	if err := r.client.CreateSession(ctx, address, text); err != nil {
		return domain.NewUnavailableError("failed to start voice session", err)
	}
	return nil
}

func (r *tropoRepo) Signal(ctx context.Context, sessionID string, signal domain.VoiceSignal) error {
	if r.client == nil {
		return nil
	}
	if err := r.client.Signal(ctx, sessionID, string(signal)); err != nil {
		return domain.NewUnavailableError("failed to signal voice session", err)
	}
	return nil
}
