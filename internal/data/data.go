package data

import (
	"context"
	"fmt"

	"github.com/DevRickLin/feishu-meetbot/internal/biz/repo"
	"github.com/DevRickLin/feishu-meetbot/internal/infra/feishu"
	"github.com/DevRickLin/feishu-meetbot/internal/infra/transcript"
	"github.com/DevRickLin/feishu-meetbot/internal/infra/tropo"
)

// Store is an entity store backend
type Store interface {
	Meetings() repo.MeetingRepo
	Topics() repo.TopicRepo
	Callers() repo.CallerRepo
	Close() error
}

// OpenStore opens the named backend: "sqlite" uses dbPath, "nats" uses natsURL
func OpenStore(ctx context.Context, backend, dbPath, natsURL string) (Store, error) {
	switch backend {
	case "", "sqlite":
		return NewSQLiteStore(dbPath)
	case "nats":
		return NewNatsStore(ctx, natsURL)
	}
	return nil, fmt.Errorf("unknown store backend %q", backend)
}

// Repositories contains all repositories
type Repositories struct {
	Meeting    repo.MeetingRepo
	Topic      repo.TopicRepo
	Caller     repo.CallerRepo
	Message    repo.MessageRepo
	Voice      repo.VoiceRepo
	Transcript repo.TranscriptRepo

	store Store
}

// NewRepositories creates all repositories. tropoClient may be nil when
// telephony is not configured.
func NewRepositories(
	store Store,
	feishuClient *feishu.Client,
	tropoClient *tropo.Client,
	renderer *transcript.Renderer,
) *Repositories {
	return &Repositories{
		Meeting:    store.Meetings(),
		Topic:      store.Topics(),
		Caller:     store.Callers(),
		Message:    NewFeishuRepo(feishuClient),
		Voice:      NewVoiceRepo(tropoClient),
		Transcript: NewTranscriptRepo(renderer),
		store:      store,
	}
}

// Close releases the entity store
func (r *Repositories) Close() error {
	return r.store.Close()
}
