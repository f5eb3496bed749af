package data

import (
	"context"

	"github.com/DevRickLin/feishu-meetbot/internal/biz/domain"
	"github.com/DevRickLin/feishu-meetbot/internal/biz/repo"
	"github.com/DevRickLin/feishu-meetbot/internal/infra/transcript"
)

type transcriptRepo struct {
	renderer *transcript.Renderer
}

// NewTranscriptRepo creates the PDF transcript repository
func NewTranscriptRepo(renderer *transcript.Renderer) repo.TranscriptRepo {
	return &transcriptRepo{renderer: renderer}
}

func (r *transcriptRepo) Render(ctx context.Context, title string, entries []domain.TranscriptEntry) ([]byte, error) {
	sections := make([]transcript.Section, 0, len(entries))
	for _, e := range entries {
		sections = append(sections, transcript.Section{Heading: e.Topic, Body: e.Text})
	}
	data, err := r.renderer.Render(title, sections)
	if err != nil {
		return nil, domain.NewInternalError("failed to render transcript", err)
	}
	return data, nil
}
