package usecase

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/DevRickLin/feishu-meetbot/internal/biz/domain"
	"github.com/DevRickLin/feishu-meetbot/internal/biz/repo"
	"github.com/DevRickLin/feishu-meetbot/internal/logging"
)

// NextStep tells the IVR what to do with a caller entering the conference
type NextStep struct {
	Meeting *domain.Meeting
	// Topic is the current topic, nil before the first topic starts
	Topic *domain.Topic
	// StartRecording is set for the one caller that claimed the topic's recording
	StartRecording bool
}

// Started reports whether the meeting has left staging
func (s *NextStep) Started() bool {
	return s.Meeting.State != domain.MeetingStateStaged
}

// VoiceUsecase backs the telephony IVR callbacks
type VoiceUsecase struct {
	meetings repo.MeetingRepo
	topics   repo.TopicRepo
	callers  repo.CallerRepo
}

// NewVoiceUsecase creates a new voice usecase
func NewVoiceUsecase(meetings repo.MeetingRepo, topics repo.TopicRepo, callers repo.CallerRepo) *VoiceUsecase {
	return &VoiceUsecase{meetings: meetings, topics: topics, callers: callers}
}

// Join registers a caller that entered a valid meeting code.
// An unknown code is a Validation error.
func (uc *VoiceUsecase) Join(ctx context.Context, code, sessionID, name string) (*domain.Meeting, error) {
	m, err := uc.meetings.GetByVoiceCode(ctx, code)
	if err != nil {
		if domain.IsNotFound(err) {
			return nil, domain.NewValidationError(domain.VoicePromptInvalid)
		}
		return nil, err
	}
	if m.State.IsTerminal() {
		return nil, domain.NewValidationError(domain.VoicePromptInvalid)
	}

	caller := &domain.Caller{
		ID:        uuid.NewString(),
		MeetingID: m.ID,
		Name:      name,
		SessionID: sessionID,
	}
	if err := uc.callers.Add(ctx, caller); err != nil {
		return nil, err
	}
	if err := uc.meetings.MarkVoiceUsed(ctx, m.ID); err != nil {
		return nil, err
	}
	m.VoiceUsed = true

	ctx = logging.WithMeeting(ctx, m.ID)
	slog.InfoContext(ctx, "caller joined", "session_id", sessionID)
	return m, nil
}

// Next resolves where a caller goes after entering or re-entering the conference.
// The first caller to arrive in a new topic claims its recording.
func (uc *VoiceUsecase) Next(ctx context.Context, meetingID string) (*NextStep, error) {
	m, err := uc.meetings.Get(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	step := &NextStep{Meeting: m}
	if m.State != domain.MeetingStateInProgress || !m.HasCurrentTopic() {
		return step, nil
	}

	topic, err := uc.topics.Get(ctx, m.CurrentTopicID)
	if err != nil {
		return nil, err
	}
	step.Topic = topic
	if !topic.Recording {
		claimed, err := uc.topics.MarkRecording(ctx, topic.ID)
		if err != nil {
			return nil, err
		}
		step.StartRecording = claimed
		topic.Recording = true
	}
	return step, nil
}

// Hangup removes the caller and returns the farewell prompt, empty while
// the meeting is still running or once it is gone
func (uc *VoiceUsecase) Hangup(ctx context.Context, meetingID, sessionID string) (string, error) {
	m, err := uc.meetings.Get(ctx, meetingID)
	if err != nil {
		if domain.IsNotFound(err) {
			return "", nil
		}
		return "", err
	}

	var prompt string
	switch m.State {
	case domain.MeetingStateCompleted:
		prompt = domain.VoicePromptComplete
	case domain.MeetingStateCanceled:
		prompt = domain.VoicePromptCanceled
	}

	if err := uc.callers.DeleteBySession(ctx, meetingID, sessionID); err != nil && !domain.IsNotFound(err) {
		return "", err
	}
	return prompt, nil
}

// Transcribe stores a topic transcription. Late arrivals for deleted
// meetings are dropped.
func (uc *VoiceUsecase) Transcribe(ctx context.Context, topicID, text string) error {
	err := uc.topics.SetTranscription(ctx, topicID, text)
	if domain.IsNotFound(err) {
		slog.DebugContext(ctx, "transcription for unknown topic", "topic_id", topicID)
		return nil
	}
	return err
}
