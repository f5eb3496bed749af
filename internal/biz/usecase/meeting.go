package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/DevRickLin/feishu-meetbot/internal/biz/domain"
	"github.com/DevRickLin/feishu-meetbot/internal/biz/repo"
	"github.com/DevRickLin/feishu-meetbot/internal/logging"
)

// createAttempts bounds retries when a generated voice code collides
const createAttempts = 5

// signalConcurrency limits parallel requests to the telephony API
const signalConcurrency = 8

// VoiceSettings describes how phone participants reach a meeting
type VoiceSettings struct {
	PhoneNumber string
	SIPNumber   string
	SIPDomain   string // Audio-bridge sessions dial <chat_id>@<SIPDomain>
}

// MeetingUsecase implements the meeting operations shared by the command
// router, the lifecycle scheduler and the admin API
type MeetingUsecase struct {
	meetings    repo.MeetingRepo
	topics      repo.TopicRepo
	callers     repo.CallerRepo
	messages    repo.MessageRepo
	voice       repo.VoiceRepo
	transcripts repo.TranscriptRepo

	tmpl     Templates
	voiceCfg VoiceSettings
	now      func() time.Time
	newCode  func() string
}

// NewMeetingUsecase creates a new meeting usecase
func NewMeetingUsecase(
	meetings repo.MeetingRepo,
	topics repo.TopicRepo,
	callers repo.CallerRepo,
	messages repo.MessageRepo,
	voice repo.VoiceRepo,
	transcripts repo.TranscriptRepo,
	tmpl Templates,
	voiceCfg VoiceSettings,
) *MeetingUsecase {
	return &MeetingUsecase{
		meetings:    meetings,
		topics:      topics,
		callers:     callers,
		messages:    messages,
		voice:       voice,
		transcripts: transcripts,
		tmpl:        tmpl,
		voiceCfg:    voiceCfg,
		now:         time.Now,
		newCode:     domain.NewVoiceCode,
	}
}

// Templates returns the chat texts in use
func (uc *MeetingUsecase) Templates() Templates {
	return uc.tmpl
}

// Create parses the MEET parameters and persists a staged meeting.
// Validation errors carry the text to reply with.
func (uc *MeetingUsecase) Create(ctx context.Context, chatID, rawParams string) (*domain.Meeting, []*domain.Topic, error) {
	params, err := domain.ParseParameters(rawParams, uc.now())
	if err != nil {
		return nil, nil, err
	}

	info, err := uc.messages.GetChatInfo(ctx, chatID)
	if err != nil {
		return nil, nil, fmt.Errorf("get chat info: %w", err)
	}

	meeting := &domain.Meeting{
		ID:             uuid.NewString(),
		Name:           info.Name,
		ChatID:         chatID,
		AudioBridge:    params.AudioBridge,
		State:          domain.MeetingStateStaged,
		LengthMinutes:  params.LengthMinutes,
		TopicTimeLimit: params.TopicTimeLimit(),
		CreatedAt:      uc.now(),
	}
	topics := make([]*domain.Topic, 0, len(params.Topics))
	for i, name := range params.Topics {
		topics = append(topics, &domain.Topic{
			ID:        uuid.NewString(),
			MeetingID: meeting.ID,
			Seq:       i,
			Name:      name,
		})
	}

	for attempt := 0; attempt < createAttempts; attempt++ {
		meeting.VoiceCode = uc.newCode()
		err = uc.meetings.Create(ctx, meeting, topics)
		if err == nil {
			return meeting, topics, nil
		}
		if domain.GetErrorType(err) != domain.ErrorTypeConflict {
			return nil, nil, fmt.Errorf("create meeting: %w", err)
		}
		// Either the chat already has a meeting or the code collided
		if _, getErr := uc.meetings.GetByChat(ctx, chatID); getErr == nil {
			return nil, nil, err
		}
	}
	return nil, nil, fmt.Errorf("create meeting: %w", err)
}

// Welcome sends the help text to a chat
func (uc *MeetingUsecase) Welcome(ctx context.Context, chatID string) error {
	_, err := uc.messages.SendText(ctx, chatID, uc.tmpl.FormatWelcome())
	return err
}

// minGreetMembers is the human member count from which a chat gets the
// welcome when the bot joins; direct chats stay quiet until HELP
const minGreetMembers = 2

// Greet welcomes a chat the bot was just added to
func (uc *MeetingUsecase) Greet(ctx context.Context, chatID string) (bool, error) {
	members, err := uc.messages.GetChatMembers(ctx, chatID)
	if err != nil {
		return false, err
	}
	if len(members) < minGreetMembers {
		slog.DebugContext(ctx, "chat too small for welcome", "chat_id", chatID, "members", len(members))
		return false, nil
	}
	return true, uc.Welcome(ctx, chatID)
}

// Reply sends a plain text reply to a chat
func (uc *MeetingUsecase) Reply(ctx context.Context, chatID, text string) error {
	_, err := uc.messages.SendText(ctx, chatID, text)
	return err
}

// AudioBridgeAddress is the SIP address dialed for audio-bridge meetings
func (uc *MeetingUsecase) AudioBridgeAddress(m *domain.Meeting) string {
	return m.ChatID + "@" + uc.voiceCfg.SIPDomain
}

// announceVoice starts a voice session on the chat's bridge when enabled
func (uc *MeetingUsecase) announceVoice(ctx context.Context, m *domain.Meeting, text string) error {
	if !m.AudioBridge {
		return nil
	}
	return uc.voice.StartSession(ctx, uc.AudioBridgeAddress(m), text)
}

// Announce sends the staging message and opens the audio bridge
func (uc *MeetingUsecase) Announce(ctx context.Context, m *domain.Meeting, topics []*domain.Topic, startIn time.Duration) error {
	join := uc.tmpl.JoinAudioBridge
	if !m.AudioBridge {
		join = uc.tmpl.FormatJoinPhone(uc.voiceCfg.PhoneNumber, uc.voiceCfg.SIPNumber, m.VoiceCode)
	}
	if _, err := uc.messages.SendText(ctx, m.ChatID, uc.tmpl.FormatAnnouncement(m, topics, join, startIn)); err != nil {
		return err
	}
	return uc.announceVoice(ctx, m, domain.VoicePromptInitiated)
}

// Start moves the meeting to InProgress
func (uc *MeetingUsecase) Start(ctx context.Context, meetingID string) error {
	return uc.meetings.SetState(ctx, meetingID, domain.MeetingStateInProgress)
}

// BeginTopic announces a topic, resets its countdown, makes it current
// and moves phone participants along
func (uc *MeetingUsecase) BeginTopic(ctx context.Context, m *domain.Meeting, t *domain.Topic) error {
	msgID, err := uc.messages.SendText(ctx, m.ChatID, uc.tmpl.FormatTopicBanner(t.Name))
	if err != nil {
		return err
	}
	if err := uc.topics.Begin(ctx, t.ID, msgID, m.TopicTimeLimit); err != nil {
		return err
	}
	if err := uc.meetings.SetCurrentTopic(ctx, m.ID, t.ID); err != nil {
		return err
	}
	if err := uc.announceVoice(ctx, m, domain.VoicePromptTopicPrefix+t.Name); err != nil {
		return err
	}
	return uc.SignalCallers(ctx, m.ID, domain.SignalNext)
}

// Warn posts a countdown warning
func (uc *MeetingUsecase) Warn(ctx context.Context, m *domain.Meeting, text string) error {
	_, err := uc.messages.SendText(ctx, m.ChatID, text)
	return err
}

// Complete posts the completion banner, marks the meeting Completed and
// releases phone participants
func (uc *MeetingUsecase) Complete(ctx context.Context, m *domain.Meeting) error {
	msgID, err := uc.messages.SendText(ctx, m.ChatID, uc.tmpl.Complete)
	if err != nil {
		return err
	}
	if err := uc.meetings.SetCompleted(ctx, m.ID, msgID); err != nil {
		return err
	}
	if err := uc.announceVoice(ctx, m, domain.VoicePromptComplete); err != nil {
		return err
	}
	return uc.SignalCallers(ctx, m.ID, domain.SignalExit)
}

// Transcript renders the meeting's transcript document
func (uc *MeetingUsecase) Transcript(ctx context.Context, m *domain.Meeting) ([]byte, error) {
	topics, err := uc.topics.ListByMeeting(ctx, m.ID)
	if err != nil {
		return nil, err
	}
	title := m.Name
	if title == "" {
		title = "Meeting"
	}
	return uc.transcripts.Render(ctx, title+" transcript", domain.BuildTranscript(topics))
}

// SendTranscript renders the transcript and posts it to the chat
func (uc *MeetingUsecase) SendTranscript(ctx context.Context, m *domain.Meeting) error {
	data, err := uc.Transcript(ctx, m)
	if err != nil {
		return err
	}
	_, err = uc.messages.SendFile(ctx, m.ChatID, transcriptFileName(m), data)
	return err
}

func transcriptFileName(m *domain.Meeting) string {
	name := strings.Map(func(r rune) rune {
		if strings.ContainsRune(`/\:*?"<>|`, r) {
			return '_'
		}
		return r
	}, strings.TrimSpace(m.Name))
	if name == "" {
		name = "meeting"
	}
	return name + "-transcript.pdf"
}

// Delete removes the meeting and everything attached to it
func (uc *MeetingUsecase) Delete(ctx context.Context, meetingID string) error {
	return uc.meetings.Delete(ctx, meetingID)
}

// Status replies with the current topic and its remaining time.
// Nothing is sent before the first topic starts.
func (uc *MeetingUsecase) Status(ctx context.Context, m *domain.Meeting) error {
	if !m.HasCurrentTopic() {
		return nil
	}
	topic, err := uc.topics.Get(ctx, m.CurrentTopicID)
	if err != nil {
		return err
	}
	_, err = uc.messages.SendText(ctx, m.ChatID, uc.tmpl.FormatStatus(topic.Name, topic.TimeLeft))
	return err
}

// RequestNext asks the scheduler to end the current topic
func (uc *MeetingUsecase) RequestNext(ctx context.Context, meetingID string) error {
	return uc.meetings.RequestNextTopic(ctx, meetingID)
}

// RequestStart asks the staging wait to start the meeting now
func (uc *MeetingUsecase) RequestStart(ctx context.Context, meetingID string) error {
	return uc.meetings.RequestStart(ctx, meetingID)
}

// Cancel marks the meeting Canceled, notifies everyone and deletes it.
// A meeting that disappears midway counts as canceled.
func (uc *MeetingUsecase) Cancel(ctx context.Context, m *domain.Meeting) error {
	err := uc.cancel(ctx, m)
	if domain.IsNotFound(err) {
		slog.DebugContext(ctx, "meeting gone during cancel", logging.ErrKey, err)
		return nil
	}
	return err
}

func (uc *MeetingUsecase) cancel(ctx context.Context, m *domain.Meeting) error {
	if err := uc.meetings.SetState(ctx, m.ID, domain.MeetingStateCanceled); err != nil {
		return err
	}
	if err := uc.announceVoice(ctx, m, domain.VoicePromptCanceled); err != nil {
		return err
	}
	if err := uc.SignalCallers(ctx, m.ID, domain.SignalExit); err != nil {
		return err
	}
	if _, err := uc.messages.SendText(ctx, m.ChatID, uc.tmpl.Canceled); err != nil {
		return err
	}
	return uc.meetings.Delete(ctx, m.ID)
}

// SignalCallers sends signal to every caller of the meeting concurrently.
// All callers are attempted; the failures are joined.
func (uc *MeetingUsecase) SignalCallers(ctx context.Context, meetingID string, signal domain.VoiceSignal) error {
	callers, err := uc.callers.ListByMeeting(ctx, meetingID)
	if err != nil {
		return err
	}
	if len(callers) == 0 {
		return nil
	}

	var (
		mu   sync.Mutex
		errs []error
	)
	g := new(errgroup.Group)
	g.SetLimit(signalConcurrency)
	for _, c := range callers {
		g.Go(func() error {
			if err := uc.voice.Signal(ctx, c.SessionID, signal); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("signal %s to %s: %w", signal, c.SessionID, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

// List returns all live meetings
func (uc *MeetingUsecase) List(ctx context.Context) ([]*domain.Meeting, error) {
	return uc.meetings.List(ctx)
}

// Get returns one meeting
func (uc *MeetingUsecase) Get(ctx context.Context, meetingID string) (*domain.Meeting, error) {
	return uc.meetings.Get(ctx, meetingID)
}

// GetByChat returns the chat's meeting
func (uc *MeetingUsecase) GetByChat(ctx context.Context, chatID string) (*domain.Meeting, error) {
	return uc.meetings.GetByChat(ctx, chatID)
}

// Topics returns the meeting's topics in order
func (uc *MeetingUsecase) Topics(ctx context.Context, meetingID string) ([]*domain.Topic, error) {
	return uc.topics.ListByMeeting(ctx, meetingID)
}

// Topic returns one topic
func (uc *MeetingUsecase) Topic(ctx context.Context, topicID string) (*domain.Topic, error) {
	return uc.topics.Get(ctx, topicID)
}

// Tick persists the countdown and bumps the meeting's activity timestamp
func (uc *MeetingUsecase) Tick(ctx context.Context, meetingID, topicID string, timeLeft int) error {
	if err := uc.topics.UpdateTimeLeft(ctx, topicID, timeLeft); err != nil {
		return err
	}
	return uc.meetings.Touch(ctx, meetingID)
}

// ConsumeNext clears the advance flag and reports whether it was set
func (uc *MeetingUsecase) ConsumeNext(ctx context.Context, meetingID string) (bool, error) {
	return uc.meetings.ConsumeNextTopic(ctx, meetingID)
}

// CleanupStale removes meetings untouched since before
func (uc *MeetingUsecase) CleanupStale(ctx context.Context, before time.Time) (int64, error) {
	return uc.meetings.CleanupStale(ctx, before)
}
