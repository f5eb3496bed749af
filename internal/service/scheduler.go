package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/DevRickLin/feishu-meetbot/internal/biz/domain"
	"github.com/DevRickLin/feishu-meetbot/internal/biz/usecase"
	"github.com/DevRickLin/feishu-meetbot/internal/logging"
)

// errMeetingOver unwinds a lifecycle whose meeting was canceled
var errMeetingOver = errors.New("meeting over")

// ScheduleConfig tunes the lifecycle timing
type ScheduleConfig struct {
	StageDelay      time.Duration // Wait before an unstarted meeting starts by itself
	Tick            time.Duration // One countdown second
	TranscriptPolls int           // Ticks to wait for the last topic's transcription
}

// DefaultScheduleConfig matches real time
var DefaultScheduleConfig = ScheduleConfig{
	StageDelay:      60 * time.Second,
	Tick:            time.Second,
	TranscriptPolls: 30,
}

// LifecycleScheduler drives each meeting from staging to completion.
// Every meeting gets one goroutine which re-reads the store at each step,
// so commands take effect within one tick.
type LifecycleScheduler struct {
	meetings *usecase.MeetingUsecase
	cfg      ScheduleConfig
	log      *slog.Logger

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewLifecycleScheduler creates a new lifecycle scheduler
func NewLifecycleScheduler(meetings *usecase.MeetingUsecase, cfg ScheduleConfig) *LifecycleScheduler {
	if cfg.Tick <= 0 {
		cfg.Tick = DefaultScheduleConfig.Tick
	}
	if cfg.TranscriptPolls < 0 {
		cfg.TranscriptPolls = 0
	}
	return &LifecycleScheduler{
		meetings: meetings,
		cfg:      cfg,
		log:      slog.With("component", "scheduler"),
	}
}

// Start binds the scheduler to ctx; launched lifecycles stop when it is done
func (s *LifecycleScheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.log.Info("started", "stage_delay", s.cfg.StageDelay, "tick", s.cfg.Tick)
}

// Stop cancels all running lifecycles and waits for them to return
func (s *LifecycleScheduler) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()
	s.wg.Wait()
	s.log.Info("stopped")
}

// Launch runs the meeting's lifecycle in its own goroutine
func (s *LifecycleScheduler) Launch(meetingID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx == nil || s.ctx.Err() != nil {
		s.log.Warn("scheduler not running, meeting not launched", "meeting_id", meetingID)
		return
	}

	ctx := s.ctx
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.Run(ctx, meetingID); err != nil {
			s.log.ErrorContext(logging.WithMeeting(ctx, meetingID), "meeting lifecycle failed", logging.ErrKey, err)
		}
	}()
}

// Wait blocks until every launched lifecycle has returned
func (s *LifecycleScheduler) Wait() {
	s.wg.Wait()
}

// Run executes the whole lifecycle of one meeting. A meeting that is
// canceled or deleted along the way ends it quietly.
func (s *LifecycleScheduler) Run(ctx context.Context, meetingID string) error {
	ctx = logging.WithMeeting(ctx, meetingID)
	err := s.run(ctx, meetingID)
	switch {
	case err == nil:
		s.log.InfoContext(ctx, "meeting finished")
		return nil
	case errors.Is(err, errMeetingOver), domain.IsNotFound(err):
		s.log.DebugContext(ctx, "meeting ended early", logging.ErrKey, err)
		return nil
	case ctx.Err() != nil:
		s.log.DebugContext(ctx, "lifecycle interrupted", logging.ErrKey, err)
		return nil
	}
	return err
}

func (s *LifecycleScheduler) run(ctx context.Context, meetingID string) error {
	m, err := s.live(ctx, meetingID)
	if err != nil {
		return err
	}
	topics, err := s.meetings.Topics(ctx, meetingID)
	if err != nil {
		return err
	}

	if err := s.meetings.Announce(ctx, m, topics, s.cfg.StageDelay); err != nil {
		return err
	}
	if err := s.stage(ctx, meetingID); err != nil {
		return err
	}

	if err := s.meetings.Start(ctx, meetingID); err != nil {
		return err
	}
	s.log.InfoContext(ctx, "meeting started", "topics", len(topics))

	for _, topic := range topics {
		m, err := s.live(ctx, meetingID)
		if err != nil {
			return err
		}
		if err := s.meetings.BeginTopic(ctx, m, topic); err != nil {
			return err
		}
		if err := s.countdown(ctx, m, topic); err != nil {
			return err
		}
	}

	return s.complete(ctx, meetingID)
}

// live re-reads the meeting and reports errMeetingOver once it is canceled
func (s *LifecycleScheduler) live(ctx context.Context, meetingID string) (*domain.Meeting, error) {
	m, err := s.meetings.Get(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	if m.State == domain.MeetingStateCanceled {
		return nil, errMeetingOver
	}
	return m, nil
}

// stage waits for START or the stage delay, whichever comes first
func (s *LifecycleScheduler) stage(ctx context.Context, meetingID string) error {
	ticker := time.NewTicker(s.cfg.Tick)
	defer ticker.Stop()

	for waited := time.Duration(0); waited < s.cfg.StageDelay; waited += s.cfg.Tick {
		if err := wait(ctx, ticker); err != nil {
			return err
		}
		m, err := s.live(ctx, meetingID)
		if err != nil {
			return err
		}
		if m.StartRequested {
			s.log.DebugContext(ctx, "start requested")
			return nil
		}
	}
	return nil
}

// countdown runs one topic until its time is up or NEXT is requested
func (s *LifecycleScheduler) countdown(ctx context.Context, m *domain.Meeting, topic *domain.Topic) error {
	ticker := time.NewTicker(s.cfg.Tick)
	defer ticker.Stop()

	budget := m.TopicTimeLimit
	for timeLeft := budget; timeLeft > 0; {
		if err := wait(ctx, ticker); err != nil {
			return err
		}
		current, err := s.live(ctx, m.ID)
		if err != nil {
			return err
		}
		if current.QueueNextTopic {
			advanced, err := s.meetings.ConsumeNext(ctx, m.ID)
			if err != nil {
				return err
			}
			if advanced {
				s.log.DebugContext(ctx, "topic skipped", "topic", topic.Name, "time_left", timeLeft)
				// A skipped topic reads as finished
				return s.meetings.Tick(ctx, m.ID, topic.ID, 0)
			}
		}

		timeLeft--
		if err := s.meetings.Tick(ctx, m.ID, topic.ID, timeLeft); err != nil {
			return err
		}
		if w, ok := domain.WarningAt(budget, timeLeft); ok {
			if err := s.meetings.Warn(ctx, current, w.Text); err != nil {
				return err
			}
		}
	}
	return nil
}

// complete closes the meeting, exports the transcript when phones were
// used and deletes the meeting
func (s *LifecycleScheduler) complete(ctx context.Context, meetingID string) error {
	m, err := s.live(ctx, meetingID)
	if err != nil {
		return err
	}
	if err := s.meetings.Complete(ctx, m); err != nil {
		return err
	}

	if m.VoiceUsed {
		if err := s.awaitTranscription(ctx, meetingID); err != nil {
			return err
		}
		m, err = s.live(ctx, meetingID)
		if err != nil {
			return err
		}
		if err := s.meetings.SendTranscript(ctx, m); err != nil {
			return err
		}
	}
	return s.meetings.Delete(ctx, meetingID)
}

// awaitTranscription polls the last topic's transcription for a bounded
// number of ticks. Missing transcriptions are rendered as placeholders.
func (s *LifecycleScheduler) awaitTranscription(ctx context.Context, meetingID string) error {
	ticker := time.NewTicker(s.cfg.Tick)
	defer ticker.Stop()

	for poll := 0; poll < s.cfg.TranscriptPolls; poll++ {
		m, err := s.live(ctx, meetingID)
		if err != nil {
			return err
		}
		if !m.HasCurrentTopic() {
			return nil
		}
		topic, err := s.meetings.Topic(ctx, m.CurrentTopicID)
		if err != nil {
			return err
		}
		if topic.HasTranscription() {
			return nil
		}
		if err := wait(ctx, ticker); err != nil {
			return err
		}
	}
	s.log.InfoContext(ctx, "transcription did not arrive", "polls", s.cfg.TranscriptPolls)
	return nil
}

func wait(ctx context.Context, ticker *time.Ticker) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-ticker.C:
		return nil
	}
}
