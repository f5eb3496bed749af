package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/DevRickLin/feishu-meetbot/internal/biz/domain"
)

// MeetingView is the admin representation of a meeting
type MeetingView struct {
	ID             string      `json:"id"`
	Name           string      `json:"name"`
	ChatID         string      `json:"chat_id"`
	State          string      `json:"state"`
	VoiceCode      string      `json:"voice_code"`
	AudioBridge    bool        `json:"audio_bridge"`
	VoiceUsed      bool        `json:"voice_used"`
	LengthMinutes  int         `json:"length_minutes"`
	TopicTimeLimit int         `json:"topic_time_limit"`
	CurrentTopic   string      `json:"current_topic,omitempty"`
	Topics         []TopicView `json:"topics,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// TopicView is the admin representation of a topic
type TopicView struct {
	ID               string `json:"id"`
	Seq              int    `json:"seq"`
	Name             string `json:"name"`
	TimeLeft         int    `json:"time_left"`
	Current          bool   `json:"current"`
	Recording        bool   `json:"recording"`
	HasTranscription bool   `json:"has_transcription"`
}

// NewMeetingView converts a meeting; topics may be nil
func NewMeetingView(m *domain.Meeting, topics []*domain.Topic) MeetingView {
	view := MeetingView{
		ID:             m.ID,
		Name:           m.Name,
		ChatID:         m.ChatID,
		State:          m.State.String(),
		VoiceCode:      m.VoiceCode,
		AudioBridge:    m.AudioBridge,
		VoiceUsed:      m.VoiceUsed,
		LengthMinutes:  m.LengthMinutes,
		TopicTimeLimit: m.TopicTimeLimit,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
	for _, t := range topics {
		current := t.ID == m.CurrentTopicID
		if current {
			view.CurrentTopic = t.Name
		}
		view.Topics = append(view.Topics, TopicView{
			ID:               t.ID,
			Seq:              t.Seq,
			Name:             t.Name,
			TimeLeft:         t.TimeLeft,
			Current:          current,
			Recording:        t.Recording,
			HasTranscription: t.HasTranscription(),
		})
	}
	return view
}

func (s *Server) handleListMeetings(w http.ResponseWriter, r *http.Request) {
	meetings, err := s.meetings.List(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	views := make([]MeetingView, 0, len(meetings))
	for _, m := range meetings {
		views = append(views, NewMeetingView(m, nil))
	}
	s.writeJSON(w, map[string]interface{}{"meetings": views})
}

func (s *Server) meetingView(ctx context.Context, id string) (*MeetingView, error) {
	m, err := s.meetings.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	topics, err := s.meetings.Topics(ctx, id)
	if err != nil {
		return nil, err
	}
	view := NewMeetingView(m, topics)
	return &view, nil
}

func (s *Server) handleGetMeeting(w http.ResponseWriter, r *http.Request) {
	view, err := s.meetingView(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, view)
}

func (s *Server) handleNextTopic(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	m, err := s.meetings.Get(ctx, r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if m.State != domain.MeetingStateInProgress {
		s.writeError(w, domain.NewConflictError("meeting is "+m.State.String()))
		return
	}
	if err := s.meetings.RequestNext(ctx, m.ID); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, map[string]bool{"success": true})
}

func (s *Server) handleCancelMeeting(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	m, err := s.meetings.Get(ctx, r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.meetings.Cancel(ctx, m); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, map[string]bool{"success": true})
}

// handleTranscript serves /transcripts/{meetingID}.pdf while the meeting exists
func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	file := r.PathValue("file")
	meetingID, ok := strings.CutSuffix(file, ".pdf")
	if !ok || meetingID == "" {
		http.NotFound(w, r)
		return
	}

	m, err := s.meetings.Get(ctx, meetingID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	data, err := s.meetings.Transcript(ctx, m)
	if err != nil {
		s.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+meetingID+`-transcript.pdf"`)
	w.Write(data)
}
