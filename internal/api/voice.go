package api

import (
	"net/http"

	"github.com/DevRickLin/feishu-meetbot/internal/biz/domain"
	"github.com/DevRickLin/feishu-meetbot/internal/infra/tropo"
	"github.com/DevRickLin/feishu-meetbot/internal/logging"
)

// Tropo replays the script it receives, so every handler answers with a
// script, empty when the call should just end.

func (s *Server) writeScript(w http.ResponseWriter, script *tropo.Script) {
	s.writeJSON(w, script)
}

// handleVoiceInitiate answers new calls. Sessions launched by the bot dial
// the chat's audio bridge and speak the message; inbound callers are asked
// for the meeting code.
func (s *Server) handleVoiceInitiate(w http.ResponseWriter, r *http.Request) {
	script := tropo.NewScript()

	session, err := tropo.ParseSession(r.Body)
	if err == nil && session.Outbound() {
		script.Call(session.Parameters["sipAddress"]).Say(session.Parameters["msg"])
		s.writeScript(w, script)
		return
	}

	script.Ask("meeting_id", domain.VoicePromptEnterID, "[4 DIGITS]", 3, 10).
		On("continue", s.url("/voice/validate"))
	s.writeScript(w, script)
}

func (s *Server) handleVoiceValidate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	script := tropo.NewScript()

	result, err := tropo.ParseResult(r.Body)
	if err != nil {
		s.log.WarnContext(ctx, "bad validate callback", logging.ErrKey, err)
		s.writeScript(w, script.Say(domain.VoicePromptInvalid))
		return
	}

	m, err := s.calls.Join(ctx, result.Value, result.SessionID, "")
	if err != nil {
		if !domain.IsValidation(err) {
			s.log.ErrorContext(ctx, "failed to join caller", "session_id", result.SessionID, logging.ErrKey, err)
		}
		s.writeScript(w, script.Say(domain.VoicePromptInvalid))
		return
	}

	script.On("continue", s.url("/voice/next/%s", m.ID)).
		On("hangup", s.url("/voice/hangup/%s", m.ID))
	s.writeScript(w, script)
}

// handleVoiceNext puts the caller (back) into the conference, announcing
// the current topic. The first caller in a topic starts its recording.
func (s *Server) handleVoiceNext(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	meetingID := r.PathValue("meeting")
	script := tropo.NewScript()

	step, err := s.calls.Next(logging.WithMeeting(ctx, meetingID), meetingID)
	if err != nil {
		if !domain.IsNotFound(err) {
			s.log.ErrorContext(ctx, "failed to resolve next step", "meeting_id", meetingID, logging.ErrKey, err)
		}
		s.writeScript(w, script)
		return
	}

	switch {
	case !step.Started():
		script.Say(domain.VoicePromptNotStarted)
	case step.Topic != nil:
		if step.StartRecording && s.recordingURL != "" {
			script.StopRecording().
				StartRecording(s.recordingURL, s.url("/voice/transcribe/%s", step.Topic.ID))
		}
		script.Say(domain.VoicePromptTopicPrefix + step.Topic.Name)
	}

	next := s.url("/voice/next/%s", meetingID)
	hangup := s.url("/voice/hangup/%s", meetingID)
	script.Conference(step.Meeting.VoiceCode, "*", []string{string(domain.SignalNext), string(domain.SignalExit)}).
		On("continue", next).
		On(string(domain.SignalNext), next).
		On("hangup", hangup).
		On(string(domain.SignalExit), hangup)
	s.writeScript(w, script)
}

func (s *Server) handleVoiceHangup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	meetingID := r.PathValue("meeting")
	script := tropo.NewScript()

	result, err := tropo.ParseResult(r.Body)
	if err != nil {
		s.log.WarnContext(ctx, "bad hangup callback", logging.ErrKey, err)
		s.writeScript(w, script)
		return
	}

	prompt, err := s.calls.Hangup(ctx, meetingID, result.SessionID)
	if err != nil {
		s.log.ErrorContext(ctx, "failed to remove caller", "meeting_id", meetingID, logging.ErrKey, err)
	}
	if prompt != "" {
		script.Say(prompt)
	}
	s.writeScript(w, script)
}

func (s *Server) handleVoiceTranscribe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	topicID := r.PathValue("topic")

	text, err := tropo.ParseTranscription(r.Body)
	if err != nil {
		http.Error(w, "invalid transcription payload", http.StatusBadRequest)
		return
	}
	if err := s.calls.Transcribe(ctx, topicID, text); err != nil {
		s.log.ErrorContext(ctx, "failed to store transcription", "topic_id", topicID, logging.ErrKey, err)
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}
