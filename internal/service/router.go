package service

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/DevRickLin/feishu-meetbot/internal/biz/domain"
	"github.com/DevRickLin/feishu-meetbot/internal/biz/usecase"
	"github.com/DevRickLin/feishu-meetbot/internal/logging"
)

// Directive is a recognized slash command
type Directive int

const (
	DirectiveNone Directive = iota
	DirectiveHelp
	DirectiveMeet
	DirectiveStart
	DirectiveStatus
	DirectiveNext
	DirectiveCancel
)

func (d Directive) String() string {
	switch d {
	case DirectiveHelp:
		return "meet?"
	case DirectiveMeet:
		return "meet"
	case DirectiveStart:
		return "start"
	case DirectiveStatus:
		return "status"
	case DirectiveNext:
		return "next"
	case DirectiveCancel:
		return "cancel"
	}
	return "none"
}

// Feishu renders @mentions as @_user_N placeholders in message text
var mentionPattern = regexp.MustCompile(`@_user_\d+`)

// ParseDirective recognizes a slash command in a chat message and returns
// the remaining parameters for MEET
func ParseDirective(text string) (Directive, string) {
	text = strings.TrimSpace(mentionPattern.ReplaceAllString(text, ""))
	if !strings.HasPrefix(text, "/") {
		return DirectiveNone, ""
	}
	text = strings.TrimSpace(strings.TrimLeft(text, "/"))

	switch strings.ToUpper(text) {
	case "MEET?":
		return DirectiveHelp, ""
	case "START":
		return DirectiveStart, ""
	case "STATUS":
		return DirectiveStatus, ""
	case "NEXT":
		return DirectiveNext, ""
	case "CANCEL":
		return DirectiveCancel, ""
	}
	if len(text) >= 4 && strings.EqualFold(text[:4], "MEET") {
		return DirectiveMeet, text[4:]
	}
	return DirectiveNone, ""
}

// Launcher runs the lifecycle of a newly created meeting in the background
type Launcher interface {
	Launch(meetingID string)
}

// CommandRouter dispatches chat commands to meeting operations.
// It never waits on scheduler work.
type CommandRouter struct {
	meetings *usecase.MeetingUsecase
	launcher Launcher
	log      *slog.Logger
}

// NewCommandRouter creates a new command router
func NewCommandRouter(meetings *usecase.MeetingUsecase, launcher Launcher) *CommandRouter {
	return &CommandRouter{
		meetings: meetings,
		launcher: launcher,
		log:      slog.With("component", "router"),
	}
}

// HandleMessage routes one inbound chat message. Unrecognized text is ignored.
func (r *CommandRouter) HandleMessage(ctx context.Context, chatID, text string) error {
	directive, params := ParseDirective(text)
	if directive == DirectiveNone {
		return nil
	}
	ctx = logging.AppendCtx(ctx, slog.String("chat_id", chatID))
	r.log.DebugContext(ctx, "directive received", "directive", directive.String())

	if directive == DirectiveHelp {
		return r.meetings.Welcome(ctx, chatID)
	}

	m, err := r.meetings.GetByChat(ctx, chatID)
	switch {
	case domain.IsNotFound(err):
		if directive == DirectiveMeet {
			return r.create(ctx, chatID, params)
		}
		return nil
	case err != nil:
		return err
	}

	ctx = logging.WithMeeting(ctx, m.ID)
	switch {
	case directive == DirectiveStart && m.State == domain.MeetingStateStaged:
		err = r.meetings.RequestStart(ctx, m.ID)
	case directive == DirectiveStatus && m.State == domain.MeetingStateInProgress:
		err = r.meetings.Status(ctx, m)
	case directive == DirectiveNext && m.State == domain.MeetingStateInProgress:
		err = r.meetings.RequestNext(ctx, m.ID)
	case directive == DirectiveCancel:
		r.log.InfoContext(ctx, "canceling meeting")
		err = r.meetings.Cancel(ctx, m)
	}
	if domain.IsNotFound(err) {
		return nil
	}
	return err
}

func (r *CommandRouter) create(ctx context.Context, chatID, params string) error {
	m, _, err := r.meetings.Create(ctx, chatID, params)
	if err != nil {
		if domain.IsValidation(err) {
			return r.meetings.Reply(ctx, chatID, err.Error())
		}
		if domain.GetErrorType(err) == domain.ErrorTypeConflict {
			// Another message created the chat's meeting first
			r.log.DebugContext(ctx, "meeting already exists", logging.ErrKey, err)
			return nil
		}
		return err
	}

	ctx = logging.WithMeeting(ctx, m.ID)
	r.log.InfoContext(ctx, "meeting created",
		"length_minutes", m.LengthMinutes, "topic_time_limit", m.TopicTimeLimit, "audio_bridge", m.AudioBridge)
	r.launcher.Launch(m.ID)
	return nil
}
