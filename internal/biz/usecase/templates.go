package usecase

import (
	"fmt"
	"strings"
	"time"

	"github.com/DevRickLin/feishu-meetbot/internal/biz/domain"
)

// Templates holds the chat texts. Placeholders use the {{name}} form.
type Templates struct {
	Welcome         string // {{url}}
	Announcement    string // {{topics}} {{length}} {{topic_time}} {{join}} {{start_in}}
	JoinPhone       string // {{phone}} {{sip}} {{code}}
	JoinAudioBridge string
	TopicBanner     string // {{topic}}
	Complete        string
	Canceled        string
	Status          string // {{topic}} {{time_left}}
	HelpURL         string
}

// DefaultTemplates is used when no messages.yaml is configured
var DefaultTemplates = Templates{
	Welcome: `At your service to provide a more efficient meeting experience

Initiating a meeting is as simple as typing:
/meet10 Topic 1, Topic 2, etc...

For more information, please visit {{url}}`,
	Announcement: `A meeting for the following topics has been initiated...
{{topics}}

Meeting length: {{length}} minutes
Time limit for each topic: {{topic_time}}

{{join}}

Type "/START" to begin
or meeting will automatically start in {{start_in}}`,
	JoinPhone:       "Phone:\t{{phone}}\nSIP:\t\t{{sip}}\nID:\t\t{{code}}",
	JoinAudioBridge: "Audio/Video: Call the chat",
	TopicBanner:     "########################\nTopic: {{topic}}\n########################",
	Complete:        "########################\nMeeting complete\n########################",
	Canceled:        domain.VoicePromptCanceled,
	Status:          "Current topic: {{topic}}\nTime left for topic: {{time_left}}",
	HelpURL:         "https://github.com/DevRickLin/feishu-meetbot",
}

func fill(tmpl string, pairs ...string) string {
	for i := 0; i+1 < len(pairs); i += 2 {
		tmpl = strings.ReplaceAll(tmpl, "{{"+pairs[i]+"}}", pairs[i+1])
	}
	return tmpl
}

// FormatWelcome renders the help text
func (t Templates) FormatWelcome() string {
	return fill(t.Welcome, "url", t.HelpURL)
}

// FormatAnnouncement renders the staging message
func (t Templates) FormatAnnouncement(m *domain.Meeting, topics []*domain.Topic, join string, startIn time.Duration) string {
	lines := make([]string, 0, len(topics))
	for _, topic := range topics {
		lines = append(lines, "\t"+topic.Name)
	}
	return fill(t.Announcement,
		"topics", strings.Join(lines, "\n"),
		"length", fmt.Sprintf("%d", m.LengthMinutes),
		"topic_time", domain.FormatMinutesSeconds(m.TopicTimeLimit),
		"join", join,
		"start_in", humanDuration(startIn),
	)
}

// FormatJoinPhone renders the dial-in instructions
func (t Templates) FormatJoinPhone(phone, sip, code string) string {
	return fill(t.JoinPhone, "phone", phone, "sip", sip, "code", code)
}

// FormatTopicBanner renders the topic start banner
func (t Templates) FormatTopicBanner(topic string) string {
	return fill(t.TopicBanner, "topic", topic)
}

// FormatStatus renders the STATUS reply
func (t Templates) FormatStatus(topic string, timeLeft int) string {
	return fill(t.Status, "topic", topic, "time_left", domain.FormatMinutesSeconds(timeLeft))
}

func humanDuration(d time.Duration) string {
	switch {
	case d >= time.Minute && d%time.Minute == 0:
		if d == time.Minute {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", int(d/time.Minute))
	case d == time.Second:
		return "1 second"
	}
	return fmt.Sprintf("%d seconds", int(d.Round(time.Second)/time.Second))
}
