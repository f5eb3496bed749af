package domain

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// MeetingState represents the lifecycle state of a meeting
type MeetingState int

const (
	MeetingStateStaged MeetingState = iota
	MeetingStateInProgress
	MeetingStateCompleted
	MeetingStateCanceled
)

// String returns the display name of the state
func (s MeetingState) String() string {
	switch s {
	case MeetingStateStaged:
		return "Staged"
	case MeetingStateInProgress:
		return "In Progress"
	case MeetingStateCompleted:
		return "Completed"
	case MeetingStateCanceled:
		return "Canceled"
	}
	return fmt.Sprintf("MeetingState(%d)", int(s))
}

// IsTerminal reports whether the meeting is on its way to deletion
func (s MeetingState) IsTerminal() bool {
	return s == MeetingStateCompleted || s == MeetingStateCanceled
}

// Meeting represents one time-boxed discussion session in a chat
type Meeting struct {
	ID             string
	Name           string // Chat title at creation time
	ChatID         string
	VoiceCode      string // 4-digit code entered by phone participants
	VoiceUsed      bool
	AudioBridge    bool // Announcements are also pushed to the chat's SIP address
	State          MeetingState
	LengthMinutes  int
	TopicTimeLimit int    // Seconds per topic, fixed at creation
	CurrentTopicID string // Empty when no topic has started
	QueueNextTopic bool   // Set by NEXT, consumed by the scheduler
	StartRequested bool   // Set by START, consumed by the staging wait
	CompleteMsgID  string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// HasCurrentTopic reports whether a topic is active
func (m *Meeting) HasCurrentTopic() bool {
	return m.CurrentTopicID != ""
}

// Topic is one agenda item of a meeting
type Topic struct {
	ID            string
	MeetingID     string
	Seq           int // Creation order, immutable
	Name          string
	MessageID     string // Announcement message in the chat
	TimeLeft      int    // Seconds
	Recording     bool
	Transcription string // Empty until the voice provider delivers it
}

// HasTranscription reports whether the transcription callback arrived
func (t *Topic) HasTranscription() bool {
	return t.Transcription != ""
}

// Caller is a phone participant bridged into a meeting
type Caller struct {
	ID        string
	MeetingID string
	Name      string
	SessionID string
}

// TopicTimeLimit derives the per-topic budget in seconds
func TopicTimeLimit(lengthMinutes, topicCount int) int {
	if topicCount <= 0 {
		return 0
	}
	return lengthMinutes * 60 / topicCount
}

// NewVoiceCode generates a random 4-digit join code
func NewVoiceCode() string {
	n, err := rand.Int(rand.Reader, big.NewInt(9000))
	if err != nil {
		return fmt.Sprintf("%04d", 1000+time.Now().Nanosecond()%9000)
	}
	return fmt.Sprintf("%d", 1000+n.Int64())
}
