package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DevRickLin/feishu-meetbot/internal/biz/domain"
)

func TestMeetingUsecase_Create(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	m, topics, err := env.meetings.Create(ctx, "chat-1", "4 Budget, Hiring, Budget")
	require.NoError(t, err)

	assert.Equal(t, "Standup", m.Name)
	assert.Equal(t, domain.MeetingStateStaged, m.State)
	assert.Equal(t, 4, m.LengthMinutes)
	assert.Equal(t, 120, m.TopicTimeLimit)
	assert.Len(t, m.VoiceCode, 4)
	require.Len(t, topics, 2)
	assert.Equal(t, "Budget", topics[0].Name)
	assert.Equal(t, "Hiring", topics[1].Name)

	stored, err := env.store.Topics().ListByMeeting(ctx, m.ID)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, topics[0].ID, stored[0].ID)
}

func TestMeetingUsecase_Create_Validation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tests := []struct {
		raw  string
		want string
	}{
		{"99 A", "length out of range"},
		{"0 A", "length out of range"},
		{" , ,", "no topics"},
		{"abc", "invalid parameters"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			_, _, err := env.meetings.Create(ctx, "chat-1", tt.raw)
			require.Error(t, err)
			assert.True(t, domain.IsValidation(err))
			assert.Equal(t, tt.want, err.Error())
		})
	}
}

func TestMeetingUsecase_Create_OnePerChat(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.meetings.newCode = codes("1111", "2222")

	_, _, err := env.meetings.Create(ctx, "chat-1", " A")
	require.NoError(t, err)

	_, _, err = env.meetings.Create(ctx, "chat-1", " B")
	require.Error(t, err)
	assert.Equal(t, domain.ErrorTypeConflict, domain.GetErrorType(err))
}

func TestMeetingUsecase_Create_RetriesVoiceCodeCollision(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.meetings.newCode = codes("1234")
	_, _, err := env.meetings.Create(ctx, "chat-1", " A")
	require.NoError(t, err)

	env.meetings.newCode = codes("1234", "5678")
	m, _, err := env.meetings.Create(ctx, "chat-2", " B")
	require.NoError(t, err)
	assert.Equal(t, "5678", m.VoiceCode)
}

func TestMeetingUsecase_Announce(t *testing.T) {
	ctx := context.Background()

	t.Run("phone", func(t *testing.T) {
		env := newTestEnv(t)
		m, topics, err := env.meetings.Create(ctx, "chat-1", "10 A, B")
		require.NoError(t, err)

		require.NoError(t, env.meetings.Announce(ctx, m, topics, time.Minute))
		sent := env.messages.texts()
		require.Len(t, sent, 1)
		assert.Contains(t, sent[0], "\tA\n\tB")
		assert.Contains(t, sent[0], "Meeting length: 10 minutes")
		assert.Contains(t, sent[0], "05 minutes 00 seconds")
		assert.Contains(t, sent[0], "ID:\t\t"+m.VoiceCode)
		assert.Contains(t, sent[0], "start in 1 minute")
		assert.Empty(t, env.voice.sessions)
	})

	t.Run("audio bridge", func(t *testing.T) {
		env := newTestEnv(t)
		m, topics, err := env.meetings.Create(ctx, "chat-1", "$5 A")
		require.NoError(t, err)
		assert.True(t, m.AudioBridge)

		require.NoError(t, env.meetings.Announce(ctx, m, topics, time.Minute))
		assert.Contains(t, env.messages.texts()[0], DefaultTemplates.JoinAudioBridge)
		assert.Equal(t, []string{"chat-1@bridge.example.com|" + domain.VoicePromptInitiated}, env.voice.sessions)
	})
}

func TestMeetingUsecase_BeginTopicAndStatus(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	m, topics, err := env.meetings.Create(ctx, "chat-1", "2 Alpha, Beta")
	require.NoError(t, err)
	require.NoError(t, env.store.Callers().Add(ctx, &domain.Caller{ID: "c1", MeetingID: m.ID, SessionID: "s1"}))

	// No current topic yet: status is silent
	require.NoError(t, env.meetings.Status(ctx, m))
	assert.Empty(t, env.messages.texts())

	require.NoError(t, env.meetings.Start(ctx, m.ID))
	require.NoError(t, env.meetings.BeginTopic(ctx, m, topics[0]))

	topic, err := env.store.Topics().Get(ctx, topics[0].ID)
	require.NoError(t, err)
	assert.Equal(t, m.TopicTimeLimit, topic.TimeLeft)
	assert.Equal(t, "msg-1", topic.MessageID)
	assert.Equal(t, []domain.VoiceSignal{domain.SignalNext}, env.voice.signals["s1"])

	current, err := env.meetings.Get(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MeetingStateInProgress, current.State)
	require.NoError(t, env.meetings.Tick(ctx, m.ID, topics[0].ID, 42))
	require.NoError(t, env.meetings.Status(ctx, current))

	sent := env.messages.texts()
	require.Len(t, sent, 2)
	assert.Equal(t, DefaultTemplates.FormatTopicBanner("Alpha"), sent[0])
	assert.Equal(t, "Current topic: Alpha\nTime left for topic: 00 minutes 42 seconds", sent[1])
}

func TestMeetingUsecase_CompleteAndTranscript(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	m, topics, err := env.meetings.Create(ctx, "chat-1", "$2 Alpha, Beta")
	require.NoError(t, err)
	require.NoError(t, env.store.Topics().SetTranscription(ctx, topics[0].ID, "we agreed"))

	require.NoError(t, env.meetings.Complete(ctx, m))
	stored, err := env.meetings.Get(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MeetingStateCompleted, stored.State)
	assert.Equal(t, "msg-1", stored.CompleteMsgID)
	assert.Contains(t, env.voice.sessions, "chat-1@bridge.example.com|"+domain.VoicePromptComplete)

	require.NoError(t, env.meetings.SendTranscript(ctx, stored))
	assert.Equal(t, "Standup transcript", env.pdf.title)
	assert.Equal(t, []domain.TranscriptEntry{
		{Topic: "Alpha", Text: "we agreed"},
		{Topic: "Beta", Text: domain.MissingTranscription},
	}, env.pdf.entries)
	assert.Contains(t, env.messages.files, "Standup-transcript.pdf")
}

func TestMeetingUsecase_CompleteAfterConcurrentCancel(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	m, _, err := env.meetings.Create(ctx, "chat-1", "$2 Alpha")
	require.NoError(t, err)
	require.NoError(t, env.store.Callers().Add(ctx, &domain.Caller{ID: "c1", MeetingID: m.ID, SessionID: "s1"}))
	require.NoError(t, env.meetings.Start(ctx, m.ID))

	// CANCEL lands while the completion banner is being sent
	env.messages.onSend = func(text string) {
		if text == DefaultTemplates.Complete {
			require.NoError(t, env.store.Meetings().SetState(ctx, m.ID, domain.MeetingStateCanceled))
		}
	}

	err = env.meetings.Complete(ctx, m)
	assert.True(t, domain.IsNotFound(err))

	stored, err := env.meetings.Get(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MeetingStateCanceled, stored.State)
	assert.Empty(t, stored.CompleteMsgID)
	assert.Empty(t, env.voice.signals["s1"])
	assert.NotContains(t, env.voice.sessions, "chat-1@bridge.example.com|"+domain.VoicePromptComplete)

	// Start cannot revive it either
	assert.True(t, domain.IsNotFound(env.meetings.Start(ctx, m.ID)))
}

func TestMeetingUsecase_Cancel(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	m, _, err := env.meetings.Create(ctx, "chat-1", " A")
	require.NoError(t, err)
	require.NoError(t, env.store.Callers().Add(ctx, &domain.Caller{ID: "c1", MeetingID: m.ID, SessionID: "s1"}))

	require.NoError(t, env.meetings.Cancel(ctx, m))

	_, err = env.meetings.Get(ctx, m.ID)
	assert.True(t, domain.IsNotFound(err))
	assert.Equal(t, []domain.VoiceSignal{domain.SignalExit}, env.voice.signals["s1"])
	assert.Equal(t, []string{DefaultTemplates.Canceled}, env.messages.texts())

	// A second cancel finds nothing and is not an error
	require.NoError(t, env.meetings.Cancel(ctx, m))
}

func TestMeetingUsecase_SignalCallers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	m, _, err := env.meetings.Create(ctx, "chat-1", " A")
	require.NoError(t, err)
	for i, session := range []string{"s1", "s2", "s3"} {
		caller := &domain.Caller{ID: string(rune('a' + i)), MeetingID: m.ID, SessionID: session}
		require.NoError(t, env.store.Callers().Add(ctx, caller))
	}
	env.voice.failFor = "s2"

	err = env.meetings.SignalCallers(ctx, m.ID, domain.SignalNext)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "s2")
	assert.Len(t, env.voice.signals["s1"], 1)
	assert.Len(t, env.voice.signals["s3"], 1)
}

func TestTranscriptFileName(t *testing.T) {
	assert.Equal(t, "a_b-transcript.pdf", transcriptFileName(&domain.Meeting{Name: "a/b"}))
	assert.Equal(t, "meeting-transcript.pdf", transcriptFileName(&domain.Meeting{Name: " "}))
}

func TestMeetingUsecase_Greet(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	greeted, err := env.meetings.Greet(ctx, "p2p-chat")
	require.NoError(t, err)
	assert.False(t, greeted)
	assert.Empty(t, env.messages.texts())

	env.messages.members = []domain.Member{{UserID: "u1", Name: "Ann"}, {UserID: "u2", Name: "Bo"}}
	greeted, err = env.meetings.Greet(ctx, "group-chat")
	require.NoError(t, err)
	assert.True(t, greeted)
	assert.Equal(t, []string{DefaultTemplates.FormatWelcome()}, env.messages.texts())
}
