package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DevRickLin/feishu-meetbot/internal/biz/domain"
)

func TestVoiceUsecase_Join(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.meetings.newCode = codes("4321")

	m, _, err := env.meetings.Create(ctx, "chat-1", " A")
	require.NoError(t, err)

	_, err = env.calls.Join(ctx, "0000", "s1", "")
	assert.True(t, domain.IsValidation(err))

	joined, err := env.calls.Join(ctx, "4321", "s1", "+15550100")
	require.NoError(t, err)
	assert.Equal(t, m.ID, joined.ID)

	stored, err := env.meetings.Get(ctx, m.ID)
	require.NoError(t, err)
	assert.True(t, stored.VoiceUsed)

	callers, err := env.store.Callers().ListByMeeting(ctx, m.ID)
	require.NoError(t, err)
	require.Len(t, callers, 1)
	assert.Equal(t, "s1", callers[0].SessionID)
	assert.Equal(t, "+15550100", callers[0].Name)
}

func TestVoiceUsecase_Next(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	m, topics, err := env.meetings.Create(ctx, "chat-1", " A, B")
	require.NoError(t, err)

	step, err := env.calls.Next(ctx, m.ID)
	require.NoError(t, err)
	assert.False(t, step.Started())
	assert.Nil(t, step.Topic)

	require.NoError(t, env.meetings.Start(ctx, m.ID))
	require.NoError(t, env.meetings.BeginTopic(ctx, m, topics[0]))

	first, err := env.calls.Next(ctx, m.ID)
	require.NoError(t, err)
	assert.True(t, first.Started())
	require.NotNil(t, first.Topic)
	assert.Equal(t, "A", first.Topic.Name)
	assert.True(t, first.StartRecording)

	// Only one caller records each topic
	second, err := env.calls.Next(ctx, m.ID)
	require.NoError(t, err)
	assert.False(t, second.StartRecording)

	require.NoError(t, env.meetings.BeginTopic(ctx, m, topics[1]))
	third, err := env.calls.Next(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "B", third.Topic.Name)
	assert.True(t, third.StartRecording)
}

func TestVoiceUsecase_Hangup(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.meetings.newCode = codes("4321")

	m, _, err := env.meetings.Create(ctx, "chat-1", " A")
	require.NoError(t, err)
	_, err = env.calls.Join(ctx, "4321", "s1", "")
	require.NoError(t, err)

	require.NoError(t, env.store.Meetings().SetCompleted(ctx, m.ID, "done"))
	prompt, err := env.calls.Hangup(ctx, m.ID, "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.VoicePromptComplete, prompt)

	callers, err := env.store.Callers().ListByMeeting(ctx, m.ID)
	require.NoError(t, err)
	assert.Empty(t, callers)

	require.NoError(t, env.store.Meetings().SetState(ctx, m.ID, domain.MeetingStateCanceled))
	prompt, err = env.calls.Hangup(ctx, m.ID, "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.VoicePromptCanceled, prompt)

	require.NoError(t, env.meetings.Delete(ctx, m.ID))
	prompt, err = env.calls.Hangup(ctx, m.ID, "s1")
	require.NoError(t, err)
	assert.Empty(t, prompt)
}

func TestVoiceUsecase_Transcribe(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, topics, err := env.meetings.Create(ctx, "chat-1", " A")
	require.NoError(t, err)

	require.NoError(t, env.calls.Transcribe(ctx, topics[0].ID, "hello"))
	topic, err := env.store.Topics().Get(ctx, topics[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "hello", topic.Transcription)

	assert.NoError(t, env.calls.Transcribe(ctx, "missing", "late"))
}
