package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DevRickLin/feishu-meetbot/internal/biz/domain"
)

func TestStaleJanitor_Sweep(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	m := env.create(t, "chat-1", " Alpha")

	janitor := NewStaleJanitor(env.meetings, 2*time.Hour, 0)
	assert.Equal(t, 30*time.Minute, janitor.interval)

	assert.Zero(t, janitor.Sweep(ctx))

	janitor.now = func() time.Time { return time.Now().Add(3 * time.Hour) }
	assert.Equal(t, int64(1), janitor.Sweep(ctx))

	_, err := env.meetings.Get(ctx, m.ID)
	require.Error(t, err)
	assert.True(t, domain.IsNotFound(err))
}

func TestStaleJanitor_StartStop(t *testing.T) {
	env := newTestEnv(t)
	env.create(t, "chat-1", " Alpha")

	janitor := NewStaleJanitor(env.meetings, time.Millisecond, time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	janitor.Start()
	require.Eventually(t, func() bool {
		list, err := env.meetings.List(context.Background())
		return err == nil && len(list) == 0
	}, 5*time.Second, time.Millisecond)
	janitor.Stop()
	janitor.Stop()
}
