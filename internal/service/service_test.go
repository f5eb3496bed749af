package service

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/DevRickLin/feishu-meetbot/internal/biz/domain"
	"github.com/DevRickLin/feishu-meetbot/internal/biz/repo"
	"github.com/DevRickLin/feishu-meetbot/internal/biz/usecase"
	"github.com/DevRickLin/feishu-meetbot/internal/data"
)

// Mock implementations

type mockMessageRepo struct {
	mu    sync.Mutex
	sent  []string
	files []string
}

func (m *mockMessageRepo) SendText(ctx context.Context, chatID, text string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, text)
	return fmt.Sprintf("msg-%d", len(m.sent)), nil
}

func (m *mockMessageRepo) SendFile(ctx context.Context, chatID, fileName string, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files = append(m.files, fileName)
	return "file-msg", nil
}

func (m *mockMessageRepo) GetMessage(ctx context.Context, msgID string) (*domain.Message, error) {
	return nil, domain.NewNotFoundError("message not found")
}

func (m *mockMessageRepo) GetChatMembers(ctx context.Context, chatID string) ([]domain.Member, error) {
	return nil, nil
}

func (m *mockMessageRepo) GetChatInfo(ctx context.Context, chatID string) (*repo.ChatInfo, error) {
	return &repo.ChatInfo{ChatID: chatID, Name: "Weekly", ChatType: domain.ChatTypeGroup}, nil
}

func (m *mockMessageRepo) texts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.sent...)
}

func (m *mockMessageRepo) fileNames() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.files...)
}

// count returns how many sent texts contain substr
func (m *mockMessageRepo) count(substr string) int {
	n := 0
	for _, text := range m.texts() {
		if strings.Contains(text, substr) {
			n++
		}
	}
	return n
}

type mockVoiceRepo struct{}

func (m *mockVoiceRepo) StartSession(ctx context.Context, address, text string) error { return nil }

func (m *mockVoiceRepo) Signal(ctx context.Context, sessionID string, signal domain.VoiceSignal) error {
	return nil
}

type mockTranscriptRepo struct {
	mu      sync.Mutex
	entries []domain.TranscriptEntry
}

func (m *mockTranscriptRepo) Render(ctx context.Context, title string, entries []domain.TranscriptEntry) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = entries
	return []byte("%PDF-test"), nil
}

// tickRecorder records every countdown value written per topic
type tickRecorder struct {
	repo.TopicRepo

	mu     sync.Mutex
	values map[string][]int
}

func (r *tickRecorder) UpdateTimeLeft(ctx context.Context, id string, timeLeft int) error {
	r.mu.Lock()
	if r.values == nil {
		r.values = make(map[string][]int)
	}
	r.values[id] = append(r.values[id], timeLeft)
	r.mu.Unlock()
	return r.TopicRepo.UpdateTimeLeft(ctx, id, timeLeft)
}

func (r *tickRecorder) of(topicID string) []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.values[topicID]...)
}

type mockLauncher struct {
	mu       sync.Mutex
	launched []string
}

func (m *mockLauncher) Launch(meetingID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.launched = append(m.launched, meetingID)
}

type testEnv struct {
	store    *data.SQLiteStore
	messages *mockMessageRepo
	pdf      *mockTranscriptRepo
	ticks    *tickRecorder
	meetings *usecase.MeetingUsecase
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store, err := data.NewSQLiteStore(filepath.Join(t.TempDir(), "meetbot.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	env := &testEnv{
		store:    store,
		messages: &mockMessageRepo{},
		pdf:      &mockTranscriptRepo{},
		ticks:    &tickRecorder{TopicRepo: store.Topics()},
	}
	env.meetings = usecase.NewMeetingUsecase(
		store.Meetings(), env.ticks, store.Callers(),
		env.messages, &mockVoiceRepo{}, env.pdf,
		usecase.DefaultTemplates,
		usecase.VoiceSettings{PhoneNumber: "+1 555 0100", SIPDomain: "bridge.example.com"},
	)
	return env
}

func (env *testEnv) create(t *testing.T, chatID, params string) *domain.Meeting {
	t.Helper()
	m, _, err := env.meetings.Create(context.Background(), chatID, params)
	require.NoError(t, err)
	return m
}

func (env *testEnv) waitForText(t *testing.T, substr string) {
	t.Helper()
	require.Eventually(t, func() bool {
		return env.messages.count(substr) > 0
	}, 5*time.Second, time.Millisecond, "no message containing %q", substr)
}

// runAsync runs a lifecycle in the background and returns its result channel
func runAsync(ctx context.Context, s *LifecycleScheduler, meetingID string) <-chan error {
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, meetingID) }()
	return done
}

func awaitRun(t *testing.T, done <-chan error) {
	t.Helper()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("lifecycle did not finish")
	}
}
