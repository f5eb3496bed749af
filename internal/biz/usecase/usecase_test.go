package usecase

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/DevRickLin/feishu-meetbot/internal/biz/domain"
	"github.com/DevRickLin/feishu-meetbot/internal/biz/repo"
	"github.com/DevRickLin/feishu-meetbot/internal/data"
)

// Mock implementations

type mockMessageRepo struct {
	mu       sync.Mutex
	chatName string
	members  []domain.Member
	sent     []string
	files    map[string][]byte
	onSend   func(text string) // runs while the send is in flight
}

func (m *mockMessageRepo) SendText(ctx context.Context, chatID, text string) (string, error) {
	if m.onSend != nil {
		m.onSend(text)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, text)
	return fmt.Sprintf("msg-%d", len(m.sent)), nil
}

func (m *mockMessageRepo) SendFile(ctx context.Context, chatID, fileName string, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.files == nil {
		m.files = make(map[string][]byte)
	}
	m.files[fileName] = data
	return "file-msg", nil
}

func (m *mockMessageRepo) GetMessage(ctx context.Context, msgID string) (*domain.Message, error) {
	return nil, domain.NewNotFoundError("message not found")
}

func (m *mockMessageRepo) GetChatMembers(ctx context.Context, chatID string) ([]domain.Member, error) {
	return m.members, nil
}

func (m *mockMessageRepo) GetChatInfo(ctx context.Context, chatID string) (*repo.ChatInfo, error) {
	return &repo.ChatInfo{ChatID: chatID, Name: m.chatName, ChatType: domain.ChatTypeGroup}, nil
}

func (m *mockMessageRepo) texts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.sent...)
}

type mockVoiceRepo struct {
	mu       sync.Mutex
	sessions []string // address|text
	signals  map[string][]domain.VoiceSignal
	failFor  string
}

func (m *mockVoiceRepo) StartSession(ctx context.Context, address, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions = append(m.sessions, address+"|"+text)
	return nil
}

func (m *mockVoiceRepo) Signal(ctx context.Context, sessionID string, signal domain.VoiceSignal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sessionID == m.failFor {
		return errors.New("session gone")
	}
	if m.signals == nil {
		m.signals = make(map[string][]domain.VoiceSignal)
	}
	m.signals[sessionID] = append(m.signals[sessionID], signal)
	return nil
}

type mockTranscriptRepo struct {
	title   string
	entries []domain.TranscriptEntry
}

func (m *mockTranscriptRepo) Render(ctx context.Context, title string, entries []domain.TranscriptEntry) ([]byte, error) {
	m.title = title
	m.entries = entries
	return []byte("%PDF-test"), nil
}

type testEnv struct {
	store    *data.SQLiteStore
	messages *mockMessageRepo
	voice    *mockVoiceRepo
	pdf      *mockTranscriptRepo
	meetings *MeetingUsecase
	calls    *VoiceUsecase
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store, err := data.NewSQLiteStore(filepath.Join(t.TempDir(), "meetbot.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	env := &testEnv{
		store:    store,
		messages: &mockMessageRepo{chatName: "Standup"},
		voice:    &mockVoiceRepo{},
		pdf:      &mockTranscriptRepo{},
	}
	env.meetings = NewMeetingUsecase(
		store.Meetings(), store.Topics(), store.Callers(),
		env.messages, env.voice, env.pdf,
		DefaultTemplates,
		VoiceSettings{PhoneNumber: "+1 555 0100", SIPNumber: "sip:meet@example.com", SIPDomain: "bridge.example.com"},
	)
	env.calls = NewVoiceUsecase(store.Meetings(), store.Topics(), store.Callers())
	return env
}

// codes returns a generator yielding the given voice codes in order
func codes(values ...string) func() string {
	i := 0
	return func() string {
		v := values[i%len(values)]
		i++
		return v
	}
}
