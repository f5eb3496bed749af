package server

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/DevRickLin/feishu-meetbot/internal/biz/usecase"
	"github.com/DevRickLin/feishu-meetbot/internal/infra/feishu"
	"github.com/DevRickLin/feishu-meetbot/internal/logging"
	"github.com/DevRickLin/feishu-meetbot/internal/service"
)

// seenTTL is how long a delivered message ID is remembered for deduplication
const seenTTL = 5 * time.Minute

// feishuClient is the part of the Feishu client the server drives
type feishuClient interface {
	OnMessage(handler feishu.MessageHandler)
	OnBotAdded(handler feishu.BotAddedHandler)
	Start(ctx context.Context) error
}

// FeishuServer feeds chat events from the Feishu websocket into the command router
type FeishuServer struct {
	client   feishuClient
	router   *service.CommandRouter
	meetings *usecase.MeetingUsecase
	log      *slog.Logger

	// Message deduplication cache
	seenMsgsMu sync.Mutex
	seenMsgs   map[string]time.Time // msgID -> timestamp

	ctx    context.Context
	cancel context.CancelFunc
}

// NewFeishuServer creates a new Feishu server
func NewFeishuServer(client feishuClient, router *service.CommandRouter, meetings *usecase.MeetingUsecase) *FeishuServer {
	return &FeishuServer{
		client:   client,
		router:   router,
		meetings: meetings,
		log:      slog.With("component", "feishu-server"),
		seenMsgs: make(map[string]time.Time),
	}
}

// Start registers the handlers and blocks on the websocket connection
func (s *FeishuServer) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.client.OnMessage(s.handleMessage)
	s.client.OnBotAdded(s.handleBotAdded)
	return s.client.Start(s.ctx)
}

// Stop closes the websocket connection
func (s *FeishuServer) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *FeishuServer) handleMessage(msg *feishu.Message) {
	// Feishu redelivers events that were not acknowledged in time
	if !s.markMessageSeen(msg.MsgID) {
		s.log.Debug("duplicate message ignored", "msg_id", msg.MsgID)
		return
	}

	ctx := s.context()
	if err := s.router.HandleMessage(ctx, msg.ChatID, msg.Content); err != nil {
		s.log.ErrorContext(ctx, "failed to handle message", "chat_id", msg.ChatID, "msg_id", msg.MsgID, logging.ErrKey, err)
	}
}

func (s *FeishuServer) handleBotAdded(chatID string) {
	ctx := s.context()
	greeted, err := s.meetings.Greet(ctx, chatID)
	if err != nil {
		s.log.ErrorContext(ctx, "failed to send welcome", "chat_id", chatID, logging.ErrKey, err)
		return
	}
	s.log.InfoContext(ctx, "bot added to chat", "chat_id", chatID, "welcomed", greeted)
}

func (s *FeishuServer) context() context.Context {
	if s.ctx == nil {
		return context.Background()
	}
	return s.ctx
}

// markMessageSeen records msgID and reports whether it was new.
// Expired records are dropped on the way.
func (s *FeishuServer) markMessageSeen(msgID string) bool {
	s.seenMsgsMu.Lock()
	defer s.seenMsgsMu.Unlock()

	now := time.Now()
	cutoff := now.Add(-seenTTL)
	for id, ts := range s.seenMsgs {
		if ts.Before(cutoff) {
			delete(s.seenMsgs, id)
		}
	}

	if _, exists := s.seenMsgs[msgID]; exists {
		return false
	}
	s.seenMsgs[msgID] = now
	return true
}
