package repo

import (
	"context"

	"github.com/DevRickLin/feishu-meetbot/internal/biz/domain"
)

// ChatInfo represents chat information
type ChatInfo struct {
	ChatID   string
	Name     string
	ChatType domain.ChatType
}

// MessageRepo is the messaging gateway interface
// Backed by the Feishu open platform API
type MessageRepo interface {
	// SendText sends a text message and returns its message ID
	SendText(ctx context.Context, chatID, text string) (string, error)

	// SendFile uploads data as a file and posts it to the chat
	SendFile(ctx context.Context, chatID, fileName string, data []byte) (string, error)

	// GetMessage fetches a single message by ID
	GetMessage(ctx context.Context, msgID string) (*domain.Message, error)

	// GetChatMembers gets the list of chat members
	GetChatMembers(ctx context.Context, chatID string) ([]domain.Member, error)

	// GetChatInfo gets chat information
	GetChatInfo(ctx context.Context, chatID string) (*ChatInfo, error)
}
