package data

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/DevRickLin/feishu-meetbot/internal/biz/domain"
	"github.com/DevRickLin/feishu-meetbot/internal/biz/repo"
	"github.com/DevRickLin/feishu-meetbot/internal/infra/feishu"
)

// feishuRepo implements the messaging gateway on the Feishu API
type feishuRepo struct {
	client *feishu.Client
}

// NewFeishuRepo creates a new Feishu repository
func NewFeishuRepo(client *feishu.Client) repo.MessageRepo {
	return &feishuRepo{client: client}
}

func (r *feishuRepo) SendText(ctx context.Context, chatID, text string) (string, error) {
	msgID, err := r.client.SendText(ctx, chatID, text)
	if err != nil {
		return "", domain.NewUnavailableError("failed to send message", err)
	}
	return msgID, nil
}

// SendFile uploads the document first, then posts it to the chat
func (r *feishuRepo) SendFile(ctx context.Context, chatID, fileName string, data []byte) (string, error) {
	fileKey, err := r.client.UploadFile(ctx, fileType(fileName), fileName, data)
	if err != nil {
		return "", domain.NewUnavailableError("failed to upload file", err)
	}
	msgID, err := r.client.SendFile(ctx, chatID, fileKey)
	if err != nil {
		return "", domain.NewUnavailableError("failed to send file", err)
	}
	return msgID, nil
}

func (r *feishuRepo) GetMessage(ctx context.Context, msgID string) (*domain.Message, error) {
	m, err := r.client.GetMessage(ctx, msgID)
	if err != nil {
		return nil, domain.NewUnavailableError("failed to get message", err)
	}
	return &domain.Message{
		ID:         m.MsgID,
		ChatID:     m.ChatID,
		Content:    m.Content,
		SenderID:   m.SenderID,
		MsgType:    m.MsgType,
		CreateTime: time.UnixMilli(m.CreateTime),
		IsBot:      m.SenderType == "app",
	}, nil
}

func (r *feishuRepo) GetChatMembers(ctx context.Context, chatID string) ([]domain.Member, error) {
	members, err := r.client.GetChatMembers(ctx, chatID)
	if err != nil {
		return nil, domain.NewUnavailableError("failed to get chat members", err)
	}

	result := make([]domain.Member, 0, len(members))
	for _, m := range members {
		result = append(result, domain.Member{UserID: m.MemberID, Name: m.Name})
	}
	return result, nil
}

func (r *feishuRepo) GetChatInfo(ctx context.Context, chatID string) (*repo.ChatInfo, error) {
	info, err := r.client.GetChatInfo(ctx, chatID)
	if err != nil {
		return nil, domain.NewUnavailableError("failed to get chat info", err)
	}

	chatType := domain.ChatTypeGroup
	if info.ChatType == string(domain.ChatTypeP2P) {
		chatType = domain.ChatTypeP2P
	}
	return &repo.ChatInfo{
		ChatID:   info.ChatID,
		Name:     info.Name,
		ChatType: chatType,
	}, nil
}

// fileType maps an extension to the Feishu upload file type
func fileType(fileName string) string {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".pdf":
		return "pdf"
	case ".doc", ".docx":
		return "doc"
	}
	return "stream"
}
