package feishu

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	"github.com/larksuite/oapi-sdk-go/v3/event/dispatcher"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	larkws "github.com/larksuite/oapi-sdk-go/v3/ws"
)

// Message represents a received Feishu message
type Message struct {
	ChatID     string
	MsgID      string
	MsgType    string // text, post
	ChatType   string // p2p (private), group
	Content    string // Plain text, mention placeholders (@_user_1) kept as-is
	SenderID   string
	SenderType string // user, app
	CreateTime int64  // Milliseconds since epoch
}

// ChatMember represents a member in a chat
type ChatMember struct {
	MemberID string `json:"member_id"`
	Name     string `json:"name"`
}

// ChatInfo represents information about a chat
type ChatInfo struct {
	ChatID   string `json:"chat_id"`
	Name     string `json:"name"`
	ChatType string `json:"chat_type"` // p2p, group
}

// MessageHandler is the callback for received messages
type MessageHandler func(msg *Message)

// BotAddedHandler is called when the bot joins a chat
type BotAddedHandler func(chatID string)

// Client is the Feishu API client
type Client struct {
	appID      string
	appSecret  string
	larkCli    *lark.Client
	wsCli      *larkws.Client
	onMessage  MessageHandler
	onBotAdded BotAddedHandler
	log        *slog.Logger
}

// NewClient creates a new Feishu client; API calls work before Start
func NewClient(appID, appSecret string) *Client {
	return &Client{
		appID:     appID,
		appSecret: appSecret,
		larkCli:   lark.NewClient(appID, appSecret),
		log:       slog.With("component", "feishu"),
	}
}

// OnMessage sets the message handler
func (c *Client) OnMessage(handler MessageHandler) {
	c.onMessage = handler
}

// OnBotAdded sets the handler for bot-added events
func (c *Client) OnBotAdded(handler BotAddedHandler) {
	c.onBotAdded = handler
}

// Start connects to Feishu via WebSocket and blocks until ctx is done
func (c *Client) Start(ctx context.Context) error {
	// Handlers must return quickly so the SDK can ACK, otherwise Feishu redelivers
	eventHandler := dispatcher.NewEventDispatcher("", "").
		OnP2MessageReceiveV1(func(ctx context.Context, event *larkim.P2MessageReceiveV1) error {
			go c.handleMessage(event)
			return nil
		}).
		OnP2ChatMemberBotAddedV1(func(ctx context.Context, event *larkim.P2ChatMemberBotAddedV1) error {
			if event.Event != nil && event.Event.ChatId != nil && c.onBotAdded != nil {
				go c.onBotAdded(*event.Event.ChatId)
			}
			return nil
		})

	c.wsCli = larkws.NewClient(c.appID, c.appSecret,
		larkws.WithEventHandler(eventHandler),
		larkws.WithLogLevel(larkcore.LogLevelInfo),
	)

	c.log.Info("starting websocket connection")
	return c.wsCli.Start(ctx)
}

// handleMessage converts the event and hands it to the message handler
func (c *Client) handleMessage(event *larkim.P2MessageReceiveV1) {
	if event.Event == nil || event.Event.Message == nil {
		return
	}
	rawMsg := event.Event.Message

	msg := &Message{
		ChatID:   strVal(rawMsg.ChatId),
		MsgID:    strVal(rawMsg.MessageId),
		MsgType:  strVal(rawMsg.MessageType),
		ChatType: strVal(rawMsg.ChatType),
	}
	if ts, err := strconv.ParseInt(strVal(rawMsg.CreateTime), 10, 64); err == nil {
		msg.CreateTime = ts
	}
	if sender := event.Event.Sender; sender != nil {
		msg.SenderType = strVal(sender.SenderType)
		if sender.SenderId != nil {
			msg.SenderID = strVal(sender.SenderId.OpenId)
		}
	}

	// Ignore our own messages
	if msg.SenderType == "app" {
		return
	}

	content, ok := ParseContent(msg.MsgType, strVal(rawMsg.Content))
	if !ok {
		c.log.Debug("unsupported message type", "msg_type", msg.MsgType, "chat_id", msg.ChatID)
		return
	}
	msg.Content = content

	c.log.Debug("message received", "chat_id", msg.ChatID, "msg_id", msg.MsgID, "chat_type", msg.ChatType)
	if c.onMessage != nil {
		c.onMessage(msg)
	}
}

// ParseContent extracts plain text from text and post messages
func ParseContent(msgType, raw string) (string, bool) {
	switch msgType {
	case "text":
		var parsed struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
			return "", false
		}
		return parsed.Text, true
	case "post":
		var parsed struct {
			Title   string `json:"title"`
			Content [][]struct {
				Tag  string `json:"tag"`
				Text string `json:"text,omitempty"`
			} `json:"content"`
		}
		if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
			return "", false
		}
		var lines []string
		if parsed.Title != "" {
			lines = append(lines, parsed.Title)
		}
		for _, line := range parsed.Content {
			var sb strings.Builder
			for _, elem := range line {
				if elem.Tag == "text" {
					sb.WriteString(elem.Text)
				}
			}
			if sb.Len() > 0 {
				lines = append(lines, sb.String())
			}
		}
		return strings.Join(lines, "\n"), true
	}
	return "", false
}

// SendText sends a text message to a chat and returns the message ID
func (c *Client) SendText(ctx context.Context, chatID, text string) (string, error) {
	contentJSON, _ := json.Marshal(map[string]string{"text": text})
	return c.send(ctx, chatID, larkim.MsgTypeText, string(contentJSON))
}

// SendFile posts a previously uploaded file to a chat
func (c *Client) SendFile(ctx context.Context, chatID, fileKey string) (string, error) {
	contentJSON, _ := json.Marshal(map[string]string{"file_key": fileKey})
	return c.send(ctx, chatID, larkim.MsgTypeFile, string(contentJSON))
}

func (c *Client) send(ctx context.Context, chatID, msgType, content string) (string, error) {
	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(larkim.ReceiveIdTypeChatId).
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(chatID).
			MsgType(msgType).
			Content(content).
			Build()).
		Build()

	resp, err := c.larkCli.Im.Message.Create(ctx, req)
	if err != nil {
		return "", fmt.Errorf("send message failed: %w", err)
	}
	if !resp.Success() {
		return "", fmt.Errorf("send message error: %s", resp.Msg)
	}

	msgID := ""
	if resp.Data != nil {
		msgID = strVal(resp.Data.MessageId)
	}
	c.log.Debug("message sent", "chat_id", chatID, "msg_type", msgType, "msg_id", msgID)
	return msgID, nil
}

// UploadFile uploads a document and returns its file key
func (c *Client) UploadFile(ctx context.Context, fileType, fileName string, data []byte) (string, error) {
	req := larkim.NewCreateFileReqBuilder().
		Body(larkim.NewCreateFileReqBodyBuilder().
			FileType(fileType).
			FileName(fileName).
			File(bytes.NewReader(data)).
			Build()).
		Build()

	resp, err := c.larkCli.Im.File.Create(ctx, req)
	if err != nil {
		return "", fmt.Errorf("upload file failed: %w", err)
	}
	if !resp.Success() {
		return "", fmt.Errorf("upload file error: %s", resp.Msg)
	}
	if resp.Data == nil || resp.Data.FileKey == nil {
		return "", fmt.Errorf("upload file error: empty file key")
	}
	return *resp.Data.FileKey, nil
}

// GetMessage fetches a single message
func (c *Client) GetMessage(ctx context.Context, msgID string) (*Message, error) {
	req := larkim.NewGetMessageReqBuilder().
		MessageId(msgID).
		Build()

	resp, err := c.larkCli.Im.Message.Get(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("get message failed: %w", err)
	}
	if !resp.Success() {
		return nil, fmt.Errorf("get message error: %s", resp.Msg)
	}
	if resp.Data == nil || len(resp.Data.Items) == 0 {
		return nil, fmt.Errorf("get message error: message %s not found", msgID)
	}

	item := resp.Data.Items[0]
	msg := &Message{
		ChatID:  strVal(item.ChatId),
		MsgID:   strVal(item.MessageId),
		MsgType: strVal(item.MsgType),
	}
	if ts, err := strconv.ParseInt(strVal(item.CreateTime), 10, 64); err == nil {
		msg.CreateTime = ts
	}
	if item.Sender != nil {
		msg.SenderID = strVal(item.Sender.Id)
		msg.SenderType = strVal(item.Sender.SenderType)
	}
	if item.Body != nil {
		if content, ok := ParseContent(msg.MsgType, strVal(item.Body.Content)); ok {
			msg.Content = content
		}
	}
	return msg, nil
}

// GetChatMembers retrieves all members of a chat, following pagination
func (c *Client) GetChatMembers(ctx context.Context, chatID string) ([]*ChatMember, error) {
	var members []*ChatMember
	var pageToken string

	for {
		reqBuilder := larkim.NewGetChatMembersReqBuilder().
			MemberIdType("open_id").
			ChatId(chatID).
			PageSize(100)
		if pageToken != "" {
			reqBuilder = reqBuilder.PageToken(pageToken)
		}

		resp, err := c.larkCli.Im.ChatMembers.Get(ctx, reqBuilder.Build())
		if err != nil {
			return nil, fmt.Errorf("get chat members failed: %w", err)
		}
		if !resp.Success() {
			return nil, fmt.Errorf("get chat members error: %s", resp.Msg)
		}

		for _, item := range resp.Data.Items {
			members = append(members, &ChatMember{
				MemberID: strVal(item.MemberId),
				Name:     strVal(item.Name),
			})
		}

		if resp.Data.PageToken == nil || *resp.Data.PageToken == "" {
			break
		}
		pageToken = *resp.Data.PageToken
	}
	return members, nil
}

// GetChatInfo retrieves information about a chat
func (c *Client) GetChatInfo(ctx context.Context, chatID string) (*ChatInfo, error) {
	req := larkim.NewGetChatReqBuilder().
		ChatId(chatID).
		Build()

	resp, err := c.larkCli.Im.Chat.Get(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("get chat info failed: %w", err)
	}
	if !resp.Success() {
		return nil, fmt.Errorf("get chat info error: %s", resp.Msg)
	}

	return &ChatInfo{
		ChatID:   chatID,
		Name:     strVal(resp.Data.Name),
		ChatType: strVal(resp.Data.ChatMode),
	}, nil
}

func strVal(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
