package domain

import "time"

// ChatType represents the chat type
type ChatType string

const (
	ChatTypeGroup ChatType = "group"
	ChatTypeP2P   ChatType = "p2p"
)

// Message represents an inbound chat message
type Message struct {
	ID         string
	ChatID     string
	Content    string
	SenderID   string
	MsgType    string // text, post, etc.
	CreateTime time.Time
	IsBot      bool // Whether the message was sent by the bot
}

// IsFromBot checks if the message is from the bot
func (m *Message) IsFromBot(botID string) bool {
	return m.IsBot || (botID != "" && m.SenderID == botID)
}
