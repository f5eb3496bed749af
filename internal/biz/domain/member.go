package domain

// Member represents a chat member (value object)
type Member struct {
	UserID string
	Name   string
}
