package domain

import "time"

// ChatMessage is a direct message between two users.
type ChatMessage struct {
	ID           int64     `json:"id"`
	SenderID     int64     `json:"senderId"`
	SenderName   string    `json:"senderName,omitempty"`
	ReceiverID   int64     `json:"receiverId"`
	ReceiverName string    `json:"receiverName,omitempty"`
	Content      string    `json:"content"`
	ProjectID    *int64    `json:"projectId,omitempty"`
	ProjectName  string    `json:"projectName,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// Involves reports whether userID sent or received the message.
func (m *ChatMessage) Involves(userID int64) bool {
	return m.SenderID == userID || m.ReceiverID == userID
}

// Preview returns content cut to max runes with a trailing ellipsis when it
// was cut.
func Preview(content string, max int) string {
	r := []rune(content)
	if len(r) <= max {
		return content
	}
	return string(r[:max]) + "..."
}
