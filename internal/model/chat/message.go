package chat

import "time"

// Sender types for a chat message.
const (
	SenderUser      = "user"
	SenderCompanion = "companion"
)

// Message is one appended turn of a user/companion conversation.
// Rows are never mutated after creation; history is rebuilt by CreatedAt order.
type Message struct {
	ID          string    `json:"id" gorm:"primaryKey;size:36"`
	UserID      string    `json:"userId" gorm:"index:idx_messages_pair;size:36;not null"`
	CompanionID string    `json:"companionId" gorm:"index:idx_messages_pair;size:36;not null"`
	SenderType  string    `json:"senderType" gorm:"size:20;not null"`
	Content     string    `json:"content" gorm:"type:text;not null"`
	MessageType string    `json:"messageType" gorm:"size:20;default:'text'"`
	CreatedAt   time.Time `json:"createdAt" gorm:"index"`
}

// TableName 指定表名。
func (Message) TableName() string {
	return "chat_messages"
}
