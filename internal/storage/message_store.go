package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nuanyu/companion/backend/internal/model/chat"
)

// MessageStore persists the append-only conversation log.
type MessageStore struct {
	db *gorm.DB
}

// NewMessageStore 创建消息存储。
func NewMessageStore(db *gorm.DB) *MessageStore {
	return &MessageStore{db: db}
}

// Append stores one message; the id and timestamp are filled in when absent.
func (s *MessageStore) Append(ctx context.Context, msg *chat.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	if msg.MessageType == "" {
		msg.MessageType = "text"
	}
	return s.db.WithContext(ctx).Create(msg).Error
}

// History returns the most recent limit messages for a (user, companion)
// pair in creation order, oldest first.
func (s *MessageStore) History(ctx context.Context, userID, companionID string, limit int) ([]chat.Message, error) {
	var messages []chat.Message

	q := s.db.WithContext(ctx).
		Where("user_id = ? AND companion_id = ?", userID, companionID).
		Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&messages).Error; err != nil {
		return nil, err
	}

	// 反转顺序（从旧到新）
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}
