package repository

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/SQ-Kust408/poet-1v1-chat-room/internal/model"
)

type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// AppendTurn writes one chat turn (user message then assistant message) in a
// single transaction. Either both rows commit or neither does.
func (r *MessageRepository) AppendTurn(userID uint, poetName, userText, assistantText string) ([]model.Message, error) {
	now := time.Now()
	messages := []model.Message{
		{Content: userText, Role: "user", Timestamp: now, PoetName: poetName, UserID: userID},
		{Content: assistantText, Role: "assistant", Timestamp: now, PoetName: poetName, UserID: userID},
	}

	err := r.db.Transaction(func(tx *gorm.DB) error {
		for i := range messages {
			if err := tx.Create(&messages[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("append chat turn failed: %w", err)
	}
	return messages, nil
}

func (r *MessageRepository) ListByUserAndPoet(userID uint, poetName string) ([]model.Message, error) {
	var messages []model.Message
	if err := r.db.Where("user_id = ? AND poet_name = ?", userID, poetName).
		Order("timestamp ASC, id ASC").
		Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("list chat history failed: %w", err)
	}
	return messages, nil
}

func (r *MessageRepository) SearchByContent(userID uint, query string) ([]model.Message, error) {
	pattern := "%" + strings.ToLower(query) + "%"
	var messages []model.Message
	if err := r.db.Where("user_id = ? AND LOWER(content) LIKE ?", userID, pattern).
		Order("timestamp DESC, id DESC").
		Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("search messages failed: %w", err)
	}
	return messages, nil
}
