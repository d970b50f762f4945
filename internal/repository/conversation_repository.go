package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"taskchat/internal/model"
)

// ConversationRepository stores conversations and their messages.
type ConversationRepository struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

func (r *ConversationRepository) Create(ctx context.Context, conversation *model.Conversation) error {
	if err := r.db.WithContext(ctx).Create(conversation).Error; err != nil {
		return fmt.Errorf("create conversation: %w", err)
	}
	return nil
}

// FindByID loads a conversation regardless of owner; callers check ownership.
func (r *ConversationRepository) FindByID(ctx context.Context, id uint) (*model.Conversation, error) {
	var conversation model.Conversation
	if err := r.db.WithContext(ctx).First(&conversation, id).Error; err != nil {
		return nil, notFound(err, "conversation %d not found", id)
	}
	return &conversation, nil
}

func (r *ConversationRepository) ListByUser(ctx context.Context, userID string) ([]model.Conversation, error) {
	var conversations []model.Conversation
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("updated_at DESC, id DESC").
		Find(&conversations).Error; err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return conversations, nil
}

// AppendMessage inserts the message and bumps the conversation's updated_at
// in one transaction.
func (r *ConversationRepository) AppendMessage(ctx context.Context, message *model.Message) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(message).Error; err != nil {
			return fmt.Errorf("create message: %w", err)
		}
		if err := tx.Model(&model.Conversation{}).Where("id = ?", message.ConversationID).
			Update("updated_at", message.CreatedAt).Error; err != nil {
			return fmt.Errorf("touch conversation: %w", err)
		}
		return nil
	})
}

// RecentMessages returns at most limit of the latest messages, oldest first.
// Insertion order (id) is the replay order.
func (r *ConversationRepository) RecentMessages(ctx context.Context, conversationID uint, limit int) ([]model.Message, error) {
	var messages []model.Message
	if err := r.db.WithContext(ctx).Where("conversation_id = ?", conversationID).
		Order("id DESC").
		Limit(limit).
		Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// Messages returns the first limit messages in chronological order.
func (r *ConversationRepository) Messages(ctx context.Context, conversationID uint, limit int) ([]model.Message, error) {
	var messages []model.Message
	if err := r.db.WithContext(ctx).Where("conversation_id = ?", conversationID).
		Order("id ASC").
		Limit(limit).
		Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return messages, nil
}
