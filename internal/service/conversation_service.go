package service

import (
	"context"
	"time"

	"taskchat/internal/apperr"
	"taskchat/internal/model"
	"taskchat/internal/repository"
)

// ConversationService handles conversation ownership and message history.
type ConversationService struct {
	repo *repository.ConversationRepository
}

func NewConversationService(repo *repository.ConversationRepository) *ConversationService {
	return &ConversationService{repo: repo}
}

func (s *ConversationService) Create(ctx context.Context, userID string) (*model.Conversation, error) {
	conversation := model.Conversation{UserID: userID}
	if err := s.repo.Create(ctx, &conversation); err != nil {
		return nil, err
	}
	return &conversation, nil
}

// Get loads a conversation and checks it belongs to userID.
func (s *ConversationService) Get(ctx context.Context, userID string, conversationID uint) (*model.Conversation, error) {
	conversation, err := s.repo.FindByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conversation.UserID != userID {
		return nil, apperr.Forbiddenf("conversation %d belongs to another user", conversationID)
	}
	return conversation, nil
}

// GetOrCreate continues conversationID when given, otherwise starts a new one.
func (s *ConversationService) GetOrCreate(ctx context.Context, userID string, conversationID *uint) (*model.Conversation, error) {
	if conversationID != nil {
		return s.Get(ctx, userID, *conversationID)
	}
	return s.Create(ctx, userID)
}

func (s *ConversationService) List(ctx context.Context, userID string) ([]model.Conversation, error) {
	return s.repo.ListByUser(ctx, userID)
}

// History returns the latest limit user/assistant messages, oldest first.
func (s *ConversationService) History(ctx context.Context, conversationID uint, limit int) ([]model.Message, error) {
	return s.repo.RecentMessages(ctx, conversationID, limit)
}

// Messages returns up to limit messages of a conversation owned by userID.
func (s *ConversationService) Messages(ctx context.Context, userID string, conversationID uint, limit int) ([]model.Message, error) {
	if _, err := s.Get(ctx, userID, conversationID); err != nil {
		return nil, err
	}
	return s.repo.Messages(ctx, conversationID, limit)
}

// Append persists one message and bumps the conversation's updated_at.
func (s *ConversationService) Append(ctx context.Context, conversation *model.Conversation, role model.Role, content string) (*model.Message, error) {
	message := model.Message{
		ConversationID: conversation.ID,
		UserID:         conversation.UserID,
		Role:           role,
		Content:        content,
		CreatedAt:      time.Now(),
	}
	if err := s.repo.AppendMessage(ctx, &message); err != nil {
		return nil, err
	}
	conversation.UpdatedAt = message.CreatedAt
	return &message, nil
}
