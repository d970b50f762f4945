package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"taskchat/internal/agent"
	"taskchat/internal/apperr"
	"taskchat/internal/model"
	"taskchat/internal/service"
)

const messagePageSize = 100

// TurnHandler runs one conversation turn.
type TurnHandler interface {
	HandleTurn(ctx context.Context, request agent.TurnRequest) (*agent.TurnResult, error)
}

// ChatController handles the chat endpoint and conversation history reads.
type ChatController struct {
	Turns         TurnHandler
	Conversations *service.ConversationService
}

func NewChatController(turns TurnHandler, conversations *service.ConversationService) *ChatController {
	return &ChatController{Turns: turns, Conversations: conversations}
}

type chatRequest struct {
	ConversationID *uint  `json:"conversation_id"`
	Message        string `json:"message"`
}

type conversationView struct {
	ID        uint      `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type messageView struct {
	ID        uint       `json:"id"`
	Role      model.Role `json:"role"`
	Content   string     `json:"content"`
	CreatedAt time.Time  `json:"created_at"`
}

// Chat handles POST /api/{user_id}/chat.
func (c *ChatController) Chat(w http.ResponseWriter, r *http.Request) {
	var request chatRequest
	if err := decodeJSON(r, &request); err != nil {
		writeError(w, r, err)
		return
	}

	result, err := c.Turns.HandleTurn(r.Context(), agent.TurnRequest{
		UserID:         UserIDFrom(r.Context()),
		ConversationID: request.ConversationID,
		Message:        request.Message,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ListConversations handles GET /api/{user_id}/conversations.
func (c *ChatController) ListConversations(w http.ResponseWriter, r *http.Request) {
	conversations, err := c.Conversations.List(r.Context(), UserIDFrom(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	views := make([]conversationView, 0, len(conversations))
	for _, conversation := range conversations {
		views = append(views, conversationView{ID: conversation.ID, CreatedAt: conversation.CreatedAt, UpdatedAt: conversation.UpdatedAt})
	}
	writeJSON(w, http.StatusOK, views)
}

// GetMessages handles GET /api/{user_id}/conversations/{conversation_id}/messages.
func (c *ChatController) GetMessages(w http.ResponseWriter, r *http.Request) {
	conversationID, err := pathID(r, "conversation_id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	messages, err := c.Conversations.Messages(r.Context(), UserIDFrom(r.Context()), conversationID, messagePageSize)
	if err != nil {
		writeError(w, r, err)
		return
	}
	views := make([]messageView, 0, len(messages))
	for _, msg := range messages {
		views = append(views, messageView{ID: msg.ID, Role: msg.Role, Content: msg.Content, CreatedAt: msg.CreatedAt})
	}
	writeJSON(w, http.StatusOK, views)
}

func pathID(r *http.Request, name string) (uint, error) {
	raw := mux.Vars(r)[name]
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, apperr.Validationf("%s must be a positive integer", name)
	}
	return uint(id), nil
}
