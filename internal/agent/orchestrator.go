package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"unicode/utf8"

	"taskchat/internal/apperr"
	"taskchat/internal/llm"
	"taskchat/internal/model"
	"taskchat/internal/service"
)

// Options bound the work done by a single turn.
type Options struct {
	HistoryLimit     int
	MaxToolRounds    int
	MaxMessageLength int
}

// DefaultOptions mirror the configuration defaults.
func DefaultOptions() Options {
	return Options{HistoryLimit: 20, MaxToolRounds: 8, MaxMessageLength: 2000}
}

type TurnRequest struct {
	UserID string
	// ConversationID continues an existing conversation; nil starts a new one.
	ConversationID *uint
	Message        string
}

// ToolCallRecord is one executed tool call, surfaced to the caller only.
type ToolCallRecord struct {
	Tool   string          `json:"tool"`
	Input  json.RawMessage `json:"input"`
	Result any             `json:"result"`
}

type TurnResult struct {
	ConversationID uint             `json:"conversation_id"`
	Response       string           `json:"response"`
	ToolCalls      []ToolCallRecord `json:"tool_calls"`
}

// Orchestrator runs one conversation turn: history replay, model calls with
// tool dispatch, and persistence of both sides of the exchange.
type Orchestrator struct {
	model         llm.Model
	conversations *service.ConversationService
	dispatcher    *Dispatcher
	options       Options
	locks         *turnLocks
}

func NewOrchestrator(model llm.Model, conversations *service.ConversationService, dispatcher *Dispatcher, options Options) *Orchestrator {
	defaults := DefaultOptions()
	if options.HistoryLimit <= 0 {
		options.HistoryLimit = defaults.HistoryLimit
	}
	if options.MaxToolRounds <= 0 {
		options.MaxToolRounds = defaults.MaxToolRounds
	}
	if options.MaxMessageLength <= 0 {
		options.MaxMessageLength = defaults.MaxMessageLength
	}
	return &Orchestrator{
		model:         model,
		conversations: conversations,
		dispatcher:    dispatcher,
		options:       options,
		locks:         newTurnLocks(),
	}
}

// HandleTurn processes one user message. Once the user message is stored it
// is kept even if the model call fails; the assistant message is written
// only for a successful turn.
func (o *Orchestrator) HandleTurn(ctx context.Context, request TurnRequest) (*TurnResult, error) {
	text := strings.TrimSpace(request.Message)
	if text == "" {
		return nil, apperr.Validationf("message is required")
	}
	if utf8.RuneCountInString(text) > o.options.MaxMessageLength {
		return nil, apperr.Validationf("message exceeds %d characters", o.options.MaxMessageLength)
	}

	conversation, err := o.conversations.GetOrCreate(ctx, request.UserID, request.ConversationID)
	if err != nil {
		return nil, err
	}

	unlock, err := o.locks.acquire(ctx, conversation.ID)
	if err != nil {
		return nil, fmt.Errorf("wait for conversation %d: %w", conversation.ID, err)
	}
	defer unlock()

	history, err := o.conversations.History(ctx, conversation.ID, o.options.HistoryLimit)
	if err != nil {
		return nil, err
	}
	if _, err := o.conversations.Append(ctx, conversation, model.RoleUser, text); err != nil {
		return nil, err
	}

	reply, calls, err := o.run(ctx, request.UserID, conversation.ID, buildContext(history, text))
	if err != nil {
		log.Printf("[warn] turn failed conversation=%d user=%s tool_calls=%d: %v", conversation.ID, request.UserID, len(calls), err)
		return nil, err
	}
	if strings.TrimSpace(reply) == "" {
		reply = FallbackReply
	}

	if _, err := o.conversations.Append(ctx, conversation, model.RoleAssistant, reply); err != nil {
		return nil, err
	}

	log.Printf("[info] turn done conversation=%d user=%s tool_calls=%d", conversation.ID, request.UserID, len(calls))
	return &TurnResult{ConversationID: conversation.ID, Response: reply, ToolCalls: calls}, nil
}

func buildContext(history []model.Message, text string) []llm.Message {
	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.NewSystemMessage(SystemPrompt))
	for _, msg := range history {
		switch msg.Role {
		case model.RoleUser:
			messages = append(messages, llm.NewUserMessage(msg.Content))
		case model.RoleAssistant:
			messages = append(messages, llm.NewAssistantMessage(msg.Content))
		}
	}
	return append(messages, llm.NewUserMessage(text))
}

// run calls the model until it answers without requesting tools.
func (o *Orchestrator) run(ctx context.Context, userID string, conversationID uint, messages []llm.Message) (string, []ToolCallRecord, error) {
	records := make([]ToolCallRecord, 0)
	tools := o.dispatcher.Definitions()

	for round := 0; ; round++ {
		response, err := o.model.Generate(ctx, &llm.GenerateRequest{Messages: messages, Tools: tools})
		if err != nil {
			return "", records, apperr.Wrap(apperr.Upstream, err, "language model call failed")
		}
		if len(response.ToolCalls) == 0 {
			return response.Content, records, nil
		}
		if round >= o.options.MaxToolRounds {
			return "", records, apperr.New(apperr.Upstream, "model requested tools for more than %d rounds", o.options.MaxToolRounds)
		}

		messages = append(messages, llm.NewAssistantToolCallMessage(response.Content, response.ToolCalls))
		for _, toolCall := range response.ToolCalls {
			record, err := o.execute(ctx, userID, toolCall)
			if err != nil {
				return "", records, err
			}
			log.Printf("[info] tool %s conversation=%d user=%s", toolCall.Name, conversationID, userID)
			records = append(records, record)

			content, err := json.Marshal(record.Result)
			if err != nil {
				return "", records, fmt.Errorf("encode %s result: %w", toolCall.Name, err)
			}
			messages = append(messages, llm.NewToolResultMessage(toolCall, string(content)))
		}
	}
}

// execute decodes and dispatches one tool call. Recoverable failures become
// an ErrorResult; anything else aborts the turn.
func (o *Orchestrator) execute(ctx context.Context, userID string, toolCall llm.ToolCall) (ToolCallRecord, error) {
	record := ToolCallRecord{Tool: toolCall.Name}

	call, err := ParseCall(toolCall.Name, toolCall.Arguments)
	if apperr.IsKind(err, apperr.Upstream) {
		return record, err
	}
	record.Input = json.RawMessage(NormalizeArguments(toolCall.Arguments))

	var result any
	if err == nil {
		result, err = o.dispatcher.Dispatch(ctx, userID, call)
	}
	if err != nil {
		if !Recoverable(err) {
			return record, fmt.Errorf("run tool %s: %w", toolCall.Name, err)
		}
		log.Printf("[warn] tool %s user=%s: %v", toolCall.Name, userID, err)
		result = NewErrorResult(err, call)
	}
	record.Result = result
	return record, nil
}
