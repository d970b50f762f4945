package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"taskchat/internal/agent"
	"taskchat/internal/apperr"
	"taskchat/internal/model"
)

func TestChatController_Chat(t *testing.T) {
	turns := &fakeTurns{result: &agent.TurnResult{
		ConversationID: 7,
		Response:       "Done!",
		ToolCalls: []agent.ToolCallRecord{{
			Tool:   agent.ToolAddTask,
			Input:  []byte(`{"title":"Buy groceries"}`),
			Result: agent.TaskResult{TaskID: 1, Status: agent.StatusCreated, Title: "Buy groceries"},
		}},
	}}
	server := newTestServer(t, turns)

	rec := server.do(t, http.MethodPost, "/api/alice/chat", "alice", `{"conversation_id":7,"message":"Add a task to buy groceries"}`)
	require.EqualValues(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{
		"conversation_id": 7,
		"response": "Done!",
		"tool_calls": [{"tool":"add_task","input":{"title":"Buy groceries"},"result":{"task_id":1,"status":"created","title":"Buy groceries"}}]
	}`, rec.Body.String())

	require.Len(t, turns.got, 1)
	assert.EqualValues(t, "alice", turns.got[0].UserID)
	require.NotNil(t, turns.got[0].ConversationID)
	assert.EqualValues(t, 7, *turns.got[0].ConversationID)
	assert.EqualValues(t, "Add a task to buy groceries", turns.got[0].Message)
}

func TestChatController_ErrorMapping(t *testing.T) {
	testCases := []struct {
		name          string
		err           error
		body          string
		expectStatus  int
		expectKind    apperr.Kind
		expectMessage string
	}{
		{name: "validation", err: apperr.Validationf("message is required"), expectStatus: http.StatusBadRequest, expectKind: apperr.Validation, expectMessage: "message is required"},
		{name: "not found", err: apperr.NotFoundf("conversation 9 not found"), expectStatus: http.StatusNotFound, expectKind: apperr.NotFound, expectMessage: "conversation 9 not found"},
		{name: "forbidden", err: apperr.Forbiddenf("conversation 9 belongs to another user"), expectStatus: http.StatusForbidden, expectKind: apperr.Forbidden, expectMessage: "conversation 9 belongs to another user"},
		{name: "upstream", err: apperr.Wrap(apperr.Upstream, errors.New("timeout"), "language model call failed"), expectStatus: http.StatusBadGateway, expectKind: apperr.Upstream, expectMessage: "language model call failed"},
		{name: "internal", err: fmt.Errorf("append message: %w", errors.New("disk I/O error")), expectStatus: http.StatusInternalServerError, expectKind: apperr.Internal, expectMessage: "internal server error"},
		{name: "bad payload", body: `{"message":`, expectStatus: http.StatusBadRequest, expectKind: apperr.Validation},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			server := newTestServer(t, &fakeTurns{err: tc.err})
			body := tc.body
			if body == "" {
				body = `{"message":"hi"}`
			}
			rec := server.do(t, http.MethodPost, "/api/alice/chat", "alice", body)

			assert.EqualValues(t, tc.expectStatus, rec.Code)
			assert.EqualValues(t, string(tc.expectKind), gjson.Get(rec.Body.String(), "error.kind").String())
			if tc.expectMessage != "" {
				assert.EqualValues(t, tc.expectMessage, gjson.Get(rec.Body.String(), "error.message").String())
			}
		})
	}
}

func TestChatController_EndToEnd(t *testing.T) {
	server := newTestServer(t, nil)
	orchestrator := agent.NewOrchestrator(&groceryModel{}, server.conversations, agent.NewDispatcher(server.tasks), agent.DefaultOptions())
	server.handler = NewRouter(server.auth, NewChatController(orchestrator, server.conversations), NewTaskController(server.tasks))

	rec := server.do(t, http.MethodPost, "/api/alice/chat", "alice", `{"message":"Add a task to buy groceries"}`)
	require.EqualValues(t, http.StatusOK, rec.Code, rec.Body.String())

	body := gjson.Parse(rec.Body.String())
	assert.NotEmpty(t, body.Get("response").String())
	assert.EqualValues(t, "add_task", body.Get("tool_calls.0.tool").String())
	assert.EqualValues(t, "Buy groceries", body.Get("tool_calls.0.input.title").String())
	assert.EqualValues(t, "created", body.Get("tool_calls.0.result.status").String())

	conversationID := body.Get("conversation_id").Uint()
	rec = server.do(t, http.MethodGet, fmt.Sprintf("/api/alice/conversations/%d/messages", conversationID), "alice", "")
	require.EqualValues(t, http.StatusOK, rec.Code)
	messages := gjson.Parse(rec.Body.String())
	assert.EqualValues(t, 2, messages.Get("#").Int())
	assert.EqualValues(t, "user", messages.Get("0.role").String())
	assert.EqualValues(t, "Add a task to buy groceries", messages.Get("0.content").String())
	assert.EqualValues(t, "assistant", messages.Get("1.role").String())

	rec = server.do(t, http.MethodGet, "/api/alice/tasks", "alice", "")
	assert.EqualValues(t, "Buy groceries", gjson.Get(rec.Body.String(), "0.title").String())
}

func TestChatController_Conversations(t *testing.T) {
	ctx := context.Background()
	server := newTestServer(t, nil)

	older, err := server.conversations.Create(ctx, "alice")
	require.NoError(t, err)
	newer, err := server.conversations.Create(ctx, "alice")
	require.NoError(t, err)
	_, err = server.conversations.Create(ctx, "bob")
	require.NoError(t, err)
	_, err = server.conversations.Append(ctx, older, model.RoleUser, "bump")
	require.NoError(t, err)

	rec := server.do(t, http.MethodGet, "/api/alice/conversations", "alice", "")
	require.EqualValues(t, http.StatusOK, rec.Code)
	list := gjson.Parse(rec.Body.String())
	assert.EqualValues(t, 2, list.Get("#").Int())
	assert.EqualValues(t, older.ID, list.Get("0.id").Uint())
	assert.EqualValues(t, newer.ID, list.Get("1.id").Uint())

	testCases := []struct {
		name         string
		path         string
		asUser       string
		expectStatus int
	}{
		{name: "own conversation", path: fmt.Sprintf("/api/alice/conversations/%d/messages", older.ID), asUser: "alice", expectStatus: http.StatusOK},
		{name: "someone else's conversation", path: fmt.Sprintf("/api/bob/conversations/%d/messages", older.ID), asUser: "bob", expectStatus: http.StatusForbidden},
		{name: "missing conversation", path: "/api/alice/conversations/999/messages", asUser: "alice", expectStatus: http.StatusNotFound},
		{name: "zero id", path: "/api/alice/conversations/0/messages", asUser: "alice", expectStatus: http.StatusBadRequest},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := server.do(t, http.MethodGet, tc.path, tc.asUser, "")
			assert.EqualValues(t, tc.expectStatus, rec.Code, rec.Body.String())
		})
	}
}
