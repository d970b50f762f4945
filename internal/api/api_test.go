package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"taskchat/internal/agent"
	"taskchat/internal/llm"
	"taskchat/internal/repository"
	"taskchat/internal/service"
)

const testSecret = "test-secret"

type testServer struct {
	handler       http.Handler
	auth          *Authenticator
	tasks         *service.TaskService
	conversations *service.ConversationService
}

func newTestServer(t *testing.T, turns TurnHandler) *testServer {
	t.Helper()
	db, err := repository.NewDB(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	tasks := service.NewTaskService(repository.NewTaskRepository(db))
	conversations := service.NewConversationService(repository.NewConversationRepository(db))
	if turns == nil {
		turns = &fakeTurns{}
	}
	auth := NewAuthenticator(testSecret)
	return &testServer{
		handler:       NewRouter(auth, NewChatController(turns, conversations), NewTaskController(tasks)),
		auth:          auth,
		tasks:         tasks,
		conversations: conversations,
	}
}

// do sends a request authenticated as asUser; an empty asUser sends none.
func (s *testServer) do(t *testing.T, method, path, asUser, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if asUser != "" {
		token, err := s.auth.IssueToken(asUser, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

type fakeTurns struct {
	mu     sync.Mutex
	result *agent.TurnResult
	err    error
	got    []agent.TurnRequest
}

func (f *fakeTurns) HandleTurn(ctx context.Context, request agent.TurnRequest) (*agent.TurnResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = append(f.got, request)
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

// groceryModel adds "Buy groceries" and then confirms.
type groceryModel struct {
	calls int
}

func (m *groceryModel) Generate(ctx context.Context, request *llm.GenerateRequest) (*llm.GenerateResponse, error) {
	m.calls++
	if m.calls == 1 {
		return &llm.GenerateResponse{ToolCalls: []llm.ToolCall{
			{ID: "call_1", Name: agent.ToolAddTask, Arguments: `{"title":"Buy groceries"}`},
		}}, nil
	}
	return &llm.GenerateResponse{Content: `I've added "Buy groceries" to your tasks.`}, nil
}
