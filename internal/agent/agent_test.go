package agent

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"taskchat/internal/llm"
	"taskchat/internal/repository"
	"taskchat/internal/service"
)

type step func(request *llm.GenerateRequest) (*llm.GenerateResponse, error)

// scriptedModel answers model calls from a fixed script and keeps a copy of
// every request it saw.
type scriptedModel struct {
	mu       sync.Mutex
	steps    []step
	requests []llm.GenerateRequest
}

func newScriptedModel(steps ...step) *scriptedModel {
	return &scriptedModel{steps: steps}
}

func (m *scriptedModel) Generate(ctx context.Context, request *llm.GenerateRequest) (*llm.GenerateResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, llm.GenerateRequest{
		Messages: append([]llm.Message(nil), request.Messages...),
		Tools:    request.Tools,
	})
	if len(m.steps) == 0 {
		return nil, errors.New("unexpected model call")
	}
	next := m.steps[0]
	m.steps = m.steps[1:]
	return next(request)
}

func (m *scriptedModel) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

func reply(text string) step {
	return func(*llm.GenerateRequest) (*llm.GenerateResponse, error) {
		return &llm.GenerateResponse{Content: text}, nil
	}
}

func useTools(calls ...llm.ToolCall) step {
	return func(*llm.GenerateRequest) (*llm.GenerateResponse, error) {
		return &llm.GenerateResponse{ToolCalls: calls}, nil
	}
}

func fail(err error) step {
	return func(*llm.GenerateRequest) (*llm.GenerateResponse, error) {
		return nil, err
	}
}

type fixture struct {
	tasks         *service.TaskService
	conversations *service.ConversationService
	dispatcher    *Dispatcher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := repository.NewDB(filepath.Join(t.TempDir(), "agent.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	tasks := service.NewTaskService(repository.NewTaskRepository(db))
	return &fixture{
		tasks:         tasks,
		conversations: service.NewConversationService(repository.NewConversationRepository(db)),
		dispatcher:    NewDispatcher(tasks),
	}
}

func (f *fixture) orchestrator(model llm.Model, options Options) *Orchestrator {
	return NewOrchestrator(model, f.conversations, f.dispatcher, options)
}

func uintPtr(v uint) *uint { return &v }
