package agent

import (
	"context"
	"fmt"
	"time"

	"taskchat/internal/apperr"
	"taskchat/internal/llm"
	"taskchat/internal/model"
	"taskchat/internal/service"
)

const (
	StatusCreated   = "created"
	StatusCompleted = "completed"
	StatusDeleted   = "deleted"
	StatusUpdated   = "updated"
)

// TaskResult answers add, complete, delete and update calls.
type TaskResult struct {
	TaskID uint   `json:"task_id"`
	Status string `json:"status"`
	Title  string `json:"title"`
}

// ListResult answers list_tasks.
type ListResult struct {
	Tasks        []TaskView         `json:"tasks"`
	Count        int                `json:"count"`
	StatusFilter model.StatusFilter `json:"status_filter"`
}

type TaskView struct {
	ID          uint      `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Completed   bool      `json:"completed"`
	CreatedAt   time.Time `json:"created_at"`
}

// ErrorResult is what the model sees when a tool call fails recoverably.
type ErrorResult struct {
	Error  string      `json:"error"`
	Kind   apperr.Kind `json:"kind"`
	TaskID *uint       `json:"task_id,omitempty"`
}

// Dispatcher executes decoded tool calls against the task service, always
// scoped to the calling user.
type Dispatcher struct {
	tasks *service.TaskService
}

func NewDispatcher(tasks *service.TaskService) *Dispatcher {
	return &Dispatcher{tasks: tasks}
}

// Definitions returns the tools this dispatcher can execute.
func (d *Dispatcher) Definitions() []llm.ToolDefinition {
	return ToolDefinitions()
}

// Dispatch runs exactly one task operation for userID.
func (d *Dispatcher) Dispatch(ctx context.Context, userID string, call Call) (any, error) {
	switch c := call.(type) {
	case AddTask:
		task, err := d.tasks.CreateTask(ctx, userID, service.TaskInput{Title: c.Title, Description: c.Description})
		if err != nil {
			return nil, err
		}
		return TaskResult{TaskID: task.ID, Status: StatusCreated, Title: task.Title}, nil
	case ListTasks:
		tasks, err := d.tasks.ListTasks(ctx, userID, c.Status)
		if err != nil {
			return nil, err
		}
		views := make([]TaskView, 0, len(tasks))
		for _, task := range tasks {
			views = append(views, TaskView{
				ID:          task.ID,
				Title:       task.Title,
				Description: task.Description,
				Completed:   task.Completed,
				CreatedAt:   task.CreatedAt,
			})
		}
		return ListResult{Tasks: views, Count: len(views), StatusFilter: c.Status}, nil
	case CompleteTask:
		task, err := d.tasks.CompleteTask(ctx, userID, c.TaskID)
		if err != nil {
			return nil, err
		}
		return TaskResult{TaskID: task.ID, Status: StatusCompleted, Title: task.Title}, nil
	case DeleteTask:
		task, err := d.tasks.DeleteTask(ctx, userID, c.TaskID)
		if err != nil {
			return nil, err
		}
		return TaskResult{TaskID: task.ID, Status: StatusDeleted, Title: task.Title}, nil
	case UpdateTask:
		task, err := d.tasks.UpdateTask(ctx, userID, c.TaskID, service.TaskPatch{Title: c.Title, Description: c.Description})
		if err != nil {
			return nil, err
		}
		return TaskResult{TaskID: task.ID, Status: StatusUpdated, Title: task.Title}, nil
	}
	return nil, fmt.Errorf("unsupported call %T", call)
}

// Recoverable reports whether a tool error is fed back to the model instead
// of failing the turn.
func Recoverable(err error) bool {
	switch apperr.KindOf(err) {
	case apperr.Validation, apperr.NotFound, apperr.Forbidden:
		return true
	}
	return false
}

// NewErrorResult describes err for the model, tagging the task id when the
// call referenced one.
func NewErrorResult(err error, call Call) ErrorResult {
	result := ErrorResult{Error: apperr.MessageOf(err), Kind: apperr.KindOf(err)}
	var id uint
	switch c := call.(type) {
	case CompleteTask:
		id = c.TaskID
	case DeleteTask:
		id = c.TaskID
	case UpdateTask:
		id = c.TaskID
	}
	if id != 0 {
		result.TaskID = &id
	}
	return result
}
