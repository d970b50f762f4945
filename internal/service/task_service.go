package service

import (
	"context"
	"strings"

	"taskchat/internal/apperr"
	"taskchat/internal/model"
)

// TaskStore is the durable task record store. Implementations scope every
// lookup by user id and report missing rows as apperr.NotFound.
type TaskStore interface {
	Create(ctx context.Context, task *model.Task) error
	ListByUser(ctx context.Context, userID string, filter model.StatusFilter) ([]model.Task, error)
	FindByID(ctx context.Context, userID string, taskID uint) (*model.Task, error)
	Save(ctx context.Context, task *model.Task) error
	Delete(ctx context.Context, userID string, taskID uint) error
}

// TaskInput represents data required to create a task.
type TaskInput struct {
	Title       string
	Description string
}

// TaskPatch lists the fields to change; nil means unchanged.
type TaskPatch struct {
	Title       *string
	Description *string
	Completed   *bool
}

func (p TaskPatch) empty() bool {
	return p.Title == nil && p.Description == nil && p.Completed == nil
}

// TaskService wraps task-related business logic.
type TaskService struct {
	store TaskStore
}

func NewTaskService(store TaskStore) *TaskService {
	return &TaskService{store: store}
}

func (s *TaskService) CreateTask(ctx context.Context, userID string, input TaskInput) (*model.Task, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, apperr.Validationf("title is required")
	}

	task := model.Task{
		UserID:      userID,
		Title:       title,
		Description: strings.TrimSpace(input.Description),
	}
	if err := s.store.Create(ctx, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (s *TaskService) ListTasks(ctx context.Context, userID string, filter model.StatusFilter) ([]model.Task, error) {
	return s.store.ListByUser(ctx, userID, filter)
}

func (s *TaskService) GetTask(ctx context.Context, userID string, taskID uint) (*model.Task, error) {
	return s.store.FindByID(ctx, userID, taskID)
}

// CompleteTask marks a task as done. Completing a completed task is a no-op success.
func (s *TaskService) CompleteTask(ctx context.Context, userID string, taskID uint) (*model.Task, error) {
	task, err := s.store.FindByID(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}
	if task.Completed {
		return task, nil
	}
	task.Completed = true
	if err := s.store.Save(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

// ToggleTask flips completion; used by the task list UI.
func (s *TaskService) ToggleTask(ctx context.Context, userID string, taskID uint) (*model.Task, error) {
	task, err := s.store.FindByID(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}
	task.Completed = !task.Completed
	if err := s.store.Save(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

func (s *TaskService) UpdateTask(ctx context.Context, userID string, taskID uint, patch TaskPatch) (*model.Task, error) {
	if patch.empty() {
		return nil, apperr.Validationf("nothing to update: provide a title or description")
	}
	var title string
	if patch.Title != nil {
		title = strings.TrimSpace(*patch.Title)
		if title == "" {
			return nil, apperr.Validationf("title cannot be empty")
		}
	}

	task, err := s.store.FindByID(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}
	if patch.Title != nil {
		task.Title = title
	}
	if patch.Description != nil {
		task.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.Completed != nil {
		task.Completed = *patch.Completed
	}
	if err := s.store.Save(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

// DeleteTask removes the task and returns it as it was before deletion.
func (s *TaskService) DeleteTask(ctx context.Context, userID string, taskID uint) (*model.Task, error) {
	task, err := s.store.FindByID(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}
	if err := s.store.Delete(ctx, userID, taskID); err != nil {
		return nil, err
	}
	return task, nil
}
