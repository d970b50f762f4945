package api

import (
	"net/http"

	"taskchat/internal/apperr"
	"taskchat/internal/model"
	"taskchat/internal/service"
)

// TaskController handles HTTP requests for tasks.
type TaskController struct {
	Service *service.TaskService
}

func NewTaskController(service *service.TaskService) *TaskController {
	return &TaskController{Service: service}
}

type createTaskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type updateTaskRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Completed   *bool   `json:"completed"`
}

// GetTasks handles GET /api/{user_id}/tasks?status=.
func (c *TaskController) GetTasks(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("status")
	status, ok := model.ParseStatusFilter(raw)
	if !ok {
		writeError(w, r, apperr.Validationf("status must be one of all, pending, completed"))
		return
	}
	tasks, err := c.Service.ListTasks(r.Context(), UserIDFrom(r.Context()), status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if tasks == nil {
		tasks = []model.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

// CreateTask handles POST /api/{user_id}/tasks.
func (c *TaskController) CreateTask(w http.ResponseWriter, r *http.Request) {
	var request createTaskRequest
	if err := decodeJSON(r, &request); err != nil {
		writeError(w, r, err)
		return
	}
	task, err := c.Service.CreateTask(r.Context(), UserIDFrom(r.Context()), service.TaskInput{
		Title:       request.Title,
		Description: request.Description,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

// GetTask handles GET /api/{user_id}/tasks/{task_id}.
func (c *TaskController) GetTask(w http.ResponseWriter, r *http.Request) {
	taskID, err := pathID(r, "task_id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	task, err := c.Service.GetTask(r.Context(), UserIDFrom(r.Context()), taskID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// UpdateTask handles PUT /api/{user_id}/tasks/{task_id}.
func (c *TaskController) UpdateTask(w http.ResponseWriter, r *http.Request) {
	taskID, err := pathID(r, "task_id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var request updateTaskRequest
	if err := decodeJSON(r, &request); err != nil {
		writeError(w, r, err)
		return
	}
	task, err := c.Service.UpdateTask(r.Context(), UserIDFrom(r.Context()), taskID, service.TaskPatch{
		Title:       request.Title,
		Description: request.Description,
		Completed:   request.Completed,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// ToggleTask handles PATCH /api/{user_id}/tasks/{task_id}/complete.
func (c *TaskController) ToggleTask(w http.ResponseWriter, r *http.Request) {
	taskID, err := pathID(r, "task_id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	task, err := c.Service.ToggleTask(r.Context(), UserIDFrom(r.Context()), taskID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// DeleteTask handles DELETE /api/{user_id}/tasks/{task_id}.
func (c *TaskController) DeleteTask(w http.ResponseWriter, r *http.Request) {
	taskID, err := pathID(r, "task_id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if _, err := c.Service.DeleteTask(r.Context(), UserIDFrom(r.Context()), taskID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
