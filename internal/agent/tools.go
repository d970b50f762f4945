package agent

import (
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"taskchat/internal/apperr"
	"taskchat/internal/model"
)

const (
	ToolAddTask      = "add_task"
	ToolListTasks    = "list_tasks"
	ToolCompleteTask = "complete_task"
	ToolDeleteTask   = "delete_task"
	ToolUpdateTask   = "update_task"
)

// Call is a decoded tool request. The set of implementations is closed:
// AddTask, ListTasks, CompleteTask, DeleteTask and UpdateTask.
type Call interface {
	Tool() string
	call()
}

type AddTask struct {
	Title       string
	Description string
}

type ListTasks struct {
	Status model.StatusFilter
}

type CompleteTask struct {
	TaskID uint
}

type DeleteTask struct {
	TaskID uint
}

// UpdateTask changes the fields that are not nil.
type UpdateTask struct {
	TaskID      uint
	Title       *string
	Description *string
}

func (AddTask) Tool() string      { return ToolAddTask }
func (ListTasks) Tool() string    { return ToolListTasks }
func (CompleteTask) Tool() string { return ToolCompleteTask }
func (DeleteTask) Tool() string   { return ToolDeleteTask }
func (UpdateTask) Tool() string   { return ToolUpdateTask }

func (AddTask) call()      {}
func (ListTasks) call()    {}
func (CompleteTask) call() {}
func (DeleteTask) call()   {}
func (UpdateTask) call()   {}

// ParseCall decodes a model tool request. Arguments that are not a JSON
// object are an upstream failure; an unknown tool or a bad field is a
// validation error the model can recover from.
func ParseCall(name, arguments string) (Call, error) {
	args, err := parseArguments(name, arguments)
	if err != nil {
		return nil, err
	}

	switch name {
	case ToolAddTask:
		return AddTask{
			Title:       args.Get("title").String(),
			Description: args.Get("description").String(),
		}, nil
	case ToolListTasks:
		raw := strings.ToLower(strings.TrimSpace(args.Get("status").String()))
		status, ok := model.ParseStatusFilter(raw)
		if !ok {
			return nil, apperr.Validationf("status must be one of all, pending, completed; got %q", raw)
		}
		return ListTasks{Status: status}, nil
	case ToolCompleteTask:
		id, err := taskID(args)
		if err != nil {
			return nil, err
		}
		return CompleteTask{TaskID: id}, nil
	case ToolDeleteTask:
		id, err := taskID(args)
		if err != nil {
			return nil, err
		}
		return DeleteTask{TaskID: id}, nil
	case ToolUpdateTask:
		id, err := taskID(args)
		if err != nil {
			return nil, err
		}
		return UpdateTask{
			TaskID:      id,
			Title:       optionalString(args, "title"),
			Description: optionalString(args, "description"),
		}, nil
	}
	return nil, apperr.Validationf("unknown tool %q", name)
}

// NormalizeArguments returns the arguments as a JSON object literal; an
// empty string becomes {}.
func NormalizeArguments(arguments string) string {
	if strings.TrimSpace(arguments) == "" {
		return "{}"
	}
	return arguments
}

func parseArguments(name, arguments string) (gjson.Result, error) {
	arguments = NormalizeArguments(arguments)
	if !gjson.Valid(arguments) {
		return gjson.Result{}, apperr.New(apperr.Upstream, "model sent malformed arguments for %s", name)
	}
	args := gjson.Parse(arguments)
	if !args.IsObject() {
		return gjson.Result{}, apperr.New(apperr.Upstream, "model sent non-object arguments for %s", name)
	}
	return args, nil
}

// taskID accepts 3, 3.0, "3" and "#3".
func taskID(args gjson.Result) (uint, error) {
	value := args.Get("task_id")
	switch value.Type {
	case gjson.Number:
		if value.Num >= 1 && value.Num <= math.MaxUint32 && value.Num == math.Trunc(value.Num) {
			return uint(value.Num), nil
		}
	case gjson.String:
		raw := strings.TrimPrefix(strings.TrimSpace(value.Str), "#")
		if id, err := strconv.ParseUint(raw, 10, 32); err == nil && id > 0 {
			return uint(id), nil
		}
	case gjson.Null:
		return 0, apperr.Validationf("task_id is required")
	}
	return 0, apperr.Validationf("task_id must be a positive integer, got %s", value.Raw)
}

func optionalString(args gjson.Result, key string) *string {
	value := args.Get(key)
	if !value.Exists() || value.Type == gjson.Null {
		return nil
	}
	s := value.String()
	return &s
}
