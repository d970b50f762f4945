package agent

import "taskchat/internal/llm"

var toolDefinitions = []llm.ToolDefinition{
	{
		Name:        ToolAddTask,
		Description: "Create a new task for the user. Use this when the user wants to add, create, or remember something.",
		Parameters: objectSchema(map[string]any{
			"title":       stringProperty("The title of the task to create"),
			"description": stringProperty("Optional description or details for the task"),
		}, "title"),
	},
	{
		Name:        ToolListTasks,
		Description: "Get the user's tasks, newest first. Use this when the user wants to see, show, or list their tasks, or to find the id of a task mentioned by name.",
		Parameters: objectSchema(map[string]any{
			"status": map[string]any{
				"type":        "string",
				"enum":        []string{"all", "pending", "completed"},
				"description": "Filter tasks by status. Use 'pending' for incomplete tasks, 'completed' for done tasks, 'all' for everything.",
			},
		}),
	},
	{
		Name:        ToolCompleteTask,
		Description: "Mark a task as complete. Use this when the user says they finished, completed, or are done with a task.",
		Parameters: objectSchema(map[string]any{
			"task_id": integerProperty("The ID of the task to mark as complete"),
		}, "task_id"),
	},
	{
		Name:        ToolDeleteTask,
		Description: "Delete a task from the list. Use this when the user wants to remove, delete, or cancel a task.",
		Parameters: objectSchema(map[string]any{
			"task_id": integerProperty("The ID of the task to delete"),
		}, "task_id"),
	},
	{
		Name:        ToolUpdateTask,
		Description: "Update a task's title or description. Use this when the user wants to change, rename, or modify a task.",
		Parameters: objectSchema(map[string]any{
			"task_id":     integerProperty("The ID of the task to update"),
			"title":       stringProperty("New title for the task"),
			"description": stringProperty("New description for the task"),
		}, "task_id"),
	},
}

// ToolDefinitions returns the tool catalog declared to the model.
func ToolDefinitions() []llm.ToolDefinition {
	out := make([]llm.ToolDefinition, len(toolDefinitions))
	copy(out, toolDefinitions)
	return out
}

func objectSchema(properties map[string]any, required ...string) map[string]any {
	if required == nil {
		required = []string{}
	}
	return map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}

func stringProperty(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}

func integerProperty(description string) map[string]any {
	return map[string]any{"type": "integer", "description": description}
}
