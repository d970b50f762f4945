package agent

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskchat/internal/apperr"
	"taskchat/internal/model"
)

func TestDispatcher_Dispatch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	d := f.dispatcher

	added, err := d.Dispatch(ctx, "alice", AddTask{Title: " Buy groceries ", Description: "milk, eggs"})
	require.NoError(t, err)
	created := added.(TaskResult)
	assert.EqualValues(t, StatusCreated, created.Status)
	assert.EqualValues(t, "Buy groceries", created.Title)

	for i := 0; i < 2; i++ {
		done, err := d.Dispatch(ctx, "alice", CompleteTask{TaskID: created.TaskID})
		require.NoError(t, err)
		assert.EqualValues(t, StatusCompleted, done.(TaskResult).Status)
	}

	listed, err := d.Dispatch(ctx, "alice", ListTasks{Status: model.StatusCompleted})
	require.NoError(t, err)
	data, err := json.Marshal(listed)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":`+itoa(created.TaskID)+`,"title":"Buy groceries","description":"milk, eggs","completed":true}`,
		stripCreatedAt(t, data))

	empty, err := d.Dispatch(ctx, "bob", ListTasks{Status: model.StatusAll})
	require.NoError(t, err)
	data, err = json.Marshal(empty)
	require.NoError(t, err)
	assert.JSONEq(t, `{"tasks":[],"count":0,"status_filter":"all"}`, string(data))

	title := "Buy groceries and bread"
	updated, err := d.Dispatch(ctx, "alice", UpdateTask{TaskID: created.TaskID, Title: &title})
	require.NoError(t, err)
	assert.EqualValues(t, TaskResult{TaskID: created.TaskID, Status: StatusUpdated, Title: title}, updated)

	deleted, err := d.Dispatch(ctx, "alice", DeleteTask{TaskID: created.TaskID})
	require.NoError(t, err)
	assert.EqualValues(t, TaskResult{TaskID: created.TaskID, Status: StatusDeleted, Title: title}, deleted)

	_, err = d.Dispatch(ctx, "alice", DeleteTask{TaskID: created.TaskID})
	assert.EqualValues(t, apperr.NotFound, apperr.KindOf(err))
}

func TestNewErrorResult(t *testing.T) {
	result := NewErrorResult(apperr.NotFoundf("task 4 not found"), DeleteTask{TaskID: 4})
	data, err := json.Marshal(result)
	require.NoError(t, err)
	assert.JSONEq(t, `{"error":"task 4 not found","kind":"not_found","task_id":4}`, string(data))

	result = NewErrorResult(apperr.Validationf(`unknown tool "x"`), nil)
	assert.Nil(t, result.TaskID)
	assert.True(t, Recoverable(apperr.Forbiddenf("no")))
	assert.False(t, Recoverable(apperr.New(apperr.Upstream, "down")))
}

// stripCreatedAt returns the single listed task without its timestamp.
func stripCreatedAt(t *testing.T, data []byte) string {
	t.Helper()
	var payload struct {
		Tasks []map[string]any `json:"tasks"`
	}
	require.NoError(t, json.Unmarshal(data, &payload))
	require.Len(t, payload.Tasks, 1)
	assert.Contains(t, payload.Tasks[0], "created_at")
	delete(payload.Tasks[0], "created_at")
	out, err := json.Marshal(payload.Tasks[0])
	require.NoError(t, err)
	return string(out)
}

func itoa(v uint) string {
	data, _ := json.Marshal(v)
	return string(data)
}
