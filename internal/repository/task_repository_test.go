package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskchat/internal/apperr"
	"taskchat/internal/model"
)

func TestTaskRepository_ListByUser(t *testing.T) {
	ctx := context.Background()
	repo := NewTaskRepository(newTestDB(t))

	seed := []model.Task{
		{UserID: "alice", Title: "Buy groceries"},
		{UserID: "alice", Title: "Call mom", Completed: true},
		{UserID: "bob", Title: "Fix bike"},
		{UserID: "alice", Title: "Pay rent"},
	}
	for i := range seed {
		require.NoError(t, repo.Create(ctx, &seed[i]))
		require.NotZero(t, seed[i].ID)
	}

	testCases := []struct {
		name   string
		userID string
		filter model.StatusFilter
		expect []string
	}{
		{name: "all newest first", userID: "alice", filter: model.StatusAll, expect: []string{"Pay rent", "Call mom", "Buy groceries"}},
		{name: "pending", userID: "alice", filter: model.StatusPending, expect: []string{"Pay rent", "Buy groceries"}},
		{name: "completed", userID: "alice", filter: model.StatusCompleted, expect: []string{"Call mom"}},
		{name: "other user", userID: "bob", filter: model.StatusAll, expect: []string{"Fix bike"}},
		{name: "unknown user", userID: "carol", filter: model.StatusAll, expect: nil},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tasks, err := repo.ListByUser(ctx, tc.userID, tc.filter)
			require.NoError(t, err)
			var titles []string
			for _, task := range tasks {
				titles = append(titles, task.Title)
			}
			assert.EqualValues(t, tc.expect, titles)
		})
	}
}

func TestTaskRepository_OwnershipScoping(t *testing.T) {
	ctx := context.Background()
	repo := NewTaskRepository(newTestDB(t))

	task := &model.Task{UserID: "alice", Title: "Secret"}
	require.NoError(t, repo.Create(ctx, task))

	_, err := repo.FindByID(ctx, "bob", task.ID)
	assert.True(t, apperr.IsKind(err, apperr.NotFound))

	foreign := *task
	foreign.UserID = "bob"
	foreign.Title = "Hijacked"
	assert.True(t, apperr.IsKind(repo.Save(ctx, &foreign), apperr.NotFound))
	assert.True(t, apperr.IsKind(repo.Delete(ctx, "bob", task.ID), apperr.NotFound))

	loaded, err := repo.FindByID(ctx, "alice", task.ID)
	require.NoError(t, err)
	assert.EqualValues(t, "Secret", loaded.Title)
}

func TestTaskRepository_SaveAndDelete(t *testing.T) {
	ctx := context.Background()
	repo := NewTaskRepository(newTestDB(t))

	task := &model.Task{UserID: "alice", Title: "Draft"}
	require.NoError(t, repo.Create(ctx, task))

	task.Title = "Final"
	task.Description = "with notes"
	task.Completed = true
	require.NoError(t, repo.Save(ctx, task))

	loaded, err := repo.FindByID(ctx, "alice", task.ID)
	require.NoError(t, err)
	assert.EqualValues(t, "Final", loaded.Title)
	assert.EqualValues(t, "with notes", loaded.Description)
	assert.True(t, loaded.Completed)

	require.NoError(t, repo.Delete(ctx, "alice", task.ID))
	assert.True(t, apperr.IsKind(repo.Delete(ctx, "alice", task.ID), apperr.NotFound))
	_, err = repo.FindByID(ctx, "alice", task.ID)
	assert.True(t, apperr.IsKind(err, apperr.NotFound))
}
