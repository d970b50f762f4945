package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskchat/internal/model"
)

func TestReminderService_DailySummary(t *testing.T) {
	ctx := context.Background()
	tasks := newTestTaskService(t)
	svc := NewReminderService(tasks)
	user := model.User{TelegramID: 5, ExternalID: model.TelegramUserID(5)}
	now := time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC)

	empty, err := svc.DailySummary(ctx, user, now)
	require.NoError(t, err)
	assert.Contains(t, empty, "no open tasks")
	assert.Contains(t, empty, "2026-03-04")

	first, err := tasks.CreateTask(ctx, user.ExternalID, TaskInput{Title: "Buy <milk>", Description: "2 liters"})
	require.NoError(t, err)
	second, err := tasks.CreateTask(ctx, user.ExternalID, TaskInput{Title: "Done already"})
	require.NoError(t, err)
	_, err = tasks.CompleteTask(ctx, user.ExternalID, second.ID)
	require.NoError(t, err)
	_, err = tasks.CreateTask(ctx, user.ExternalID, TaskInput{Title: "Book dentist"})
	require.NoError(t, err)

	summary, err := svc.DailySummary(ctx, user, now)
	require.NoError(t, err)
	assert.Contains(t, summary, "Pending tasks (2)")
	assert.Contains(t, summary, "Buy &lt;milk&gt;")
	assert.Contains(t, summary, "📝 2 liters")
	assert.NotContains(t, summary, "Done already")
	assert.Less(t, strings.Index(summary, "Buy &lt;milk&gt;"), strings.Index(summary, "Book dentist"))
	assert.Contains(t, summary, fmt.Sprintf("#%d Buy", first.ID))
}

