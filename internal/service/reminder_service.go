package service

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"taskchat/internal/model"
)

// ReminderService builds human-readable summaries for periodic notifications.
type ReminderService struct {
	tasks *TaskService
}

func NewReminderService(tasks *TaskService) *ReminderService {
	return &ReminderService{tasks: tasks}
}

// DailySummary lists the user's pending tasks, oldest first so long-standing
// items lead the report.
func (s *ReminderService) DailySummary(ctx context.Context, user model.User, now time.Time) (string, error) {
	pending, err := s.tasks.ListTasks(ctx, user.ExternalID, model.StatusPending)
	if err != nil {
		return "", err
	}

	var builder strings.Builder
	builder.WriteString("📋 <b>Daily report</b>\n")
	builder.WriteString(fmt.Sprintf("🗓 %s\n\n", now.Format("2006-01-02")))

	if len(pending) == 0 {
		builder.WriteString("— no open tasks. Tell me what to add!\n")
		return strings.TrimSpace(builder.String()), nil
	}

	builder.WriteString(fmt.Sprintf("🔥 <b>Pending tasks (%d)</b>\n", len(pending)))
	for i := len(pending) - 1; i >= 0; i-- {
		builder.WriteString(formatPending(pending[i], now))
	}
	return strings.TrimSpace(builder.String()), nil
}

func formatPending(task model.Task, now time.Time) string {
	var sb strings.Builder

	icon := "🟢"
	if now.Sub(task.CreatedAt) > 7*24*time.Hour {
		icon = "⏳"
	}
	sb.WriteString(fmt.Sprintf("%s #%d %s", icon, task.ID, html.EscapeString(strings.TrimSpace(task.Title))))
	if desc := strings.TrimSpace(task.Description); desc != "" {
		sb.WriteString(fmt.Sprintf("\n   📝 %s", html.EscapeString(desc)))
	}
	sb.WriteByte('\n')
	return sb.String()
}
