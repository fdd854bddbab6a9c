package service

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"task-planner/internal/model"
	"task-planner/internal/repository"
)

const dueSoonWindow = 48 * time.Hour

// ReminderService builds human-readable summaries for periodic notifications.
type ReminderService struct {
	taskRepo     TaskStore
	categoryRepo CategoryStore
}

func NewReminderService(taskRepo TaskStore, categoryRepo CategoryStore) *ReminderService {
	return &ReminderService{taskRepo: taskRepo, categoryRepo: categoryRepo}
}

// DailySummary renders the user's pending tasks as Telegram HTML, split into
// overdue, due within 48 hours and later.
func (s *ReminderService) DailySummary(ctx context.Context, user model.User, now time.Time) (string, error) {
	pending := model.StatusPending
	tasks, err := s.taskRepo.List(ctx, repository.TaskFilter{UserID: user.ID, Status: &pending, OrderBy: repository.OrderDueDate})
	if err != nil {
		return "", err
	}

	categories, err := s.categoryRepo.ListByUser(ctx, user.ID)
	if err != nil {
		return "", err
	}
	catNames := make(map[uint]string)
	for _, cat := range categories {
		catNames[cat.ID] = cat.Name
	}

	var overdue, soon, later []model.Task
	for _, task := range tasks {
		switch {
		case !task.DueDate.After(now):
			overdue = append(overdue, task)
		case task.DueDate.Sub(now) <= dueSoonWindow:
			soon = append(soon, task)
		default:
			later = append(later, task)
		}
	}

	var builder strings.Builder
	builder.WriteString("📋 <b>Daily report</b>\n")
	builder.WriteString(fmt.Sprintf("🗓 %s\n", now.Format("2006-01-02")))

	if len(tasks) == 0 {
		builder.WriteString("\n— no open tasks\n")
		return strings.TrimSpace(builder.String()), nil
	}

	writeSection(&builder, "⚠️ <b>Overdue</b>", overdue, catNames, now)
	writeSection(&builder, "⏳ <b>Due soon</b>", soon, catNames, now)
	writeSection(&builder, "🟢 <b>Later</b>", later, catNames, now)

	return strings.TrimSpace(builder.String()), nil
}

func writeSection(builder *strings.Builder, header string, tasks []model.Task, catNames map[uint]string, now time.Time) {
	if len(tasks) == 0 {
		return
	}
	builder.WriteString("\n" + header + "\n")
	for _, task := range tasks {
		builder.WriteString(FormatTask(task, catNames, now))
	}
}

// FormatTask renders one task line with its category, due date and recurrence.
func FormatTask(task model.Task, catNames map[uint]string, now time.Time) string {
	var sb strings.Builder

	title := html.EscapeString(strings.TrimSpace(task.Title))
	sb.WriteString(fmt.Sprintf("#%d %s", task.ID, title))

	if task.Priority == model.PriorityHigh {
		sb.WriteString(" ❗")
	}

	if task.CategoryID != nil {
		if name, ok := catNames[*task.CategoryID]; ok {
			trimmed := strings.TrimSpace(name)
			if trimmed != "" {
				sb.WriteString(fmt.Sprintf(" <i>(%s)</i>", html.EscapeString(trimmed)))
			}
		}
	}

	d := task.DueDate.In(now.Location())
	if !d.After(now) {
		sb.WriteString(fmt.Sprintf("\n   ⏰ %s — <b>overdue</b>", d.Format("2006-01-02 15:04")))
	} else {
		daysLeft := int(d.Sub(now).Hours()/24) + 1
		sb.WriteString(fmt.Sprintf("\n   ⏰ %s · ≈%d d. left", d.Format("2006-01-02 15:04"), daysLeft))
	}

	if interval, ok := task.Interval(); ok {
		sb.WriteString(fmt.Sprintf("\n   ♻️ %s", interval))
	}

	if task.Description != "" {
		sb.WriteString(fmt.Sprintf("\n   📝 %s", html.EscapeString(strings.TrimSpace(task.Description))))
	}

	sb.WriteByte('\n')
	return sb.String()
}
