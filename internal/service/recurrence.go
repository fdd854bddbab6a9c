package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"task-planner/internal/lock"
	"task-planner/internal/model"
	"task-planner/internal/repository"
)

const (
	day          = 24 * time.Hour
	dailyOffset  = day
	weeklyOffset = 7 * day
	// Monthly is a fixed offset, not a calendar month.
	monthlyOffset = 30 * day
)

// NextDueDate returns due shifted by the interval. ok is false for unknown intervals.
func NextDueDate(due time.Time, interval model.RecurrenceInterval) (next time.Time, ok bool) {
	switch interval {
	case model.RecurDaily:
		return due.Add(dailyOffset), true
	case model.RecurWeekly:
		return due.Add(weeklyOffset), true
	case model.RecurMonthly:
		return due.Add(monthlyOffset), true
	}
	return time.Time{}, false
}

// SuccessorStore is the slice of the record store the generator needs.
type SuccessorStore interface {
	CreateUnlessExists(ctx context.Context, task *model.Task, filter repository.TaskFilter) (*model.Task, bool, error)
}

// RecurrenceGenerator creates the next occurrence of a completed recurring task.
type RecurrenceGenerator struct {
	store  SuccessorStore
	locker lock.Locker
	logger *slog.Logger
}

// NewRecurrenceGenerator builds a generator. A nil locker disables
// per-user serialization.
func NewRecurrenceGenerator(store SuccessorStore, locker lock.Locker, logger *slog.Logger) *RecurrenceGenerator {
	if logger == nil {
		logger = slog.Default()
	}
	return &RecurrenceGenerator{store: store, locker: locker, logger: logger.With("component", "recurrence")}
}

// Generate produces the successor of completed. It returns nil when the task
// does not recur. When a task with the same title, owner and next due date
// already exists, that task is returned and nothing is created.
func (g *RecurrenceGenerator) Generate(ctx context.Context, completed model.Task, now time.Time) (*model.Task, error) {
	interval, ok := completed.Interval()
	if !ok {
		return nil, nil
	}
	next, ok := NextDueDate(completed.DueDate, interval)
	if !ok {
		return nil, nil
	}
	next = normalizeTime(next)

	if err := CheckDueDate(next, now); err != nil {
		return nil, fmt.Errorf("successor of task %d due %s: %w", completed.ID, next.Format(time.RFC3339), err)
	}

	if g.locker != nil {
		release, err := g.locker.Lock(ctx, fmt.Sprintf("recurrence:user:%d", completed.UserID))
		if err != nil {
			return nil, fmt.Errorf("lock recurrence: %w", err)
		}
		defer release()
	}

	successor := &model.Task{
		UserID:             completed.UserID,
		CategoryID:         completed.CategoryID,
		Title:              completed.Title,
		Description:        completed.Description,
		DueDate:            next,
		Priority:           completed.Priority,
		Status:             model.StatusPending,
		IsRecurring:        true,
		RecurrenceInterval: &interval,
	}
	title := completed.Title
	stored, created, err := g.store.CreateUnlessExists(ctx, successor, repository.TaskFilter{
		UserID:  completed.UserID,
		Title:   &title,
		DueDate: &next,
	})
	if err != nil {
		return nil, fmt.Errorf("create successor of task %d: %w", completed.ID, err)
	}

	if created {
		g.logger.Info("successor created",
			"task_id", completed.ID,
			"successor_id", stored.ID,
			"user_id", completed.UserID,
			"due_date", next.Format(time.RFC3339),
		)
	} else {
		g.logger.Debug("successor already exists",
			"task_id", completed.ID,
			"successor_id", stored.ID,
		)
	}
	return stored, nil
}
