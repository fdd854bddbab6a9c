package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"task-planner/internal/lock"
	"task-planner/internal/model"
	"task-planner/internal/repository"
)

// TaskStore is the record store behind TaskService.
type TaskStore interface {
	SuccessorStore
	Create(ctx context.Context, task *model.Task) error
	FindByID(ctx context.Context, taskID uint) (*model.Task, error)
	List(ctx context.Context, filter repository.TaskFilter) ([]model.Task, error)
	Update(ctx context.Context, task *model.Task, changes map[string]interface{}) (bool, error)
	Transition(ctx context.Context, task *model.Task, from, to model.Status, changes map[string]interface{}) (bool, error)
	Delete(ctx context.Context, userID, taskID uint) error
}

// TaskQuery narrows ListTasks. Ordering is one of due_date, -due_date,
// priority or -priority.
type TaskQuery struct {
	Status     *model.Status
	Priority   *model.Priority
	CategoryID *uint
	Search     string
	Ordering   string
}

// Option configures TaskService.
type Option func(*TaskService)

// WithClock replaces time.Now as the reference time for validation.
func WithClock(now func() time.Time) Option {
	return func(s *TaskService) { s.now = now }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *TaskService) { s.logger = logger }
}

// WithLocker serializes recurrence generation per user through l.
func WithLocker(l lock.Locker) Option {
	return func(s *TaskService) { s.locker = l }
}

// TaskService owns the task lifecycle: creation, validated updates and the
// Pending/Completed transitions with their recurrence side effect.
type TaskService struct {
	taskRepo     TaskStore
	categoryRepo CategoryStore
	recurrence   *RecurrenceGenerator
	locker       lock.Locker
	now          func() time.Time
	logger       *slog.Logger
}

func NewTaskService(taskRepo TaskStore, categoryRepo CategoryStore, opts ...Option) *TaskService {
	s := &TaskService{
		taskRepo:     taskRepo,
		categoryRepo: categoryRepo,
		locker:       lock.NewMemoryLocker(),
		now:          time.Now,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "tasks")
	s.recurrence = NewRecurrenceGenerator(taskRepo, s.locker, s.logger)
	return s
}

func (s *TaskService) CreateTask(ctx context.Context, user *model.User, input TaskInput) (*model.Task, error) {
	input.Title = strings.TrimSpace(input.Title)
	if input.Priority == "" {
		input.Priority = model.PriorityMedium
	}
	if input.Status == "" {
		input.Status = model.StatusPending
	}

	category, err := s.resolveCategory(ctx, input.CategoryID)
	if err != nil {
		return nil, err
	}
	if err := ValidateNewTask(input, category, user.ID, s.now()); err != nil {
		return nil, err
	}

	task := model.Task{
		UserID:             user.ID,
		CategoryID:         input.CategoryID,
		Title:              input.Title,
		Description:        input.Description,
		DueDate:            normalizeTime(input.DueDate),
		Priority:           input.Priority,
		Status:             input.Status,
		IsRecurring:        input.IsRecurring,
		RecurrenceInterval: input.RecurrenceInterval,
	}
	if err := s.taskRepo.Create(ctx, &task); err != nil {
		return nil, err
	}

	s.logger.Info("task created", "task_id", task.ID, "user_id", user.ID, "recurring", task.IsRecurring)
	return &task, nil
}

func (s *TaskService) GetTask(ctx context.Context, user *model.User, taskID uint) (*model.Task, error) {
	return s.ownedTask(ctx, user, taskID)
}

func (s *TaskService) ListTasks(ctx context.Context, user *model.User, query TaskQuery) ([]model.Task, error) {
	switch strings.TrimPrefix(query.Ordering, "-") {
	case "", repository.OrderDueDate, repository.OrderPriority:
	default:
		return nil, invalidf("ordering", "unknown field %q", query.Ordering)
	}
	return s.taskRepo.List(ctx, repository.TaskFilter{
		UserID:     user.ID,
		Status:     query.Status,
		Priority:   query.Priority,
		CategoryID: query.CategoryID,
		Search:     query.Search,
		OrderBy:    query.Ordering,
	})
}

// ListPending returns the user's open tasks ordered by due date.
func (s *TaskService) ListPending(ctx context.Context, user *model.User) ([]model.Task, error) {
	pending := model.StatusPending
	return s.ListTasks(ctx, user, TaskQuery{Status: &pending})
}

// UpdateTask applies a validated changeset. A status in the changeset is
// routed through the complete/incomplete transitions.
func (s *TaskService) UpdateTask(ctx context.Context, user *model.User, taskID uint, changes TaskChanges) (*model.Task, error) {
	task, err := s.ownedTask(ctx, user, taskID)
	if err != nil {
		return nil, err
	}

	var category *model.Category
	if changes.CategoryID != nil && !changes.ClearCategory {
		if category, err = s.resolveCategory(ctx, changes.CategoryID); err != nil {
			return nil, err
		}
	}
	if err := ValidateTaskChanges(*task, changes, category, user.ID, s.now()); err != nil {
		return nil, err
	}

	columns := changes.columns()
	if changes.Status != nil {
		switch {
		case *changes.Status == model.StatusCompleted && task.Status == model.StatusCompleted:
			return nil, ErrAlreadyCompleted
		case *changes.Status == model.StatusCompleted:
			return s.complete(ctx, task, columns)
		case *changes.Status == model.StatusPending && task.Status == model.StatusCompleted:
			return s.revert(ctx, task)
		}
	}

	ok, err := s.taskRepo.Update(ctx, task, columns)
	if err != nil {
		return nil, storeErr(taskID, err)
	}
	if !ok {
		// A task that passed validation was Pending; only a completion moves it.
		return nil, fmt.Errorf("task %d: %w", taskID, ErrCompletedTaskImmutable)
	}
	return task, nil
}

// CompleteTask moves a task from Pending to Completed and, for recurring
// tasks, creates the next occurrence before returning.
func (s *TaskService) CompleteTask(ctx context.Context, user *model.User, taskID uint) (*model.Task, error) {
	task, err := s.ownedTask(ctx, user, taskID)
	if err != nil {
		return nil, err
	}
	if task.Status == model.StatusCompleted {
		return nil, ErrAlreadyCompleted
	}
	return s.complete(ctx, task, nil)
}

// RevertTask moves a task from Completed back to Pending. Successors created
// by an earlier completion are kept.
func (s *TaskService) RevertTask(ctx context.Context, user *model.User, taskID uint) (*model.Task, error) {
	task, err := s.ownedTask(ctx, user, taskID)
	if err != nil {
		return nil, err
	}
	if task.Status == model.StatusPending {
		return nil, ErrAlreadyPending
	}
	return s.revert(ctx, task)
}

func (s *TaskService) DeleteTask(ctx context.Context, user *model.User, taskID uint) error {
	if _, err := s.ownedTask(ctx, user, taskID); err != nil {
		return err
	}
	if err := s.taskRepo.Delete(ctx, user.ID, taskID); err != nil {
		return err
	}
	s.logger.Info("task deleted", "task_id", taskID, "user_id", user.ID)
	return nil
}

func (s *TaskService) complete(ctx context.Context, task *model.Task, columns map[string]interface{}) (*model.Task, error) {
	ok, err := s.taskRepo.Transition(ctx, task, model.StatusPending, model.StatusCompleted, columns)
	if err != nil {
		return nil, storeErr(task.ID, err)
	}
	if !ok {
		return nil, ErrAlreadyCompleted
	}
	s.logger.Info("task completed", "task_id", task.ID, "user_id", task.UserID)

	// The completion is committed; a failed successor is reported, not returned.
	if _, err := s.recurrence.Generate(ctx, *task, s.now()); err != nil {
		s.logger.Error("recurrence generation failed",
			"task_id", task.ID,
			"user_id", task.UserID,
			"error", err,
		)
	}
	return task, nil
}

func (s *TaskService) revert(ctx context.Context, task *model.Task) (*model.Task, error) {
	ok, err := s.taskRepo.Transition(ctx, task, model.StatusCompleted, model.StatusPending, nil)
	if err != nil {
		return nil, storeErr(task.ID, err)
	}
	if !ok {
		return nil, ErrAlreadyPending
	}
	s.logger.Info("task reverted", "task_id", task.ID, "user_id", task.UserID)
	return task, nil
}

func (s *TaskService) ownedTask(ctx context.Context, user *model.User, taskID uint) (*model.Task, error) {
	task, err := s.taskRepo.FindByID(ctx, taskID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, fmt.Errorf("task %d: %w", taskID, ErrNotFound)
		}
		return nil, fmt.Errorf("find task: %w", err)
	}
	if task.UserID != user.ID {
		return nil, fmt.Errorf("task %d: %w", taskID, ErrForbidden)
	}
	return task, nil
}

// storeErr maps a row that vanished under a write to ErrNotFound.
func storeErr(taskID uint, err error) error {
	if repository.IsNotFound(err) {
		return fmt.Errorf("task %d: %w", taskID, ErrNotFound)
	}
	return err
}

func (s *TaskService) resolveCategory(ctx context.Context, id *uint) (*model.Category, error) {
	if id == nil {
		return nil, nil
	}
	category, err := s.categoryRepo.GetByID(ctx, *id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, invalidf("category_id", "category %d does not exist", *id)
		}
		return nil, fmt.Errorf("find category: %w", err)
	}
	return category, nil
}
