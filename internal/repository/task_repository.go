package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"task-planner/internal/model"
)

// Ordering keys accepted by TaskFilter.OrderBy. A leading "-" sorts descending.
const (
	OrderDueDate  = "due_date"
	OrderPriority = "priority"
)

const priorityRankSQL = "CASE priority WHEN 'Low' THEN 1 WHEN 'Medium' THEN 2 WHEN 'High' THEN 3 ELSE 0 END"

// TaskFilter selects tasks by exact match on the set fields.
// Search is a case-insensitive substring match on title or description.
type TaskFilter struct {
	UserID     uint
	Title      *string
	DueDate    *time.Time
	Status     *model.Status
	Priority   *model.Priority
	CategoryID *uint
	Search     string
	OrderBy    string
}

// TaskRepository handles CRUD for tasks.
type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) Create(ctx context.Context, task *model.Task) error {
	if err := r.db.WithContext(ctx).Create(task).Error; err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

// FindByID loads a task regardless of owner. A missing row yields gorm.ErrRecordNotFound.
func (r *TaskRepository) FindByID(ctx context.Context, taskID uint) (*model.Task, error) {
	var task model.Task
	if err := r.db.WithContext(ctx).First(&task, taskID).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

// FindOne returns the first task matching filter, or nil when there is none.
func (r *TaskRepository) FindOne(ctx context.Context, filter TaskFilter) (*model.Task, error) {
	var tasks []model.Task
	if err := r.query(ctx, filter).Limit(1).Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("find task: %w", err)
	}
	if len(tasks) == 0 {
		return nil, nil
	}
	return &tasks[0], nil
}

func (r *TaskRepository) List(ctx context.Context, filter TaskFilter) ([]model.Task, error) {
	var tasks []model.Task
	if err := r.query(ctx, filter).Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

// CreateUnlessExists inserts task unless a row matching filter already exists.
// It returns the stored row and whether it was created by this call.
func (r *TaskRepository) CreateUnlessExists(ctx context.Context, task *model.Task, filter TaskFilter) (*model.Task, bool, error) {
	var (
		stored  *model.Task
		created bool
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txRepo := &TaskRepository{db: tx}
		existing, err := txRepo.FindOne(ctx, filter)
		if err != nil {
			return err
		}
		if existing != nil {
			stored = existing
			return nil
		}
		if err := txRepo.Create(ctx, task); err != nil {
			return err
		}
		stored, created = task, true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return stored, created, nil
}

// Update writes changes (column name to value) to an existing task and reloads it.
// The write only applies while the stored status still equals task.Status;
// ok is false when another caller moved the task first.
func (r *TaskRepository) Update(ctx context.Context, task *model.Task, changes map[string]interface{}) (bool, error) {
	db := r.db.WithContext(ctx)
	applied := true
	if len(changes) > 0 {
		res := db.Model(task).Where("status = ?", task.Status).Updates(changes)
		if res.Error != nil {
			return false, fmt.Errorf("update task: %w", res.Error)
		}
		applied = res.RowsAffected == 1
	}
	if err := r.reload(db, task); err != nil {
		return false, err
	}
	return applied, nil
}

// Transition moves task from one status to another together with changes.
// The write only applies while the stored status still equals from, so of two
// racing callers exactly one observes ok == true.
func (r *TaskRepository) Transition(ctx context.Context, task *model.Task, from, to model.Status, changes map[string]interface{}) (bool, error) {
	values := make(map[string]interface{}, len(changes)+1)
	for k, v := range changes {
		values[k] = v
	}
	values["status"] = to

	db := r.db.WithContext(ctx)
	res := db.Model(task).Where("status = ?", from).Updates(values)
	if res.Error != nil {
		return false, fmt.Errorf("transition task: %w", res.Error)
	}
	if err := r.reload(db, task); err != nil {
		return false, err
	}
	return res.RowsAffected == 1, nil
}

// reload replaces task with its stored row so cleared nullable columns read back as nil.
// A row deleted in the meantime yields an error matching gorm.ErrRecordNotFound.
func (r *TaskRepository) reload(db *gorm.DB, task *model.Task) error {
	var fresh model.Task
	if err := db.First(&fresh, task.ID).Error; err != nil {
		return fmt.Errorf("reload task: %w", err)
	}
	*task = fresh
	return nil
}

// Delete removes a task for the given user.
func (r *TaskRepository) Delete(ctx context.Context, userID, taskID uint) error {
	if err := r.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, taskID).
		Delete(&model.Task{}).Error; err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}

func (r *TaskRepository) query(ctx context.Context, f TaskFilter) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&model.Task{}).Where("user_id = ?", f.UserID)
	if f.Title != nil {
		q = q.Where("title = ?", *f.Title)
	}
	if f.DueDate != nil {
		q = q.Where("due_date = ?", *f.DueDate)
	}
	if f.Status != nil {
		q = q.Where("status = ?", *f.Status)
	}
	if f.Priority != nil {
		q = q.Where("priority = ?", *f.Priority)
	}
	if f.CategoryID != nil {
		q = q.Where("category_id = ?", *f.CategoryID)
	}
	if term := strings.TrimSpace(f.Search); term != "" {
		like := "%" + strings.ToLower(term) + "%"
		q = q.Where("(LOWER(title) LIKE ? OR LOWER(description) LIKE ?)", like, like)
	}
	return q.Order(orderClause(f.OrderBy)).Order("id ASC")
}

func orderClause(key string) string {
	dir := "ASC"
	if strings.HasPrefix(key, "-") {
		dir = "DESC"
		key = key[1:]
	}
	switch key {
	case OrderPriority:
		return priorityRankSQL + " " + dir
	default:
		return "due_date " + dir
	}
}

// IsNotFound reports whether err means the record does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
