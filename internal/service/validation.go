package service

import (
	"strings"
	"time"
	"unicode/utf8"

	"task-planner/internal/model"
)

const (
	maxTitleLen        = 200
	maxCategoryNameLen = 100
)

// TaskInput carries the fields of a task to be created.
type TaskInput struct {
	Title              string
	Description        string
	DueDate            time.Time
	Priority           model.Priority
	Status             model.Status
	CategoryID         *uint
	IsRecurring        bool
	RecurrenceInterval *model.RecurrenceInterval
}

// TaskChanges is a partial update. Nil fields are left untouched; the Clear
// flags null out a nullable column.
type TaskChanges struct {
	Title                   *string
	Description             *string
	DueDate                 *time.Time
	Priority                *model.Priority
	Status                  *model.Status
	CategoryID              *uint
	ClearCategory           bool
	IsRecurring             *bool
	RecurrenceInterval      *model.RecurrenceInterval
	ClearRecurrenceInterval bool
}

// Size counts the fields present in the changeset.
func (c TaskChanges) Size() int {
	n := 0
	for _, set := range []bool{
		c.Title != nil,
		c.Description != nil,
		c.DueDate != nil,
		c.Priority != nil,
		c.Status != nil,
		c.CategoryID != nil || c.ClearCategory,
		c.IsRecurring != nil,
		c.RecurrenceInterval != nil || c.ClearRecurrenceInterval,
	} {
		if set {
			n++
		}
	}
	return n
}

// columns maps every field except status to its column.
func (c TaskChanges) columns() map[string]interface{} {
	m := make(map[string]interface{})
	if c.Title != nil {
		m["title"] = strings.TrimSpace(*c.Title)
	}
	if c.Description != nil {
		m["description"] = *c.Description
	}
	if c.DueDate != nil {
		m["due_date"] = normalizeTime(*c.DueDate)
	}
	if c.Priority != nil {
		m["priority"] = *c.Priority
	}
	switch {
	case c.ClearCategory:
		m["category_id"] = nil
	case c.CategoryID != nil:
		m["category_id"] = *c.CategoryID
	}
	if c.IsRecurring != nil {
		m["is_recurring"] = *c.IsRecurring
	}
	switch {
	case c.ClearRecurrenceInterval:
		m["recurrence_interval"] = nil
	case c.RecurrenceInterval != nil:
		m["recurrence_interval"] = *c.RecurrenceInterval
	}
	return m
}

// CheckDueDate rejects due dates that are not strictly after now.
func CheckDueDate(due, now time.Time) error {
	if !due.After(now) {
		return ErrInvalidDueDate
	}
	return nil
}

// CheckCategoryOwner rejects a category owned by someone other than the actor.
func CheckCategoryOwner(category *model.Category, actorID uint) error {
	if category != nil && category.UserID != actorID {
		return ErrForbiddenCategory
	}
	return nil
}

// CheckCompletedImmutable freezes a completed task: the only changeset let
// through is a lone status change. A lone {status: Completed} passes here and
// is rejected by the lifecycle as AlreadyCompleted.
func CheckCompletedImmutable(current model.Task, changes TaskChanges) error {
	if current.Status != model.StatusCompleted {
		return nil
	}
	if changes.Size() == 1 && changes.Status != nil {
		return nil
	}
	return ErrCompletedTaskImmutable
}

func checkTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return invalidf("title", "is required")
	}
	if utf8.RuneCountInString(strings.TrimSpace(title)) > maxTitleLen {
		return invalidf("title", "is too long (max %d characters)", maxTitleLen)
	}
	return nil
}

func checkCategoryName(name string) error {
	if name == "" {
		return invalidf("name", "is required")
	}
	if utf8.RuneCountInString(name) > maxCategoryNameLen {
		return invalidf("name", "is too long (max %d characters)", maxCategoryNameLen)
	}
	return nil
}

func checkRecurrence(isRecurring bool, interval *model.RecurrenceInterval) error {
	if interval != nil && !interval.Valid() {
		return invalidf("recurrence_interval", "unknown value %q", *interval)
	}
	if isRecurring && interval == nil {
		return invalidf("recurrence_interval", "is required for recurring tasks")
	}
	return nil
}

// ValidateNewTask checks a task about to be created. category is the
// resolved category referenced by input, or nil.
func ValidateNewTask(input TaskInput, category *model.Category, actorID uint, now time.Time) error {
	if err := checkTitle(input.Title); err != nil {
		return err
	}
	if input.Priority != "" && !input.Priority.Valid() {
		return invalidf("priority", "unknown value %q", input.Priority)
	}
	if input.Status != "" && !input.Status.Valid() {
		return invalidf("status", "unknown value %q", input.Status)
	}
	if err := checkRecurrence(input.IsRecurring, input.RecurrenceInterval); err != nil {
		return err
	}
	if err := CheckDueDate(input.DueDate, now); err != nil {
		return err
	}
	return CheckCategoryOwner(category, actorID)
}

// ValidateTaskChanges checks a changeset against the current state of a task.
// category is the resolved category referenced by changes, or nil.
func ValidateTaskChanges(current model.Task, changes TaskChanges, category *model.Category, actorID uint, now time.Time) error {
	if err := CheckCompletedImmutable(current, changes); err != nil {
		return err
	}
	if changes.Title != nil {
		if err := checkTitle(*changes.Title); err != nil {
			return err
		}
	}
	if changes.Priority != nil && !changes.Priority.Valid() {
		return invalidf("priority", "unknown value %q", *changes.Priority)
	}
	if changes.Status != nil && !changes.Status.Valid() {
		return invalidf("status", "unknown value %q", *changes.Status)
	}

	isRecurring := current.IsRecurring
	if changes.IsRecurring != nil {
		isRecurring = *changes.IsRecurring
	}
	interval := current.RecurrenceInterval
	switch {
	case changes.ClearRecurrenceInterval:
		interval = nil
	case changes.RecurrenceInterval != nil:
		interval = changes.RecurrenceInterval
	}
	if err := checkRecurrence(isRecurring, interval); err != nil {
		return err
	}

	if changes.DueDate != nil {
		if err := CheckDueDate(*changes.DueDate, now); err != nil {
			return err
		}
	}
	if changes.CategoryID != nil && !changes.ClearCategory {
		return CheckCategoryOwner(category, actorID)
	}
	return nil
}

// normalizeTime stores instants in UTC at microsecond precision so exact
// matches on due_date behave the same on every driver.
func normalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}
