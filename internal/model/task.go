package model

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// ErrRecurrenceWithoutInterval is returned when a recurring task carries no valid interval.
var ErrRecurrenceWithoutInterval = errors.New("recurring task requires a recurrence interval")

// Task represents a single item in the planner.
type Task struct {
	ID                 uint                `gorm:"primaryKey" json:"id"`
	UserID             uint                `gorm:"index;not null" json:"user"`
	CategoryID         *uint               `gorm:"index" json:"category_id"`
	Title              string              `gorm:"size:200;not null;index" json:"title"`
	Description        string              `gorm:"type:text" json:"description"`
	DueDate            time.Time           `gorm:"not null;index" json:"due_date"`
	Priority           Priority            `gorm:"size:10;not null;default:Medium" json:"priority"`
	Status             Status              `gorm:"size:10;not null;default:Pending;index" json:"status"`
	IsRecurring        bool                `gorm:"not null;default:false" json:"is_recurring"`
	RecurrenceInterval *RecurrenceInterval `gorm:"size:10" json:"recurrence_interval"`
	CreatedAt          time.Time           `json:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at"`
}

// Interval returns the recurrence interval and whether the task recurs with a known one.
func (t Task) Interval() (RecurrenceInterval, bool) {
	if !t.IsRecurring || t.RecurrenceInterval == nil || !t.RecurrenceInterval.Valid() {
		return "", false
	}
	return *t.RecurrenceInterval, true
}

// CheckEnums enforces the closed value sets and the recurrence invariant.
func (t *Task) CheckEnums() error {
	if !t.Priority.Valid() {
		return fmt.Errorf("unknown priority %q", t.Priority)
	}
	if !t.Status.Valid() {
		return fmt.Errorf("unknown status %q", t.Status)
	}
	if t.RecurrenceInterval != nil && !t.RecurrenceInterval.Valid() {
		return fmt.Errorf("unknown recurrence interval %q", *t.RecurrenceInterval)
	}
	if t.IsRecurring && t.RecurrenceInterval == nil {
		return ErrRecurrenceWithoutInterval
	}
	return nil
}

// BeforeSave keeps invalid enum values out of the store.
func (t *Task) BeforeSave(tx *gorm.DB) error {
	if t.Priority == "" {
		t.Priority = PriorityMedium
	}
	if t.Status == "" {
		t.Status = StatusPending
	}
	return t.CheckEnums()
}
