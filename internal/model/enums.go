package model

import "fmt"

// Priority ranks how urgent a task is.
type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
)

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Rank orders priorities from Low (1) to High (3). Unknown values rank 0.
func (p Priority) Rank() int {
	switch p {
	case PriorityLow:
		return 1
	case PriorityMedium:
		return 2
	case PriorityHigh:
		return 3
	}
	return 0
}

// ParsePriority accepts the exact persisted spelling only.
func ParsePriority(raw string) (Priority, error) {
	p := Priority(raw)
	if !p.Valid() {
		return "", fmt.Errorf("unknown priority %q", raw)
	}
	return p, nil
}

// Status is the lifecycle state of a task.
type Status string

const (
	StatusPending   Status = "Pending"
	StatusCompleted Status = "Completed"
)

func (s Status) Valid() bool {
	return s == StatusPending || s == StatusCompleted
}

func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.Valid() {
		return "", fmt.Errorf("unknown status %q", raw)
	}
	return s, nil
}

// RecurrenceInterval is the fixed offset between occurrences of a recurring task.
type RecurrenceInterval string

const (
	RecurDaily   RecurrenceInterval = "Daily"
	RecurWeekly  RecurrenceInterval = "Weekly"
	RecurMonthly RecurrenceInterval = "Monthly"
)

func (r RecurrenceInterval) Valid() bool {
	switch r {
	case RecurDaily, RecurWeekly, RecurMonthly:
		return true
	}
	return false
}

func ParseRecurrenceInterval(raw string) (RecurrenceInterval, error) {
	r := RecurrenceInterval(raw)
	if !r.Valid() {
		return "", fmt.Errorf("unknown recurrence interval %q", raw)
	}
	return r, nil
}
