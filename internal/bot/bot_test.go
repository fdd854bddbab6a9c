package bot

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"task-planner/internal/model"
	"task-planner/internal/service"
)

var testNow = time.Date(2030, 3, 10, 12, 0, 0, 0, time.UTC)

func TestNewTaskDialog(t *testing.T) {
	state, first := newConversation()
	if state.stage != stageTitle || first.reply == "" {
		t.Fatalf("unexpected start %+v", first)
	}

	answers := []string{"Daily Standup", "sync with team", "Work", "2030-03-11 09:30", "high", btnYes}
	for _, answer := range answers {
		if step := state.advance(answer, testNow, time.UTC); step.done {
			t.Fatalf("dialog finished early at %q", answer)
		}
	}
	step := state.advance("weekly", testNow, time.UTC)
	if !step.done {
		t.Fatalf("dialog should be done, got %+v", step)
	}

	in := state.input
	if in.Title != "Daily Standup" || in.Description != "sync with team" || state.category != "Work" {
		t.Errorf("unexpected input %+v category=%q", in, state.category)
	}
	if want := time.Date(2030, 3, 11, 9, 30, 0, 0, time.UTC); !in.DueDate.Equal(want) {
		t.Errorf("due date: got %v, want %v", in.DueDate, want)
	}
	if in.Priority != model.PriorityHigh {
		t.Errorf("priority: got %s", in.Priority)
	}
	if !in.IsRecurring || in.RecurrenceInterval == nil || *in.RecurrenceInterval != model.RecurWeekly {
		t.Errorf("recurrence: %v %v", in.IsRecurring, in.RecurrenceInterval)
	}
}

func TestNewTaskDialogSkipsAndRetries(t *testing.T) {
	state, _ := newConversation()

	if step := state.advance("   ", testNow, time.UTC); state.stage != stageTitle || !strings.Contains(step.reply, "cannot be empty") {
		t.Fatalf("empty title should be asked again, got %+v", step)
	}
	state.advance("Groceries", testNow, time.UTC)
	state.advance(btnSkip, testNow, time.UTC)
	state.advance("skip", testNow, time.UTC)

	if step := state.advance("tomorrow", testNow, time.UTC); state.stage != stageDueDate || !strings.Contains(step.reply, "can't read") {
		t.Fatalf("bad date should be asked again, got %+v", step)
	}
	if step := state.advance("2030-03-01", testNow, time.UTC); state.stage != stageDueDate || !strings.Contains(step.reply, "future") {
		t.Fatalf("past date should be asked again, got %+v", step)
	}
	state.advance("2030-03-12", testNow, time.UTC)

	if step := state.advance("urgent", testNow, time.UTC); state.stage != stagePriority || step.done {
		t.Fatalf("unknown priority should be asked again, got %+v", step)
	}
	state.advance(btnSkip, testNow, time.UTC)

	if step := state.advance("maybe", testNow, time.UTC); state.stage != stageRecurring || step.done {
		t.Fatalf("unclear answer should be asked again, got %+v", step)
	}
	if step := state.advance(btnNo, testNow, time.UTC); !step.done {
		t.Fatalf("dialog should be done, got %+v", step)
	}

	in := state.input
	if in.Description != "" || state.category != "" || in.Priority != "" || in.IsRecurring {
		t.Errorf("skipped fields should stay empty: %+v category=%q", in, state.category)
	}
	if want := time.Date(2030, 3, 12, 23, 59, 0, 0, time.UTC); !in.DueDate.Equal(want) {
		t.Errorf("bare date: got %v, want end of day %v", in.DueDate, want)
	}
}

func TestParseTaskID(t *testing.T) {
	tests := []struct {
		in      string
		want    uint
		wantErr bool
	}{
		{"12", 12, false},
		{" 7 ", 7, false},
		{"0", 0, true},
		{"-3", 0, true},
		{"abc", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		got, err := parseTaskID(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("parseTaskID(%q) = %d, %v", tt.in, got, err)
		}
	}
}

func TestShortTitle(t *testing.T) {
	if got := shortTitle("short", 10); got != "short" {
		t.Errorf("got %q", got)
	}
	if got := shortTitle("a very long task title", 10); got != "a very lo…" {
		t.Errorf("got %q", got)
	}
	if got := shortTitle("line\nbreak", 20); got != "line break" {
		t.Errorf("got %q", got)
	}
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{service.ErrInvalidDueDate, "future"},
		{fmt.Errorf("task 3: %w", service.ErrForbidden), "not found"},
		{fmt.Errorf("task 3: %w", service.ErrNotFound), "not found"},
		{service.ErrAlreadyCompleted, "already completed"},
		{service.ErrCompletedTaskImmutable, "/incomplete"},
		{&service.ValidationError{Field: "title", Reason: "is <required>"}, "title: is &lt;required&gt;"},
		{errors.New("disk on fire"), "went wrong"},
	}
	for _, tt := range tests {
		if got := userMessage(tt.err); !strings.Contains(got, tt.want) {
			t.Errorf("userMessage(%v) = %q, want it to contain %q", tt.err, got, tt.want)
		}
	}
}

func TestGroupByCategory(t *testing.T) {
	work, home, gone := uint(1), uint(2), uint(3)
	tasks := []model.Task{
		{ID: 1, CategoryID: &work},
		{ID: 2},
		{ID: 3, CategoryID: &home},
		{ID: 4, CategoryID: &work},
		{ID: 5, CategoryID: &gone},
	}
	groups := groupByCategory(tasks, map[uint]string{work: "work", home: "Home"})

	var got []string
	for _, g := range groups {
		ids := make([]string, 0, len(g.tasks))
		for _, task := range g.tasks {
			ids = append(ids, fmt.Sprint(task.ID))
		}
		got = append(got, g.name+":"+strings.Join(ids, ","))
	}
	want := []string{"Home:3", "work:1,4", noCategory + ":2,5"}
	if strings.Join(got, " ") != strings.Join(want, " ") {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestInputMatchers(t *testing.T) {
	if !isSkipInput(" SKIP ") || !isSkipInput(btnSkip) || isSkipInput("skipper") {
		t.Error("isSkipInput")
	}
	if !isCancelDialogInput(btnCancelDialog) || isCancelDialogInput("cancel") {
		t.Error("isCancelDialogInput")
	}
	if !isConfirmInput(btnConfirm) || !isCancelInput(btnCancel) {
		t.Error("confirmation inputs")
	}
	kb := choiceKeyboard([]string{"a", "b", "c"}, true)
	if len(kb.Keyboard) != 3 || len(kb.Keyboard[2]) != 2 {
		t.Errorf("unexpected layout %+v", kb.Keyboard)
	}
}
