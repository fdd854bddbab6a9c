package model

import (
	"errors"
	"testing"
)

func TestParseEnums(t *testing.T) {
	t.Run("priority", func(t *testing.T) {
		for _, raw := range []string{"Low", "Medium", "High"} {
			p, err := ParsePriority(raw)
			if err != nil {
				t.Fatalf("ParsePriority(%q): %v", raw, err)
			}
			if string(p) != raw {
				t.Errorf("got %q, want %q", p, raw)
			}
		}
		for _, raw := range []string{"", "low", "HIGH", "Urgent"} {
			if _, err := ParsePriority(raw); err == nil {
				t.Errorf("ParsePriority(%q) should fail", raw)
			}
		}
	})

	t.Run("status", func(t *testing.T) {
		if _, err := ParseStatus("Completed"); err != nil {
			t.Errorf("Completed: %v", err)
		}
		if _, err := ParseStatus("Cancelled"); err == nil {
			t.Error("Cancelled should not parse")
		}
	})

	t.Run("recurrence interval", func(t *testing.T) {
		for _, raw := range []string{"Daily", "Weekly", "Monthly"} {
			if _, err := ParseRecurrenceInterval(raw); err != nil {
				t.Errorf("%s: %v", raw, err)
			}
		}
		if _, err := ParseRecurrenceInterval("Yearly"); err == nil {
			t.Error("Yearly should not parse")
		}
	})
}

func TestPriorityRank(t *testing.T) {
	if !(PriorityLow.Rank() < PriorityMedium.Rank() && PriorityMedium.Rank() < PriorityHigh.Rank()) {
		t.Errorf("ranks out of order: %d %d %d", PriorityLow.Rank(), PriorityMedium.Rank(), PriorityHigh.Rank())
	}
	if Priority("x").Rank() != 0 {
		t.Error("unknown priority should rank 0")
	}
}

func TestTaskCheckEnums(t *testing.T) {
	daily := RecurDaily
	bogus := RecurrenceInterval("Hourly")

	tests := []struct {
		name    string
		task    Task
		wantErr bool
	}{
		{"plain", Task{Priority: PriorityLow, Status: StatusPending}, false},
		{"recurring with interval", Task{Priority: PriorityHigh, Status: StatusPending, IsRecurring: true, RecurrenceInterval: &daily}, false},
		{"recurring without interval", Task{Priority: PriorityHigh, Status: StatusPending, IsRecurring: true}, true},
		{"unknown interval", Task{Priority: PriorityHigh, Status: StatusPending, RecurrenceInterval: &bogus}, true},
		{"unknown priority", Task{Priority: "Urgent", Status: StatusPending}, true},
		{"unknown status", Task{Priority: PriorityLow, Status: "Archived"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.task.CheckEnums()
			if (err != nil) != tt.wantErr {
				t.Errorf("CheckEnums() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	missing := Task{Priority: PriorityLow, Status: StatusPending, IsRecurring: true}
	if err := missing.CheckEnums(); !errors.Is(err, ErrRecurrenceWithoutInterval) {
		t.Errorf("got %v, want ErrRecurrenceWithoutInterval", err)
	}
}

func TestTaskInterval(t *testing.T) {
	weekly := RecurWeekly
	bogus := RecurrenceInterval("Hourly")

	if _, ok := (Task{IsRecurring: false, RecurrenceInterval: &weekly}).Interval(); ok {
		t.Error("non-recurring task should report no interval")
	}
	if _, ok := (Task{IsRecurring: true}).Interval(); ok {
		t.Error("nil interval should report no interval")
	}
	if _, ok := (Task{IsRecurring: true, RecurrenceInterval: &bogus}).Interval(); ok {
		t.Error("unknown interval should report no interval")
	}
	if got, ok := (Task{IsRecurring: true, RecurrenceInterval: &weekly}).Interval(); !ok || got != RecurWeekly {
		t.Errorf("got %q, %v; want Weekly, true", got, ok)
	}
}
