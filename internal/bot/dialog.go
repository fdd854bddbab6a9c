package bot

import (
	"fmt"
	"strings"
	"time"

	"task-planner/internal/model"
	"task-planner/internal/service"
)

type conversationStage int

const (
	stageNone conversationStage = iota
	stageTitle
	stageDescription
	stageCategory
	stageDueDate
	stagePriority
	stageRecurring
	stageInterval
)

const (
	dueDateLayout = "2006-01-02 15:04"
	dueDayLayout  = "2006-01-02"
)

type conversationState struct {
	stage    conversationStage
	input    service.TaskInput
	category string
}

// dialogStep is the bot's answer to one message of the /newtask dialog.
type dialogStep struct {
	reply  string
	markup interface{}
	done   bool
}

func newConversation() (*conversationState, dialogStep) {
	return &conversationState{stage: stageTitle}, dialogStep{
		reply:  "🆕 Creating a new task.\n<b>Step 1:</b> what should it be called?",
		markup: cancelKeyboard(),
	}
}

// advance consumes one answer and returns the next prompt. When done is set
// the input is complete and ready for TaskService.CreateTask.
func (s *conversationState) advance(text string, now time.Time, loc *time.Location) dialogStep {
	text = strings.TrimSpace(text)
	switch s.stage {
	case stageTitle:
		if text == "" {
			return dialogStep{reply: "The title cannot be empty. What should the task be called?", markup: cancelKeyboard()}
		}
		s.input.Title = text
		s.stage = stageDescription
		return dialogStep{reply: "✏️ Add a short description (or press Skip).", markup: skipKeyboard()}

	case stageDescription:
		if !isSkipInput(text) {
			s.input.Description = text
		}
		s.stage = stageCategory
		return dialogStep{reply: "🏷 Pick a category or type your own (Skip for none).", markup: choiceKeyboard(suggestedCategories, true)}

	case stageCategory:
		if !isSkipInput(text) {
			s.category = text
		}
		s.stage = stageDueDate
		return dialogStep{reply: dueDatePrompt(now, loc), markup: cancelKeyboard()}

	case stageDueDate:
		due, err := parseDueDate(text, loc)
		if err != nil {
			return dialogStep{reply: "I can't read that date. " + dueDatePrompt(now, loc), markup: cancelKeyboard()}
		}
		if err := service.CheckDueDate(due, now); err != nil {
			return dialogStep{reply: "The due date must be in the future. " + dueDatePrompt(now, loc), markup: cancelKeyboard()}
		}
		s.input.DueDate = due
		s.stage = stagePriority
		return dialogStep{reply: "❗ How important is it?", markup: choiceKeyboard(priorityOptions(), true)}

	case stagePriority:
		if !isSkipInput(text) {
			priority, ok := parsePriority(text)
			if !ok {
				return dialogStep{reply: "Choose Low, Medium or High.", markup: choiceKeyboard(priorityOptions(), true)}
			}
			s.input.Priority = priority
		}
		s.stage = stageRecurring
		return dialogStep{reply: "🔁 Should the task repeat?", markup: yesNoKeyboard()}

	case stageRecurring:
		switch {
		case isYesInput(text):
			s.stage = stageInterval
			return dialogStep{reply: "📆 How often?", markup: choiceKeyboard(intervalOptions(), false)}
		case isNoInput(text):
			s.input.IsRecurring = false
			s.stage = stageNone
			return dialogStep{done: true}
		default:
			return dialogStep{reply: "Press Yes or No.", markup: yesNoKeyboard()}
		}

	case stageInterval:
		interval, ok := parseInterval(text)
		if !ok {
			return dialogStep{reply: "Choose Daily, Weekly or Monthly.", markup: choiceKeyboard(intervalOptions(), false)}
		}
		s.input.IsRecurring = true
		s.input.RecurrenceInterval = &interval
		s.stage = stageNone
		return dialogStep{done: true}
	}

	s.stage = stageNone
	return dialogStep{reply: "The dialog was reset. Start again with /newtask.", markup: mainMenuKeyboard()}
}

func dueDatePrompt(now time.Time, loc *time.Location) string {
	example := now.In(loc).Add(24 * time.Hour).Format(dueDateLayout)
	return fmt.Sprintf("⏰ Send the due date as <code>%s</code>.", example)
}

// parseDueDate accepts "YYYY-MM-DD HH:MM" or a bare date, which means the end
// of that day.
func parseDueDate(text string, loc *time.Location) (time.Time, error) {
	if t, err := time.ParseInLocation(dueDateLayout, text, loc); err == nil {
		return t, nil
	}
	day, err := time.ParseInLocation(dueDayLayout, text, loc)
	if err != nil {
		return time.Time{}, err
	}
	return day.Add(23*time.Hour + 59*time.Minute), nil
}

func priorityOptions() []string {
	return []string{string(model.PriorityLow), string(model.PriorityMedium), string(model.PriorityHigh)}
}

func intervalOptions() []string {
	return []string{string(model.RecurDaily), string(model.RecurWeekly), string(model.RecurMonthly)}
}

func parsePriority(text string) (model.Priority, bool) {
	for _, p := range priorityOptions() {
		if strings.EqualFold(text, p) {
			return model.Priority(p), true
		}
	}
	return "", false
}

func parseInterval(text string) (model.RecurrenceInterval, bool) {
	for _, r := range intervalOptions() {
		if strings.EqualFold(text, r) {
			return model.RecurrenceInterval(r), true
		}
	}
	return "", false
}
