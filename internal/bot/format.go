package bot

import (
	"fmt"
	"html"
	"sort"
	"strconv"
	"strings"

	"task-planner/internal/model"
	"task-planner/internal/service"
)

const noCategory = "No category"

func escape(s string) string {
	return html.EscapeString(s)
}

func parseTaskID(raw string) (uint, error) {
	value, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil || value == 0 {
		return 0, fmt.Errorf("task id must be a positive number")
	}
	return uint(value), nil
}

func shortTitle(title string, maxLen int) string {
	clean := strings.TrimSpace(strings.ReplaceAll(title, "\n", " "))
	runes := []rune(clean)
	if len(runes) <= maxLen {
		return clean
	}
	if maxLen <= 1 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-1]) + "…"
}

// userMessage turns a service error into a chat reply.
func userMessage(err error) string {
	switch service.KindOf(err) {
	case service.KindInvalidDueDate:
		return "The due date must be in the future."
	case service.KindForbiddenCategory:
		return "That category belongs to someone else."
	case service.KindCompletedTaskImmutable:
		return "This task is completed. Mark it as pending first with /incomplete."
	case service.KindAlreadyCompleted:
		return "The task is already completed."
	case service.KindAlreadyPending:
		return "The task is already pending."
	case service.KindNotFound, service.KindForbidden:
		return "Task not found."
	case service.KindInvalidInput:
		return "Invalid input: " + escape(err.Error())
	default:
		return "Something went wrong, please try again later."
	}
}

type categoryGroup struct {
	name  string
	tasks []model.Task
}

// groupByCategory keeps the incoming task order inside each group. Named
// categories come first in name order, uncategorized tasks last.
func groupByCategory(tasks []model.Task, catNames map[uint]string) []categoryGroup {
	var (
		groups        []categoryGroup
		index         = make(map[uint]int)
		uncategorized []model.Task
	)
	for _, task := range tasks {
		if task.CategoryID == nil {
			uncategorized = append(uncategorized, task)
			continue
		}
		name, ok := catNames[*task.CategoryID]
		if !ok {
			uncategorized = append(uncategorized, task)
			continue
		}
		i, ok := index[*task.CategoryID]
		if !ok {
			i = len(groups)
			index[*task.CategoryID] = i
			groups = append(groups, categoryGroup{name: name})
		}
		groups[i].tasks = append(groups[i].tasks, task)
	}
	sortGroups(groups)
	if len(uncategorized) > 0 {
		groups = append(groups, categoryGroup{name: noCategory, tasks: uncategorized})
	}
	return groups
}

func sortGroups(groups []categoryGroup) {
	sort.SliceStable(groups, func(i, j int) bool {
		return strings.ToLower(groups[i].name) < strings.ToLower(groups[j].name)
	})
}
