package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"task-planner/internal/model"
	"task-planner/internal/service"
)

const maxBodyBytes = 1 << 20

type taskResponse struct {
	ID                 uint                      `json:"id"`
	Title              string                    `json:"title"`
	Description        string                    `json:"description"`
	DueDate            time.Time                 `json:"due_date"`
	Priority           model.Priority            `json:"priority"`
	Status             model.Status              `json:"status"`
	User               uint                      `json:"user"`
	Category           *model.Category           `json:"category"`
	IsRecurring        bool                      `json:"is_recurring"`
	RecurrenceInterval *model.RecurrenceInterval `json:"recurrence_interval"`
	CreatedAt          time.Time                 `json:"created_at"`
	UpdatedAt          time.Time                 `json:"updated_at"`
}

func newTaskResponse(task model.Task, categories map[uint]*model.Category) taskResponse {
	resp := taskResponse{
		ID:                 task.ID,
		Title:              task.Title,
		Description:        task.Description,
		DueDate:            task.DueDate,
		Priority:           task.Priority,
		Status:             task.Status,
		User:               task.UserID,
		IsRecurring:        task.IsRecurring,
		RecurrenceInterval: task.RecurrenceInterval,
		CreatedAt:          task.CreatedAt,
		UpdatedAt:          task.UpdatedAt,
	}
	if task.CategoryID != nil {
		resp.Category = categories[*task.CategoryID]
	}
	return resp
}

type taskRequest struct {
	Title              string                    `json:"title"`
	Description        string                    `json:"description"`
	DueDate            *time.Time                `json:"due_date"`
	Priority           model.Priority            `json:"priority"`
	Status             model.Status              `json:"status"`
	CategoryID         *uint                     `json:"category_id"`
	IsRecurring        bool                      `json:"is_recurring"`
	RecurrenceInterval *model.RecurrenceInterval `json:"recurrence_interval"`

	// Read-only response fields, accepted and ignored so a fetched task can be posted back.
	ID        json.RawMessage `json:"id"`
	User      json.RawMessage `json:"user"`
	Category  json.RawMessage `json:"category"`
	CreatedAt json.RawMessage `json:"created_at"`
	UpdatedAt json.RawMessage `json:"updated_at"`
}

func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	query, err := parseTaskQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	user := userFromCtx(r.Context())
	tasks, err := s.tasks.ListTasks(r.Context(), user, query)
	if err != nil {
		writeError(w, r, err)
		return
	}
	categories, err := s.categoryIndex(r, user)
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := make([]taskResponse, 0, len(tasks))
	for _, task := range tasks {
		resp = append(resp, newTaskResponse(task, categories))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) createTask(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.DueDate == nil {
		writeError(w, r, &service.ValidationError{Field: "due_date", Reason: "is required"})
		return
	}
	task, err := s.tasks.CreateTask(r.Context(), userFromCtx(r.Context()), service.TaskInput{
		Title:              req.Title,
		Description:        req.Description,
		DueDate:            *req.DueDate,
		Priority:           req.Priority,
		Status:             req.Status,
		CategoryID:         req.CategoryID,
		IsRecurring:        req.IsRecurring,
		RecurrenceInterval: req.RecurrenceInterval,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.respondTask(w, r, http.StatusCreated, task)
}

func (s *Server) getTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	task, err := s.tasks.GetTask(r.Context(), userFromCtx(r.Context()), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.respondTask(w, r, http.StatusOK, task)
}

func (s *Server) patchTask(w http.ResponseWriter, r *http.Request) {
	s.updateTask(w, r, false)
}

// putTask is a full update: title and due_date must be present.
func (s *Server) putTask(w http.ResponseWriter, r *http.Request) {
	s.updateTask(w, r, true)
}

func (s *Server) updateTask(w http.ResponseWriter, r *http.Request, full bool) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	changes, err := decodeChanges(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if full {
		if changes.Title == nil {
			writeError(w, r, &service.ValidationError{Field: "title", Reason: "is required"})
			return
		}
		if changes.DueDate == nil {
			writeError(w, r, &service.ValidationError{Field: "due_date", Reason: "is required"})
			return
		}
	}
	task, err := s.tasks.UpdateTask(r.Context(), userFromCtx(r.Context()), id, changes)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.respondTask(w, r, http.StatusOK, task)
}

func (s *Server) deleteTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.tasks.DeleteTask(r.Context(), userFromCtx(r.Context()), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) completeTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	task, err := s.tasks.CompleteTask(r.Context(), userFromCtx(r.Context()), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.respondTask(w, r, http.StatusOK, task)
}

func (s *Server) incompleteTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	task, err := s.tasks.RevertTask(r.Context(), userFromCtx(r.Context()), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.respondTask(w, r, http.StatusOK, task)
}

func (s *Server) respondTask(w http.ResponseWriter, r *http.Request, status int, task *model.Task) {
	categories := map[uint]*model.Category{}
	if task.CategoryID != nil {
		category, err := s.categories.Get(r.Context(), userFromCtx(r.Context()), *task.CategoryID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		categories[category.ID] = category
	}
	writeJSON(w, status, newTaskResponse(*task, categories))
}

func (s *Server) categoryIndex(r *http.Request, user *model.User) (map[uint]*model.Category, error) {
	list, err := s.categories.List(r.Context(), user)
	if err != nil {
		return nil, err
	}
	index := make(map[uint]*model.Category, len(list))
	for i := range list {
		index[list[i].ID] = &list[i]
	}
	return index, nil
}

func parseTaskQuery(r *http.Request) (service.TaskQuery, error) {
	q := r.URL.Query()
	query := service.TaskQuery{
		Search:   q.Get("search"),
		Ordering: q.Get("ordering"),
	}
	if raw := q.Get("status"); raw != "" {
		status, err := model.ParseStatus(raw)
		if err != nil {
			return query, &service.ValidationError{Field: "status", Reason: err.Error()}
		}
		query.Status = &status
	}
	if raw := q.Get("priority"); raw != "" {
		priority, err := model.ParsePriority(raw)
		if err != nil {
			return query, &service.ValidationError{Field: "priority", Reason: err.Error()}
		}
		query.Priority = &priority
	}
	if raw := q.Get("category"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return query, &service.ValidationError{Field: "category", Reason: "must be a category id"}
		}
		categoryID := uint(id)
		query.CategoryID = &categoryID
	}
	return query, nil
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return &service.ValidationError{Field: "body", Reason: err.Error()}
	}
	return nil
}

var null = []byte("null")

// decodeChanges reads a partial update. Keys that are absent stay nil; null
// clears category_id and recurrence_interval. Read-only keys are ignored.
func decodeChanges(body io.Reader) (service.TaskChanges, error) {
	var (
		raw     map[string]json.RawMessage
		changes service.TaskChanges
	)
	if err := json.NewDecoder(body).Decode(&raw); err != nil {
		return changes, &service.ValidationError{Field: "body", Reason: err.Error()}
	}

	for key, value := range raw {
		isNull := bytes.Equal(bytes.TrimSpace(value), null)
		var err error
		switch key {
		case "title":
			changes.Title, err = decodeRequired[string](value, isNull)
		case "description":
			changes.Description, err = decodeRequired[string](value, isNull)
		case "due_date":
			changes.DueDate, err = decodeRequired[time.Time](value, isNull)
		case "priority":
			changes.Priority, err = decodeRequired[model.Priority](value, isNull)
		case "status":
			changes.Status, err = decodeRequired[model.Status](value, isNull)
		case "is_recurring":
			changes.IsRecurring, err = decodeRequired[bool](value, isNull)
		case "category_id":
			if isNull {
				changes.ClearCategory = true
				continue
			}
			changes.CategoryID, err = decodeRequired[uint](value, false)
		case "recurrence_interval":
			if isNull {
				changes.ClearRecurrenceInterval = true
				continue
			}
			changes.RecurrenceInterval, err = decodeRequired[model.RecurrenceInterval](value, false)
		case "id", "user", "category", "created_at", "updated_at":
			continue
		default:
			err = fmt.Errorf("unknown field")
		}
		if err != nil {
			return changes, &service.ValidationError{Field: key, Reason: err.Error()}
		}
	}
	return changes, nil
}

func decodeRequired[T any](value json.RawMessage, isNull bool) (*T, error) {
	if isNull {
		return nil, fmt.Errorf("may not be null")
	}
	var v T
	if err := json.Unmarshal(value, &v); err != nil {
		return nil, err
	}
	return &v, nil
}
