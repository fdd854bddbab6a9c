package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"task-planner/internal/service"
)

type errorBody struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps an error kind to its HTTP status. Records owned by another
// user answer 404 so their existence is not disclosed.
func statusFor(kind service.Kind) int {
	switch kind {
	case service.KindInvalidDueDate,
		service.KindForbiddenCategory,
		service.KindCompletedTaskImmutable,
		service.KindAlreadyCompleted,
		service.KindAlreadyPending,
		service.KindInvalidInput:
		return http.StatusBadRequest
	case service.KindNotFound, service.KindForbidden:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := service.KindOf(err)
	body := errorBody{Error: string(kind), Detail: err.Error()}

	switch kind {
	case service.KindForbidden:
		body = errorBody{Error: string(service.KindNotFound), Detail: "not found"}
	case service.KindInternal:
		slog.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", requestIDFromCtx(r.Context()),
			"error", err,
		)
		body.Detail = "internal server error"
	}
	writeJSON(w, statusFor(kind), body)
}

func pathID(r *http.Request) (uint, error) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id == 0 {
		return 0, &service.ValidationError{Field: "id", Reason: "must be a positive integer"}
	}
	return uint(id), nil
}
