// Package api exposes the task planner over a JSON HTTP interface.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"task-planner/internal/model"
	"task-planner/internal/service"
)

// UserProvisioner resolves the authenticated username to a stored user,
// creating the row on first sight.
type UserProvisioner interface {
	UpsertByUsername(ctx context.Context, username string) (*model.User, error)
}

// Server holds the handlers' dependencies.
type Server struct {
	tasks      *service.TaskService
	categories *service.CategoryService
	users      UserProvisioner
	secret     []byte
	logger     *slog.Logger
}

func NewServer(tasks *service.TaskService, categories *service.CategoryService, users UserProvisioner, secret string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		tasks:      tasks,
		categories: categories,
		users:      users,
		secret:     []byte(secret),
		logger:     logger.With("component", "api"),
	}
}

// Routes builds the chi router with all middleware and endpoints.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(RequestID)
	r.Use(Recoverer(s.logger))
	r.Use(Logger(s.logger))

	r.Get("/health", healthHandler)

	r.Route("/api", func(r chi.Router) {
		r.Use(Authenticate(s.secret, s.users))

		r.Route("/categories", func(r chi.Router) {
			r.Get("/", s.listCategories)
			r.Post("/", s.createCategory)
			r.Get("/{id}", s.getCategory)
			r.Patch("/{id}", s.renameCategory)
			r.Put("/{id}", s.renameCategory)
			r.Delete("/{id}", s.deleteCategory)
		})

		r.Route("/tasks", func(r chi.Router) {
			r.Get("/", s.listTasks)
			r.Post("/", s.createTask)
			r.Get("/{id}", s.getTask)
			r.Patch("/{id}", s.patchTask)
			r.Put("/{id}", s.putTask)
			r.Delete("/{id}", s.deleteTask)
			r.Post("/{id}/complete", s.completeTask)
			r.Post("/{id}/incomplete", s.incompleteTask)
		})
	})

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
