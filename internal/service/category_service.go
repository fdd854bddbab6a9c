package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"task-planner/internal/model"
	"task-planner/internal/repository"
)

// CategoryStore is the record store behind CategoryService.
type CategoryStore interface {
	Create(ctx context.Context, category *model.Category) error
	GetOrCreate(ctx context.Context, userID uint, name string) (*model.Category, error)
	ListByUser(ctx context.Context, userID uint) ([]model.Category, error)
	GetByID(ctx context.Context, id uint) (*model.Category, error)
	Rename(ctx context.Context, category *model.Category, name string) error
	Delete(ctx context.Context, id uint) error
}

// CategoryService provides helpers around categories.
type CategoryService struct {
	repo   CategoryStore
	logger *slog.Logger
}

func NewCategoryService(repo CategoryStore) *CategoryService {
	return &CategoryService{repo: repo, logger: slog.Default().With("component", "categories")}
}

func (s *CategoryService) CreateCategory(ctx context.Context, user *model.User, name string) (*model.Category, error) {
	name = strings.TrimSpace(name)
	if err := checkCategoryName(name); err != nil {
		return nil, err
	}
	category := model.Category{UserID: user.ID, Name: name}
	if err := s.repo.Create(ctx, &category); err != nil {
		return nil, err
	}
	s.logger.Info("category created", "category_id", category.ID, "user_id", user.ID)
	return &category, nil
}

// GetOrCreate resolves a category by name for chat input, where users type names rather than ids.
func (s *CategoryService) GetOrCreate(ctx context.Context, user *model.User, name string) (*model.Category, error) {
	name = strings.TrimSpace(name)
	if err := checkCategoryName(name); err != nil {
		return nil, err
	}
	return s.repo.GetOrCreate(ctx, user.ID, name)
}

func (s *CategoryService) List(ctx context.Context, user *model.User) ([]model.Category, error) {
	return s.repo.ListByUser(ctx, user.ID)
}

func (s *CategoryService) Get(ctx context.Context, user *model.User, id uint) (*model.Category, error) {
	category, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, fmt.Errorf("category %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("find category: %w", err)
	}
	if category.UserID != user.ID {
		return nil, fmt.Errorf("category %d: %w", id, ErrForbidden)
	}
	return category, nil
}

func (s *CategoryService) Rename(ctx context.Context, user *model.User, id uint, name string) (*model.Category, error) {
	name = strings.TrimSpace(name)
	if err := checkCategoryName(name); err != nil {
		return nil, err
	}
	category, err := s.Get(ctx, user, id)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Rename(ctx, category, name); err != nil {
		return nil, err
	}
	category.Name = name
	return category, nil
}

// Delete removes the category; its tasks remain without a category.
func (s *CategoryService) Delete(ctx context.Context, user *model.User, id uint) error {
	if _, err := s.Get(ctx, user, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("category deleted", "category_id", id, "user_id", user.ID)
	return nil
}
