package usecase

import (
	"context"
	"fmt"

	"greenpt/internal/domain/entity"
	"greenpt/internal/domain/repository"
)

type ProjectUsecase interface {
	CreateProject(ctx context.Context, name string) (*entity.ProjectLog, error)
	GetProject(ctx context.Context, slug string) (*entity.ProjectLog, error)
	ListProjects(ctx context.Context) ([]string, error)
	DeleteProject(ctx context.Context, slug string) error
}

var _ ProjectUsecase = (*ProjectService)(nil)

type ProjectService struct {
	logs repository.ProjectLogRepository
}

func NewProjectService(logs repository.ProjectLogRepository) *ProjectService {
	return &ProjectService{logs: logs}
}

func (s *ProjectService) CreateProject(ctx context.Context, name string) (*entity.ProjectLog, error) {
	slug := entity.SanitizeSlug(name)

	existing, err := s.logs.Get(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("get project %s: %w", slug, err)
	}
	if existing != nil {
		return existing, nil
	}

	log := entity.NewProjectLog(slug)
	if err := s.logs.Save(ctx, log); err != nil {
		return nil, fmt.Errorf("create project %s: %w", slug, err)
	}
	return log, nil
}

func (s *ProjectService) GetProject(ctx context.Context, slug string) (*entity.ProjectLog, error) {
	if slug == "" {
		return nil, fmt.Errorf("slug is required")
	}
	log, err := s.logs.Get(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("get project %s: %w", slug, err)
	}
	return log, nil
}

func (s *ProjectService) ListProjects(ctx context.Context) ([]string, error) {
	slugs, err := s.logs.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return slugs, nil
}

func (s *ProjectService) DeleteProject(ctx context.Context, slug string) error {
	if slug == "" {
		return fmt.Errorf("slug is required")
	}
	if err := s.logs.Delete(ctx, slug); err != nil {
		return fmt.Errorf("delete project %s: %w", slug, err)
	}
	return nil
}
