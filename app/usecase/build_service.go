package usecase

import (
	"context"
	"fmt"

	"greenpt/internal/domain/entity"
	"greenpt/internal/domain/repository"
	"greenpt/internal/infrastructure/archive"
	"greenpt/internal/infrastructure/store/filesystem"
)

type BuildUsecase interface {
	EnqueueBuild(ctx context.Context, slug, model, tone string) (*entity.Build, error)
	GetBuild(ctx context.Context, id string) (*entity.Build, error)
	ListBuilds(ctx context.Context) ([]*entity.Build, error)
	ListBuildsByProject(ctx context.Context, slug string) ([]*entity.Build, error)
	GetFiles(ctx context.Context, buildID string) ([]*entity.FileOutcome, error)
	ArchiveBuild(ctx context.Context, buildID string) (string, []byte, error)
	DeleteBuild(ctx context.Context, buildID string) error
}

var _ BuildUsecase = (*BuildService)(nil)

type BuildService struct {
	builds    repository.BuildRepository
	outcomes  repository.FileOutcomeRepository
	logs      repository.ProjectLogRepository
	workspace filesystem.Workspace
}

func NewBuildService(
	builds repository.BuildRepository,
	outcomes repository.FileOutcomeRepository,
	logs repository.ProjectLogRepository,
	workspace filesystem.Workspace,
) *BuildService {
	return &BuildService{
		builds:    builds,
		outcomes:  outcomes,
		logs:      logs,
		workspace: workspace,
	}
}

// EnqueueBuild ставит сборку в очередь из последнего blueprint проекта.
// Сборку заберёт фоновый pipeline.
func (s *BuildService) EnqueueBuild(ctx context.Context, slug, model, tone string) (*entity.Build, error) {
	log, err := s.logs.Get(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("get project log: %w", err)
	}
	if log == nil {
		return nil, fmt.Errorf("project %s not found", slug)
	}
	if log.LastBlueprint == "" {
		return nil, fmt.Errorf("project %s has no blueprint yet: send an idea first", slug)
	}

	build := entity.NewBuild(slug, log.LastBlueprint, model, tone)
	if err := s.builds.Create(ctx, build); err != nil {
		return nil, fmt.Errorf("create build: %w", err)
	}
	return build, nil
}

func (s *BuildService) GetBuild(ctx context.Context, id string) (*entity.Build, error) {
	build, err := s.builds.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if build == nil {
		return nil, fmt.Errorf("build %s not found", id)
	}
	return build, nil
}

func (s *BuildService) ListBuilds(ctx context.Context) ([]*entity.Build, error) {
	return s.builds.List(ctx)
}

func (s *BuildService) ListBuildsByProject(ctx context.Context, slug string) ([]*entity.Build, error) {
	if slug == "" {
		return nil, fmt.Errorf("slug is required")
	}
	return s.builds.ListByProject(ctx, slug)
}

func (s *BuildService) GetFiles(ctx context.Context, buildID string) ([]*entity.FileOutcome, error) {
	if buildID == "" {
		return nil, fmt.Errorf("build id is required")
	}
	outcomes, err := s.outcomes.GetByBuildID(ctx, buildID)
	if err != nil {
		return nil, fmt.Errorf("get files for build %s: %w", buildID, err)
	}
	return outcomes, nil
}

// ArchiveBuild пакует директорию сборки в zip. Архив — производный артефакт:
// пока директория жива, его можно собрать заново в любой момент.
func (s *BuildService) ArchiveBuild(ctx context.Context, buildID string) (string, []byte, error) {
	build, err := s.GetBuild(ctx, buildID)
	if err != nil {
		return "", nil, err
	}
	if !build.Status.Terminal() {
		return "", nil, fmt.Errorf("build %s is not finished yet (status %s)", buildID, build.Status)
	}
	if build.ProjectDir == "" {
		return "", nil, &archive.ArchiveError{Root: "", Err: fmt.Errorf("build %s produced no project directory", buildID)}
	}
	return archive.Package(build.ProjectDir)
}

func (s *BuildService) DeleteBuild(ctx context.Context, buildID string) error {
	build, err := s.GetBuild(ctx, buildID)
	if err != nil {
		return err
	}

	if err := s.outcomes.DeleteByBuildID(ctx, buildID); err != nil {
		return fmt.Errorf("delete file outcomes: %w", err)
	}
	if build.ProjectDir != "" {
		if err := s.workspace.RemoveProjectDir(build.ProjectDir); err != nil {
			return fmt.Errorf("delete project directory: %w", err)
		}
	}
	if err := s.builds.Delete(ctx, buildID); err != nil {
		return fmt.Errorf("delete build: %w", err)
	}
	return nil
}
