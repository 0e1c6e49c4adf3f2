package filesystem

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"greenpt/internal/domain/entity"
	"greenpt/internal/domain/repository"
	"greenpt/internal/infrastructure/metrics"
)

// ProjectLogRepository хранит журнал каждого проекта в отдельном JSON-файле
// <slug>.json под logs root.
type ProjectLogRepository struct {
	basePath string
}

func NewProjectLogRepository(basePath string) (*ProjectLogRepository, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create logs directory %s: %w", basePath, err)
	}
	return &ProjectLogRepository{basePath: basePath}, nil
}

var _ repository.ProjectLogRepository = (*ProjectLogRepository)(nil)

func (r *ProjectLogRepository) path(slug string) string {
	return filepath.Join(r.basePath, slug+".json")
}

func (r *ProjectLogRepository) Save(ctx context.Context, log *entity.ProjectLog) error {
	metrics.IncStoreOp("put")

	log.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(log, "", "  ")
	if err != nil {
		metrics.IncError("project_log_repo", "marshal_error")
		return fmt.Errorf("failed to marshal project log: %w", err)
	}
	if err := os.WriteFile(r.path(log.Project), data, 0644); err != nil {
		metrics.IncError("project_log_repo", "write_error")
		return fmt.Errorf("failed to write project log: %w", err)
	}
	return nil
}

func (r *ProjectLogRepository) Get(ctx context.Context, slug string) (*entity.ProjectLog, error) {
	metrics.IncStoreOp("get")

	data, err := os.ReadFile(r.path(slug))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		metrics.IncError("project_log_repo", "read_error")
		return nil, fmt.Errorf("failed to read project log: %w", err)
	}

	var log entity.ProjectLog
	if err := json.Unmarshal(data, &log); err != nil {
		metrics.IncError("project_log_repo", "unmarshal_error")
		return nil, fmt.Errorf("failed to unmarshal project log: %w", err)
	}
	return &log, nil
}

func (r *ProjectLogRepository) List(ctx context.Context) ([]string, error) {
	metrics.IncStoreOp("list")

	entries, err := os.ReadDir(r.basePath)
	if err != nil {
		metrics.IncError("project_log_repo", "list_error")
		return nil, fmt.Errorf("failed to list project logs: %w", err)
	}

	var slugs []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		slugs = append(slugs, strings.TrimSuffix(entry.Name(), ".json"))
	}
	return slugs, nil
}

func (r *ProjectLogRepository) Delete(ctx context.Context, slug string) error {
	metrics.IncStoreOp("delete")

	if err := os.Remove(r.path(slug)); err != nil && !os.IsNotExist(err) {
		metrics.IncError("project_log_repo", "delete_error")
		return fmt.Errorf("failed to delete project log: %w", err)
	}
	return nil
}
