package repository

import (
	"context"
	"greenpt/internal/domain/entity"
)

// ProjectLogRepository — персистентный журнал чата по проектам (один документ на slug).
type ProjectLogRepository interface {
	Save(ctx context.Context, log *entity.ProjectLog) error
	Get(ctx context.Context, slug string) (*entity.ProjectLog, error)
	List(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, slug string) error
}
