package repository

import (
	"context"
	"greenpt/internal/domain/entity"
)

// BuildRepository определяет интерфейс доступа к хранилищу сборок (Build).
type BuildRepository interface {
	Create(ctx context.Context, build *entity.Build) error
	GetByID(ctx context.Context, id string) (*entity.Build, error)
	List(ctx context.Context) ([]*entity.Build, error)
	ListByProject(ctx context.Context, slug string) ([]*entity.Build, error)
	ListByStatus(ctx context.Context, status entity.BuildStatus) ([]*entity.Build, error)
	Update(ctx context.Context, build *entity.Build) error
	// ClaimPending атомарно переводит pending → running; возвращает false, если сборку уже забрали.
	ClaimPending(ctx context.Context, id string) (bool, error)
	UpdateStatus(ctx context.Context, id string, status entity.BuildStatus) error
	Delete(ctx context.Context, id string) error
	CountByStatus(ctx context.Context, status entity.BuildStatus) (int, error)
}
