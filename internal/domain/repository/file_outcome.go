package repository

import (
	"context"
	"greenpt/internal/domain/entity"
)

// FileOutcomeRepository хранит результаты материализации файлов по сборкам.
type FileOutcomeRepository interface {
	SaveOutcomes(ctx context.Context, outcomes []*entity.FileOutcome) error
	GetByBuildID(ctx context.Context, buildID string) ([]*entity.FileOutcome, error)
	DeleteByBuildID(ctx context.Context, buildID string) error
}
