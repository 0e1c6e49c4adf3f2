package usecase

import (
	"context"
	"fmt"
	"sync"

	"greenpt/internal/domain/entity"
	"greenpt/internal/domain/repository"
)

// In-memory двойники репозиториев для тестов usecase-слоя.

type fakeLogRepo struct {
	mu   sync.Mutex
	logs map[string]*entity.ProjectLog
}

func newFakeLogRepo() *fakeLogRepo {
	return &fakeLogRepo{logs: make(map[string]*entity.ProjectLog)}
}

func (r *fakeLogRepo) Save(ctx context.Context, log *entity.ProjectLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *log
	copied.History = append([]entity.ChatMessage(nil), log.History...)
	r.logs[log.Project] = &copied
	return nil
}

func (r *fakeLogRepo) Get(ctx context.Context, slug string) (*entity.ProjectLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	log, ok := r.logs[slug]
	if !ok {
		return nil, nil
	}
	copied := *log
	copied.History = append([]entity.ChatMessage(nil), log.History...)
	return &copied, nil
}

func (r *fakeLogRepo) List(ctx context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var slugs []string
	for slug := range r.logs {
		slugs = append(slugs, slug)
	}
	return slugs, nil
}

func (r *fakeLogRepo) Delete(ctx context.Context, slug string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.logs, slug)
	return nil
}

type fakeBuildRepo struct {
	mu     sync.Mutex
	builds map[string]*entity.Build
}

func newFakeBuildRepo() *fakeBuildRepo {
	return &fakeBuildRepo{builds: make(map[string]*entity.Build)}
}

func (r *fakeBuildRepo) Create(ctx context.Context, build *entity.Build) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *build
	r.builds[build.ID] = &copied
	return nil
}

func (r *fakeBuildRepo) GetByID(ctx context.Context, id string) (*entity.Build, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	build, ok := r.builds[id]
	if !ok {
		return nil, nil
	}
	copied := *build
	return &copied, nil
}

func (r *fakeBuildRepo) List(ctx context.Context) ([]*entity.Build, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.Build
	for _, b := range r.builds {
		copied := *b
		out = append(out, &copied)
	}
	return out, nil
}

func (r *fakeBuildRepo) ListByProject(ctx context.Context, slug string) ([]*entity.Build, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.Build
	for _, b := range r.builds {
		if b.ProjectSlug == slug {
			copied := *b
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *fakeBuildRepo) ListByStatus(ctx context.Context, status entity.BuildStatus) ([]*entity.Build, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.Build
	for _, b := range r.builds {
		if b.Status == status {
			copied := *b
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *fakeBuildRepo) Update(ctx context.Context, build *entity.Build) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.builds[build.ID]; !ok {
		return fmt.Errorf("build %s not found", build.ID)
	}
	copied := *build
	r.builds[build.ID] = &copied
	return nil
}

func (r *fakeBuildRepo) ClaimPending(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	build, ok := r.builds[id]
	if !ok || build.Status != entity.BuildStatusPending {
		return false, nil
	}
	build.UpdateStatus(entity.BuildStatusRunning)
	return true, nil
}

func (r *fakeBuildRepo) UpdateStatus(ctx context.Context, id string, status entity.BuildStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	build, ok := r.builds[id]
	if !ok {
		return fmt.Errorf("build %s not found", id)
	}
	build.UpdateStatus(status)
	return nil
}

func (r *fakeBuildRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.builds, id)
	return nil
}

func (r *fakeBuildRepo) CountByStatus(ctx context.Context, status entity.BuildStatus) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, b := range r.builds {
		if b.Status == status {
			count++
		}
	}
	return count, nil
}

type fakeOutcomeRepo struct {
	mu       sync.Mutex
	outcomes map[string][]*entity.FileOutcome
}

func newFakeOutcomeRepo() *fakeOutcomeRepo {
	return &fakeOutcomeRepo{outcomes: make(map[string][]*entity.FileOutcome)}
}

func (r *fakeOutcomeRepo) SaveOutcomes(ctx context.Context, outcomes []*entity.FileOutcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range outcomes {
		r.outcomes[o.BuildID] = append(r.outcomes[o.BuildID], o)
	}
	return nil
}

func (r *fakeOutcomeRepo) GetByBuildID(ctx context.Context, buildID string) ([]*entity.FileOutcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.outcomes[buildID], nil
}

func (r *fakeOutcomeRepo) DeleteByBuildID(ctx context.Context, buildID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.outcomes, buildID)
	return nil
}

// fakeLLM отвечает по функции; удобно скриптовать по содержимому prompt.
type fakeLLM struct {
	mu       sync.Mutex
	calls    []string
	complete func(call int, prompt string, opts repository.CompletionOptions) (string, error)
}

func (f *fakeLLM) Complete(ctx context.Context, prompt string, opts repository.CompletionOptions) (string, error) {
	f.mu.Lock()
	call := len(f.calls)
	f.calls = append(f.calls, prompt)
	f.mu.Unlock()
	return f.complete(call, prompt, opts)
}

func (f *fakeLLM) ListModels(ctx context.Context) ([]string, error) {
	return []string{"greenpt-1"}, nil
}

func (f *fakeLLM) prompts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}
