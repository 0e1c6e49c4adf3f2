package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"greenpt/internal/domain/entity"
	"greenpt/internal/domain/repository"
	"greenpt/internal/infrastructure/metrics"
	"greenpt/internal/infrastructure/planner"
	"greenpt/internal/infrastructure/store/filesystem"
	"greenpt/internal/infrastructure/validator"
)

const fileGenMaxTokens = 4000

// BuildPipeline — фоновый воркер: забирает pending-сборки и прогоняет их через
// план → материализацию → линт → manifest. Одна сборка за раз.
type BuildPipeline struct {
	builds    repository.BuildRepository
	outcomes  repository.FileOutcomeRepository
	llm       repository.CompletionClient
	workspace filesystem.Workspace
	linter    *validator.ArtifactLinter

	logger *slog.Logger

	pollInterval time.Duration
	buildTimeout time.Duration
	planRetries  int

	// control
	stop    chan struct{}
	stopped chan struct{}
}

func NewBuildPipeline(
	builds repository.BuildRepository,
	outcomes repository.FileOutcomeRepository,
	llm repository.CompletionClient,
	workspace filesystem.Workspace,
	linter *validator.ArtifactLinter,
	logger *slog.Logger,
) *BuildPipeline {
	return &BuildPipeline{
		builds:       builds,
		outcomes:     outcomes,
		llm:          llm,
		workspace:    workspace,
		linter:       linter,
		logger:       logger,
		pollInterval: 5 * time.Second,
		buildTimeout: 30 * time.Minute,
		planRetries:  1,
		stop:         make(chan struct{}),
		stopped:      make(chan struct{}),
	}
}

func (s *BuildPipeline) Start(ctx context.Context) {
	go func() {
		defer close(s.stopped)
		ticker := time.NewTicker(s.pollInterval)
		defer ticker.Stop()

		s.logger.Info("BuildPipeline started", "interval", s.pollInterval)

		if err := s.runOnce(ctx); err != nil {
			s.logger.Warn("initial runOnce failed", "err", err)
		}

		for {
			select {
			case <-ctx.Done():
				s.logger.Info("BuildPipeline context canceled")
				return
			case <-s.stop:
				s.logger.Info("BuildPipeline stopped by Stop()")
				return
			case <-ticker.C:
				if err := s.runOnce(ctx); err != nil {
					s.logger.Warn("runOnce failed", "err", err)
				}
			}
		}
	}()
}

func (s *BuildPipeline) Stop() {
	close(s.stop)
	<-s.stopped
	s.logger.Info("BuildPipeline fully stopped")
}

func (s *BuildPipeline) runOnce(ctx context.Context) error {
	builds, err := s.builds.ListByStatus(ctx, entity.BuildStatusPending)
	if err != nil {
		return fmt.Errorf("list pending builds: %w", err)
	}
	if len(builds) == 0 {
		return nil
	}

	s.logger.Debug("found pending builds", "count", len(builds))

	for _, build := range builds {
		claimed, err := s.builds.ClaimPending(ctx, build.ID)
		if err != nil {
			s.logger.Warn("failed to claim build; skip", "build_id", build.ID, "err", err)
			continue
		}
		if !claimed {
			continue
		}
		metrics.IncBuildStatusChange(string(entity.BuildStatusPending), string(entity.BuildStatusRunning))

		procCtx, cancel := context.WithTimeout(ctx, s.buildTimeout)
		func() {
			defer cancel()
			if err := s.processBuild(procCtx, build); err != nil {
				s.logger.Error("processBuild failed", "build_id", build.ID, "err", err)
			}
		}()
	}

	return nil
}

// processBuild — полный pipeline одной сборки:
// 1) план через LLM (с одним повтором при мусорном JSON)
// 2) директория проекта <slug>-<timestamp>
// 3) материализация файлов (ошибки по одному файлу не валят сборку)
// 4) линт артефактов + manifest
// 5) итоговый статус
func (s *BuildPipeline) processBuild(ctx context.Context, build *entity.Build) error {
	startTime := time.Now()
	s.logger.Info("start processing build", "build_id", build.ID, "project", build.ProjectSlug)

	plan, warnings, err := s.generatePlan(ctx, build)
	if err != nil {
		s.fail(ctx, build, err)
		return fmt.Errorf("generate plan: %w", err)
	}
	for _, w := range warnings {
		s.logger.Warn("plan entry dropped", "build_id", build.ID, "reason", w)
	}
	plan = planner.EnsureDockerfile(plan)

	dir, err := s.workspace.CreateProjectDir(build.ProjectSlug)
	if err != nil {
		s.fail(ctx, build, err)
		return fmt.Errorf("create project dir: %w", err)
	}
	build.ProjectDir = dir
	build.FilesPlanned = len(plan)

	outcomes := s.materialize(ctx, build, plan, dir)

	s.linter.Lint(dir, outcomes)

	if err := s.workspace.WriteMetadata(dir, build, outcomes); err != nil {
		s.logger.Error("write metadata failed", "build_id", build.ID, "err", err)
	}
	if err := s.outcomes.SaveOutcomes(ctx, outcomes); err != nil {
		s.logger.Error("save outcomes failed", "build_id", build.ID, "err", err)
	}

	written := 0
	for _, o := range outcomes {
		if o.Written {
			written++
		}
	}
	build.FilesWritten = written

	switch {
	case written == 0:
		build.UpdateStatus(entity.BuildStatusFailed)
		build.Error = "no files materialized"
	case written < len(outcomes):
		build.UpdateStatus(entity.BuildStatusPartial)
	default:
		build.UpdateStatus(entity.BuildStatusCompleted)
	}
	metrics.IncBuildStatusChange(string(entity.BuildStatusRunning), string(build.Status))

	if err := s.builds.Update(ctx, build); err != nil {
		s.logger.Warn("failed to update build", "build_id", build.ID, "err", err)
	}

	metrics.ObserveBuildDuration(time.Since(startTime))
	s.logger.Info("build processed",
		"build_id", build.ID,
		"status", build.Status,
		"files_written", written,
		"files_planned", len(outcomes),
		"duration", time.Since(startTime))
	return nil
}

// generatePlan запрашивает план сборки; при неразборчивом ответе повторяет
// запрос с напоминанием вернуть только JSON.
func (s *BuildPipeline) generatePlan(ctx context.Context, build *entity.Build) ([]entity.BuildPlanEntry, []string, error) {
	basePrompt := entity.BuildPlanPrompt(build.Blueprint)

	var lastErr error
	for attempt := 0; attempt <= s.planRetries; attempt++ {
		prompt := basePrompt
		if attempt > 0 {
			prompt = basePrompt + entity.PlanReminderSuffix
		}

		raw, err := s.llm.Complete(ctx, prompt, repository.CompletionOptions{
			Model: build.Model,
			Tone:  build.Tone,
		})
		if err != nil {
			return nil, nil, err
		}

		plan, warnings, err := planner.ExtractPlan(raw)
		if err != nil {
			lastErr = err
			continue
		}
		return plan, warnings, nil
	}
	return nil, nil, fmt.Errorf("could not parse build plan after %d attempt(s): %w", s.planRetries+1, lastErr)
}

// materialize проходит план по порядку и пишет каждый файл в директорию сборки.
// Повторяющиеся пути: побеждает последняя запись. Ошибка одной записи
// фиксируется в outcome и не прерывает остальные.
func (s *BuildPipeline) materialize(ctx context.Context, build *entity.Build, plan []entity.BuildPlanEntry, root string) []*entity.FileOutcome {
	outcomes := make([]*entity.FileOutcome, 0, len(plan))
	byPath := make(map[string]int, len(plan))

	for _, spec := range plan {
		outcome := &entity.FileOutcome{
			BuildID: build.ID,
			Path:    spec.Path,
			Spec:    spec,
		}

		content := spec.Content
		if !spec.HasContent() {
			generated, err := s.llm.Complete(ctx, entity.FileGenerationPrompt(spec, build.Blueprint), repository.CompletionOptions{
				Model:     build.Model,
				Tone:      build.Tone,
				MaxTokens: fileGenMaxTokens,
			})
			if err != nil {
				metrics.IncFileFailure("generate")
				outcome.Error = fmt.Sprintf("content generation failed: %v", err)
				outcomes = record(outcomes, byPath, outcome)
				continue
			}
			content = generated
		}

		if _, err := s.workspace.WriteFile(root, spec.Path, []byte(content)); err != nil {
			var kind string
			switch err.(type) {
			case *filesystem.PathTraversalError:
				kind = "traversal"
			default:
				kind = "write"
			}
			metrics.IncFileFailure(kind)
			outcome.Error = err.Error()
		} else {
			outcome.Written = true
			outcome.Size = len(content)
			metrics.IncFileWritten()
		}

		outcomes = record(outcomes, byPath, outcome)
	}

	return outcomes
}

// record добавляет outcome, заменяя предыдущий результат того же пути (last-write-wins).
func record(outcomes []*entity.FileOutcome, byPath map[string]int, outcome *entity.FileOutcome) []*entity.FileOutcome {
	if idx, ok := byPath[outcome.Path]; ok {
		outcomes[idx] = outcome
		return outcomes
	}
	byPath[outcome.Path] = len(outcomes)
	return append(outcomes, outcome)
}

func (s *BuildPipeline) fail(ctx context.Context, build *entity.Build, cause error) {
	build.UpdateStatus(entity.BuildStatusFailed)
	build.Error = cause.Error()
	metrics.IncBuildStatusChange(string(entity.BuildStatusRunning), string(entity.BuildStatusFailed))
	if err := s.builds.Update(ctx, build); err != nil {
		s.logger.Warn("failed to mark build failed", "build_id", build.ID, "err", err)
	}
}
