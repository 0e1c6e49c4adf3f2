package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"greenpt/internal/domain/entity"
	"greenpt/internal/domain/repository"
)

const chatMaxTokens = 2000

type ChatRequest struct {
	Message     string   `json:"message"`
	Tone        string   `json:"tone,omitempty"`
	Model       string   `json:"model,omitempty"`
	DetailLevel string   `json:"detail_level,omitempty"`
	Sections    []string `json:"sections,omitempty"`
	AutoBuild   bool     `json:"auto_build,omitempty"`
}

type ChatResponse struct {
	Reply     string `json:"reply"`
	Blueprint bool   `json:"blueprint"` // true, если ответ стал (или остался) blueprint проекта
	BuildID   string `json:"build_id,omitempty"`
}

type ChatUsecase interface {
	SendMessage(ctx context.Context, slug string, req ChatRequest) (*ChatResponse, error)
}

var _ ChatUsecase = (*ChatService)(nil)

// ChatService ведёт диалог: первое сообщение разворачивается в blueprint-запрос,
// дальнейшие идут как follow-up поверх сохранённого blueprint.
type ChatService struct {
	logs   repository.ProjectLogRepository
	llm    repository.CompletionClient
	builds BuildUsecase
	logger *slog.Logger
}

func NewChatService(
	logs repository.ProjectLogRepository,
	llm repository.CompletionClient,
	builds BuildUsecase,
	logger *slog.Logger,
) *ChatService {
	return &ChatService{
		logs:   logs,
		llm:    llm,
		builds: builds,
		logger: logger,
	}
}

func (s *ChatService) SendMessage(ctx context.Context, slug string, req ChatRequest) (*ChatResponse, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, fmt.Errorf("message is required")
	}

	log, err := s.logs.Get(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("get project log: %w", err)
	}
	if log == nil {
		log = entity.NewProjectLog(slug)
	}

	isFollowUp := log.LastBlueprint != ""
	historyBefore := append([]entity.ChatMessage(nil), log.History...)
	log.Append(entity.ChatMessage{Role: entity.RoleUser, Content: message})

	var reply string
	if isFollowUp {
		system := entity.FollowUpSystemPrompt + "\n\nCurrent blueprint:\n" + log.LastBlueprint
		reply, err = s.llm.Complete(ctx, message, repository.CompletionOptions{
			Model:     req.Model,
			MaxTokens: chatMaxTokens,
			Tone:      req.Tone,
			History:   historyBefore,
			System:    system,
		})
	} else {
		prompt := entity.BlueprintPrompt(message, selectSections(req.Sections), detailInstruction(req.DetailLevel))
		reply, err = s.llm.Complete(ctx, prompt, repository.CompletionOptions{
			Model:     req.Model,
			MaxTokens: chatMaxTokens,
			Tone:      req.Tone,
		})
	}
	if err != nil {
		// Ошибка тоже попадает в журнал, чтобы история чата оставалась полной.
		log.Append(entity.ChatMessage{Role: entity.RoleAssistant, Content: "GreenPT error: " + err.Error()})
		if saveErr := s.logs.Save(ctx, log); saveErr != nil {
			s.logger.Error("save project log after llm error failed", "slug", slug, "err", saveErr)
		}
		return nil, err
	}

	log.Append(entity.ChatMessage{Role: entity.RoleAssistant, Content: reply})
	if log.LastBlueprint == "" {
		log.LastBlueprint = reply
	}
	if err := s.logs.Save(ctx, log); err != nil {
		return nil, fmt.Errorf("save project log: %w", err)
	}

	resp := &ChatResponse{Reply: reply, Blueprint: !isFollowUp}

	if req.AutoBuild && !isFollowUp {
		build, err := s.builds.EnqueueBuild(ctx, slug, req.Model, req.Tone)
		if err != nil {
			s.logger.Error("auto-build enqueue failed", "slug", slug, "err", err)
		} else {
			resp.BuildID = build.ID
		}
	}

	return resp, nil
}

func selectSections(titles []string) []entity.BlueprintSection {
	if len(titles) == 0 {
		return entity.DefaultBlueprintSections
	}
	wanted := make(map[string]bool, len(titles))
	for _, t := range titles {
		wanted[strings.ToLower(strings.TrimSpace(t))] = true
	}
	var sections []entity.BlueprintSection
	for _, s := range entity.DefaultBlueprintSections {
		if wanted[strings.ToLower(s.Title)] {
			sections = append(sections, s)
		}
	}
	if len(sections) == 0 {
		return entity.DefaultBlueprintSections
	}
	return sections
}

func detailInstruction(level string) string {
	if instruction, ok := entity.DetailLevels[level]; ok {
		return instruction
	}
	return entity.DetailLevels[entity.DefaultDetailLevel]
}
