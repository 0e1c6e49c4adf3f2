package entity

import (
	"time"

	"github.com/google/uuid"
)

type BuildStatus string

const (
	BuildStatusPending   BuildStatus = "pending"
	BuildStatusRunning   BuildStatus = "running"
	BuildStatusCompleted BuildStatus = "completed"
	BuildStatusPartial   BuildStatus = "partial"
	BuildStatusFailed    BuildStatus = "failed"
)

func (s BuildStatus) Terminal() bool {
	return s == BuildStatusCompleted || s == BuildStatusPartial || s == BuildStatusFailed
}

// Build — одна сборка проекта: blueprint → план → файлы → zip.
type Build struct {
	ID           string      `json:"id" bson:"id"`
	ProjectSlug  string      `json:"project_slug" bson:"project_slug"`
	Blueprint    string      `json:"blueprint" bson:"blueprint"`
	Model        string      `json:"model" bson:"model"`
	Tone         string      `json:"tone,omitempty" bson:"tone,omitempty"`
	Status       BuildStatus `json:"status" bson:"status"`
	ProjectDir   string      `json:"project_dir,omitempty" bson:"project_dir,omitempty"`
	FilesPlanned int         `json:"files_planned" bson:"files_planned"`
	FilesWritten int         `json:"files_written" bson:"files_written"`
	Error        string      `json:"error,omitempty" bson:"error,omitempty"`
	CreatedAt    time.Time   `json:"created_at" bson:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at" bson:"updated_at"`
}

func NewBuild(projectSlug, blueprint, model, tone string) *Build {
	return &Build{
		ID:          uuid.New().String(),
		ProjectSlug: projectSlug,
		Blueprint:   blueprint,
		Model:       model,
		Tone:        tone,
		Status:      BuildStatusPending,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
}

func (b *Build) UpdateStatus(status BuildStatus) {
	b.Status = status
	b.UpdatedAt = time.Now()
}

// BuildPlanEntry — один файл из плана сборки, который вернула модель.
// Path обязателен; должен присутствовать либо Content (готовое содержимое),
// либо Description/Instructions (задание на генерацию).
type BuildPlanEntry struct {
	Path         string `json:"path" bson:"path"`
	Type         string `json:"type,omitempty" bson:"type,omitempty"` // backend, frontend, infrastructure, config, docs, tests
	Description  string `json:"description,omitempty" bson:"description,omitempty"`
	Instructions string `json:"instructions,omitempty" bson:"instructions,omitempty"`
	Content      string `json:"content,omitempty" bson:"content,omitempty"`
}

// HasContent сообщает, несёт ли запись готовое содержимое файла.
func (e BuildPlanEntry) HasContent() bool {
	return e.Content != ""
}

// FileOutcome — результат материализации одной записи плана.
type FileOutcome struct {
	BuildID  string         `json:"build_id" bson:"build_id"`
	Path     string         `json:"path" bson:"path"`
	Written  bool           `json:"written" bson:"written"`
	Size     int            `json:"size,omitempty" bson:"size,omitempty"`
	Error    string         `json:"error,omitempty" bson:"error,omitempty"`
	Warnings []LintFinding  `json:"warnings,omitempty" bson:"warnings,omitempty"`
	Spec     BuildPlanEntry `json:"spec" bson:"spec"`
}

// LintFinding — замечание линтера по сгенерированному файлу.
type LintFinding struct {
	File    string `json:"file" bson:"file"`
	Message string `json:"message" bson:"message"`
	Line    int    `json:"line,omitempty" bson:"line,omitempty"`
	Column  int    `json:"column,omitempty" bson:"column,omitempty"`
}
