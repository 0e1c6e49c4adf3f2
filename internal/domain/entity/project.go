package entity

import (
	"strings"
	"time"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type ChatMessage struct {
	Role    string `json:"role" bson:"role"`
	Content string `json:"content" bson:"content"`
}

// ProjectLog — журнал одного проекта: история чата + последний blueprint.
type ProjectLog struct {
	Project       string        `json:"project"`
	UpdatedAt     time.Time     `json:"updated_at"`
	History       []ChatMessage `json:"history"`
	LastBlueprint string        `json:"last_blueprint,omitempty"`
}

const InitialAssistantGreeting = "Welcome to your hackathon project assistant!\n\n" +
	"I can help you:\n" +
	"- Generate and refine project ideas\n" +
	"- Create detailed blueprints with architecture, APIs, and implementation plans\n" +
	"- Build complete project structures with code files\n" +
	"- Answer follow-up questions and iterate on your design\n\n" +
	"Describe your hackathon project idea, and I'll help you turn it into a complete plan!"

func NewProjectLog(slug string) *ProjectLog {
	return &ProjectLog{
		Project:   slug,
		UpdatedAt: time.Now().UTC(),
		History: []ChatMessage{
			{Role: RoleAssistant, Content: InitialAssistantGreeting},
		},
	}
}

func (p *ProjectLog) Append(msg ChatMessage) {
	p.History = append(p.History, msg)
	p.UpdatedAt = time.Now().UTC()
}

const maxSlugLen = 60

// SanitizeSlug делает из имени проекта безопасный идентификатор для файлов и директорий.
func SanitizeSlug(name string) string {
	var b strings.Builder
	for _, ch := range strings.ToLower(name) {
		if ch >= 'a' && ch <= 'z' || ch >= '0' && ch <= '9' || ch == '-' || ch == '_' {
			b.WriteRune(ch)
		} else {
			b.WriteRune('-')
		}
	}
	slug := strings.Trim(b.String(), "-_")
	if slug == "" {
		slug = "greenpt-project"
	}
	if len(slug) > maxSlugLen {
		slug = slug[:maxSlugLen]
	}
	return slug
}
