package entity

import (
	"fmt"
	"strings"
)

type Prompt struct {
	ID   string
	Text string
}

const systemPrompt = `You are an interactive assistant designed specifically for hackathons.
Your role is to rapidly generate secure, practical ideas, prototypes, implementations, and development support.

### Core Purpose
- Generate hackathon project ideas.
- Build, prototype, debug, and ship hackathon projects quickly.
- Always be concise unless more detail is explicitly requested.
- Never ask clarification questions; take safe, reasonable assumptions and proceed.

### Security Requirements
- Only assist with defensive security tasks.
- Never produce exploits, malware, bypasses, or harmful payloads.
- Always recommend input validation, safe auth defaults, rate limiting, and secrets via environment variables.

### Reasonable Default Behavior
If user input lacks detail:
- Choose common frameworks (Next.js, Node, Python, React, Supabase, Firebase).
- Default to serverless or low-setup hosting.
- Provide a simple MVP first.

### Default Deliverables
- Unless the user explicitly opts out, produce: high-level concept summary, backend/cloud architecture, API/service contracts, database/storage schemas, frontend/UI plan, DevOps/deployment approach, and a day-by-day execution plan with testing plus security checkpoints.

### Output Formatting
- Use ` + "`##`" + ` headings for each deliverable and ensure all sections can be copy/pasted into docs without reformatting.`

var SystemPrompt = Prompt{
	ID:   "system",
	Text: systemPrompt,
}

const buildPlanPrompt = `You are a senior software architect who converts a blueprint into a concrete build plan.

Blueprint:
%s

Output a JSON array. Each element must be an object with:
- "path": POSIX-style relative file path (e.g., "backend/app.py").
- "type": one of ["backend", "frontend", "infrastructure", "config", "docs", "tests"].
- "description": short human summary.
- "instructions": bullet list (single string) describing must-have contents.

Include at least one README, infra/IaC file, env example, backend code, frontend code, and tests when applicable.
Only return JSON, no prose.`

// BuildPlanPrompt формирует запрос на план сборки по blueprint.
func BuildPlanPrompt(blueprint string) string {
	return fmt.Sprintf(buildPlanPrompt, blueprint)
}

// PlanReminderSuffix добавляется при повторной попытке, когда первый ответ не распарсился.
const PlanReminderSuffix = "\n\nReminder: Return a JSON array only. No prose."

const fileGenerationPrompt = `You are generating the file ` + "`%s`" + ` for a hackathon project.

File context:
- Category: %s
- Description: %s
- Requirements: %s

Project blueprint:
%s

Produce the complete file content ready to be written to disk. Do not wrap with markdown fences.`

// FileGenerationPrompt формирует запрос на содержимое одного файла плана.
func FileGenerationPrompt(spec BuildPlanEntry, blueprint string) string {
	path := spec.Path
	if path == "" {
		path = "file.txt"
	}
	fileType := spec.Type
	if fileType == "" {
		fileType = "config"
	}
	return fmt.Sprintf(fileGenerationPrompt, path, fileType, spec.Description, spec.Instructions, blueprint)
}

const FollowUpSystemPrompt = `You are a helpful assistant helping the user refine and iterate on their hackathon project blueprint.

Your role:
- Answer questions about specific parts of the blueprint
- Suggest improvements or modifications to specific sections
- Help clarify or expand on details
- Keep responses focused and concise

Important rules:
- Always reference the existing blueprint when answering
- When suggesting changes, be specific about which section you're modifying
- Don't regenerate the entire blueprint unless explicitly asked
- Focus on the user's specific question or request
- Be practical and actionable`

// BlueprintSection — один раздел blueprint, который пользователь может заказать.
type BlueprintSection struct {
	Title       string
	Description string
}

var DefaultBlueprintSections = []BlueprintSection{
	{"Concept Overview", "Why this idea matters, target users, differentiators."},
	{"Backend & Cloud Architecture", "Preferred languages/frameworks, services, hosting, networking, and security controls."},
	{"API Surface", "REST/GraphQL endpoints with methods, payloads, auth, rate limits, and integration notes."},
	{"Data & Storage", "Schema design, entities, relationships, indexing, analytics, and retention strategy."},
	{"Frontend & UX", "Framework, component structure, critical screens, state management, accessibility."},
	{"DevOps & Delivery", "CI/CD tooling, environments, infrastructure-as-code, observability, and rollback."},
	{"Roadmap & Validation", "Milestones, success metrics, testing plan, and user feedback loops."},
}

// DetailLevels: название уровня детализации → инструкция для модели.
var DetailLevels = map[string]string{
	"Concise outline":    "Keep each deliverable to 3-4 bullet points with the most critical choices and trade-offs.",
	"Detailed blueprint": "Provide multi-paragraph detail with bullet lists, pseudo-code, data schemas, and explicit tooling recommendations.",
	"Execution playbook": "Include the detailed blueprint plus day-by-day execution, testing, and launch checklist.",
}

const DefaultDetailLevel = "Detailed blueprint"

// BlueprintPrompt собирает полный запрос на blueprint из идеи пользователя,
// выбранных разделов и уровня детализации.
func BlueprintPrompt(userPrompt string, sections []BlueprintSection, detailInstruction string) string {
	if len(sections) == 0 {
		sections = DefaultBlueprintSections
	}
	var sb strings.Builder
	sb.WriteString("### Project Brief\n")
	sb.WriteString(strings.TrimSpace(userPrompt))
	sb.WriteString("\n\n### Required Deliverables (use this order)\n")
	for _, s := range sections {
		fmt.Fprintf(&sb, "- %s: %s\n", s.Title, s.Description)
	}
	sb.WriteString("\n### Output Requirements\n")
	sb.WriteString(detailInstruction)
	sb.WriteString("\n- Use `## <section name>` headings matching each deliverable title.\n")
	sb.WriteString("- Specify primary frameworks, libraries, services, and hosting choices.\n")
	sb.WriteString("- Surface security, testing, automation, and scalability considerations.\n")
	sb.WriteString("- End each section with `Assumptions:` followed by concise bullets.\n")
	return sb.String()
}
