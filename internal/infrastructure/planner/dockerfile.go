package planner

import (
	"fmt"
	"path"
	"strings"

	"greenpt/internal/domain/entity"
)

const maxSummaryItems = 8

// EnsureDockerfile добавляет в план Dockerfile, если модель его не включила.
func EnsureDockerfile(plan []entity.BuildPlanEntry) []entity.BuildPlanEntry {
	if planContainsDockerfile(plan) {
		return plan
	}
	return append(plan, entity.BuildPlanEntry{
		Path:         "Dockerfile",
		Type:         "infrastructure",
		Description:  "Container configuration to run the generated project end-to-end.",
		Instructions: dockerfileInstructions(plan),
	})
}

func planContainsDockerfile(plan []entity.BuildPlanEntry) bool {
	for _, spec := range plan {
		if spec.Path == "" {
			continue
		}
		if strings.ToLower(path.Base(spec.Path)) == "dockerfile" {
			return true
		}
	}
	return false
}

type stackHints struct {
	hasPython       bool
	hasNode         bool
	hasFrontend     bool
	pythonManifests []string
	nodeManifests   []string
}

var pythonTokens = []string{
	".py", "fastapi", "flask", "django", "streamlit",
	"requirements.txt", "pyproject.toml", "poetry.lock", "pipfile",
}

var nodeTokens = []string{
	"package.json", "vite.config", "next.config", ".tsx", ".jsx",
	"pnpm-lock.yaml", "yarn.lock", "package-lock.json",
}

var pythonManifestNames = map[string]bool{
	"requirements.txt": true,
	"pyproject.toml":   true,
	"poetry.lock":      true,
	"pipfile":          true,
	"pipfile.lock":     true,
}

var nodeManifestNames = map[string]bool{
	"package.json":      true,
	"package-lock.json": true,
	"yarn.lock":         true,
	"pnpm-lock.yaml":    true,
}

// collectStackHints определяет стек проекта по путям и описаниям плана.
func collectStackHints(plan []entity.BuildPlanEntry) stackHints {
	var hints stackHints
	for _, spec := range plan {
		pathValue := strings.ToLower(spec.Path)
		blob := pathValue + " " + strings.ToLower(spec.Description) + " " + strings.ToLower(spec.Instructions)

		for _, token := range pythonTokens {
			if strings.Contains(blob, token) {
				hints.hasPython = true
				break
			}
		}
		for _, token := range nodeTokens {
			if strings.Contains(blob, token) {
				hints.hasNode = true
				break
			}
		}

		fileName := strings.ToLower(path.Base(pathValue))
		if pythonManifestNames[fileName] {
			hints.pythonManifests = append(hints.pythonManifests, spec.Path)
			hints.hasPython = true
		}
		if nodeManifestNames[fileName] {
			hints.nodeManifests = append(hints.nodeManifests, spec.Path)
			hints.hasNode = true
		}

		for _, dir := range []string{"frontend/", "client/", "web/", "ui/"} {
			if strings.Contains(pathValue, dir) {
				hints.hasFrontend = true
				break
			}
		}
	}
	return hints
}

func summarizePlan(plan []entity.BuildPlanEntry) []string {
	var summaries []string
	for _, spec := range plan {
		if len(summaries) >= maxSummaryItems {
			summaries = append(summaries, "...")
			break
		}
		if desc := strings.TrimSpace(spec.Description); desc != "" {
			summaries = append(summaries, fmt.Sprintf("%s - %s", spec.Path, desc))
		} else {
			summaries = append(summaries, spec.Path)
		}
	}
	return summaries
}

func dockerfileInstructions(plan []entity.BuildPlanEntry) string {
	hints := collectStackHints(plan)
	lines := []string{
		"Create a production-ready Dockerfile that containers the generated application.",
		"General rules:",
		"- Always start with an official base image, pin the major version, and avoid placeholder text.",
		"- Use `/app` as the working directory and copy dependency manifests before the rest to improve build caching.",
		"- Install only what the project needs and clean up build caches.",
		"- Expose the runtime port mentioned in the blueprint (default to 8080 if not specified).",
		"- Finish with a CMD or ENTRYPOINT that starts the main service discussed in the blueprint.",
	}

	if len(hints.pythonManifests) > 0 {
		lines = append(lines, fmt.Sprintf(
			"- Use `python:3.11-slim` for Python services and `pip install --no-cache-dir -r %s` to install dependencies.",
			strings.Join(hints.pythonManifests, ", ")))
	} else if hints.hasPython {
		lines = append(lines,
			"- If the backend is Python, install dependencies from requirements.txt/pyproject and run the ASGI/WSGI server via uvicorn or gunicorn.")
	}

	if len(hints.nodeManifests) > 0 {
		lines = append(lines, fmt.Sprintf(
			"- Use a Node.js 18 builder stage to run `npm install` (or pnpm/yarn) against %s and build frontend assets before copying them into the runtime image.",
			strings.Join(hints.nodeManifests, ", ")))
	} else if hints.hasNode || hints.hasFrontend {
		lines = append(lines,
			"- If a frontend exists, add a `node:18-alpine` build stage that compiles the UI (npm/yarn build) and copy the output into the server image or serve via a lightweight web server.")
	}

	if hints.hasPython && hints.hasNode {
		lines = append(lines,
			"- When both backend and frontend layers exist, keep the backend runtime lean (python:3.11-slim) and copy in the pre-built frontend assets or serve them via the backend static directory.")
	}

	if summaries := summarizePlan(plan); len(summaries) > 0 {
		lines = append(lines, "Key files to consider:")
		for _, line := range summaries {
			lines = append(lines, "  - "+line)
		}
	}

	return strings.Join(lines, "\n")
}
