// Package planner превращает сырой текст модели в валидированный план сборки.
package planner

import (
	"encoding/json"
	"fmt"
	"strings"

	"greenpt/internal/domain/entity"
)

// PlanParseError — план не удалось выделить или он пуст. Несёт сырой текст
// ответа для отладки.
type PlanParseError struct {
	Reason string
	Raw    string
}

func (e *PlanParseError) Error() string {
	return fmt.Sprintf("could not parse build plan: %s\nRaw response:\n%s", e.Reason, e.Raw)
}

// ExtractPlan выделяет JSON-массив из сырого текста модели и валидирует записи.
// Записи без обязательных полей отбрасываются с предупреждением; полностью
// пустой план — ошибка.
func ExtractPlan(raw string) ([]entity.BuildPlanEntry, []string, error) {
	cleaned := strings.TrimSpace(raw)
	if cleaned == "" {
		return nil, nil, &PlanParseError{Reason: "model returned an empty response", Raw: raw}
	}

	cleaned = stripFences(cleaned)
	if cleaned == "" {
		return nil, nil, &PlanParseError{Reason: "model returned an empty fenced code block", Raw: raw}
	}

	elements, ok := parseArray(cleaned)
	if !ok {
		// Текст вокруг массива: ищем первый структурно валидный [...] слева направо.
		snippet, found := firstArraySnippet(cleaned)
		if found {
			elements, ok = parseArray(snippet)
		}
		if !ok {
			return nil, nil, &PlanParseError{Reason: "no parseable JSON array found", Raw: raw}
		}
	}

	if len(elements) == 0 {
		return nil, nil, &PlanParseError{Reason: "build plan array is empty", Raw: raw}
	}

	var (
		plan     []entity.BuildPlanEntry
		warnings []string
	)
	for i, element := range elements {
		var spec entity.BuildPlanEntry
		if err := json.Unmarshal(element, &spec); err != nil {
			warnings = append(warnings, fmt.Sprintf("entry %d dropped: not an object (%v)", i, err))
			continue
		}
		if spec.Path == "" {
			warnings = append(warnings, fmt.Sprintf("entry %d dropped: missing path", i))
			continue
		}
		if spec.Content == "" && spec.Description == "" && spec.Instructions == "" {
			warnings = append(warnings, fmt.Sprintf("entry %d (%s) dropped: no content and no generation instructions", i, spec.Path))
			continue
		}
		plan = append(plan, spec)
	}

	if len(plan) == 0 {
		return nil, warnings, &PlanParseError{Reason: "plan contained no usable entries", Raw: raw}
	}
	return plan, warnings, nil
}

func stripFences(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	lines := strings.Split(text, "\n")
	// Первая строка — открывающий fence, возможно с языком (```json).
	lines = lines[1:]
	if len(lines) > 0 && strings.HasPrefix(strings.TrimSpace(lines[len(lines)-1]), "```") {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func parseArray(text string) ([]json.RawMessage, bool) {
	var elements []json.RawMessage
	if err := json.Unmarshal([]byte(text), &elements); err != nil {
		return nil, false
	}
	return elements, true
}

// firstArraySnippet сканирует текст слева направо и возвращает первую
// сбалансированную [...] подстроку, которая парсится как JSON-массив.
func firstArraySnippet(text string) (string, bool) {
	for start := 0; start < len(text); start++ {
		if text[start] != '[' {
			continue
		}
		end, ok := matchBracket(text, start)
		if !ok {
			continue
		}
		snippet := text[start : end+1]
		if _, ok := parseArray(snippet); ok {
			return snippet, true
		}
	}
	return "", false
}

// matchBracket находит закрывающую скобку для text[open] == '[',
// учитывая строки и escape-последовательности.
func matchBracket(text string, open int) (int, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := open; i < len(text); i++ {
		ch := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}
