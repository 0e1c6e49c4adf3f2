package planner

import (
	"errors"
	"testing"
)

func TestExtractPlanBareArray(t *testing.T) {
	raw := `[{"path":"README.md","content":"# Demo"},{"path":"app.py","description":"entrypoint","instructions":"- start uvicorn"}]`

	plan, warnings, err := ExtractPlan(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("unexpected warnings: %v", warnings)
	}
	if len(plan) != 2 {
		t.Fatalf("plan length = %d, want 2", len(plan))
	}
	if plan[0].Path != "README.md" || plan[0].Content != "# Demo" {
		t.Errorf("unexpected first entry: %+v", plan[0])
	}
	if plan[1].Path != "app.py" || plan[1].Instructions == "" {
		t.Errorf("unexpected second entry: %+v", plan[1])
	}
}

func TestExtractPlanFencedBlock(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"plain fence", "```\n[{\"path\":\"README.md\",\"content\":\"hi\"}]\n```"},
		{"json fence", "```json\n[{\"path\":\"README.md\",\"content\":\"hi\"}]\n```"},
		{"fence with surrounding whitespace", "\n\n```json\n[{\"path\":\"README.md\",\"content\":\"hi\"}]\n```\n\n"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			plan, _, err := ExtractPlan(tc.raw)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(plan) != 1 || plan[0].Path != "README.md" {
				t.Errorf("unexpected plan: %+v", plan)
			}
		})
	}
}

func TestExtractPlanEmbeddedInProse(t *testing.T) {
	raw := "Sure! Here is the plan you asked for:\n" +
		`[{"path":"src/main.go","description":"server","instructions":"- listen on 8080"}]` +
		"\nLet me know if you need changes."

	plan, _, err := ExtractPlan(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(plan) != 1 || plan[0].Path != "src/main.go" {
		t.Errorf("unexpected plan: %+v", plan)
	}
}

func TestExtractPlanBracketInsideString(t *testing.T) {
	// Скобки внутри строковых значений не должны ломать поиск массива.
	raw := `Notes: see [docs]. Plan: [{"path":"a.txt","content":"array syntax: [1, 2]"}]`

	plan, _, err := ExtractPlan(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(plan) != 1 || plan[0].Content != "array syntax: [1, 2]" {
		t.Errorf("unexpected plan: %+v", plan)
	}
}

func TestExtractPlanDropsInvalidEntries(t *testing.T) {
	raw := `[
		{"path":"keep.md","content":"ok"},
		{"description":"no path here"},
		{"path":"empty.md"},
		"just a string"
	]`

	plan, warnings, err := ExtractPlan(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(plan) != 1 || plan[0].Path != "keep.md" {
		t.Errorf("unexpected plan: %+v", plan)
	}
	if len(warnings) != 3 {
		t.Errorf("warnings = %v, want 3 entries", warnings)
	}
}

func TestExtractPlanErrors(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"empty input", ""},
		{"whitespace only", "   \n\t "},
		{"empty fence", "```json\n```"},
		{"no array", "I could not produce a plan, sorry."},
		{"empty array", "[]"},
		{"object instead of array", `{"path":"a.txt","content":"x"}`},
		{"all entries invalid", `[{"description":"no path"}]`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := ExtractPlan(tc.raw)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			var parseErr *PlanParseError
			if !errors.As(err, &parseErr) {
				t.Fatalf("error type = %T, want *PlanParseError", err)
			}
			if parseErr.Raw != tc.raw {
				t.Errorf("raw response not carried in error")
			}
		})
	}
}
