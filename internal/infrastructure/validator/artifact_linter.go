package validator

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"greenpt/internal/domain/entity"
	"greenpt/internal/infrastructure/metrics"

	"github.com/hashicorp/hcl/v2/hclparse"
	"gopkg.in/yaml.v3"
)

// ArtifactLinter прогоняет синтаксические проверки по сгенерированным файлам:
// .tf через hclparse, .json через encoding/json, .yaml/.yml через yaml.v3.
// Замечания прикрепляются к outcome как предупреждения и не валят сборку.
type ArtifactLinter struct{}

func NewArtifactLinter() *ArtifactLinter {
	return &ArtifactLinter{}
}

func (l *ArtifactLinter) Lint(root string, outcomes []*entity.FileOutcome) {
	parser := hclparse.NewParser()

	for _, outcome := range outcomes {
		if !outcome.Written {
			continue
		}

		var (
			format   string
			findings []entity.LintFinding
		)
		switch strings.ToLower(filepath.Ext(outcome.Path)) {
		case ".tf":
			format = "hcl"
			findings = l.lintHCL(parser, root, outcome.Path)
		case ".json":
			format = "json"
			findings = l.lintJSON(root, outcome.Path)
		case ".yaml", ".yml":
			format = "yaml"
			findings = l.lintYAML(root, outcome.Path)
		default:
			continue
		}

		if len(findings) > 0 {
			outcome.Warnings = append(outcome.Warnings, findings...)
			metrics.IncLintRun(format, "fail")
		} else {
			metrics.IncLintRun(format, "pass")
		}
	}
}

func (l *ArtifactLinter) lintHCL(parser *hclparse.Parser, root, rel string) []entity.LintFinding {
	content, err := os.ReadFile(filepath.Join(root, rel))
	if err != nil {
		return []entity.LintFinding{{File: rel, Message: fmt.Sprintf("unreadable: %v", err)}}
	}

	_, diags := parser.ParseHCL(content, rel)
	var findings []entity.LintFinding
	for _, diag := range diags {
		finding := entity.LintFinding{
			File:    rel,
			Message: fmt.Sprintf("%s: %s", diag.Summary, diag.Detail),
		}
		if diag.Subject != nil {
			finding.Line = diag.Subject.Start.Line
			finding.Column = diag.Subject.Start.Column
		}
		findings = append(findings, finding)
	}
	return findings
}

func (l *ArtifactLinter) lintJSON(root, rel string) []entity.LintFinding {
	content, err := os.ReadFile(filepath.Join(root, rel))
	if err != nil {
		return []entity.LintFinding{{File: rel, Message: fmt.Sprintf("unreadable: %v", err)}}
	}

	var v interface{}
	if err := json.Unmarshal(content, &v); err != nil {
		finding := entity.LintFinding{File: rel, Message: err.Error()}
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) {
			finding.Line, finding.Column = offsetToPosition(content, syntaxErr.Offset)
		}
		return []entity.LintFinding{finding}
	}
	return nil
}

func (l *ArtifactLinter) lintYAML(root, rel string) []entity.LintFinding {
	content, err := os.ReadFile(filepath.Join(root, rel))
	if err != nil {
		return []entity.LintFinding{{File: rel, Message: fmt.Sprintf("unreadable: %v", err)}}
	}

	var v interface{}
	if err := yaml.Unmarshal(content, &v); err != nil {
		// yaml.v3 пишет номер строки прямо в текст ошибки.
		return []entity.LintFinding{{File: rel, Message: err.Error()}}
	}
	return nil
}

func offsetToPosition(content []byte, offset int64) (line, column int) {
	line, column = 1, 1
	for i := int64(0); i < offset && i < int64(len(content)); i++ {
		if content[i] == '\n' {
			line++
			column = 1
		} else {
			column++
		}
	}
	return line, column
}
