package cmd

import (
	"path/filepath"
	"strings"

	"github.com/airframesio/table-compare/cmd/schemawalk"
)

// PathTemplate provides functionality to generate artifact paths from templates
type PathTemplate struct {
	template string
}

// NewPathTemplate creates a new PathTemplate instance
func NewPathTemplate(template string) *PathTemplate {
	return &PathTemplate{template: template}
}

// Generate replaces placeholders in the template with actual values
// Supports: {field}, {name}, {fmt}, {table}
func (pt *PathTemplate) Generate(task schemawalk.Task, format, tableName string) string {
	result := pt.template

	result = strings.ReplaceAll(result, "{field}", task.Field)
	result = strings.ReplaceAll(result, "{name}", task.DisplayPath)
	result = strings.ReplaceAll(result, "{fmt}", format)
	result = strings.ReplaceAll(result, "{table}", tableName)

	return filepath.FromSlash(result)
}

// ArtifactPath places the generated path below the output directory
func (pt *PathTemplate) ArtifactPath(outputDir string, task schemawalk.Task, format, tableName string) string {
	return filepath.Join(outputDir, pt.Generate(task, format, tableName))
}
