package agent

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/shayc/relay/internal/llm"
	"github.com/shayc/relay/pkg/models"
)

// analyzableMIME are the media types the analyzer accepts.
var analyzableMIME = map[string]bool{
	"application/pdf": true,
	"text/plain":      true,
	"text/csv":        true,
	"image/jpeg":      true,
	"image/png":       true,
}

// DocumentAnalyzer summarizes documents attached to conversations.
// Input must carry file_path and mime_type; missing or unsupported
// fields fail the task without retry.
type DocumentAnalyzer struct {
	generator llm.Generator
}

// NewDocumentAnalyzer returns a DocumentAnalyzer. generator may be nil,
// in which case analysis records metadata only.
func NewDocumentAnalyzer(generator llm.Generator) *DocumentAnalyzer {
	return &DocumentAnalyzer{generator: generator}
}

// Name implements Agent.
func (d *DocumentAnalyzer) Name() string { return "document_analyzer" }

// CanHandle implements Agent.
func (d *DocumentAnalyzer) CanHandle(kind models.TaskKind) bool {
	return kind == models.TaskKindDocumentAnalysis
}

// Process implements Agent.
func (d *DocumentAnalyzer) Process(ctx context.Context, task *models.Task) *Result {
	filePath, _ := task.Input["file_path"].(string)
	mimeType, _ := task.Input["mime_type"].(string)

	if strings.TrimSpace(filePath) == "" {
		return Fail(models.ErrorKindValidation, "missing required input field: file_path")
	}
	if strings.TrimSpace(mimeType) == "" {
		return Fail(models.ErrorKindValidation, "missing required input field: mime_type")
	}
	if !analyzableMIME[mimeType] {
		return Fail(models.ErrorKindValidation,
			fmt.Sprintf("unsupported mime type %q", mimeType))
	}

	data := map[string]any{
		"file_name": filepath.Base(filePath),
		"mime_type": mimeType,
	}

	// Upstream extraction may have placed the document text in the
	// input. Without it, or without a backend, only metadata is kept.
	text, _ := task.Input["extracted_text"].(string)
	if d.generator != nil && strings.TrimSpace(text) != "" {
		summary, err := d.summarize(ctx, text)
		if err != nil {
			return Fail(models.ErrorKindDependencyUnavailable,
				fmt.Sprintf("summarize document: %v", err))
		}
		data["summary"] = summary
	}

	return Succeed("", data)
}

func (d *DocumentAnalyzer) summarize(ctx context.Context, text string) (string, error) {
	const maxChars = 8000
	if len(text) > maxChars {
		text = text[:maxChars]
	}

	prompt := fmt.Sprintf(
		"Summarize the following document in 3 sentences or fewer. "+
			"Mention names, dates and amounts when present.\n\n%s", text)

	summary, err := d.generator.Generate(ctx, prompt, 512, 0.3)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(summary), nil
}
