package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ppiankov/labtext/internal/model"
)

// Renderer writes records as JSON and prints human-readable summaries
type Renderer struct {
	pretty bool
}

// NewRenderer creates a renderer; pretty indents JSON output
func NewRenderer(pretty bool) *Renderer {
	return &Renderer{pretty: pretty}
}

// Encode writes v as JSON to w
func (r *Renderer) Encode(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if r.pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}

// RenderJSON writes v as JSON to path, creating parent directories
func (r *Renderer) RenderJSON(v any, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}

	if err := r.Encode(f, v); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode JSON: %w", err)
	}
	return f.Close()
}

// RenderSummary prints a one-line summary of a record
func (r *Renderer) RenderSummary(w io.Writer, res *model.ParseResult) {
	source := res.SourceFile
	if source == "" {
		source = res.ID
	}

	if !res.Success {
		fmt.Fprintf(w, "✗ %s: %s\n", source, res.Error)
		return
	}

	name := "unknown patient"
	if res.PatientInfo.Name != nil {
		name = *res.PatientInfo.Name
	}
	missing := 0
	if res.Debug != nil {
		missing = len(res.Debug.FailedPatterns)
	}
	fmt.Fprintf(w, "✓ %s: %s, %d tests, %d unresolved fields (%.2fs)\n",
		source, name, len(res.TestResults), missing, res.ProcessingTime)
}

// ResultFilename returns the per-document output file name for a record
func ResultFilename(res *model.ParseResult) string {
	base := res.ID
	if res.SourceFile != "" {
		base = strings.TrimSuffix(filepath.Base(res.SourceFile), filepath.Ext(res.SourceFile))
	}
	return sanitizeFilename(base) + ".json"
}

// sanitizeFilename sanitizes a string for use as a filename
func sanitizeFilename(s string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		" ", "_",
	)
	s = replacer.Replace(strings.TrimSpace(s))
	if s == "" || s == "." || s == ".." {
		return "document"
	}
	return s
}
