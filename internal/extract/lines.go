package extract

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Line is one cleaned line of OCR text
type Line struct {
	Text   string // Trimmed, NFC-normalized
	Source int    // 0-based line number in the raw text
}

// pageBreakMarker is emitted between pages by the local OCR path
const pageBreakMarker = "--- PAGE BREAK ---"

// Preprocessor turns raw OCR text into clean, non-empty lines
type Preprocessor struct {
	noise []string
}

// NewPreprocessor creates a preprocessor dropping lines that contain any noise substring
func NewPreprocessor(noise []string) *Preprocessor {
	p := &Preprocessor{}
	for _, n := range noise {
		if n = strings.TrimSpace(n); n != "" {
			p.noise = append(p.noise, norm.NFC.String(n))
		}
	}
	return p
}

// Lines splits, trims and filters raw text. Consecutive duplicate lines are
// collapsed after noise removal so the output never holds two equal neighbours.
func (p *Preprocessor) Lines(raw string) []Line {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	raw = strings.ReplaceAll(raw, "\r", "\n")

	var lines []Line
	for i, text := range strings.Split(raw, "\n") {
		text = strings.TrimSpace(norm.NFC.String(text))
		if text == "" || text == pageBreakMarker || p.isNoise(text) {
			continue
		}
		if n := len(lines); n > 0 && lines[n-1].Text == text {
			continue
		}
		lines = append(lines, Line{Text: text, Source: i})
	}

	return lines
}

func (p *Preprocessor) isNoise(text string) bool {
	for _, n := range p.noise {
		if strings.Contains(text, n) {
			return true
		}
	}
	return false
}

// JoinLines rebuilds the cleaned full text used by the pattern passes
func JoinLines(lines []Line) string {
	var sb strings.Builder
	for i, l := range lines {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(l.Text)
	}
	return sb.String()
}

// Dedupe removes consecutive exact duplicates from a list of strings
func Dedupe(items []string) []string {
	out := make([]string, 0, len(items))
	for _, s := range items {
		if n := len(out); n > 0 && out[n-1] == s {
			continue
		}
		out = append(out, s)
	}
	return out
}
