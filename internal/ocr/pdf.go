package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// PageBreak separates pages in locally extracted text
const PageBreak = "--- PAGE BREAK ---"

// errNoText is returned when a PDF has no text layer, e.g. a scanned report
var errNoText = errors.New("no text content found in PDF")

// PDFExtractor reads the text layer of digitally generated PDFs with pdfcpu.
// It is the local path used when the cloud provider is unavailable.
type PDFExtractor struct{}

// NewPDFExtractor creates a local PDF text extractor
func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{}
}

// Name returns the provider name
func (e *PDFExtractor) Name() string {
	return "local"
}

// Extract returns the text of every page, pages separated by PageBreak lines
func (e *PDFExtractor) Extract(ctx context.Context, doc Document) (string, error) {
	if doc.MimeType != MimePDF {
		return "", fmt.Errorf("%w: local extractor got %s", ErrUnsupportedFormat, doc.MimeType)
	}

	pdfCtx, err := api.ReadValidateAndOptimize(bytes.NewReader(doc.Data), model.NewDefaultConfiguration())
	if err != nil {
		return "", fmt.Errorf("pdfcpu read: %w", err)
	}

	var pages []string
	for pageNr := 1; pageNr <= pdfCtx.PageCount; pageNr++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if text := pageText(pdfCtx, pageNr); text != "" {
			pages = append(pages, text)
		}
	}
	if len(pages) == 0 {
		return "", errNoText
	}

	return strings.Join(pages, "\n"+PageBreak+"\n"), nil
}

func pageText(ctx *model.Context, pageNr int) string {
	r, err := pdfcpu.ExtractPageContent(ctx, pageNr)
	if err != nil || r == nil {
		return ""
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(textFromContentStream(data))
}

// contentToken is one operand or operator of a content stream
type contentToken struct {
	kind byte // 's' string, 'n' number, 'o' operator, '[' and ']' array bounds
	str  string
	num  float64
}

// kerningSpace is the TJ displacement (thousandths of em) read as a word gap
const kerningSpace = -200

// textFromContentStream rebuilds the text lines shown by a page content
// stream. Line positioning operators start a new line; text inside a line is
// concatenated in drawing order.
func textFromContentStream(data []byte) string {
	var sb strings.Builder
	var operands []contentToken

	newline := func() {
		s := sb.String()
		if len(s) > 0 && s[len(s)-1] != '\n' {
			sb.WriteByte('\n')
		}
	}
	space := func() {
		s := sb.String()
		if len(s) > 0 && s[len(s)-1] != '\n' && s[len(s)-1] != ' ' {
			sb.WriteByte(' ')
		}
	}
	lastString := func() string {
		for i := len(operands) - 1; i >= 0; i-- {
			if operands[i].kind == 's' {
				return operands[i].str
			}
		}
		return ""
	}
	number := func(fromEnd int) float64 {
		i := len(operands) - fromEnd
		if i < 0 || operands[i].kind != 'n' {
			return 0
		}
		return operands[i].num
	}

	var lastY float64
	for _, tok := range tokenizeContent(data) {
		if tok.kind != 'o' {
			operands = append(operands, tok)
			continue
		}

		switch tok.str {
		case "Tj":
			sb.WriteString(lastString())
		case "'", "\"":
			newline()
			sb.WriteString(lastString())
		case "TJ":
			for _, op := range operands {
				switch {
				case op.kind == 's':
					sb.WriteString(op.str)
				case op.kind == 'n' && op.num <= kerningSpace:
					space()
				}
			}
		case "Td", "TD":
			if number(1) != 0 {
				newline()
			} else {
				space()
			}
		case "Tm":
			if y := number(1); y != lastY {
				newline()
				lastY = y
			} else {
				space()
			}
		case "T*", "ET":
			newline()
		}
		operands = operands[:0]
	}

	return sb.String()
}

// tokenizeContent splits a content stream into operands and operators.
// Dictionaries and inline images are skipped.
func tokenizeContent(data []byte) []contentToken {
	var tokens []contentToken
	for i := 0; i < len(data); {
		c := data[i]
		switch {
		case isPDFSpace(c):
			i++
		case c == '%':
			for i < len(data) && data[i] != '\n' && data[i] != '\r' {
				i++
			}
		case c == '(':
			s, next := readLiteralString(data, i+1)
			tokens = append(tokens, contentToken{kind: 's', str: s})
			i = next
		case c == '<' && i+1 < len(data) && data[i+1] == '<':
			i = skipDict(data, i)
		case c == '<':
			s, next := readHexString(data, i+1)
			tokens = append(tokens, contentToken{kind: 's', str: s})
			i = next
		case c == '[' || c == ']':
			tokens = append(tokens, contentToken{kind: c})
			i++
		case c == '/':
			i++
			for i < len(data) && !isPDFSpace(data[i]) && !isPDFDelimiter(data[i]) {
				i++
			}
		default:
			start := i
			for i < len(data) && !isPDFSpace(data[i]) && !isPDFDelimiter(data[i]) {
				i++
			}
			if i == start {
				i++
				continue
			}
			word := string(data[start:i])
			if n, err := strconv.ParseFloat(word, 64); err == nil {
				tokens = append(tokens, contentToken{kind: 'n', num: n})
				continue
			}
			if word == "BI" {
				i = skipInlineImage(data, i)
				continue
			}
			tokens = append(tokens, contentToken{kind: 'o', str: word})
		}
	}
	return tokens
}

// readLiteralString decodes a (...) string starting after the open paren
func readLiteralString(data []byte, i int) (string, int) {
	var sb strings.Builder
	depth := 1
	for i < len(data) {
		c := data[i]
		switch {
		case c == '\\' && i+1 < len(data):
			i++
			switch e := data[i]; e {
			case 'n':
				sb.WriteByte('\n')
			case 'r':
				sb.WriteByte('\r')
			case 't':
				sb.WriteByte('\t')
			case 'b', 'f':
			case '\r', '\n':
				// line continuation
			default:
				if e >= '0' && e <= '7' {
					val := int(e - '0')
					for k := 0; k < 2 && i+1 < len(data) && data[i+1] >= '0' && data[i+1] <= '7'; k++ {
						i++
						val = val*8 + int(data[i]-'0')
					}
					sb.WriteByte(byte(val))
				} else {
					sb.WriteByte(e)
				}
			}
			i++
		case c == '(':
			depth++
			sb.WriteByte(c)
			i++
		case c == ')':
			depth--
			i++
			if depth == 0 {
				return sb.String(), i
			}
			sb.WriteByte(c)
		default:
			sb.WriteByte(c)
			i++
		}
	}
	return sb.String(), i
}

// readHexString decodes a <...> string starting after the open bracket
func readHexString(data []byte, i int) (string, int) {
	var digits []byte
	for i < len(data) && data[i] != '>' {
		if !isPDFSpace(data[i]) {
			digits = append(digits, data[i])
		}
		i++
	}
	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}
	out := make([]byte, 0, len(digits)/2)
	for k := 0; k+1 < len(digits); k += 2 {
		v, err := strconv.ParseUint(string(digits[k:k+2]), 16, 8)
		if err != nil {
			continue
		}
		out = append(out, byte(v))
	}
	return string(out), i + 1
}

func skipDict(data []byte, i int) int {
	depth := 0
	for i+1 < len(data) {
		switch {
		case data[i] == '<' && data[i+1] == '<':
			depth++
			i += 2
		case data[i] == '>' && data[i+1] == '>':
			depth--
			i += 2
			if depth == 0 {
				return i
			}
		default:
			i++
		}
	}
	return len(data)
}

func skipInlineImage(data []byte, i int) int {
	if idx := bytes.Index(data[i:], []byte("EI")); idx >= 0 {
		return i + idx + 2
	}
	return len(data)
}

func isPDFSpace(c byte) bool {
	return c == ' ' || c == '\n' || c == '\r' || c == '\t' || c == '\f' || c == 0
}

func isPDFDelimiter(c byte) bool {
	return strings.IndexByte("()<>[]{}/%", c) >= 0
}
