package worker

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ppiankov/labtext/internal/model"
)

// MockProcessor fails documents whose content is blank and panics on "panic" paths
type MockProcessor struct {
	calls int32
}

func (m *MockProcessor) ProcessFile(ctx context.Context, path string) *model.ParseResult {
	atomic.AddInt32(&m.calls, 1)
	time.Sleep(5 * time.Millisecond)

	if strings.Contains(path, "panic") {
		panic("corrupt document")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return model.FailedResult("id", path, err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return model.FailedResult("id", path, os.ErrInvalid)
	}
	return &model.ParseResult{ID: "id", SourceFile: path, Success: true, TestResults: []model.TestResult{}}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestBatchProcessor_EmptyDocumentDoesNotAffectSibling(t *testing.T) {
	dir := t.TempDir()
	empty := writeFile(t, dir, "empty.txt", "   \n")
	valid := writeFile(t, dir, "valid.txt", "Patient ID : PT12345\n")

	processor := NewBatchProcessor(&MockProcessor{}, 2, nil, nil)
	results := processor.ProcessFiles(context.Background(), []string{empty, valid})

	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}

	bySource := make(map[string]*model.ParseResult)
	for _, r := range results {
		bySource[r.SourceFile] = r
	}
	if bySource[empty] == nil || bySource[empty].Success {
		t.Errorf("expected empty document to fail, got %+v", bySource[empty])
	}
	if bySource[valid] == nil || !bySource[valid].Success {
		t.Errorf("expected valid document to succeed, got %+v", bySource[valid])
	}
}

func TestBatchProcessor_PanicBecomesFailedRecord(t *testing.T) {
	dir := t.TempDir()
	ok := writeFile(t, dir, "ok.txt", "Lab ID: LT1")
	bad := filepath.Join(dir, "panic.txt")

	results := NewBatchProcessor(&MockProcessor{}, 3, nil, nil).ProcessFiles(context.Background(), []string{bad, ok})

	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	for _, r := range results {
		switch r.SourceFile {
		case bad:
			if r.Success || !strings.Contains(r.Error, "corrupt document") {
				t.Errorf("expected panic to be recorded, got %+v", r)
			}
			if r.ID == "" {
				t.Error("expected failed record to carry an id")
			}
		case ok:
			if !r.Success {
				t.Errorf("sibling failed: %s", r.Error)
			}
		default:
			t.Errorf("unexpected source %s", r.SourceFile)
		}
	}
}

func TestBatchProcessor_ManyDocuments(t *testing.T) {
	dir := t.TempDir()
	var paths []string
	for i := 0; i < 40; i++ {
		paths = append(paths, writeFile(t, dir, filepath.Join("docs", string(rune('a'+i%26))+strings.Repeat("x", i/26)+".txt"), "x"))
	}

	mock := &MockProcessor{}
	var streamed int32
	results := NewBatchProcessor(mock, 3, nil, nil).ProcessFilesFunc(context.Background(), paths, func(*model.ParseResult) {
		atomic.AddInt32(&streamed, 1)
	})

	if len(results) != len(paths) {
		t.Errorf("expected %d results, got %d", len(paths), len(results))
	}
	if atomic.LoadInt32(&mock.calls) != int32(len(paths)) {
		t.Errorf("expected %d calls, got %d", len(paths), mock.calls)
	}
	if atomic.LoadInt32(&streamed) != int32(len(paths)) {
		t.Errorf("expected %d streamed results, got %d", len(paths), streamed)
	}
}

func TestBatchProcessor_Empty(t *testing.T) {
	results := NewBatchProcessor(&MockProcessor{}, 2, nil, nil).ProcessFiles(context.Background(), nil)
	if results == nil || len(results) != 0 {
		t.Errorf("expected empty non-nil results, got %v", results)
	}
}

func TestNewBatchProcessor_WorkerCap(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{0, 1},
		{2, 2},
		{3, 3},
		{16, model.MaxWorkers},
	}
	for _, tt := range tests {
		if got := NewBatchProcessor(&MockProcessor{}, tt.in, nil, nil).workers; got != tt.want {
			t.Errorf("workers(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestSummarize(t *testing.T) {
	ok := &model.ParseResult{Success: true}
	bad := &model.ParseResult{Success: false}

	tests := []struct {
		name    string
		records []*model.ParseResult
		want    BatchSummary
	}{
		{"all ok", []*model.ParseResult{ok, ok}, BatchSummary{Total: 2, Processed: 2, Status: StatusCompleted}},
		{"mixed", []*model.ParseResult{ok, bad}, BatchSummary{Total: 2, Processed: 1, Failed: 1, Status: StatusPartial}},
		{"all failed", []*model.ParseResult{bad, nil}, BatchSummary{Total: 2, Failed: 2, Status: StatusFailed}},
		{"empty", nil, BatchSummary{Status: StatusCompleted}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Summarize(tt.records); got != tt.want {
				t.Errorf("Summarize() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestDiscoverFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.pdf", "%PDF")
	writeFile(t, dir, "a.TXT", "x")
	writeFile(t, dir, "scan/c.jpeg", "x")
	writeFile(t, dir, "notes.md", "x")
	writeFile(t, dir, ".labtext-cache/ab/x.txt", "x")

	paths, err := DiscoverFiles(dir)
	if err != nil {
		t.Fatalf("DiscoverFiles failed: %v", err)
	}

	expected := []string{
		filepath.Join(dir, "a.TXT"),
		filepath.Join(dir, "b.pdf"),
		filepath.Join(dir, "scan", "c.jpeg"),
	}
	if len(paths) != len(expected) {
		t.Fatalf("expected %v, got %v", expected, paths)
	}
	for i := range expected {
		if paths[i] != expected[i] {
			t.Errorf("expected %s at index %d, got %s", expected[i], i, paths[i])
		}
	}
}

func TestDiscoverFiles_Missing(t *testing.T) {
	if _, err := DiscoverFiles(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("expected error for missing directory")
	}
}

func TestReadPathsFromFile(t *testing.T) {
	dir := t.TempDir()
	list := writeFile(t, dir, "list.txt", "report1.pdf\n# comment\n\n  /abs/report2.png  \nreport1.pdf\n")

	paths, err := ReadPathsFromFile(list)
	if err != nil {
		t.Fatalf("ReadPathsFromFile failed: %v", err)
	}

	expected := []string{filepath.Join(dir, "report1.pdf"), "/abs/report2.png"}
	if len(paths) != len(expected) {
		t.Fatalf("expected %v, got %v", expected, paths)
	}
	for i := range expected {
		if paths[i] != expected[i] {
			t.Errorf("expected %s at index %d, got %s", expected[i], i, paths[i])
		}
	}
}

func TestReadPathsFromFile_NonExistent(t *testing.T) {
	if _, err := ReadPathsFromFile("non_existent_file.txt"); err == nil {
		t.Error("expected error for non-existent file, got nil")
	}
}

func TestFileResult_GetError(t *testing.T) {
	r1 := &FileResult{Record: &model.ParseResult{Success: true}}
	if r1.GetError() != nil {
		t.Errorf("expected nil error, got %v", r1.GetError())
	}

	r2 := &FileResult{Record: model.FailedResult("id", "a.pdf", os.ErrNotExist)}
	if r2.GetError() == nil {
		t.Error("expected error for failed record")
	}
}
