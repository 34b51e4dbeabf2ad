package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/labtext/internal/extract"
	"github.com/ppiankov/labtext/internal/metrics"
	"github.com/ppiankov/labtext/internal/model"
	"github.com/ppiankov/labtext/internal/pipeline"
)

type panicProcessor struct{}

func (panicProcessor) ProcessText(ctx context.Context, name, text string) *model.ParseResult {
	panic("boom")
}

func newTestServer(t *testing.T) (*httptest.Server, *metrics.Metrics) {
	t.Helper()
	m := metrics.New()
	p := pipeline.New(nil, extract.NewParser(), pipeline.WithMetrics(m))
	ts := httptest.NewServer(New(Config{Processor: p, Metrics: m, MaxBodyBytes: 1024}).Handler())
	t.Cleanup(ts.Close)
	return ts, m
}

func decodeResult(t *testing.T, resp *http.Response) model.ParseResult {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	var res model.ParseResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	return res
}

func TestParse_PlainText(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Post(ts.URL+"/v1/parse?name=report-1", "text/plain", strings.NewReader("Patient ID : PT12345\nLab ID:LT987"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	res := decodeResult(t, resp)
	assert.True(t, res.Success)
	assert.Equal(t, "report-1", res.SourceFile)
	require.NotNil(t, res.PatientInfo.PatientID)
	assert.Equal(t, "PT12345", *res.PatientInfo.PatientID)
	require.NotNil(t, res.LabInfo.LabID)
	assert.Equal(t, "LT987", *res.LabInfo.LabID)
}

func TestParse_JSONBody(t *testing.T) {
	ts, _ := newTestServer(t)

	body := `{"name":"scan.pdf","text":"Lab ID: LT1\nBIOCHEMISTRY\nCreatinine, serum:"}`
	resp, err := http.Post(ts.URL+"/v1/parse", "application/json; charset=utf-8", strings.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	res := decodeResult(t, resp)
	assert.Equal(t, "scan.pdf", res.SourceFile)
	require.Len(t, res.TestResults, 1)
	assert.Equal(t, "mg/dL", res.TestResults[0].Unit)
}

func TestParse_EmptyBody(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Post(ts.URL+"/v1/parse", "text/plain", strings.NewReader("  \n"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	res := decodeResult(t, resp)
	assert.False(t, res.Success)
	assert.Equal(t, pipeline.ErrEmptyText.Error(), res.Error)
	assert.NotEmpty(t, res.SourceFile, "request id used as name")
}

func TestParse_InvalidJSON(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Post(ts.URL+"/v1/parse", "application/json", strings.NewReader("{"))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestParse_BodyTooLarge(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Post(ts.URL+"/v1/parse", "text/plain", strings.NewReader(strings.Repeat("x", 2048)))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
}

func TestParse_MethodNotAllowed(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/v1/parse")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestParse_PanicRecovered(t *testing.T) {
	ts := httptest.NewServer(New(Config{Processor: panicProcessor{}}).Handler())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/v1/parse", "text/plain", strings.NewReader("Lab ID: LT1"))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestHealthAndMetrics(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	var health map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	_ = resp.Body.Close()
	assert.Equal(t, "ok", health["status"])

	resp, err = http.Post(ts.URL+"/v1/parse", "text/plain", strings.NewReader("Lab ID: LT1"))
	require.NoError(t, err)
	_ = resp.Body.Close()

	resp, err = http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	buf := new(strings.Builder)
	_, _ = io.Copy(buf, resp.Body)
	assert.Contains(t, buf.String(), `labtext_documents_total{status="success"} 1`)
}

func TestListenAndServe_Shutdown(t *testing.T) {
	s := New(Config{Processor: pipeline.New(nil, extract.NewParser())})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx, "127.0.0.1:0") }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
