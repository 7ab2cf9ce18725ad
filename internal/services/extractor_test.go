package services

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/spegrid/execreview-backend/internal/pkg/errors"
)

// fakeAIClient returns a fixed file id per uploaded name and a canned
// response body.
type fakeAIClient struct {
	mu        sync.Mutex
	uploaded  []string
	gotIDs    []string
	response  string
	uploadErr error
	genErr    error
}

func (f *fakeAIClient) UploadFile(ctx context.Context, filename string, data []byte) (string, error) {
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	f.mu.Lock()
	f.uploaded = append(f.uploaded, filename)
	f.mu.Unlock()
	return "file-" + filename, nil
}

func (f *fakeAIClient) GenerateJSONWithFiles(ctx context.Context, system string, user string, fileIDs []string) (string, error) {
	f.mu.Lock()
	f.gotIDs = append([]string(nil), fileIDs...)
	f.mu.Unlock()
	if f.genErr != nil {
		return "", f.genErr
	}
	return f.response, nil
}

func writeTestPDF(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("%PDF-1.4"), 0o644); err != nil {
		t.Fatalf("write pdf: %v", err)
	}
	return path
}

func TestExtractParsesValidResponse(t *testing.T) {
	raw, err := json.Marshal(sampleSummaryData())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	ai := &fakeAIClient{response: string(raw)}
	ext := NewSummaryExtractor(testLogger(t), ai)

	dir := t.TempDir()
	ref := writeTestPDF(t, dir, "reference.pdf")
	prev := writeTestPDF(t, dir, "previous.pdf")
	curr := writeTestPDF(t, dir, "current.pdf")

	data, err := ext.Extract(context.Background(), ref, prev, curr)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if data.Header.MillName != "Khanewal Mill" {
		t.Fatalf("unexpected mill: %q", data.Header.MillName)
	}

	want := []string{"file-reference.pdf", "file-previous.pdf", "file-current.pdf"}
	if len(ai.gotIDs) != len(want) {
		t.Fatalf("expected %d file ids, got %v", len(want), ai.gotIDs)
	}
	for i := range want {
		if ai.gotIDs[i] != want[i] {
			t.Fatalf("attachment order broken at %d: got %v", i, ai.gotIDs)
		}
	}
}

func TestExtractRejectsMalformedJSON(t *testing.T) {
	ai := &fakeAIClient{response: "sorry, here is your summary: {"}
	ext := NewSummaryExtractor(testLogger(t), ai)

	dir := t.TempDir()
	_, err := ext.Extract(context.Background(),
		writeTestPDF(t, dir, "reference.pdf"),
		writeTestPDF(t, dir, "previous.pdf"),
		writeTestPDF(t, dir, "current.pdf"),
	)
	var xErr *errors.ExtractionError
	if !stderrors.As(err, &xErr) {
		t.Fatalf("expected ExtractionError, got %v", err)
	}
}

func TestExtractRejectsSchemaMismatch(t *testing.T) {
	// Valid JSON but missing the required tables block.
	ai := &fakeAIClient{response: `{"header":{"mill_name":"M","week":"w","comparison_week":"c"},"part1":{"executive_summary":[],"overall_performance":"ok"}}`}
	ext := NewSummaryExtractor(testLogger(t), ai)

	dir := t.TempDir()
	_, err := ext.Extract(context.Background(),
		writeTestPDF(t, dir, "reference.pdf"),
		writeTestPDF(t, dir, "previous.pdf"),
		writeTestPDF(t, dir, "current.pdf"),
	)
	var xErr *errors.ExtractionError
	if !stderrors.As(err, &xErr) {
		t.Fatalf("expected ExtractionError, got %v", err)
	}
}

func TestExtractUploadFailure(t *testing.T) {
	ai := &fakeAIClient{uploadErr: stderrors.New("413 payload too large")}
	ext := NewSummaryExtractor(testLogger(t), ai)

	dir := t.TempDir()
	_, err := ext.Extract(context.Background(),
		writeTestPDF(t, dir, "reference.pdf"),
		writeTestPDF(t, dir, "previous.pdf"),
		writeTestPDF(t, dir, "current.pdf"),
	)
	var xErr *errors.ExtractionError
	if !stderrors.As(err, &xErr) {
		t.Fatalf("expected ExtractionError, got %v", err)
	}
}
