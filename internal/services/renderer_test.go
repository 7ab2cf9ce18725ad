package services

import (
	"bytes"
	stderrors "errors"
	"testing"

	"github.com/spegrid/execreview-backend/internal/domain"
	"github.com/spegrid/execreview-backend/internal/pkg/errors"
)

func TestRenderProducesDocx(t *testing.T) {
	r := NewDocumentRenderer(testLogger(t))

	out, err := r.Render(sampleSummaryData())
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if len(out) == 0 {
		t.Fatalf("empty document")
	}
	// DOCX is a zip container.
	if !bytes.HasPrefix(out, []byte("PK")) {
		t.Fatalf("output is not a zip archive: % x", out[:4])
	}
}

func TestRenderIsDeterministicForSameInput(t *testing.T) {
	r := NewDocumentRenderer(testLogger(t))

	a, err := r.Render(sampleSummaryData())
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	b, err := r.Render(sampleSummaryData())
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if len(a) == 0 || len(b) == 0 {
		t.Fatalf("empty render output")
	}
}

func TestRenderRejectsNilData(t *testing.T) {
	r := NewDocumentRenderer(testLogger(t))

	_, err := r.Render(nil)
	var rErr *errors.RenderError
	if !stderrors.As(err, &rErr) {
		t.Fatalf("expected RenderError, got %v", err)
	}
}

func TestRenderRejectsMissingHeader(t *testing.T) {
	r := NewDocumentRenderer(testLogger(t))

	data := sampleSummaryData()
	data.Header.MillName = "  "
	_, err := r.Render(data)
	var rErr *errors.RenderError
	if !stderrors.As(err, &rErr) {
		t.Fatalf("expected RenderError, got %v", err)
	}
}

func TestRenderHandlesSparseNarrative(t *testing.T) {
	r := NewDocumentRenderer(testLogger(t))

	data := &domain.SummaryData{
		Header: domain.SummaryHeader{MillName: "M", Week: "w", ComparisonWeek: "c"},
		Tables: domain.SummaryTables{
			TableA: domain.SummaryTable{Headers: []string{"KPI"}},
			TableB: domain.SummaryTable{Headers: []string{"Area"}},
		},
	}
	out, err := r.Render(data)
	if err != nil {
		t.Fatalf("Render with sparse data: %v", err)
	}
	if len(out) == 0 {
		t.Fatalf("empty document")
	}
}

func TestRenderRejectsHeaderlessTable(t *testing.T) {
	r := NewDocumentRenderer(testLogger(t))

	data := sampleSummaryData()
	data.Tables.TableA.Headers = nil
	_, err := r.Render(data)
	var rErr *errors.RenderError
	if !stderrors.As(err, &rErr) {
		t.Fatalf("expected RenderError, got %v", err)
	}
}
