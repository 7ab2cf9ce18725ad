package services

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/spegrid/execreview-backend/internal/domain"
	"github.com/spegrid/execreview-backend/internal/pkg/errors"
	"github.com/spegrid/execreview-backend/internal/platform/logger"
	"github.com/spegrid/execreview-backend/internal/progress"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return log
}

func sampleSummaryData() *domain.SummaryData {
	return &domain.SummaryData{
		Header: domain.SummaryHeader{
			MillName:       "Khanewal Mill",
			Week:           "10 Mar 2025 - 16 Mar 2025",
			ComparisonWeek: "03 Mar 2025 - 09 Mar 2025",
			SeasonDays:     "132",
		},
		Part1: domain.SummaryNarrative{
			ExecutiveSummary: []domain.SummaryPoint{
				{Title: "Crush rate", Text: "Crush rate held above plan all week."},
			},
			OverallPerformance: "Stable week with recovery slightly up.",
			Risks:              []string{"Boiler feed pump vibration trending up."},
		},
		Tables: domain.SummaryTables{
			TableA: domain.SummaryTable{
				Headers: []string{"KPI", "This Week", "Last Week"},
				Rows:    [][]string{{"Crush (t)", "98,400", "96,100"}},
			},
			TableB: domain.SummaryTable{
				Headers: []string{"Area", "Status"},
				Rows:    [][]string{{"Distillery", "On plan"}},
			},
		},
	}
}

// recordingRegistry captures every Set in order so tests can assert the
// progress contract.
type recordingRegistry struct {
	mu      sync.Mutex
	entries map[string]progress.State
	history []progress.State
}

func newRecordingRegistry() *recordingRegistry {
	return &recordingRegistry{entries: make(map[string]progress.State)}
}

func (r *recordingRegistry) Set(jobID string, percent int, status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := progress.State{Percent: percent, Status: status}
	r.entries[jobID] = st
	r.history = append(r.history, st)
}

func (r *recordingRegistry) Get(jobID string) (progress.State, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.entries[jobID]
	return st, ok
}

func (r *recordingRegistry) Clear(jobID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, jobID)
}

type fakeConverter struct {
	mu      sync.Mutex
	calls   []string
	failOn  string
	failErr error
}

func (f *fakeConverter) ToPDF(ctx context.Context, sourcePath string, outputDir string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, sourcePath)
	f.mu.Unlock()
	if f.failOn != "" && strings.Contains(sourcePath, f.failOn) {
		return "", f.failErr
	}
	base := strings.TrimSuffix(filepath.Base(sourcePath), filepath.Ext(sourcePath))
	out := filepath.Join(outputDir, base+".pdf")
	if err := os.WriteFile(out, []byte("%PDF-1.4 fake"), 0o644); err != nil {
		return "", err
	}
	return out, nil
}

type fakeExtractor struct {
	data *domain.SummaryData
	err  error
}

func (f *fakeExtractor) Extract(ctx context.Context, referencePDF, previousPDF, currentPDF string) (*domain.SummaryData, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.data, nil
}

type fakeRenderer struct {
	err error
}

func (f *fakeRenderer) Render(data *domain.SummaryData) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []byte("PK\x03\x04 fake docx"), nil
}

type fakeMailer struct {
	mu         sync.Mutex
	recipients []string
	err        error
}

func (f *fakeMailer) Send(ctx context.Context, pdfPath string, recipients []string) error {
	f.mu.Lock()
	f.recipients = recipients
	f.mu.Unlock()
	return f.err
}

type pipelineFixture struct {
	service   SummaryService
	registry  *recordingRegistry
	store     ReportStore
	converter *fakeConverter
	extractor *fakeExtractor
	mailer    *fakeMailer
}

func newPipelineFixture(t *testing.T) *pipelineFixture {
	t.Helper()
	log := testLogger(t)
	store, err := NewReportStore(log, t.TempDir())
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	reg := newRecordingRegistry()
	conv := &fakeConverter{}
	ext := &fakeExtractor{data: sampleSummaryData()}
	mail := &fakeMailer{}
	svc := NewSummaryService(log, reg, store, conv, ext, &fakeRenderer{}, mail, "ref.pdf")
	return &pipelineFixture{service: svc, registry: reg, store: store, converter: conv, extractor: ext, mailer: mail}
}

func writeTempDeck(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("pptx bytes"), 0o644); err != nil {
		t.Fatalf("write deck: %v", err)
	}
	return path
}

func deckRequest(t *testing.T, jobID string) GenerateRequest {
	t.Helper()
	return GenerateRequest{
		JobID:        jobID,
		CurrentWeek:  UploadedDeck{Path: writeTempDeck(t, "current.pptx"), OriginalName: "current.pptx"},
		PreviousWeek: UploadedDeck{Path: writeTempDeck(t, "previous.pptx"), OriginalName: "previous.pptx"},
		Recipients:   "gm@example.com, board@example.com",
	}
}

func TestGeneratePipelineSuccess(t *testing.T) {
	fx := newPipelineFixture(t)

	result, err := fx.service.Generate(context.Background(), deckRequest(t, "job-1"))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !result.EmailSent {
		t.Fatalf("expected email sent")
	}
	if len(fx.mailer.recipients) != 2 {
		t.Fatalf("expected 2 recipients, got %v", fx.mailer.recipients)
	}

	st, ok := fx.registry.Get("job-1")
	if !ok || st.Percent != 100 || st.Status != "complete" {
		t.Fatalf("unexpected terminal state: %+v", st)
	}
	last := -1
	for _, h := range fx.registry.history {
		if h.Percent < last {
			t.Fatalf("progress went backwards: %d -> %d", last, h.Percent)
		}
		last = h.Percent
	}

	report, err := fx.store.GetReport(result.FileID)
	if err != nil {
		t.Fatalf("GetReport: %v", err)
	}
	if report.Data.Header.MillName != "Khanewal Mill" {
		t.Fatalf("unexpected mill name: %q", report.Data.Header.MillName)
	}
	if _, err := fx.store.ArtifactPath(report.Meta.PdfFile); err != nil {
		t.Fatalf("pdf artifact missing: %v", err)
	}
	if _, err := fx.store.ArtifactPath(report.Meta.DocxFile); err != nil {
		t.Fatalf("docx artifact missing: %v", err)
	}
}

func TestGenerateRejectsNonPPTX(t *testing.T) {
	fx := newPipelineFixture(t)

	req := deckRequest(t, "job-bad")
	req.CurrentWeek.OriginalName = "current.ppt"

	_, err := fx.service.Generate(context.Background(), req)
	var vErr *errors.ValidationError
	if !stderrors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if _, ok := fx.registry.Get("job-bad"); ok {
		t.Fatalf("rejected submission must leave no progress entry")
	}
}

func TestGenerateRejectsBadRecipient(t *testing.T) {
	fx := newPipelineFixture(t)

	req := deckRequest(t, "job-bad")
	req.Recipients = "not-an-address"

	_, err := fx.service.Generate(context.Background(), req)
	var vErr *errors.ValidationError
	if !stderrors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(fx.converter.calls) != 0 {
		t.Fatalf("no stage may run for a rejected submission")
	}
}

func TestGenerateExtractionFailureParksProgress(t *testing.T) {
	fx := newPipelineFixture(t)
	fx.extractor.err = &errors.ExtractionError{Reason: "provider refused"}

	_, err := fx.service.Generate(context.Background(), deckRequest(t, "job-x"))
	var xErr *errors.ExtractionError
	if !stderrors.As(err, &xErr) {
		t.Fatalf("expected ExtractionError, got %v", err)
	}

	st, ok := fx.registry.Get("job-x")
	if !ok {
		t.Fatalf("expected terminal failure state")
	}
	if st.Percent != 40 {
		t.Fatalf("failure must park at the last completed floor, got %d", st.Percent)
	}
	if !strings.Contains(st.Status, "failed during summary extraction") {
		t.Fatalf("unexpected status: %q", st.Status)
	}

	metas, err := fx.store.ListReports()
	if err != nil {
		t.Fatalf("ListReports: %v", err)
	}
	if len(metas) != 0 {
		t.Fatalf("failed run must not commit a report")
	}
}

func TestGenerateDeckConversionFailureParksProgress(t *testing.T) {
	fx := newPipelineFixture(t)
	fx.converter.failOn = "current"
	fx.converter.failErr = &errors.ConversionError{Source: "current.pptx", Err: stderrors.New("boom")}

	_, err := fx.service.Generate(context.Background(), deckRequest(t, "job-c"))
	var cErr *errors.ConversionError
	if !stderrors.As(err, &cErr) {
		t.Fatalf("expected ConversionError, got %v", err)
	}
	st, _ := fx.registry.Get("job-c")
	if st.Percent != 15 {
		t.Fatalf("expected park at 15, got %d", st.Percent)
	}
}

func TestGenerateDeliveryFailureIsDegradedSuccess(t *testing.T) {
	fx := newPipelineFixture(t)
	fx.mailer.err = &errors.DeliveryError{Err: stderrors.New("smtp relay down")}

	result, err := fx.service.Generate(context.Background(), deckRequest(t, "job-d"))
	if err != nil {
		t.Fatalf("delivery failure must not fail the run: %v", err)
	}
	if result.EmailSent {
		t.Fatalf("expected EmailSent=false")
	}
	if result.DeliveryNote == "" {
		t.Fatalf("expected delivery diagnostic")
	}

	st, _ := fx.registry.Get("job-d")
	if st.Percent != 100 || st.Status != "complete (email delivery failed)" {
		t.Fatalf("unexpected terminal state: %+v", st)
	}

	if _, err := fx.store.GetReport(result.FileID); err != nil {
		t.Fatalf("report must exist despite delivery failure: %v", err)
	}
}
