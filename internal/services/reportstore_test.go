package services

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spegrid/execreview-backend/internal/domain"
	"github.com/spegrid/execreview-backend/internal/pkg/errors"
)

func testStore(t *testing.T) ReportStore {
	t.Helper()
	store, err := NewReportStore(testLogger(t), t.TempDir())
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	return store
}

func commitReport(t *testing.T, store ReportStore, fileID string, data *domain.SummaryData) domain.ReportMeta {
	t.Helper()
	if _, err := store.WriteStructured(fileID, data); err != nil {
		t.Fatalf("WriteStructured: %v", err)
	}
	if _, err := store.WriteDocument(fileID, []byte("docx bytes")); err != nil {
		t.Fatalf("WriteDocument: %v", err)
	}
	pdfTmp := filepath.Join(store.GeneratedDir(), "produced.pdf")
	if err := os.WriteFile(pdfTmp, []byte("%PDF-1.4"), 0o644); err != nil {
		t.Fatalf("write pdf: %v", err)
	}
	if _, err := store.PromotePDF(fileID, pdfTmp); err != nil {
		t.Fatalf("PromotePDF: %v", err)
	}
	meta := domain.ReportMeta{
		FileID:    fileID,
		MillName:  data.Header.MillName,
		Week:      data.Header.Week,
		CreatedAt: time.Now().UTC(),
		DocxFile:  fileID + "-executive-summary.docx",
		PdfFile:   fileID + "-executive-summary.pdf",
	}
	if err := store.CommitIndex(meta); err != nil {
		t.Fatalf("CommitIndex: %v", err)
	}
	return meta
}

func TestReportStoreRoundTrip(t *testing.T) {
	store := testStore(t)
	data := sampleSummaryData()
	commitReport(t, store, "r1", data)

	report, err := store.GetReport("r1")
	if err != nil {
		t.Fatalf("GetReport: %v", err)
	}
	if report.Data.Header.Week != data.Header.Week {
		t.Fatalf("week mismatch: %q", report.Data.Header.Week)
	}
	if len(report.Data.Tables.TableA.Rows) != 1 || report.Data.Tables.TableA.Rows[0][1] != "98,400" {
		t.Fatalf("table data not preserved: %+v", report.Data.Tables.TableA)
	}
}

func TestReportStoreGetUnknownID(t *testing.T) {
	store := testStore(t)
	_, err := store.GetReport("nope")
	var nErr *errors.NotFoundError
	if !stderrors.As(err, &nErr) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if !stderrors.Is(err, errors.ErrNotFound) {
		t.Fatalf("expected ErrNotFound in chain")
	}
}

func TestReportStoreIndexReplaceOrAppend(t *testing.T) {
	store := testStore(t)
	data := sampleSummaryData()
	commitReport(t, store, "a", data)
	commitReport(t, store, "b", data)

	updated := domain.ReportMeta{FileID: "a", MillName: "Renamed Mill", DocxFile: "a-executive-summary.docx", PdfFile: "a-executive-summary.pdf"}
	if err := store.CommitIndex(updated); err != nil {
		t.Fatalf("CommitIndex: %v", err)
	}

	metas, err := store.ListReports()
	if err != nil {
		t.Fatalf("ListReports: %v", err)
	}
	if len(metas) != 2 {
		t.Fatalf("recommit must replace, not append: %d entries", len(metas))
	}
	for _, m := range metas {
		if m.FileID == "a" && m.MillName != "Renamed Mill" {
			t.Fatalf("entry not replaced: %+v", m)
		}
	}
}

func TestReportStorePersistUploadNaming(t *testing.T) {
	store := testStore(t)
	src := writeTempDeck(t, "week deck.pptx")

	dst, err := store.PersistUpload(src, "week deck.pptx")
	if err != nil {
		t.Fatalf("PersistUpload: %v", err)
	}
	name := filepath.Base(dst)
	if !strings.HasSuffix(name, "-week_deck.pptx") {
		t.Fatalf("unexpected persisted name: %q", name)
	}
	if _, err := os.Stat(dst); err != nil {
		t.Fatalf("persisted file missing: %v", err)
	}
}

func TestReportStoreArtifactPathRejectsTraversal(t *testing.T) {
	store := testStore(t)

	if _, err := store.ArtifactPath("../metadata.json"); err == nil {
		t.Fatalf("expected traversal rejection")
	}
	if _, err := store.ArtifactPath("missing.pdf"); err == nil {
		t.Fatalf("expected not found for unknown artifact")
	} else {
		var nErr *errors.NotFoundError
		if !stderrors.As(err, &nErr) {
			t.Fatalf("expected NotFoundError, got %v", err)
		}
	}
}
