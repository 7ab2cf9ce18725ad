package services

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spegrid/execreview-backend/internal/domain"
	"github.com/spegrid/execreview-backend/internal/pkg/errors"
	"github.com/spegrid/execreview-backend/internal/platform/logger"
)

// ReportStore persists uploads, structured results and derived artifacts under
// a storage root, and maintains the metadata index used for listing.
//
// Layout:
//
//	<root>/uploads/<unixMillis>-<originalName>
//	<root>/generated/<fileId>-executive-summary.{json,docx,pdf}
//	<root>/metadata.json
//
// The index write is always the last step of a save, so a reader never
// observes an index entry whose artifacts are incomplete.
type ReportStore interface {
	UploadsDir() string
	GeneratedDir() string

	PersistUpload(srcPath string, originalName string) (string, error)
	WriteStructured(fileID string, data *domain.SummaryData) (string, error)
	WriteDocument(fileID string, docxBytes []byte) (string, error)
	// PromotePDF renames a converter-produced file to the canonical artifact
	// name for fileID.
	PromotePDF(fileID string, producedPath string) (string, error)
	CommitIndex(meta domain.ReportMeta) error

	GetReport(fileID string) (*domain.Report, error)
	ListReports() ([]domain.ReportMeta, error)
	ArtifactPath(filename string) (string, error)

	// Replace atomically swaps the structured data and artifacts of an existing
	// report. convert turns the freshly written DOCX into a PDF inside the
	// scratch dir. On any failure the previous data/artifact pair stays
	// current.
	Replace(fileID string, data *domain.SummaryData, docxBytes []byte, convert func(docxPath string, outDir string) (string, error)) error
}

const artifactSuffix = "-executive-summary"

type reportStore struct {
	log          *logger.Logger
	root         string
	uploadsDir   string
	generatedDir string
	indexPath    string

	indexMu sync.Mutex

	fileMuMu sync.Mutex
	fileMu   map[string]*sync.Mutex
}

func NewReportStore(baseLog *logger.Logger, root string) (ReportStore, error) {
	s := &reportStore{
		log:          baseLog.With("service", "ReportStore"),
		root:         root,
		uploadsDir:   filepath.Join(root, "uploads"),
		generatedDir: filepath.Join(root, "generated"),
		indexPath:    filepath.Join(root, "metadata.json"),
		fileMu:       make(map[string]*sync.Mutex),
	}
	for _, dir := range []string{s.uploadsDir, s.generatedDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, &errors.StoreError{Op: "init storage root", Err: err}
		}
	}
	return s, nil
}

func (s *reportStore) UploadsDir() string   { return s.uploadsDir }
func (s *reportStore) GeneratedDir() string { return s.generatedDir }

func (s *reportStore) PersistUpload(srcPath string, originalName string) (string, error) {
	name := fmt.Sprintf("%d-%s", time.Now().UnixMilli(), sanitizeFilename(originalName))
	dst := filepath.Join(s.uploadsDir, name)
	if err := copyFile(srcPath, dst); err != nil {
		return "", &errors.StoreError{Op: "persist upload", Err: err}
	}
	return dst, nil
}

func (s *reportStore) WriteStructured(fileID string, data *domain.SummaryData) (string, error) {
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", &errors.StoreError{Op: "encode structured data", Err: err}
	}
	path := s.artifact(fileID, ".json")
	if err := writeFileAtomic(path, raw); err != nil {
		return "", &errors.StoreError{Op: "write structured data", Err: err}
	}
	return path, nil
}

func (s *reportStore) WriteDocument(fileID string, docxBytes []byte) (string, error) {
	path := s.artifact(fileID, ".docx")
	if err := writeFileAtomic(path, docxBytes); err != nil {
		return "", &errors.StoreError{Op: "write document", Err: err}
	}
	return path, nil
}

func (s *reportStore) PromotePDF(fileID string, producedPath string) (string, error) {
	path := s.artifact(fileID, ".pdf")
	if producedPath == path {
		return path, nil
	}
	if err := os.Rename(producedPath, path); err != nil {
		return "", &errors.StoreError{Op: "promote pdf", Err: err}
	}
	return path, nil
}

func (s *reportStore) CommitIndex(meta domain.ReportMeta) error {
	s.indexMu.Lock()
	defer s.indexMu.Unlock()
	return s.commitIndexLocked(meta)
}

func (s *reportStore) commitIndexLocked(meta domain.ReportMeta) error {
	entries, err := s.readIndex()
	if err != nil {
		return err
	}
	replaced := false
	for i := range entries {
		if entries[i].FileID == meta.FileID {
			entries[i] = meta
			replaced = true
			break
		}
	}
	if !replaced {
		entries = append(entries, meta)
	}
	raw, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return &errors.StoreError{Op: "encode index", Err: err}
	}
	if err := writeFileAtomic(s.indexPath, raw); err != nil {
		return &errors.StoreError{Op: "write index", Err: err}
	}
	return nil
}

func (s *reportStore) GetReport(fileID string) (*domain.Report, error) {
	meta, err := s.findMeta(fileID)
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(s.artifact(fileID, ".json"))
	if err != nil {
		return nil, &errors.StoreError{Op: "read structured data", Err: err}
	}
	var data domain.SummaryData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, &errors.StoreError{Op: "decode structured data", Err: err}
	}
	return &domain.Report{Meta: *meta, Data: &data}, nil
}

func (s *reportStore) ListReports() ([]domain.ReportMeta, error) {
	s.indexMu.Lock()
	defer s.indexMu.Unlock()
	return s.readIndex()
}

func (s *reportStore) ArtifactPath(filename string) (string, error) {
	name := filepath.Base(strings.TrimSpace(filename))
	if name == "" || name == "." || strings.Contains(name, "..") {
		return "", &errors.ValidationError{Field: "filename", Reason: "invalid artifact name"}
	}
	path := filepath.Join(s.generatedDir, name)
	if _, err := os.Stat(path); err != nil {
		return "", &errors.NotFoundError{Kind: "artifact", ID: name}
	}
	return path, nil
}

func (s *reportStore) Replace(fileID string, data *domain.SummaryData, docxBytes []byte, convert func(docxPath string, outDir string) (string, error)) error {
	mu := s.lockFor(fileID)
	mu.Lock()
	defer mu.Unlock()

	meta, err := s.findMeta(fileID)
	if err != nil {
		return err
	}

	scratch, err := os.MkdirTemp(s.generatedDir, "regen-")
	if err != nil {
		return &errors.StoreError{Op: "create scratch dir", Err: err}
	}
	defer os.RemoveAll(scratch)

	base := fileID + artifactSuffix
	docxTmp := filepath.Join(scratch, base+".docx")
	jsonTmp := filepath.Join(scratch, base+".json")

	if err := os.WriteFile(docxTmp, docxBytes, 0o644); err != nil {
		return &errors.StoreError{Op: "write replacement document", Err: err}
	}
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return &errors.StoreError{Op: "encode replacement data", Err: err}
	}
	if err := os.WriteFile(jsonTmp, raw, 0o644); err != nil {
		return &errors.StoreError{Op: "write replacement data", Err: err}
	}

	pdfTmp, err := convert(docxTmp, scratch)
	if err != nil {
		// Previous artifacts untouched; scratch is discarded.
		return err
	}

	// All replacements ready; swap into place.
	for _, mv := range []struct{ from, to string }{
		{jsonTmp, s.artifact(fileID, ".json")},
		{docxTmp, s.artifact(fileID, ".docx")},
		{pdfTmp, s.artifact(fileID, ".pdf")},
	} {
		if err := os.Rename(mv.from, mv.to); err != nil {
			return &errors.StoreError{Op: "swap replacement artifacts", Err: err}
		}
	}

	updated := *meta
	updated.MillName = data.Header.MillName
	updated.Week = data.Header.Week
	updated.ComparisonWeek = data.Header.ComparisonWeek

	s.indexMu.Lock()
	defer s.indexMu.Unlock()
	return s.commitIndexLocked(updated)
}

func (s *reportStore) findMeta(fileID string) (*domain.ReportMeta, error) {
	s.indexMu.Lock()
	defer s.indexMu.Unlock()
	entries, err := s.readIndex()
	if err != nil {
		return nil, err
	}
	for i := range entries {
		if entries[i].FileID == fileID {
			return &entries[i], nil
		}
	}
	return nil, &errors.NotFoundError{Kind: "report", ID: fileID}
}

func (s *reportStore) readIndex() ([]domain.ReportMeta, error) {
	raw, err := os.ReadFile(s.indexPath)
	if err != nil {
		if os.IsNotExist(err) {
			return []domain.ReportMeta{}, nil
		}
		return nil, &errors.StoreError{Op: "read index", Err: err}
	}
	var entries []domain.ReportMeta
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, &errors.StoreError{Op: "decode index", Err: err}
	}
	return entries, nil
}

func (s *reportStore) artifact(fileID string, ext string) string {
	return filepath.Join(s.generatedDir, fileID+artifactSuffix+ext)
}

func (s *reportStore) lockFor(fileID string) *sync.Mutex {
	s.fileMuMu.Lock()
	defer s.fileMuMu.Unlock()
	mu, ok := s.fileMu[fileID]
	if !ok {
		mu = &sync.Mutex{}
		s.fileMu[fileID] = mu
	}
	return mu
}

func sanitizeFilename(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	name = strings.ReplaceAll(name, " ", "_")
	if name == "" || name == "." {
		name = "upload"
	}
	return name
}

func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
