package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spegrid/execreview-backend/internal/domain"
	"github.com/spegrid/execreview-backend/internal/pkg/errors"
	"github.com/spegrid/execreview-backend/internal/platform/logger"
	"github.com/spegrid/execreview-backend/internal/progress"
)

// Progress floors per pipeline phase. A poller always observes these values in
// non-decreasing order for one job; a failed run parks at the floor of the
// last completed phase.
const (
	pctValidated      = 5
	pctUploadsSaved   = 15
	pctDecksConverted = 40
	pctExtracted      = 75
	pctRendered       = 90
	pctDeliveryReady  = 95
	pctComplete       = 100
)

// UploadedDeck is one incoming slide deck: the stable path provided by the
// upload layer plus the client's original filename (used for validation and
// for naming the persisted copy).
type UploadedDeck struct {
	Path         string
	OriginalName string
}

type GenerateRequest struct {
	// JobID is the caller-chosen progress key. Reusing an id overwrites the
	// previous job's progress; that is a documented caller contract.
	JobID        string
	CurrentWeek  UploadedDeck
	PreviousWeek UploadedDeck
	// Recipients is a single address or a comma-separated list.
	Recipients string
	BusinessID string
	CreatedBy  string
}

type GenerateResult struct {
	FileID    string
	Meta      domain.ReportMeta
	EmailSent bool
	// DeliveryNote carries the delivery diagnostic when the report was saved
	// but the email could not be sent (degraded success).
	DeliveryNote string
}

// SummaryService runs the full generation pipeline for one submission:
// validate, persist uploads, convert decks, extract, render, convert, mail.
// The call is synchronous; progress is observable through the registry.
type SummaryService interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error)
}

type summaryService struct {
	log          *logger.Logger
	registry     progress.Registry
	store        ReportStore
	converter    FileConverter
	extractor    SummaryExtractor
	renderer     DocumentRenderer
	mailer       Mailer
	referencePDF string
}

func NewSummaryService(
	baseLog *logger.Logger,
	registry progress.Registry,
	store ReportStore,
	converter FileConverter,
	extractor SummaryExtractor,
	renderer DocumentRenderer,
	mailer Mailer,
	referencePDF string,
) SummaryService {
	return &summaryService{
		log:          baseLog.With("service", "SummaryService"),
		registry:     registry,
		store:        store,
		converter:    converter,
		extractor:    extractor,
		renderer:     renderer,
		mailer:       mailer,
		referencePDF: referencePDF,
	}
}

var addressRe = regexp.MustCompile(`^[^@\s,]+@[^@\s,]+\.[^@\s,]+$`)

func (s *summaryService) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	log := s.log.With("job_id", req.JobID)

	// Phase: validate inputs. Rejection happens before any external call and
	// before the first registry write, so an invalid submission leaves no
	// trace under its job id.
	recipients, err := validateRequest(req)
	if err != nil {
		return nil, err
	}
	s.registry.Set(req.JobID, pctValidated, "inputs validated")

	// Phase: persist uploads.
	currPath, err := s.store.PersistUpload(req.CurrentWeek.Path, req.CurrentWeek.OriginalName)
	if err != nil {
		return nil, s.fail(log, req.JobID, pctValidated, "upload persistence", err)
	}
	prevPath, err := s.store.PersistUpload(req.PreviousWeek.Path, req.PreviousWeek.OriginalName)
	if err != nil {
		return nil, s.fail(log, req.JobID, pctValidated, "upload persistence", err)
	}
	s.registry.Set(req.JobID, pctUploadsSaved, "uploads persisted")

	// Phase: convert both decks to PDF.
	currPDF, err := s.converter.ToPDF(ctx, currPath, s.store.UploadsDir())
	if err != nil {
		return nil, s.fail(log, req.JobID, pctUploadsSaved, "pdf conversion", err)
	}
	prevPDF, err := s.converter.ToPDF(ctx, prevPath, s.store.UploadsDir())
	if err != nil {
		return nil, s.fail(log, req.JobID, pctUploadsSaved, "pdf conversion", err)
	}
	s.registry.Set(req.JobID, pctDecksConverted, "slide decks converted to pdf")

	// Phase: extraction. Paid and non-idempotent; invoked exactly once per
	// job. A failure here means a fresh submission, never a silent retry.
	data, err := s.extractor.Extract(ctx, s.referencePDF, prevPDF, currPDF)
	if err != nil {
		return nil, s.fail(log, req.JobID, pctDecksConverted, "summary extraction", err)
	}
	s.registry.Set(req.JobID, pctExtracted, "structured summary extracted")

	// Phase: persist structured result and render the primary document.
	fileID := uuid.NewString()
	if _, err := s.store.WriteStructured(fileID, data); err != nil {
		return nil, s.fail(log, req.JobID, pctExtracted, "report save", err)
	}
	docxBytes, err := s.renderer.Render(data)
	if err != nil {
		return nil, s.fail(log, req.JobID, pctExtracted, "report rendering", err)
	}
	docxPath, err := s.store.WriteDocument(fileID, docxBytes)
	if err != nil {
		return nil, s.fail(log, req.JobID, pctExtracted, "report save", err)
	}
	s.registry.Set(req.JobID, pctRendered, "executive summary rendered")

	// Phase: convert the rendered document to the delivery format.
	producedPDF, err := s.converter.ToPDF(ctx, docxPath, s.store.GeneratedDir())
	if err != nil {
		return nil, s.fail(log, req.JobID, pctRendered, "delivery conversion", err)
	}
	pdfPath, err := s.store.PromotePDF(fileID, producedPDF)
	if err != nil {
		return nil, s.fail(log, req.JobID, pctRendered, "report save", err)
	}

	meta := domain.ReportMeta{
		FileID:         fileID,
		MillName:       data.Header.MillName,
		Week:           data.Header.Week,
		ComparisonWeek: data.Header.ComparisonWeek,
		BusinessID:     req.BusinessID,
		CreatedBy:      req.CreatedBy,
		CreatedAt:      time.Now().UTC(),
		DocxFile:       fileID + artifactSuffix + ".docx",
		PdfFile:        fileID + artifactSuffix + ".pdf",
		EmailedTo:      recipients,
	}
	// Index commit is the last step of the save; from here on the report
	// exists regardless of what delivery does.
	if err := s.store.CommitIndex(meta); err != nil {
		return nil, s.fail(log, req.JobID, pctRendered, "report save", err)
	}
	s.registry.Set(req.JobID, pctDeliveryReady, "report saved, dispatching email")

	// Phase: dispatch. Failure after the report is saved is degraded success.
	result := &GenerateResult{FileID: fileID, Meta: meta, EmailSent: true}
	if err := s.mailer.Send(ctx, pdfPath, recipients); err != nil {
		log.Warn("Report saved but email dispatch failed", "file_id", fileID, "error", err)
		result.EmailSent = false
		result.DeliveryNote = err.Error()
		s.registry.Set(req.JobID, pctComplete, "complete (email delivery failed)")
		return result, nil
	}

	s.registry.Set(req.JobID, pctComplete, "complete")
	log.Info("Pipeline complete", "file_id", fileID)
	return result, nil
}

// fail records the terminal status for a failed phase. Percent stays at the
// floor of the last completed phase so pollers can tell exactly where the run
// stopped.
func (s *summaryService) fail(log *logger.Logger, jobID string, lastFloor int, phase string, err error) error {
	log.Error("Pipeline stage failed", "phase", phase, "error", err)
	s.registry.Set(jobID, lastFloor, fmt.Sprintf("failed during %s: %v", phase, err))
	return err
}

func validateRequest(req GenerateRequest) ([]string, error) {
	if strings.TrimSpace(req.JobID) == "" {
		return nil, &errors.ValidationError{Field: "jobId", Reason: "required"}
	}
	for field, deck := range map[string]UploadedDeck{
		"currentWeek":  req.CurrentWeek,
		"previousWeek": req.PreviousWeek,
	} {
		if strings.TrimSpace(deck.Path) == "" {
			return nil, &errors.ValidationError{Field: field, Reason: "file required"}
		}
		if !strings.HasSuffix(strings.ToLower(deck.OriginalName), ".pptx") {
			return nil, &errors.ValidationError{Field: field, Reason: "only .pptx files are accepted"}
		}
	}

	raw := strings.Split(req.Recipients, ",")
	recipients := make([]string, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		if !addressRe.MatchString(r) {
			return nil, &errors.ValidationError{Field: "recipients", Reason: fmt.Sprintf("%q is not a valid address", r)}
		}
		recipients = append(recipients, r)
	}
	if len(recipients) == 0 {
		return nil, &errors.ValidationError{Field: "recipients", Reason: "at least one recipient required"}
	}
	return recipients, nil
}
