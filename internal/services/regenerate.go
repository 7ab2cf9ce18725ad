package services

import (
	"context"

	"github.com/spegrid/execreview-backend/internal/domain"
	"github.com/spegrid/execreview-backend/internal/platform/logger"
)

// RegenerateService replaces a saved report's structured data and rebuilds
// its document artifacts. The swap is atomic: readers see either the old
// report in full or the new one in full, never a mix.
type RegenerateService interface {
	Regenerate(ctx context.Context, fileID string, data *domain.SummaryData) (*domain.Report, error)
}

type regenerateService struct {
	log       *logger.Logger
	store     ReportStore
	converter FileConverter
	renderer  DocumentRenderer
}

func NewRegenerateService(baseLog *logger.Logger, store ReportStore, converter FileConverter, renderer DocumentRenderer) RegenerateService {
	return &regenerateService{
		log:       baseLog.With("service", "RegenerateService"),
		store:     store,
		converter: converter,
		renderer:  renderer,
	}
}

func (s *regenerateService) Regenerate(ctx context.Context, fileID string, data *domain.SummaryData) (*domain.Report, error) {
	// Render before touching the store: a render failure must leave the
	// previous artifacts untouched.
	docxBytes, err := s.renderer.Render(data)
	if err != nil {
		return nil, err
	}

	err = s.store.Replace(fileID, data, docxBytes, func(docxPath, outDir string) (string, error) {
		return s.converter.ToPDF(ctx, docxPath, outDir)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("Report regenerated", "file_id", fileID)
	return s.store.GetReport(fileID)
}
