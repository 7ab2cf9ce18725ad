package services

import (
	"context"
	"path/filepath"

	"github.com/spegrid/execreview-backend/internal/pkg/errors"
	"github.com/spegrid/execreview-backend/internal/platform/convertapi"
	"github.com/spegrid/execreview-backend/internal/platform/logger"
)

// FileConverter turns a presentation deck or a rendered document into a PDF.
// The source format is inferred from the file extension, so the same adapter
// serves both the deck-conversion and the delivery-conversion stages.
type FileConverter interface {
	ToPDF(ctx context.Context, sourcePath string, outputDir string) (string, error)
}

type fileConverter struct {
	log *logger.Logger
	api convertapi.Client
}

func NewFileConverter(baseLog *logger.Logger, api convertapi.Client) FileConverter {
	return &fileConverter{
		log: baseLog.With("service", "FileConverter"),
		api: api,
	}
}

func (c *fileConverter) ToPDF(ctx context.Context, sourcePath string, outputDir string) (string, error) {
	pdfPath, err := c.api.ToPDF(ctx, sourcePath, outputDir)
	if err != nil {
		return "", &errors.ConversionError{Source: filepath.Base(sourcePath), Err: err}
	}
	c.log.Debug("Converted file to pdf", "source", filepath.Base(sourcePath), "pdf", filepath.Base(pdfPath))
	return pdfPath, nil
}
