package handlers

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/spegrid/execreview-backend/internal/domain"
	"github.com/spegrid/execreview-backend/internal/pkg/errors"
	"github.com/spegrid/execreview-backend/internal/platform/logger"
	"github.com/spegrid/execreview-backend/internal/progress"
	"github.com/spegrid/execreview-backend/internal/services"
)

type ReportHandler struct {
	log               *logger.Logger
	summaryService    services.SummaryService
	regenerateService services.RegenerateService
	store             services.ReportStore
	registry          progress.Registry
	defaultRecipients string
}

func NewReportHandler(
	baseLog *logger.Logger,
	summaryService services.SummaryService,
	regenerateService services.RegenerateService,
	store services.ReportStore,
	registry progress.Registry,
	defaultRecipients string,
) *ReportHandler {
	return &ReportHandler{
		log:               baseLog.With("handler", "ReportHandler"),
		summaryService:    summaryService,
		regenerateService: regenerateService,
		store:             store,
		registry:          registry,
		defaultRecipients: defaultRecipients,
	}
}

// Generate accepts a multipart submission with both weekly decks and runs the
// full pipeline synchronously. Clients poll Progress under the same jobId
// while this request is in flight.
func (rh *ReportHandler) Generate(c *gin.Context) {
	jobID := c.PostForm("jobId")
	recipients := c.PostForm("recipients")
	if recipients == "" {
		recipients = rh.defaultRecipients
	}

	currDeck, err := rh.saveIncoming(c, "currentWeek")
	if err != nil {
		RespondError(c, http.StatusBadRequest, "validation_failed", err)
		return
	}
	defer os.Remove(currDeck.Path)
	prevDeck, err := rh.saveIncoming(c, "previousWeek")
	if err != nil {
		RespondError(c, http.StatusBadRequest, "validation_failed", err)
		return
	}
	defer os.Remove(prevDeck.Path)

	var createdBy string
	if user, ok := c.Get("authUser"); ok {
		if au, ok := user.(*services.AuthUser); ok {
			createdBy = au.Email
		}
	}

	result, err := rh.summaryService.Generate(c.Request.Context(), services.GenerateRequest{
		JobID:        jobID,
		CurrentWeek:  currDeck,
		PreviousWeek: prevDeck,
		Recipients:   recipients,
		BusinessID:   c.PostForm("businessId"),
		CreatedBy:    createdBy,
	})
	if err != nil {
		FromError(c, err)
		return
	}

	resp := gin.H{
		"fileId":    result.FileID,
		"pdfFile":   result.Meta.PdfFile,
		"docxFile":  result.Meta.DocxFile,
		"emailSent": result.EmailSent,
	}
	if result.DeliveryNote != "" {
		resp["deliveryNote"] = result.DeliveryNote
	}
	RespondOK(c, resp)
}

func (rh *ReportHandler) saveIncoming(c *gin.Context, field string) (services.UploadedDeck, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		return services.UploadedDeck{}, &errors.ValidationError{Field: field, Reason: "file required"}
	}
	dst := filepath.Join(os.TempDir(), uuid.NewString()+"-"+filepath.Base(fh.Filename))
	if err := c.SaveUploadedFile(fh, dst); err != nil {
		return services.UploadedDeck{}, &errors.ValidationError{Field: field, Reason: "could not read uploaded file"}
	}
	return services.UploadedDeck{Path: dst, OriginalName: fh.Filename}, nil
}

// Progress reports the current pipeline state for a job id. Unknown ids get a
// 404 so pollers can tell "never submitted" apart from "swept after an hour".
func (rh *ReportHandler) Progress(c *gin.Context) {
	jobID := c.Param("jobId")
	st, ok := rh.registry.Get(jobID)
	if !ok {
		RespondError(c, http.StatusNotFound, "job_not_found", &errors.NotFoundError{Kind: "job", ID: jobID})
		return
	}
	RespondOK(c, gin.H{"percent": st.Percent, "status": st.Status})
}

func (rh *ReportHandler) List(c *gin.Context) {
	metas, err := rh.store.ListReports()
	if err != nil {
		FromError(c, err)
		return
	}
	RespondOK(c, metas)
}

func (rh *ReportHandler) Get(c *gin.Context) {
	report, err := rh.store.GetReport(c.Param("fileId"))
	if err != nil {
		FromError(c, err)
		return
	}
	RespondOK(c, report)
}

// Update replaces the structured data of a saved report and rebuilds its
// artifacts.
func (rh *ReportHandler) Update(c *gin.Context) {
	var data domain.SummaryData
	if err := c.ShouldBindJSON(&data); err != nil {
		RespondError(c, http.StatusBadRequest, "validation_failed", &errors.ValidationError{Field: "body", Reason: "invalid summary payload"})
		return
	}
	report, err := rh.regenerateService.Regenerate(c.Request.Context(), c.Param("fileId"), &data)
	if err != nil {
		FromError(c, err)
		return
	}
	RespondOK(c, report)
}

func (rh *ReportHandler) Download(c *gin.Context) {
	filename := c.Param("filename")
	path, err := rh.store.ArtifactPath(filename)
	if err != nil {
		FromError(c, err)
		return
	}
	c.FileAttachment(path, filepath.Base(path))
}
