package handlers

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/spegrid/execreview-backend/internal/pkg/errors"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

// FromError maps a service error onto the HTTP surface by its type.
func FromError(c *gin.Context, err error) {
	var (
		vErr *errors.ValidationError
		nErr *errors.NotFoundError
		cErr *errors.ConversionError
		xErr *errors.ExtractionError
		dErr *errors.DeliveryError
	)
	switch {
	case stderrors.As(err, &vErr):
		RespondError(c, http.StatusBadRequest, "validation_failed", err)
	case stderrors.As(err, &nErr), stderrors.Is(err, errors.ErrNotFound):
		RespondError(c, http.StatusNotFound, "not_found", err)
	case stderrors.Is(err, errors.ErrUnauthorized):
		RespondError(c, http.StatusUnauthorized, "unauthorized", err)
	case stderrors.As(err, &cErr):
		RespondError(c, http.StatusBadGateway, "conversion_failed", err)
	case stderrors.As(err, &xErr):
		RespondError(c, http.StatusBadGateway, "extraction_failed", err)
	case stderrors.As(err, &dErr):
		RespondError(c, http.StatusBadGateway, "delivery_failed", err)
	default:
		RespondError(c, http.StatusInternalServerError, "internal_error", err)
	}
}
