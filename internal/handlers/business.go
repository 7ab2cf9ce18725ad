package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/spegrid/execreview-backend/internal/data/repos"
	"github.com/spegrid/execreview-backend/internal/domain"
)

type BusinessHandler struct {
	businessRepo repos.BusinessRepo
}

func NewBusinessHandler(businessRepo repos.BusinessRepo) *BusinessHandler {
	return &BusinessHandler{businessRepo: businessRepo}
}

func (bh *BusinessHandler) Create(c *gin.Context) {
	var req struct {
		Name string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "business name is required"})
		return
	}
	business := &domain.Business{Name: req.Name}
	if err := bh.businessRepo.Create(c.Request.Context(), business); err != nil {
		FromError(c, err)
		return
	}
	c.JSON(http.StatusCreated, business)
}

func (bh *BusinessHandler) List(c *gin.Context) {
	businesses, err := bh.businessRepo.List(c.Request.Context())
	if err != nil {
		FromError(c, err)
		return
	}
	RespondOK(c, businesses)
}
