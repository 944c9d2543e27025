package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	appErr "pdfchat/internal/pkg/errors"
	"pdfchat/internal/pkg/response"
	"pdfchat/internal/service"
)

type DocumentHandler struct {
	catalog *service.CatalogService
}

func NewDocumentHandler(catalog *service.CatalogService) *DocumentHandler {
	return &DocumentHandler{catalog: catalog}
}

type deleteRequest struct {
	UserID   string `json:"userId"`
	Filename string `json:"filename"`
}

func (h *DocumentHandler) List(c *gin.Context) {
	userID := strings.TrimSpace(c.Query("userId"))
	if userID == "" {
		response.Error(c, http.StatusBadRequest, "userId is required")
		return
	}
	docs := h.catalog.List(c.Request.Context(), userID)
	response.JSON(c, http.StatusOK, gin.H{"success": true, "documents": docs})
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	var req deleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, "invalid request body")
		return
	}
	req.UserID = strings.TrimSpace(req.UserID)
	req.Filename = strings.TrimSpace(req.Filename)
	if req.UserID == "" || req.Filename == "" {
		response.Fail(c, http.StatusBadRequest, "userId and filename are required")
		return
	}
	deleted, err := h.catalog.Delete(c.Request.Context(), req.UserID, req.Filename)
	if err != nil {
		if appErr.IsNotFound(err) {
			response.Fail(c, http.StatusNotFound, "document not found")
			return
		}
		response.Fail(c, http.StatusInternalServerError, "failed to delete document")
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"success": true, "deletedChunks": deleted})
}
