package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"pdfchat/internal/pkg/response"
	"pdfchat/internal/service"
)

type QueryHandler struct {
	query *service.QueryService
}

func NewQueryHandler(query *service.QueryService) *QueryHandler {
	return &QueryHandler{query: query}
}

// Ask answers one question against the user's indexed documents. Failures
// surface as a generic 500; details stay in the logs.
func (h *QueryHandler) Ask(c *gin.Context) {
	question := strings.TrimSpace(c.Query("q"))
	userID := strings.TrimSpace(c.Query("userId"))
	if question == "" || userID == "" {
		response.Error(c, http.StatusBadRequest, "q and userId are required")
		return
	}
	res, err := h.query.Answer(c.Request.Context(), userID, question)
	if err != nil {
		logutil.GetLogger(c.Request.Context()).Error("answer query failed",
			zap.Error(err), zap.String("user_id", userID))
		response.Error(c, http.StatusInternalServerError, "failed to answer query")
		return
	}
	response.JSON(c, http.StatusOK, gin.H{
		"answer":  res.Answer,
		"sources": res.Sources,
	})
}

func (h *QueryHandler) ClearHistory(c *gin.Context) {
	userID := strings.TrimSpace(c.Query("userId"))
	if userID == "" {
		response.Error(c, http.StatusBadRequest, "userId is required")
		return
	}
	if err := h.query.ClearHistory(c.Request.Context(), userID); err != nil {
		handleError(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"success": true})
}
