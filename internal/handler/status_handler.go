package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"pdfchat/internal/pkg/response"
	"pdfchat/internal/queue"
)

type StatusHandler struct {
	queue queue.Queue
}

func NewStatusHandler(q queue.Queue) *StatusHandler {
	return &StatusHandler{queue: q}
}

func (h *StatusHandler) Status(c *gin.Context) {
	jobID := strings.TrimSpace(c.Query("jobId"))
	if jobID == "" {
		response.Error(c, http.StatusBadRequest, "jobId is required")
		return
	}
	state, err := h.queue.Status(c.Request.Context(), jobID)
	if err != nil {
		handleError(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"status": state})
}
