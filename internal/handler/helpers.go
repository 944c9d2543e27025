package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	appErr "pdfchat/internal/pkg/errors"
	"pdfchat/internal/pkg/response"
)

func handleError(c *gin.Context, err error) {
	switch {
	case err == nil:
		return
	case appErr.IsNotFound(err):
		response.Error(c, http.StatusNotFound, "not found")
	case appErr.IsInvalid(err):
		response.Error(c, http.StatusBadRequest, "invalid request")
	default:
		response.Error(c, http.StatusInternalServerError, "internal error")
	}
}
