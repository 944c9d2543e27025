package handler

import (
	"github.com/gin-gonic/gin"
)

type RouterDeps struct {
	Upload    *UploadHandler
	Status    *StatusHandler
	Query     *QueryHandler
	Documents *DocumentHandler
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.POST("/documents", deps.Upload.Upload)
	api.GET("/documents/status", deps.Status.Status)
	api.GET("/documents", deps.Documents.List)
	api.DELETE("/documents", deps.Documents.Delete)

	api.GET("/chat/query", deps.Query.Ask)
	api.DELETE("/chat/history", deps.Query.ClearHistory)
}
