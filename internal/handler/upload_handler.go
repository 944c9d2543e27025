package handler

import (
	"crypto/rand"
	"encoding/hex"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"pdfchat/internal/filestore"
	"pdfchat/internal/model"
	"pdfchat/internal/pkg/response"
	"pdfchat/internal/queue"
)

type UploadHandler struct {
	store filestore.Store
	queue queue.Queue
}

type uploadResponse struct {
	JobID     string `json:"jobId"`
	Filename  string `json:"filename"`
	SourceURL string `json:"sourceUrl"`
}

func NewUploadHandler(store filestore.Store, q queue.Queue) *UploadHandler {
	return &UploadHandler{store: store, queue: q}
}

// Upload accepts a multipart document, persists the original blob, and
// enqueues an ingestion job. Processing happens entirely off this request.
func (h *UploadHandler) Upload(c *gin.Context) {
	userID := strings.TrimSpace(c.PostForm("userId"))
	if userID == "" {
		userID = strings.TrimSpace(c.Query("userId"))
	}
	if userID == "" {
		response.Error(c, http.StatusBadRequest, "userId is required")
		return
	}
	file, err := c.FormFile("file")
	if err != nil {
		response.Error(c, http.StatusBadRequest, "file is required")
		return
	}
	opened, err := file.Open()
	if err != nil {
		response.Error(c, http.StatusBadRequest, "failed to open file")
		return
	}
	defer opened.Close()

	contentType := file.Header.Get("Content-Type")
	if contentType == "" {
		contentType = mime.TypeByExtension(filepath.Ext(file.Filename))
	}
	key := buildStoreKey(userID, file.Filename)
	ctx := c.Request.Context()
	if err := h.store.Save(ctx, key, opened, file.Size, contentType); err != nil {
		logutil.GetLogger(ctx).Error("save upload failed", zap.Error(err), zap.String("key", key))
		response.Error(c, http.StatusInternalServerError, "failed to store file")
		return
	}

	sourceURL := h.store.URL(key)
	jobID, err := h.queue.Enqueue(ctx, model.IngestTask{
		UserID:           userID,
		StoreKey:         key,
		SourceURL:        sourceURL,
		OriginalFilename: file.Filename,
		MimeType:         contentType,
		SizeBytes:        file.Size,
	})
	if err != nil {
		logutil.GetLogger(ctx).Error("enqueue ingestion failed", zap.Error(err), zap.String("key", key))
		response.Error(c, http.StatusInternalServerError, "failed to enqueue job")
		return
	}
	response.JSON(c, http.StatusAccepted, uploadResponse{
		JobID:     jobID,
		Filename:  file.Filename,
		SourceURL: sourceURL,
	})
}

func buildStoreKey(userID, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		ext = ".pdf"
	}
	return sanitizeKeyPart(userID) + "_" + randomHex(8) + ext
}

func sanitizeKeyPart(part string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '.':
			return r
		default:
			return '_'
		}
	}, part)
}

func randomHex(n int) string {
	bytes := make([]byte, n)
	_, _ = rand.Read(bytes)
	return hex.EncodeToString(bytes)
}
