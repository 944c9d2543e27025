package service

import (
	"context"
	"net/url"
	"path"
	"sort"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"pdfchat/internal/filestore"
	"pdfchat/internal/model"
	apperr "pdfchat/internal/pkg/errors"
	"pdfchat/internal/vectorstore"
)

// scanPool bounds the catalog scan over index contents.
const scanPool = 1000

// CatalogService derives the per-user document list from index contents and
// performs cross-store deletion: index first, origin storage best-effort.
type CatalogService struct {
	index vectorstore.Store
	files filestore.Store
}

func NewCatalogService(index vectorstore.Store, files filestore.Store) *CatalogService {
	return &CatalogService{index: index, files: files}
}

// List reduces the user's chunks to one entry per distinct filename, the
// entry with the most recent upload date winning on duplicates. Index
// unavailability degrades to an empty list, never an error.
func (s *CatalogService) List(ctx context.Context, userID string) []model.DocumentInfo {
	logger := logutil.GetLogger(ctx).With(zap.String("user_id", userID))

	chunks, err := s.index.Scroll(ctx, userID, scanPool)
	if err != nil {
		logger.Warn("document scan failed, returning empty catalog", zap.Error(err))
		return []model.DocumentInfo{}
	}

	byName := make(map[string]model.DocumentInfo)
	for _, chunk := range chunks {
		if chunk.UserID != userID || chunk.Filename == "" || chunk.Source == "" {
			continue
		}
		info := model.DocumentInfo{
			Filename:   chunk.Filename,
			UploadDate: chunk.UploadDate,
			Source:     chunk.Source,
		}
		existing, ok := byName[chunk.Filename]
		if !ok || newerUpload(info.UploadDate, existing.UploadDate) {
			byName[chunk.Filename] = info
		}
	}

	docs := make([]model.DocumentInfo, 0, len(byName))
	for _, info := range byName {
		docs = append(docs, info)
	}
	sort.Slice(docs, func(i, j int) bool {
		return docs[i].Filename < docs[j].Filename
	})
	return docs
}

// Delete removes every chunk of (userID, filename) from the index, then
// tries to delete the origin file. The storage deletion is a side cleanup:
// its failure is logged and never rolls back or fails the delete.
func (s *CatalogService) Delete(ctx context.Context, userID, filename string) (int, error) {
	logger := logutil.GetLogger(ctx).With(zap.String("user_id", userID), zap.String("filename", filename))

	chunks, err := s.index.Scroll(ctx, userID, scanPool)
	if err != nil {
		return 0, err
	}
	ids := make([]string, 0)
	source := ""
	for _, chunk := range chunks {
		if chunk.UserID != userID || chunk.Filename != filename || chunk.ChunkID == "" {
			continue
		}
		ids = append(ids, chunk.ChunkID)
		source = chunk.Source
	}
	if len(ids) == 0 {
		return 0, apperr.ErrNotFound
	}

	if err := s.index.Delete(ctx, ids); err != nil {
		return 0, err
	}
	logger.Info("document chunks deleted", zap.Int("count", len(ids)))

	if key := storeKeyFromSource(source); key != "" {
		if err := s.files.Delete(ctx, key); err != nil {
			logger.Warn("origin file deletion failed", zap.String("key", key), zap.Error(err))
		}
	}
	return len(ids), nil
}

// newerUpload orders RFC3339 upload dates; unparseable dates lose.
func newerUpload(a, b string) bool {
	ta, errA := time.Parse(time.RFC3339, a)
	tb, errB := time.Parse(time.RFC3339, b)
	if errA != nil {
		return false
	}
	if errB != nil {
		return true
	}
	return ta.After(tb)
}

// storeKeyFromSource recovers the file store key from the durable source
// URL: the last path segment.
func storeKeyFromSource(source string) string {
	if source == "" {
		return ""
	}
	u, err := url.Parse(source)
	if err != nil {
		return path.Base(source)
	}
	return path.Base(u.Path)
}
