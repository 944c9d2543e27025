package service

import (
	"bytes"
	"context"
	"errors"
	"io"

	"pdfchat/internal/model"
)

// fakeIndex is an in-memory vectorstore.Store capturing calls. Search
// ignores vectors and just replays canned results, which is all the
// retrieval logic cares about.
type fakeIndex struct {
	chunks []*model.DocumentChunk

	filteredErr    error
	filteredEmpty  bool
	unfilteredErr  error
	searchCalls    []string // userID per Search call, "" = unfiltered
	upserted       [][]*model.DocumentChunk
	deleted        [][]string
	scrollErr      error
	deleteErr      error
	upsertErr      error
}

func (f *fakeIndex) Upsert(ctx context.Context, chunks []*model.DocumentChunk) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserted = append(f.upserted, chunks)
	f.chunks = append(f.chunks, chunks...)
	return nil
}

func (f *fakeIndex) Search(ctx context.Context, vector []float32, limit int, userID string) ([]*model.DocumentChunk, error) {
	f.searchCalls = append(f.searchCalls, userID)
	if userID != "" {
		if f.filteredErr != nil {
			return nil, f.filteredErr
		}
		if f.filteredEmpty {
			return nil, nil
		}
		out := make([]*model.DocumentChunk, 0)
		for _, c := range f.chunks {
			if c.UserID == userID && len(out) < limit {
				out = append(out, c)
			}
		}
		return out, nil
	}
	if f.unfilteredErr != nil {
		return nil, f.unfilteredErr
	}
	if limit > len(f.chunks) {
		limit = len(f.chunks)
	}
	return f.chunks[:limit], nil
}

func (f *fakeIndex) Scroll(ctx context.Context, userID string, limit int) ([]*model.DocumentChunk, error) {
	if f.scrollErr != nil {
		return nil, f.scrollErr
	}
	out := make([]*model.DocumentChunk, 0)
	for _, c := range f.chunks {
		if userID != "" && c.UserID != userID {
			continue
		}
		if len(out) >= limit {
			break
		}
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeIndex) Delete(ctx context.Context, ids []string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, ids)
	dead := make(map[string]bool, len(ids))
	for _, id := range ids {
		dead[id] = true
	}
	kept := f.chunks[:0]
	for _, c := range f.chunks {
		if !dead[c.ChunkID] {
			kept = append(kept, c)
		}
	}
	f.chunks = kept
	return nil
}

type fakeEmbedder struct {
	err   error
	calls int
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

func (f *fakeEmbedder) ModelName() string { return "fake-embedding" }

type fakeGenerator struct {
	response string
	err      error
	prompts  []string
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

// fakeFiles is an in-memory filestore.Store.
type fakeFiles struct {
	blobs      map[string][]byte
	deleted    []string
	deleteErr  error
	openErr    error
}

func newFakeFiles() *fakeFiles {
	return &fakeFiles{blobs: map[string][]byte{}}
}

func (f *fakeFiles) Save(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.blobs[key] = data
	return nil
}

func (f *fakeFiles) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	data, ok := f.blobs[key]
	if !ok {
		return nil, errors.New("no such key")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeFiles) Delete(ctx context.Context, key string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, key)
	delete(f.blobs, key)
	return nil
}

func (f *fakeFiles) URL(key string) string {
	return "http://files.test/" + key
}
