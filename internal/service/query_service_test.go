package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"pdfchat/internal/memory"
	"pdfchat/internal/model"
)

func ownedChunk(id, userID, content string) *model.DocumentChunk {
	return &model.DocumentChunk{
		ChunkID:  id,
		UserID:   userID,
		Filename: "doc.pdf",
		Content:  content,
	}
}

func newQueryHarness(index *fakeIndex, gen *fakeGenerator) (*QueryService, memory.Store) {
	history := memory.NewLocal(16, time.Hour)
	svc := NewQueryService(history, index, &fakeEmbedder{}, gen)
	return svc, history
}

func TestAnswer_FilteredSearchHappyPath(t *testing.T) {
	index := &fakeIndex{chunks: []*model.DocumentChunk{
		ownedChunk("c1", "alice", "alpha"),
		ownedChunk("c2", "bob", "beta"),
	}}
	gen := &fakeGenerator{response: "the answer"}
	svc, _ := newQueryHarness(index, gen)

	res, err := svc.Answer(context.Background(), "alice", "what is alpha?")
	require.NoError(t, err)
	require.Equal(t, "the answer", res.Answer)
	require.Len(t, res.Sources, 1)
	require.Equal(t, "alice", res.Sources[0].UserID)
	// Only the filtered search ran.
	require.Equal(t, []string{"alice"}, index.searchCalls)
}

func TestAnswer_FallbackOnEmptyFilteredSearch(t *testing.T) {
	index := &fakeIndex{
		filteredEmpty: true,
		chunks: []*model.DocumentChunk{
			ownedChunk("c1", "bob", "other user"),
			ownedChunk("c2", "alice", "mine"),
		},
	}
	gen := &fakeGenerator{response: "ok"}
	svc, _ := newQueryHarness(index, gen)

	res, err := svc.Answer(context.Background(), "alice", "q")
	require.NoError(t, err)
	require.Equal(t, []string{"alice", ""}, index.searchCalls)
	require.Len(t, res.Sources, 1)
	require.Equal(t, "c2", res.Sources[0].ChunkID)
}

func TestAnswer_FallbackOnFilteredSearchError(t *testing.T) {
	index := &fakeIndex{
		filteredErr: errors.New("filter feature unavailable"),
		chunks: []*model.DocumentChunk{
			ownedChunk("c1", "alice", "mine"),
			ownedChunk("c2", "bob", "not mine"),
		},
	}
	gen := &fakeGenerator{response: "ok"}
	svc, _ := newQueryHarness(index, gen)

	res, err := svc.Answer(context.Background(), "alice", "q")
	require.NoError(t, err)
	require.Equal(t, []string{"alice", ""}, index.searchCalls)
	for _, src := range res.Sources {
		require.Equal(t, "alice", src.UserID)
	}
}

func TestAnswer_NoOwnershipLeakAcrossAllStages(t *testing.T) {
	index := &fakeIndex{
		filteredEmpty: true,
		chunks: []*model.DocumentChunk{
			ownedChunk("c1", "bob", "secret"),
			ownedChunk("c2", "carol", "secret"),
		},
	}
	gen := &fakeGenerator{response: "I cannot answer that from the documents."}
	svc, _ := newQueryHarness(index, gen)

	res, err := svc.Answer(context.Background(), "alice", "q")
	require.NoError(t, err)
	require.Empty(t, res.Sources)
	// Other users' content must not reach the prompt either.
	require.NotContains(t, gen.prompts[0], "secret")
}

func TestAnswer_EmptyRetrievalStillAnswers(t *testing.T) {
	index := &fakeIndex{}
	gen := &fakeGenerator{response: "Sorry, I can't answer that from your documents."}
	svc, _ := newQueryHarness(index, gen)

	res, err := svc.Answer(context.Background(), "alice", "anything?")
	require.NoError(t, err)
	require.Empty(t, res.Sources)
	require.NotEmpty(t, res.Answer)
}

func TestAnswer_HistoryStoresRawNotNormalized(t *testing.T) {
	index := &fakeIndex{chunks: []*model.DocumentChunk{ownedChunk("c1", "alice", "x")}}
	gen := &fakeGenerator{response: "line one\nline two"}
	svc, history := newQueryHarness(index, gen)

	res, err := svc.Answer(context.Background(), "alice", "q")
	require.NoError(t, err)
	require.Equal(t, "line one<br/>line two", res.Answer)

	turns, err := history.History(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, turns, 1)
	require.Equal(t, "line one\nline two", turns[0].Bot)
	require.Equal(t, "q", turns[0].User)
}

func TestAnswer_NoMemoryWriteOnLLMFailure(t *testing.T) {
	index := &fakeIndex{}
	gen := &fakeGenerator{err: errors.New("model overloaded")}
	svc, history := newQueryHarness(index, gen)

	_, err := svc.Answer(context.Background(), "alice", "q")
	require.Error(t, err)

	turns, err := history.History(context.Background(), "alice")
	require.NoError(t, err)
	require.Empty(t, turns)
}

func TestAnswer_HistoryAppearsInPrompt(t *testing.T) {
	index := &fakeIndex{}
	gen := &fakeGenerator{response: "second answer"}
	svc, history := newQueryHarness(index, gen)
	require.NoError(t, history.Append(context.Background(), "alice", "first question", "first answer"))

	_, err := svc.Answer(context.Background(), "alice", "follow-up")
	require.NoError(t, err)
	require.Contains(t, gen.prompts[0], "User: first question\nAssistant: first answer")
	require.True(t, strings.Contains(gen.prompts[0], "follow-up"))
}
