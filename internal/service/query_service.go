package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"pdfchat/internal/ai"
	"pdfchat/internal/memory"
	"pdfchat/internal/model"
	"pdfchat/internal/vectorstore"
)

const (
	// topK is the filtered-search result size; fallbackK is the larger
	// unfiltered candidate pool trimmed client-side by owner.
	topK      = 5
	fallbackK = 10
)

const answerPromptTemplate = `You are a helpful and intelligent assistant that answers user questions based on the context provided from a PDF document, along with their previous conversation history.

Instructions:
- Answer based strictly on the PDF content and prior conversation context.
- If the user's question is related to the PDF, respond accurately and helpfully.
- If the user asks for a little more detail, elaborate just enough to give a clearer explanation, but stay concise and on-topic.
- If a question can't be answered from the PDF or previous chat history, politely inform the user.
- Use chat history to maintain context across multiple questions and provide continuity in responses.
- If the user greets you (e.g., "Hi", "Hello"), respond politely and maintain a friendly, professional tone.

PDF Context:
%s

Chat History:
%s

Current User Question:
%s`

// QueryService is the synchronous query path: memory read, retrieval, one
// LLM call, memory write. Queries from different users share no lock and run
// fully concurrently.
type QueryService struct {
	history   memory.Store
	index     vectorstore.Store
	embedder  ai.IEmbedder
	generator ai.IGenerator
}

type QueryResult struct {
	Answer  string
	Sources []*model.DocumentChunk
}

func NewQueryService(history memory.Store, index vectorstore.Store, embedder ai.IEmbedder, generator ai.IGenerator) *QueryService {
	return &QueryService{
		history:   history,
		index:     index,
		embedder:  embedder,
		generator: generator,
	}
}

func (s *QueryService) Answer(ctx context.Context, userID, question string) (*QueryResult, error) {
	logger := logutil.GetLogger(ctx).With(zap.String("user_id", userID))

	turns, err := s.history.History(ctx, userID)
	if err != nil {
		logger.Warn("read chat history failed, continuing without it", zap.Error(err))
		turns = nil
	}

	sources, err := s.retrieve(ctx, userID, question)
	if err != nil {
		return nil, err
	}
	// Empty retrieval is a valid answer path: the model is instructed to
	// decline politely when the context cannot answer the question.

	prompt := buildPrompt(sources, turns, question)
	raw, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("llm call: %w", err)
	}

	// History keeps the raw model text, written only after a successful call.
	if err := s.history.Append(ctx, userID, question, raw); err != nil {
		logger.Warn("append chat history failed", zap.Error(err))
	}

	return &QueryResult{
		Answer:  normalizeAnswer(raw),
		Sources: sources,
	}, nil
}

func (s *QueryService) ClearHistory(ctx context.Context, userID string) error {
	return s.history.Clear(ctx, userID)
}

// retrieve runs the three-stage retrieval: server-side filtered search,
// then an unfiltered larger pool trimmed client-side when the filtered
// search comes back empty or errors. Every stage ends with an ownership
// check; an unfiltered result is never trusted as-is.
func (s *QueryService) retrieve(ctx context.Context, userID, question string) ([]*model.DocumentChunk, error) {
	logger := logutil.GetLogger(ctx).With(zap.String("user_id", userID))

	vector, err := s.embedder.Embed(ctx, question, ai.TaskTypeQuery)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	results, err := s.index.Search(ctx, vector, topK, userID)
	if err != nil {
		logger.Warn("filtered search failed, falling back to unfiltered search", zap.Error(err))
		return s.unfilteredRetrieve(ctx, vector, userID)
	}
	results = filterByOwner(results, userID)
	if len(results) > 0 {
		return results, nil
	}

	logger.Info("filtered search returned nothing, trying unfiltered search")
	return s.unfilteredRetrieve(ctx, vector, userID)
}

func (s *QueryService) unfilteredRetrieve(ctx context.Context, vector []float32, userID string) ([]*model.DocumentChunk, error) {
	logger := logutil.GetLogger(ctx).With(zap.String("user_id", userID))
	unfiltered, err := s.index.Search(ctx, vector, fallbackK, "")
	if err != nil {
		return nil, fmt.Errorf("fallback search: %w", err)
	}
	results := filterByOwner(unfiltered, userID)
	logger.Info("unfiltered search recovered results",
		zap.Int("candidates", len(unfiltered)),
		zap.Int("owned", len(results)),
	)
	return results, nil
}

func filterByOwner(chunks []*model.DocumentChunk, userID string) []*model.DocumentChunk {
	out := make([]*model.DocumentChunk, 0, len(chunks))
	for _, chunk := range chunks {
		if chunk != nil && chunk.UserID == userID {
			out = append(out, chunk)
		}
	}
	return out
}

func buildPrompt(sources []*model.DocumentChunk, turns []model.ConversationTurn, question string) string {
	type promptChunk struct {
		Filename string `json:"filename"`
		Content  string `json:"content"`
	}
	contextChunks := make([]promptChunk, 0, len(sources))
	for _, chunk := range sources {
		contextChunks = append(contextChunks, promptChunk{Filename: chunk.Filename, Content: chunk.Content})
	}
	contextJSON, err := json.Marshal(contextChunks)
	if err != nil {
		contextJSON = []byte("[]")
	}

	lines := make([]string, 0, len(turns))
	for _, turn := range turns {
		lines = append(lines, fmt.Sprintf("User: %s\nAssistant: %s", turn.User, turn.Bot))
	}
	history := strings.Join(lines, "\n")

	return fmt.Sprintf(answerPromptTemplate, contextJSON, history, question)
}

// normalizeAnswer converts line breaks into the delivery format the web
// client renders. Stored history keeps the raw text.
func normalizeAnswer(raw string) string {
	return strings.ReplaceAll(raw, "\n", "<br/>")
}
