package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"studyhub/internal/ai"
	"studyhub/internal/observability"
	"studyhub/internal/platform/logger"
)

const NoMaterialsAnswer = "I don't have any relevant study materials uploaded to answer this question. Please upload some documents first and try again."

const studyAssistantPrompt = `You are a helpful study assistant. You help students understand their course materials by providing clear, accurate answers based on the provided context. Always cite your sources when referencing specific information from the materials.

Context from study materials:
%s

Please provide helpful, accurate responses based on the context provided. If you don't have enough information to answer a question, say so clearly.`

type Citation struct {
	SourceNumber int     `json:"source_number"`
	DocumentName string  `json:"document_name"`
	ChunkID      uint    `json:"chunk_id"`
	Similarity   float64 `json:"similarity"`
}

type AnswerResult struct {
	Content       string     `json:"content"`
	CitedChunkIDs []uint     `json:"cited_chunk_ids"`
	Citations     []Citation `json:"citations"`
}

// RAGService answers questions grounded in the asker's own documents.
type RAGService struct {
	embedder  Embedder
	completer ChatCompleter
	retriever *Retriever
	topK      int
	log       *logger.Logger
	metrics   *observability.Metrics
}

func NewRAGService(embedder Embedder, completer ChatCompleter, retriever *Retriever, topK int, log *logger.Logger, metrics *observability.Metrics) *RAGService {
	if log == nil {
		log = logger.Nop()
	}
	return &RAGService{
		embedder:  embedder,
		completer: completer,
		retriever: retriever,
		topK:      topK,
		log:       log.With("component", "rag"),
		metrics:   metrics,
	}
}

// Answer embeds the question, retrieves the closest chunks and asks the chat
// model for a cited answer. With no retrievable chunks the fixed
// NoMaterialsAnswer is returned and no model is called for generation.
func (s *RAGService) Answer(ctx context.Context, userID uint, question string) (*AnswerResult, error) {
	question = strings.TrimSpace(question)
	if userID == 0 || question == "" {
		return nil, ErrInvalidInput
	}

	started := time.Now()
	queryVec, err := s.embedder.Embed(ctx, question)
	s.metrics.ObserveModelCall("embed", started, err)
	if err != nil {
		s.log.Error("embed question failed", "user_id", userID, "err", err)
		return nil, fmt.Errorf("%w: %v", ErrRAGFailure, err)
	}

	chunks := s.retriever.Similar(ctx, userID, queryVec, s.topK)
	if len(chunks) == 0 {
		return &AnswerResult{
			Content:       NoMaterialsAnswer,
			CitedChunkIDs: []uint{},
			Citations:     []Citation{},
		}, nil
	}

	messages := []ai.ChatMessage{
		{Role: ai.RoleSystem, Content: fmt.Sprintf(studyAssistantPrompt, buildSourceContext(chunks))},
		{Role: ai.RoleUser, Content: question},
	}
	started = time.Now()
	content, err := s.completer.Complete(ctx, messages)
	s.metrics.ObserveModelCall("chat", started, err)
	if err != nil {
		s.log.Error("generate answer failed", "user_id", userID, "err", err)
		return nil, fmt.Errorf("%w: %v", ErrRAGFailure, err)
	}

	result := &AnswerResult{
		Content:       content,
		CitedChunkIDs: make([]uint, len(chunks)),
		Citations:     make([]Citation, len(chunks)),
	}
	for i, c := range chunks {
		result.CitedChunkIDs[i] = c.ChunkID
		result.Citations[i] = Citation{
			SourceNumber: i + 1,
			DocumentName: c.DocumentName,
			ChunkID:      c.ChunkID,
			Similarity:   c.Similarity,
		}
	}
	return result, nil
}

// buildSourceContext numbers sources from 1 in retrieval order so the model
// can cite them.
func buildSourceContext(chunks []RetrievedChunk) string {
	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = fmt.Sprintf("[Source %d: %s]\n%s", i+1, c.DocumentName, c.Content)
	}
	return strings.Join(parts, "\n\n")
}
