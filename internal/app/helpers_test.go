package app

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"studyhub/internal/ai"
	"studyhub/internal/model"
	"studyhub/internal/repository"
	"studyhub/internal/repository/repotest"
)

type fakeEmbedder struct {
	mu      sync.Mutex
	vectors map[string][]float32
	failOn  string
	calls   []string
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, text)
	if f.failOn != "" && strings.Contains(text, f.failOn) {
		return nil, ai.ErrEmbeddingUnavailable
	}
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return []float32{1, 0, 0}, nil
}

type fakeCompleter struct {
	reply    string
	err      error
	messages [][]ai.ChatMessage
}

func (f *fakeCompleter) Complete(_ context.Context, messages []ai.ChatMessage) (string, error) {
	f.messages = append(f.messages, messages)
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

type fakeGenerator struct {
	reply   string
	err     error
	prompts []string
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

var errBoom = errors.New("boom")

type fixture struct {
	db     *gorm.DB
	docs   *repository.DocumentRepository
	chunks *repository.ChunkRepository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := repotest.NewDB(t)
	return &fixture{
		db:     db,
		docs:   repository.NewDocumentRepository(db),
		chunks: repository.NewChunkRepository(db),
	}
}

func (f *fixture) document(t *testing.T, userID uint, status model.DocumentStatus, name string) *model.Document {
	t.Helper()
	doc := &model.Document{
		UserID:           userID,
		OriginalName:     name,
		StoredPath:       "/tmp/" + name,
		MIMEType:         "text/plain",
		FileSize:         10,
		ProcessingStatus: status,
	}
	require.NoError(t, f.docs.Create(context.Background(), doc))
	return doc
}

func (f *fixture) chunk(t *testing.T, docID uint, idx int, content string, vec []float32) *model.Chunk {
	t.Helper()
	c := &model.Chunk{DocumentID: docID, ChunkIndex: idx, Content: content}
	require.NoError(t, f.chunks.Create(context.Background(), c))
	if vec != nil {
		emb := &model.Embedding{ChunkID: c.ID}
		emb.SetValues(vec)
		require.NoError(t, f.chunks.CreateEmbedding(context.Background(), emb))
	}
	return c
}

func (f *fixture) retriever() *Retriever {
	return NewRetriever(f.chunks, RetrieverConfig{}, nil, nil)
}

func (f *fixture) status(t *testing.T, docID uint) model.DocumentStatus {
	t.Helper()
	doc, err := f.docs.GetByID(context.Background(), docID)
	require.NoError(t, err)
	require.NotNil(t, doc)
	return doc.ProcessingStatus
}
