package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studyhub/internal/model"
	"studyhub/internal/repository"
)

type memoryHistoryCache struct {
	history map[uint][]model.ChatMessage
	dirty   map[uint]bool
	sets    int
}

func newMemoryHistoryCache() *memoryHistoryCache {
	return &memoryHistoryCache{history: map[uint][]model.ChatMessage{}, dirty: map[uint]bool{}}
}

func (c *memoryHistoryCache) GetHistory(_ context.Context, id uint) ([]model.ChatMessage, bool, error) {
	msgs, ok := c.history[id]
	return msgs, ok, nil
}

func (c *memoryHistoryCache) SetHistory(_ context.Context, id uint, msgs []model.ChatMessage) error {
	c.sets++
	c.history[id] = msgs
	return nil
}

func (c *memoryHistoryCache) DeleteHistory(_ context.Context, id uint) error {
	delete(c.history, id)
	return nil
}

func (c *memoryHistoryCache) MarkDirty(_ context.Context, id uint) error {
	c.dirty[id] = true
	return nil
}

func (c *memoryHistoryCache) IsDirty(_ context.Context, id uint) (bool, error) {
	return c.dirty[id], nil
}

type chatFixture struct {
	*fixture
	repo      *repository.ChatRepository
	completer *fakeCompleter
	cache     *memoryHistoryCache
	svc       *ChatService
}

func newChatFixture(t *testing.T) *chatFixture {
	f := newFixture(t)
	repo := repository.NewChatRepository(f.db)
	completer := &fakeCompleter{reply: "answer"}
	rag := NewRAGService(&fakeEmbedder{}, completer, f.retriever(), 5, nil, nil)
	cache := newMemoryHistoryCache()
	return &chatFixture{
		fixture:   f,
		repo:      repo,
		completer: completer,
		cache:     cache,
		svc:       NewChatService(repo, rag, cache, nil),
	}
}

func TestCreateSession_DefaultTitle(t *testing.T) {
	cf := newChatFixture(t)

	session, err := cf.svc.CreateSession(context.Background(), 1, "   ")
	require.NoError(t, err)
	assert.Equal(t, "New Chat", session.Title)

	named, err := cf.svc.CreateSession(context.Background(), 1, "Exam prep")
	require.NoError(t, err)
	assert.Equal(t, "Exam prep", named.Title)

	sessions, err := cf.svc.ListSessions(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, sessions, 2)
}

func TestSendMessage_StoresBothTurnsWithCitations(t *testing.T) {
	cf := newChatFixture(t)
	doc := cf.document(t, 1, model.DocumentCompleted, "notes.txt")
	chunk := cf.chunk(t, doc.ID, 0, "Mitochondria make ATP.", []float32{1, 0, 0})
	session, err := cf.svc.CreateSession(context.Background(), 1, "")
	require.NoError(t, err)

	res, err := cf.svc.SendMessage(context.Background(), 1, session.ID, " what makes ATP? ")
	require.NoError(t, err)
	assert.Equal(t, model.RoleUser, res.UserMessage.Role)
	assert.Equal(t, "what makes ATP?", res.UserMessage.Content)
	assert.Equal(t, model.RoleAssistant, res.AssistantMessage.Role)
	assert.Equal(t, "answer", res.AssistantMessage.Content)
	assert.Equal(t, []uint{chunk.ID}, []uint(res.AssistantMessage.CitedChunkIDs))
	require.Len(t, res.Citations, 1)
	assert.True(t, cf.cache.dirty[session.ID])

	history, err := cf.svc.GetHistory(context.Background(), 1, session.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, model.RoleUser, history[0].Role)
	assert.Equal(t, []uint{chunk.ID}, []uint(history[1].CitedChunkIDs))
}

func TestSendMessage_NoMaterialsStillAnswers(t *testing.T) {
	cf := newChatFixture(t)
	session, err := cf.svc.CreateSession(context.Background(), 1, "")
	require.NoError(t, err)

	res, err := cf.svc.SendMessage(context.Background(), 1, session.ID, "anything?")
	require.NoError(t, err)
	assert.Equal(t, NoMaterialsAnswer, res.AssistantMessage.Content)
	assert.Empty(t, res.AssistantMessage.CitedChunkIDs)
	assert.Empty(t, cf.completer.messages)
}

func TestSendMessage_Rejections(t *testing.T) {
	cf := newChatFixture(t)
	session, err := cf.svc.CreateSession(context.Background(), 1, "")
	require.NoError(t, err)

	_, err = cf.svc.SendMessage(context.Background(), 1, session.ID, "  ")
	assert.ErrorIs(t, err, ErrMessageEmpty)

	_, err = cf.svc.SendMessage(context.Background(), 2, session.ID, "hi")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = cf.svc.GetHistory(context.Background(), 2, session.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestGetHistory_UsesCacheWhenClean(t *testing.T) {
	cf := newChatFixture(t)
	session, err := cf.svc.CreateSession(context.Background(), 1, "")
	require.NoError(t, err)
	require.NoError(t, cf.repo.AppendMessage(context.Background(), &model.ChatMessage{
		SessionID: session.ID, Role: model.RoleUser, Content: "stored",
	}))

	first, err := cf.svc.GetHistory(context.Background(), 1, session.ID)
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, 1, cf.cache.sets)

	cf.cache.history[session.ID] = []model.ChatMessage{{Content: "cached"}}
	second, err := cf.svc.GetHistory(context.Background(), 1, session.ID)
	require.NoError(t, err)
	assert.Equal(t, "cached", second[0].Content)
}

func TestDeleteSession(t *testing.T) {
	cf := newChatFixture(t)
	session, err := cf.svc.CreateSession(context.Background(), 1, "")
	require.NoError(t, err)
	cf.cache.history[session.ID] = []model.ChatMessage{{Content: "x"}}

	assert.ErrorIs(t, cf.svc.DeleteSession(context.Background(), 2, session.ID), ErrSessionNotFound)
	require.NoError(t, cf.svc.DeleteSession(context.Background(), 1, session.ID))
	assert.NotContains(t, cf.cache.history, session.ID)
	assert.ErrorIs(t, cf.svc.DeleteSession(context.Background(), 1, session.ID), ErrSessionNotFound)
}
