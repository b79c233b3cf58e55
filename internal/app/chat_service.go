package app

import (
	"context"
	"strings"

	"studyhub/internal/model"
	"studyhub/internal/platform/logger"
)

type chatStore interface {
	CreateSession(ctx context.Context, session *model.ChatSession) error
	ListSessions(ctx context.Context, userID uint) ([]model.ChatSession, error)
	GetSession(ctx context.Context, sessionID, userID uint) (*model.ChatSession, error)
	DeleteSession(ctx context.Context, sessionID, userID uint) (bool, error)
	AppendMessage(ctx context.Context, msg *model.ChatMessage) error
	ListMessages(ctx context.Context, sessionID uint) ([]model.ChatMessage, error)
}

type answerer interface {
	Answer(ctx context.Context, userID uint, question string) (*AnswerResult, error)
}

type HistoryCache interface {
	GetHistory(ctx context.Context, sessionID uint) ([]model.ChatMessage, bool, error)
	SetHistory(ctx context.Context, sessionID uint, messages []model.ChatMessage) error
	DeleteHistory(ctx context.Context, sessionID uint) error
	MarkDirty(ctx context.Context, sessionID uint) error
	IsDirty(ctx context.Context, sessionID uint) (bool, error)
}

type SendMessageResult struct {
	UserMessage      model.ChatMessage `json:"user_message"`
	AssistantMessage model.ChatMessage `json:"assistant_message"`
	Citations        []Citation        `json:"citations"`
}

type ChatService struct {
	repo         chatStore
	rag          answerer
	historyCache HistoryCache
	log          *logger.Logger
}

// NewChatService builds the service; historyCache may be nil.
func NewChatService(repo chatStore, rag answerer, historyCache HistoryCache, log *logger.Logger) *ChatService {
	if log == nil {
		log = logger.Nop()
	}
	return &ChatService{
		repo:         repo,
		rag:          rag,
		historyCache: historyCache,
		log:          log.With("component", "chat"),
	}
}

func (s *ChatService) CreateSession(ctx context.Context, userID uint, title string) (*model.ChatSession, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	title = strings.TrimSpace(title)
	if title == "" {
		title = "New Chat"
	}
	session := &model.ChatSession{UserID: userID, Title: title}
	if err := s.repo.CreateSession(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *ChatService) ListSessions(ctx context.Context, userID uint) ([]model.ChatSession, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	return s.repo.ListSessions(ctx, userID)
}

func (s *ChatService) DeleteSession(ctx context.Context, userID, sessionID uint) error {
	if userID == 0 || sessionID == 0 {
		return ErrInvalidInput
	}
	deleted, err := s.repo.DeleteSession(ctx, sessionID, userID)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrSessionNotFound
	}
	if s.historyCache != nil {
		_ = s.historyCache.DeleteHistory(ctx, sessionID)
	}
	return nil
}

// Ask answers a one-off question outside any session.
func (s *ChatService) Ask(ctx context.Context, userID uint, question string) (*AnswerResult, error) {
	return s.rag.Answer(ctx, userID, question)
}

// SendMessage stores the user's message, answers it with RAG and stores the
// answer with its cited chunks. The session's updated_at moves with each
// stored message.
func (s *ChatService) SendMessage(ctx context.Context, userID, sessionID uint, content string) (*SendMessageResult, error) {
	if userID == 0 || sessionID == 0 {
		return nil, ErrInvalidInput
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrMessageEmpty
	}
	session, err := s.repo.GetSession(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}

	s.invalidateHistory(ctx, sessionID)
	userMsg := &model.ChatMessage{SessionID: sessionID, Role: model.RoleUser, Content: content}
	if err := s.repo.AppendMessage(ctx, userMsg); err != nil {
		return nil, err
	}

	answer, err := s.rag.Answer(ctx, userID, content)
	if err != nil {
		return nil, err
	}

	assistantMsg := &model.ChatMessage{
		SessionID:     sessionID,
		Role:          model.RoleAssistant,
		Content:       answer.Content,
		CitedChunkIDs: answer.CitedChunkIDs,
	}
	s.invalidateHistory(ctx, sessionID)
	if err := s.repo.AppendMessage(ctx, assistantMsg); err != nil {
		return nil, err
	}

	return &SendMessageResult{
		UserMessage:      *userMsg,
		AssistantMessage: *assistantMsg,
		Citations:        answer.Citations,
	}, nil
}

// GetHistory returns the session's messages oldest first, served from the
// cache unless a write marked it dirty.
func (s *ChatService) GetHistory(ctx context.Context, userID, sessionID uint) ([]model.ChatMessage, error) {
	if userID == 0 || sessionID == 0 {
		return nil, ErrInvalidInput
	}
	session, err := s.repo.GetSession(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}

	if s.historyCache != nil {
		dirty, err := s.historyCache.IsDirty(ctx, sessionID)
		if err == nil && !dirty {
			if cached, hit, cacheErr := s.historyCache.GetHistory(ctx, sessionID); cacheErr == nil && hit {
				return cached, nil
			}
		}
	}

	messages, err := s.repo.ListMessages(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if s.historyCache != nil {
		if dirty, dirtyErr := s.historyCache.IsDirty(ctx, sessionID); dirtyErr == nil && !dirty {
			if err := s.historyCache.SetHistory(ctx, sessionID, messages); err != nil {
				s.log.Warn("cache chat history failed", "session_id", sessionID, "err", err)
			}
		}
	}
	return messages, nil
}

func (s *ChatService) invalidateHistory(ctx context.Context, sessionID uint) {
	if s.historyCache == nil {
		return
	}
	_ = s.historyCache.MarkDirty(ctx, sessionID)
	_ = s.historyCache.DeleteHistory(ctx, sessionID)
}
