package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"studyhub/internal/model"
)

type ChatRepository struct {
	db *gorm.DB
}

func NewChatRepository(db *gorm.DB) *ChatRepository {
	return &ChatRepository{db: db}
}

func (r *ChatRepository) CreateSession(ctx context.Context, session *model.ChatSession) error {
	if err := r.db.WithContext(ctx).Create(session).Error; err != nil {
		return fmt.Errorf("create chat session failed: %w", err)
	}
	return nil
}

// ListSessions returns the user's sessions, most recently active first.
func (r *ChatRepository) ListSessions(ctx context.Context, userID uint) ([]model.ChatSession, error) {
	var sessions []model.ChatSession
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").Order("id DESC").
		Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("list chat sessions failed: %w", err)
	}
	return sessions, nil
}

func (r *ChatRepository) GetSession(ctx context.Context, sessionID, userID uint) (*model.ChatSession, error) {
	var session model.ChatSession
	if err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", sessionID, userID).First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get chat session failed: %w", err)
	}
	return &session, nil
}

// DeleteSession removes a session and its messages. It reports false when the
// user owns no such session.
func (r *ChatRepository) DeleteSession(ctx context.Context, sessionID, userID uint) (bool, error) {
	deleted := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND user_id = ?", sessionID, userID).Delete(&model.ChatSession{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		if err := tx.Where("session_id = ?", sessionID).Delete(&model.ChatMessage{}).Error; err != nil {
			return err
		}
		deleted = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("delete chat session failed: %w", err)
	}
	return deleted, nil
}

// AppendMessage stores msg and refreshes the session's updated_at.
func (r *ChatRepository) AppendMessage(ctx context.Context, msg *model.ChatMessage) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		return tx.Model(&model.ChatSession{}).
			Where("id = ?", msg.SessionID).
			Update("updated_at", time.Now()).Error
	})
	if err != nil {
		return fmt.Errorf("append chat message failed: %w", err)
	}
	return nil
}

func (r *ChatRepository) ListMessages(ctx context.Context, sessionID uint) ([]model.ChatMessage, error) {
	var msgs []model.ChatMessage
	if err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at ASC").Order("id ASC").
		Find(&msgs).Error; err != nil {
		return nil, fmt.Errorf("list chat messages failed: %w", err)
	}
	return msgs, nil
}
