package model

import (
	"time"

	"gorm.io/datatypes"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type ChatSession struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	Title     string    `gorm:"size:256;not null" json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ChatMessage struct {
	ID            uint                      `gorm:"primaryKey" json:"id"`
	SessionID     uint                      `gorm:"not null;index" json:"session_id"`
	Role          string                    `gorm:"size:16;not null" json:"role"`
	Content       string                    `gorm:"type:text;not null" json:"content"`
	CitedChunkIDs datatypes.JSONSlice[uint] `json:"cited_chunk_ids"`
	CreatedAt     time.Time                 `json:"created_at"`
}
