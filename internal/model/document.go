package model

import "time"

type DocumentStatus string

const (
	DocumentPending    DocumentStatus = "pending"
	DocumentProcessing DocumentStatus = "processing"
	DocumentCompleted  DocumentStatus = "completed"
	DocumentFailed     DocumentStatus = "failed"
)

// Final reports whether the status admits no further transition.
func (s DocumentStatus) Final() bool {
	return s == DocumentCompleted || s == DocumentFailed
}

type Document struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	UserID           uint           `gorm:"not null;index" json:"user_id"`
	OriginalName     string         `gorm:"size:256;not null" json:"original_name"`
	StoredPath       string         `gorm:"size:512;not null" json:"-"`
	MIMEType         string         `gorm:"column:mime_type;size:128;not null" json:"mime_type"`
	FileSize         int64          `gorm:"not null" json:"file_size"`
	ProcessingStatus DocumentStatus `gorm:"size:16;not null;index;default:pending" json:"processing_status"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}
