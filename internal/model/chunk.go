package model

import "time"

// Chunk is one passage of a document. ChunkIndex is the 0-based ordinal that
// defines reconstruction order and is unique per document.
type Chunk struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	DocumentID uint      `gorm:"not null;uniqueIndex:idx_chunks_document_ordinal,priority:1" json:"document_id"`
	ChunkIndex int       `gorm:"not null;uniqueIndex:idx_chunks_document_ordinal,priority:2" json:"chunk_index"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	PageNumber *int      `json:"page_number,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
