package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"studyhub/internal/model"
)

// ChunkRecord is a chunk joined with the name of its document and, for
// similarity candidates, its stored vector.
type ChunkRecord struct {
	ChunkID      uint
	DocumentID   uint
	ChunkIndex   int
	Content      string
	DocumentName string
	Vector       string
}

type ChunkRepository struct {
	db *gorm.DB
}

func NewChunkRepository(db *gorm.DB) *ChunkRepository {
	return &ChunkRepository{db: db}
}

func (r *ChunkRepository) Create(ctx context.Context, chunk *model.Chunk) error {
	if err := r.db.WithContext(ctx).Create(chunk).Error; err != nil {
		return fmt.Errorf("create chunk failed: %w", err)
	}
	return nil
}

func (r *ChunkRepository) CreateEmbedding(ctx context.Context, emb *model.Embedding) error {
	if err := r.db.WithContext(ctx).Create(emb).Error; err != nil {
		return fmt.Errorf("create embedding failed: %w", err)
	}
	return nil
}

func (r *ChunkRepository) ListByDocumentID(ctx context.Context, documentID uint) ([]model.Chunk, error) {
	var chunks []model.Chunk
	if err := r.db.WithContext(ctx).
		Where("document_id = ?", documentID).
		Order("chunk_index ASC").
		Find(&chunks).Error; err != nil {
		return nil, fmt.Errorf("list chunks failed: %w", err)
	}
	return chunks, nil
}

// CountByDocumentID returns the number of chunks and how many of them carry
// an embedding.
func (r *ChunkRepository) CountByDocumentID(ctx context.Context, documentID uint) (total, embedded int64, err error) {
	db := r.db.WithContext(ctx)
	if err = db.Model(&model.Chunk{}).Where("document_id = ?", documentID).Count(&total).Error; err != nil {
		return 0, 0, fmt.Errorf("count chunks failed: %w", err)
	}
	if err = db.Model(&model.Embedding{}).
		Joins("JOIN chunks ON chunks.id = embeddings.chunk_id").
		Where("chunks.document_id = ?", documentID).
		Count(&embedded).Error; err != nil {
		return 0, 0, fmt.Errorf("count embeddings failed: %w", err)
	}
	return total, embedded, nil
}

// ListEmbeddedForUser returns every chunk with a vector whose document is
// owned by userID and completed.
func (r *ChunkRepository) ListEmbeddedForUser(ctx context.Context, userID uint) ([]ChunkRecord, error) {
	var out []ChunkRecord
	err := r.completedChunks(ctx, userID).
		Select("chunks.id AS chunk_id, chunks.document_id, chunks.chunk_index, chunks.content, " +
			"documents.original_name AS document_name, embeddings.vector").
		Joins("JOIN embeddings ON embeddings.chunk_id = chunks.id").
		Order("chunks.id ASC").
		Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list embedded chunks failed: %w", err)
	}
	return out, nil
}

// ListForUser returns every chunk of the user's completed documents, with or
// without an embedding.
func (r *ChunkRepository) ListForUser(ctx context.Context, userID uint) ([]ChunkRecord, error) {
	var out []ChunkRecord
	err := r.completedChunks(ctx, userID).
		Select("chunks.id AS chunk_id, chunks.document_id, chunks.chunk_index, chunks.content, " +
			"documents.original_name AS document_name").
		Order("chunks.id ASC").
		Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list chunks for user failed: %w", err)
	}
	return out, nil
}

func (r *ChunkRepository) completedChunks(ctx context.Context, userID uint) *gorm.DB {
	return r.db.WithContext(ctx).
		Model(&model.Chunk{}).
		Joins("JOIN documents ON documents.id = chunks.document_id").
		Where("documents.user_id = ? AND documents.processing_status = ?", userID, model.DocumentCompleted)
}
