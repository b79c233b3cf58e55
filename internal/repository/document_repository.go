package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"studyhub/internal/model"
)

type DocumentRepository struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) Create(ctx context.Context, doc *model.Document) error {
	if err := r.db.WithContext(ctx).Create(doc).Error; err != nil {
		return fmt.Errorf("create document failed: %w", err)
	}
	return nil
}

func (r *DocumentRepository) ListByUserID(ctx context.Context, userID uint) ([]model.Document, error) {
	var list []model.Document
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").Order("id DESC").
		Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list documents failed: %w", err)
	}
	return list, nil
}

func (r *DocumentRepository) GetByID(ctx context.Context, id uint) (*model.Document, error) {
	var doc model.Document
	if err := r.db.WithContext(ctx).First(&doc, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get document failed: %w", err)
	}
	return &doc, nil
}

func (r *DocumentRepository) GetByIDAndUserID(ctx context.Context, id, userID uint) (*model.Document, error) {
	var doc model.Document
	if err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&doc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get document failed: %w", err)
	}
	return &doc, nil
}

// TransitionStatus moves a document to status `to` only if it is currently in
// one of `from`. It reports whether the row changed.
func (r *DocumentRepository) TransitionStatus(ctx context.Context, id uint, from []model.DocumentStatus, to model.DocumentStatus) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.Document{}).
		Where("id = ? AND processing_status IN ?", id, from).
		Update("processing_status", to)
	if res.Error != nil {
		return false, fmt.Errorf("update document status failed: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// DeleteCascade removes the document with its chunks and their embeddings in
// one transaction. It reports false when the user owns no such document.
func (r *DocumentRepository) DeleteCascade(ctx context.Context, id, userID uint) (bool, error) {
	deleted := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var doc model.Document
		if err := tx.Where("id = ? AND user_id = ?", id, userID).First(&doc).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		chunkIDs := tx.Model(&model.Chunk{}).Select("id").Where("document_id = ?", id)
		if err := tx.Where("chunk_id IN (?)", chunkIDs).Delete(&model.Embedding{}).Error; err != nil {
			return err
		}
		if err := tx.Where("document_id = ?", id).Delete(&model.Chunk{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&doc).Error; err != nil {
			return err
		}
		deleted = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("delete document failed: %w", err)
	}
	return deleted, nil
}
