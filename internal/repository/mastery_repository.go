package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"studyhub/internal/model"
)

type TopicMasteryRepository struct {
	db *gorm.DB
}

func NewTopicMasteryRepository(db *gorm.DB) *TopicMasteryRepository {
	return &TopicMasteryRepository{db: db}
}

// Upsert inserts m, or when a row for (user, topic) exists calls merge with
// the stored row and m and saves the stored row. The stored row is read
// under a row lock, and an insert that loses a race on the (user, topic)
// unique index falls back to merging into the winner's row.
func (r *TopicMasteryRepository) Upsert(ctx context.Context, m *model.TopicMastery, merge func(existing, incoming *model.TopicMastery)) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := lockMastery(tx, m.UserID, m.Topic)
		if err != nil {
			return err
		}
		if existing == nil {
			res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(m)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected > 0 {
				return nil
			}
			// another writer inserted the row first
			m.ID = 0
			if existing, err = lockMastery(tx, m.UserID, m.Topic); err != nil {
				return err
			}
			if existing == nil {
				return fmt.Errorf("topic mastery for user %d topic %q vanished", m.UserID, m.Topic)
			}
		}
		merge(existing, m)
		if err := tx.Save(existing).Error; err != nil {
			return err
		}
		*m = *existing
		return nil
	})
	if err != nil {
		return fmt.Errorf("upsert topic mastery failed: %w", err)
	}
	return nil
}

func lockMastery(tx *gorm.DB, userID uint, topic string) (*model.TopicMastery, error) {
	var existing model.TopicMastery
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND topic = ?", userID, topic).
		First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &existing, nil
}

func (r *TopicMasteryRepository) ListByUserID(ctx context.Context, userID uint) ([]model.TopicMastery, error) {
	var list []model.TopicMastery
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("mastery_level ASC").Order("topic ASC").
		Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list topic mastery failed: %w", err)
	}
	return list, nil
}
