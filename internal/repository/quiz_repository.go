package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"studyhub/internal/model"
)

type BlueprintSummary struct {
	model.QuizBlueprint
	QuestionCount int64 `json:"question_count"`
}

type AttemptSummary struct {
	model.QuizAttempt
	QuizTitle string `json:"quiz_title"`
}

type QuizRepository struct {
	db *gorm.DB
}

func NewQuizRepository(db *gorm.DB) *QuizRepository {
	return &QuizRepository{db: db}
}

// CreateBlueprint persists the blueprint and its items atomically; items get
// their BlueprintID set.
func (r *QuizRepository) CreateBlueprint(ctx context.Context, bp *model.QuizBlueprint, items []model.QuizItem) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(bp).Error; err != nil {
			return err
		}
		for i := range items {
			items[i].BlueprintID = bp.ID
		}
		if len(items) == 0 {
			return nil
		}
		return tx.Create(&items).Error
	})
	if err != nil {
		return fmt.Errorf("create quiz blueprint failed: %w", err)
	}
	return nil
}

func (r *QuizRepository) GetBlueprint(ctx context.Context, id, userID uint) (*model.QuizBlueprint, error) {
	var bp model.QuizBlueprint
	if err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&bp).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get quiz blueprint failed: %w", err)
	}
	return &bp, nil
}

func (r *QuizRepository) ListItems(ctx context.Context, blueprintID uint) ([]model.QuizItem, error) {
	var items []model.QuizItem
	if err := r.db.WithContext(ctx).
		Where("blueprint_id = ?", blueprintID).
		Order("id ASC").
		Find(&items).Error; err != nil {
		return nil, fmt.Errorf("list quiz items failed: %w", err)
	}
	return items, nil
}

func (r *QuizRepository) ListBlueprints(ctx context.Context, userID uint) ([]BlueprintSummary, error) {
	db := r.db.WithContext(ctx)
	var bps []model.QuizBlueprint
	if err := db.Where("user_id = ?", userID).Order("created_at DESC").Order("id DESC").Find(&bps).Error; err != nil {
		return nil, fmt.Errorf("list quiz blueprints failed: %w", err)
	}
	if len(bps) == 0 {
		return []BlueprintSummary{}, nil
	}

	ids := make([]uint, len(bps))
	for i := range bps {
		ids[i] = bps[i].ID
	}
	var counts []struct {
		BlueprintID uint
		Count       int64
	}
	if err := db.Model(&model.QuizItem{}).
		Select("blueprint_id, COUNT(*) AS count").
		Where("blueprint_id IN ?", ids).
		Group("blueprint_id").
		Scan(&counts).Error; err != nil {
		return nil, fmt.Errorf("count quiz items failed: %w", err)
	}
	byID := make(map[uint]int64, len(counts))
	for _, c := range counts {
		byID[c.BlueprintID] = c.Count
	}

	out := make([]BlueprintSummary, len(bps))
	for i := range bps {
		out[i] = BlueprintSummary{QuizBlueprint: bps[i], QuestionCount: byID[bps[i].ID]}
	}
	return out, nil
}

func (r *QuizRepository) CreateAttempt(ctx context.Context, attempt *model.QuizAttempt) error {
	if err := r.db.WithContext(ctx).Create(attempt).Error; err != nil {
		return fmt.Errorf("create quiz attempt failed: %w", err)
	}
	return nil
}

// ListAttempts returns the user's attempts, newest first, with quiz titles.
func (r *QuizRepository) ListAttempts(ctx context.Context, userID uint) ([]AttemptSummary, error) {
	db := r.db.WithContext(ctx)
	var attempts []model.QuizAttempt
	if err := db.Where("user_id = ?", userID).Order("created_at DESC").Order("id DESC").Find(&attempts).Error; err != nil {
		return nil, fmt.Errorf("list quiz attempts failed: %w", err)
	}
	if len(attempts) == 0 {
		return []AttemptSummary{}, nil
	}

	ids := make([]uint, 0, len(attempts))
	for _, a := range attempts {
		ids = append(ids, a.BlueprintID)
	}
	var bps []model.QuizBlueprint
	if err := db.Select("id, title").Where("id IN ?", ids).Find(&bps).Error; err != nil {
		return nil, fmt.Errorf("list quiz titles failed: %w", err)
	}
	titles := make(map[uint]string, len(bps))
	for _, bp := range bps {
		titles[bp.ID] = bp.Title
	}

	out := make([]AttemptSummary, len(attempts))
	for i := range attempts {
		out[i] = AttemptSummary{QuizAttempt: attempts[i], QuizTitle: titles[attempts[i].BlueprintID]}
	}
	return out, nil
}
