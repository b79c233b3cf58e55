package app

import (
	"context"
	"math"
	"time"

	"studyhub/internal/model"
)

// TopicLabeler decides which topic a quiz result counts toward.
type TopicLabeler interface {
	Topic(bp *model.QuizBlueprint) string
}

// BlueprintTitleTopic uses the quiz title as the topic label.
type BlueprintTitleTopic struct{}

func (BlueprintTitleTopic) Topic(bp *model.QuizBlueprint) string {
	return bp.Title
}

// BlendMastery folds a new observation into the stored level by averaging.
func BlendMastery(stored, observed float64) float64 {
	return (stored + observed) / 2
}

// blendConfidence keeps only the latest observation.
func blendConfidence(_, observed float64) float64 {
	return observed
}

// masteryFromScore maps a 0-100 score to a mastery level and a slightly
// lower confidence, floored at 0.1.
func masteryFromScore(score int) (level, confidence float64) {
	level = float64(score) / 100
	confidence = math.Max(0.1, level-0.1)
	return level, confidence
}

type masteryStore interface {
	Upsert(ctx context.Context, m *model.TopicMastery, merge func(existing, incoming *model.TopicMastery)) error
	ListByUserID(ctx context.Context, userID uint) ([]model.TopicMastery, error)
}

type MasteryUpdater struct {
	repo    masteryStore
	labeler TopicLabeler
	now     func() time.Time
}

func NewMasteryUpdater(repo masteryStore, labeler TopicLabeler) *MasteryUpdater {
	if labeler == nil {
		labeler = BlueprintTitleTopic{}
	}
	return &MasteryUpdater{repo: repo, labeler: labeler, now: time.Now}
}

// Record upserts the user's mastery for the blueprint's topic.
func (u *MasteryUpdater) Record(ctx context.Context, userID uint, bp *model.QuizBlueprint, score int) (*model.TopicMastery, error) {
	level, confidence := masteryFromScore(score)
	m := &model.TopicMastery{
		UserID:          userID,
		Topic:           u.labeler.Topic(bp),
		MasteryLevel:    level,
		ConfidenceScore: confidence,
		LastTested:      u.now(),
	}
	err := u.repo.Upsert(ctx, m, func(existing, incoming *model.TopicMastery) {
		existing.MasteryLevel = BlendMastery(existing.MasteryLevel, incoming.MasteryLevel)
		existing.ConfidenceScore = blendConfidence(existing.ConfidenceScore, incoming.ConfidenceScore)
		existing.LastTested = incoming.LastTested
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// List returns the user's topics, weakest first.
func (u *MasteryUpdater) List(ctx context.Context, userID uint) ([]model.TopicMastery, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	return u.repo.ListByUserID(ctx, userID)
}
