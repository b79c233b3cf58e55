package model

import (
	"time"

	"gorm.io/datatypes"
)

const (
	QuestionMultipleChoice = "multiple_choice"
	QuestionTrueFalse      = "true_false"
	QuestionShortAnswer    = "short_answer"
)

type QuizBlueprint struct {
	ID             uint                      `gorm:"primaryKey" json:"id"`
	UserID         uint                      `gorm:"not null;index" json:"user_id"`
	Title          string                    `gorm:"size:256;not null" json:"title"`
	Description    string                    `gorm:"type:text" json:"description"`
	SourceChunkIDs datatypes.JSONSlice[uint] `json:"source_chunk_ids"`
	Difficulty     string                    `gorm:"size:16;not null" json:"difficulty"`
	CreatedAt      time.Time                 `json:"created_at"`
	UpdatedAt      time.Time                 `json:"updated_at"`
}

type QuizItem struct {
	ID            uint                        `gorm:"primaryKey" json:"id"`
	BlueprintID   uint                        `gorm:"not null;index" json:"blueprint_id"`
	Question      string                      `gorm:"type:text;not null" json:"question"`
	QuestionType  string                      `gorm:"size:32;not null" json:"question_type"`
	Options       datatypes.JSONSlice[string] `json:"options"`
	CorrectAnswer string                      `gorm:"type:text;not null" json:"-"`
	Explanation   string                      `gorm:"type:text" json:"explanation"`
	SourceChunkID *uint                       `json:"source_chunk_id,omitempty"`
}

// GradedAnswer is the per-question review record kept on an attempt.
type GradedAnswer struct {
	Question      string `json:"question"`
	UserAnswer    string `json:"user_answer"`
	CorrectAnswer string `json:"correct_answer"`
	IsCorrect     bool   `json:"is_correct"`
}

type QuizAttempt struct {
	ID             uint                                       `gorm:"primaryKey" json:"id"`
	UserID         uint                                       `gorm:"not null;index" json:"user_id"`
	BlueprintID    uint                                       `gorm:"not null;index" json:"blueprint_id"`
	Score          int                                        `gorm:"not null" json:"score"`
	TotalQuestions int                                        `gorm:"not null" json:"total_questions"`
	CorrectCount   int                                        `gorm:"not null" json:"correct_count"`
	TimeTaken      int                                        `gorm:"not null" json:"time_taken"`
	Answers        datatypes.JSONType[map[uint]GradedAnswer] `json:"answers"`
	CreatedAt      time.Time                                  `json:"created_at"`
}

type TopicMastery struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	UserID          uint      `gorm:"not null;uniqueIndex:idx_topic_mastery_user_topic,priority:1" json:"user_id"`
	Topic           string    `gorm:"size:255;not null;uniqueIndex:idx_topic_mastery_user_topic,priority:2" json:"topic"`
	MasteryLevel    float64   `gorm:"not null" json:"mastery_level"`
	ConfidenceScore float64   `gorm:"not null" json:"confidence_score"`
	LastTested      time.Time `json:"last_tested"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (TopicMastery) TableName() string { return "topic_mastery" }
