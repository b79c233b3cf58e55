package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/datatypes"

	"studyhub/internal/model"
	"studyhub/internal/observability"
	"studyhub/internal/platform/logger"
	"studyhub/internal/repository"
)

const (
	defaultQuizTitle      = "Generated Quiz"
	defaultQuizDifficulty = "medium"
	defaultQuestionCount  = 10
)

type QuizOptions struct {
	Title         string `json:"title" validate:"max=255"`
	Description   string `json:"description" validate:"max=2000"`
	Difficulty    string `json:"difficulty" validate:"oneof=easy medium hard"`
	QuestionCount int    `json:"question_count" validate:"min=1,max=50"`
}

func (o QuizOptions) withDefaults() QuizOptions {
	o.Title = strings.TrimSpace(o.Title)
	if o.Title == "" {
		o.Title = defaultQuizTitle
	}
	o.Description = strings.TrimSpace(o.Description)
	o.Difficulty = strings.ToLower(strings.TrimSpace(o.Difficulty))
	if o.Difficulty == "" {
		o.Difficulty = defaultQuizDifficulty
	}
	if o.QuestionCount == 0 {
		o.QuestionCount = defaultQuestionCount
	}
	return o
}

// AttributionStrategy picks the source chunk credited for the i-th question.
type AttributionStrategy interface {
	Attribute(index int, sources []RetrievedChunk) *uint
}

// RoundRobinAttribution credits sources[i mod len(sources)].
type RoundRobinAttribution struct{}

func (RoundRobinAttribution) Attribute(index int, sources []RetrievedChunk) *uint {
	if len(sources) == 0 {
		return nil
	}
	id := sources[index%len(sources)].ChunkID
	return &id
}

// QuizQuestion is a question as shown to the quiz taker; it never carries
// the correct answer.
type QuizQuestion struct {
	ID            uint     `json:"id"`
	Question      string   `json:"question"`
	QuestionType  string   `json:"question_type"`
	Options       []string `json:"options"`
	Explanation   string   `json:"explanation"`
	SourceChunkID *uint    `json:"source_chunk_id,omitempty"`
}

type QuizView struct {
	model.QuizBlueprint
	Questions []QuizQuestion `json:"questions"`
}

type GradeResult struct {
	AttemptID      uint                        `json:"attempt_id"`
	Score          int                         `json:"score"`
	CorrectCount   int                         `json:"correct_count"`
	TotalQuestions int                         `json:"total_questions"`
	GradedAnswers  map[uint]model.GradedAnswer `json:"graded_answers"`
}

type quizStore interface {
	CreateBlueprint(ctx context.Context, bp *model.QuizBlueprint, items []model.QuizItem) error
	GetBlueprint(ctx context.Context, id, userID uint) (*model.QuizBlueprint, error)
	ListItems(ctx context.Context, blueprintID uint) ([]model.QuizItem, error)
	ListBlueprints(ctx context.Context, userID uint) ([]repository.BlueprintSummary, error)
	CreateAttempt(ctx context.Context, attempt *model.QuizAttempt) error
	ListAttempts(ctx context.Context, userID uint) ([]repository.AttemptSummary, error)
}

type QuizService struct {
	repo        quizStore
	retriever   *Retriever
	generator   Generator
	mastery     *MasteryUpdater
	attribution AttributionStrategy
	validate    *validator.Validate
	log         *logger.Logger
	metrics     *observability.Metrics
}

func NewQuizService(
	repo quizStore,
	retriever *Retriever,
	generator Generator,
	mastery *MasteryUpdater,
	attribution AttributionStrategy,
	log *logger.Logger,
	metrics *observability.Metrics,
) *QuizService {
	if attribution == nil {
		attribution = RoundRobinAttribution{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &QuizService{
		repo:        repo,
		retriever:   retriever,
		generator:   generator,
		mastery:     mastery,
		attribution: attribution,
		validate:    validator.New(),
		log:         log.With("component", "quiz"),
		metrics:     metrics,
	}
}

// Generate samples the user's material, asks the model for questions and
// stores them as a new blueprint. Unparseable model output yields a single
// generic question rather than an error.
func (s *QuizService) Generate(ctx context.Context, userID uint, opts QuizOptions) (*QuizView, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	opts = opts.withDefaults()
	if err := s.validate.Struct(opts); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	sources := s.retriever.Sample(ctx, userID, opts.QuestionCount)
	if len(sources) == 0 {
		return nil, ErrNoSourceMaterial
	}

	started := time.Now()
	raw, err := s.generator.Generate(ctx, buildQuizPrompt(sources, opts.QuestionCount, opts.Difficulty))
	s.metrics.ObserveModelCall("generate", started, err)
	if err != nil {
		s.log.Error("quiz generation failed", "user_id", userID, "err", err)
		return nil, fmt.Errorf("%w: %v", ErrQuizGeneration, err)
	}

	questions := parseQuestions(raw)
	if len(questions) == 0 {
		s.log.Warn("model returned no parseable questions, using fallback", "user_id", userID)
		questions = []generatedQuestion{fallbackQuestion}
	}
	if len(questions) > opts.QuestionCount {
		questions = questions[:opts.QuestionCount]
	}

	sourceIDs := make([]uint, len(sources))
	for i, c := range sources {
		sourceIDs[i] = c.ChunkID
	}
	bp := &model.QuizBlueprint{
		UserID:         userID,
		Title:          opts.Title,
		Description:    opts.Description,
		SourceChunkIDs: sourceIDs,
		Difficulty:     opts.Difficulty,
	}
	items := make([]model.QuizItem, len(questions))
	for i, q := range questions {
		items[i] = model.QuizItem{
			Question:      q.Question,
			QuestionType:  q.Type,
			Options:       q.Options,
			CorrectAnswer: string(q.CorrectAnswer),
			Explanation:   q.Explanation,
			SourceChunkID: s.attribution.Attribute(i, sources),
		}
	}
	if err := s.repo.CreateBlueprint(ctx, bp, items); err != nil {
		return nil, err
	}
	s.log.Info("quiz generated", "user_id", userID, "blueprint_id", bp.ID, "questions", len(items), "sources", len(sources))
	return newQuizView(*bp, items), nil
}

// Questions returns a blueprint's questions without their answers.
func (s *QuizService) Questions(ctx context.Context, userID, blueprintID uint) (*QuizView, error) {
	bp, err := s.ownedBlueprint(ctx, userID, blueprintID)
	if err != nil {
		return nil, err
	}
	items, err := s.repo.ListItems(ctx, bp.ID)
	if err != nil {
		return nil, err
	}
	return newQuizView(*bp, items), nil
}

func (s *QuizService) ListBlueprints(ctx context.Context, userID uint) ([]repository.BlueprintSummary, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	return s.repo.ListBlueprints(ctx, userID)
}

func (s *QuizService) ListAttempts(ctx context.Context, userID uint) ([]repository.AttemptSummary, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	return s.repo.ListAttempts(ctx, userID)
}

// Grade scores answers (question id to submitted answer) against the stored
// answers, records the attempt and updates topic mastery. A question without
// a submitted answer counts as incorrect. Mastery errors are logged only.
func (s *QuizService) Grade(ctx context.Context, userID, blueprintID uint, answers map[uint]string, timeTaken int) (*GradeResult, error) {
	if timeTaken < 0 {
		return nil, ErrInvalidInput
	}
	bp, err := s.ownedBlueprint(ctx, userID, blueprintID)
	if err != nil {
		return nil, err
	}
	items, err := s.repo.ListItems(ctx, bp.ID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrQuizEmpty
	}

	graded := make(map[uint]model.GradedAnswer, len(items))
	correct := 0
	for _, item := range items {
		submitted, ok := answers[item.ID]
		isCorrect := ok && answersMatch(submitted, item.CorrectAnswer)
		if isCorrect {
			correct++
		}
		graded[item.ID] = model.GradedAnswer{
			Question:      item.Question,
			UserAnswer:    submitted,
			CorrectAnswer: item.CorrectAnswer,
			IsCorrect:     isCorrect,
		}
	}
	score := scorePercent(correct, len(items))

	attempt := &model.QuizAttempt{
		UserID:         userID,
		BlueprintID:    bp.ID,
		Score:          score,
		TotalQuestions: len(items),
		CorrectCount:   correct,
		TimeTaken:      timeTaken,
		Answers:        datatypes.NewJSONType(graded),
	}
	if err := s.repo.CreateAttempt(ctx, attempt); err != nil {
		return nil, err
	}
	s.metrics.ObserveGrade(score)

	if s.mastery != nil {
		if _, err := s.mastery.Record(ctx, userID, bp, score); err != nil {
			s.log.Error("update topic mastery failed", "user_id", userID, "blueprint_id", bp.ID, "err", err)
		}
	}

	return &GradeResult{
		AttemptID:      attempt.ID,
		Score:          score,
		CorrectCount:   correct,
		TotalQuestions: len(items),
		GradedAnswers:  graded,
	}, nil
}

func (s *QuizService) ownedBlueprint(ctx context.Context, userID, blueprintID uint) (*model.QuizBlueprint, error) {
	if userID == 0 || blueprintID == 0 {
		return nil, ErrInvalidInput
	}
	bp, err := s.repo.GetBlueprint(ctx, blueprintID, userID)
	if err != nil {
		return nil, err
	}
	if bp == nil {
		return nil, ErrQuizNotFound
	}
	return bp, nil
}

// answersMatch is exact, case- and whitespace-sensitive string equality.
func answersMatch(submitted, expected string) bool {
	return submitted == expected
}

// scorePercent is round(correct/total*100) with halves rounded up.
func scorePercent(correct, total int) int {
	if total <= 0 {
		return 0
	}
	return (correct*200 + total) / (2 * total)
}

func newQuizView(bp model.QuizBlueprint, items []model.QuizItem) *QuizView {
	view := &QuizView{QuizBlueprint: bp, Questions: make([]QuizQuestion, len(items))}
	for i, item := range items {
		options := []string(item.Options)
		if options == nil {
			options = []string{}
		}
		view.Questions[i] = QuizQuestion{
			ID:            item.ID,
			Question:      item.Question,
			QuestionType:  item.QuestionType,
			Options:       options,
			Explanation:   item.Explanation,
			SourceChunkID: item.SourceChunkID,
		}
	}
	return view
}
