package app

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studyhub/internal/model"
	"studyhub/internal/repository"
)

const fourQuestions = "Here you go:\n```json\n" + `[
  {"question": "Which organelle makes ATP?", "type": "multiple_choice",
   "options": ["A) Nucleus", "B) Mitochondria", "C) Ribosome", "D) Golgi"],
   "correctAnswer": "B", "explanation": "Mitochondria produce ATP."},
  {"question": "Plants photosynthesise.", "type": "True/False",
   "options": ["True", "False"], "correctAnswer": true, "explanation": "Yes."},
  {"question": "Name the cell's control centre.", "type": "short answer",
   "correctAnswer": "nucleus", "explanation": "It holds DNA."},
  {"question": "How many chromosomes do human cells have?",
   "correctAnswer": 46, "explanation": "23 pairs."},
  {"question": "", "correctAnswer": "dropped"}
]` + "\n```"

func longText(prefix string) string {
	return prefix + " " + strings.Repeat("cells divide and grow. ", 6)
}

type quizFixture struct {
	*fixture
	repo      *repository.QuizRepository
	generator *fakeGenerator
	svc       *QuizService
}

func newQuizFixture(t *testing.T, reply string) *quizFixture {
	f := newFixture(t)
	repo := repository.NewQuizRepository(f.db)
	gen := &fakeGenerator{reply: reply}
	retriever := f.retriever().WithShuffle(func(int, func(i, j int)) {})
	mastery := NewMasteryUpdater(repository.NewTopicMasteryRepository(f.db), nil)
	return &quizFixture{
		fixture:   f,
		repo:      repo,
		generator: gen,
		svc:       NewQuizService(repo, retriever, gen, mastery, nil, nil, nil),
	}
}

func (qf *quizFixture) material(t *testing.T, userID uint) []*model.Chunk {
	doc := qf.document(t, userID, model.DocumentCompleted, "biology.pdf")
	return []*model.Chunk{
		qf.chunk(t, doc.ID, 0, longText("first"), nil),
		qf.chunk(t, doc.ID, 1, longText("second"), []float32{1}),
		qf.chunk(t, doc.ID, 2, "too short", nil),
	}
}

func TestParseQuestions(t *testing.T) {
	qs := parseQuestions(fourQuestions)
	require.Len(t, qs, 4)

	assert.Equal(t, model.QuestionMultipleChoice, qs[0].Type)
	assert.Len(t, qs[0].Options, 4)
	assert.Equal(t, flexString("B"), qs[0].CorrectAnswer)

	assert.Equal(t, model.QuestionTrueFalse, qs[1].Type)
	assert.Equal(t, flexString("True"), qs[1].CorrectAnswer)
	assert.Empty(t, qs[1].Options)

	assert.Equal(t, model.QuestionShortAnswer, qs[2].Type)
	assert.NotNil(t, qs[2].Options)

	assert.Equal(t, model.QuestionShortAnswer, qs[3].Type)
	assert.Equal(t, flexString("46"), qs[3].CorrectAnswer)
}

func TestParseQuestions_Unusable(t *testing.T) {
	for _, raw := range []string{
		"",
		"I cannot help with that.",
		"[not json]",
		`[{"question": "   ", "correctAnswer": "x"}]`,
		`[]`,
	} {
		assert.Nil(t, parseQuestions(raw), raw)
	}
}

func TestNormalizeQuestionType(t *testing.T) {
	assert.Equal(t, model.QuestionMultipleChoice, normalizeQuestionType("Multiple-Choice", 0))
	assert.Equal(t, model.QuestionTrueFalse, normalizeQuestionType("true false", 2))
	assert.Equal(t, model.QuestionMultipleChoice, normalizeQuestionType("mcq", 3))
	assert.Equal(t, model.QuestionShortAnswer, normalizeQuestionType("essay", 0))
}

func TestGenerate_StoresBlueprintWithAttribution(t *testing.T) {
	qf := newQuizFixture(t, fourQuestions)
	chunks := qf.material(t, 1)

	view, err := qf.svc.Generate(context.Background(), 1, QuizOptions{Title: "Cells", Difficulty: "Hard", QuestionCount: 3})
	require.NoError(t, err)
	assert.NotZero(t, view.ID)
	assert.Equal(t, "Cells", view.Title)
	assert.Equal(t, "hard", view.Difficulty)
	assert.Equal(t, []uint{chunks[0].ID, chunks[1].ID}, []uint(view.SourceChunkIDs))
	require.Len(t, view.Questions, 3)
	assert.Equal(t, chunks[0].ID, *view.Questions[0].SourceChunkID)
	assert.Equal(t, chunks[1].ID, *view.Questions[1].SourceChunkID)
	assert.Equal(t, chunks[0].ID, *view.Questions[2].SourceChunkID)

	require.Len(t, qf.generator.prompts, 1)
	prompt := qf.generator.prompts[0]
	assert.Contains(t, prompt, "generate 3 hard difficulty quiz questions")
	assert.Contains(t, prompt, "[From: biology.pdf]\n"+longText("first")+"\n\n---\n\n[From: biology.pdf]\n"+longText("second"))
	assert.NotContains(t, prompt, "too short")

	items, err := qf.repo.ListItems(context.Background(), view.ID)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "B", items[0].CorrectAnswer)
}

func TestGenerate_FallbackQuestion(t *testing.T) {
	qf := newQuizFixture(t, "Sorry, I can only answer in prose.")
	qf.material(t, 1)

	view, err := qf.svc.Generate(context.Background(), 1, QuizOptions{})
	require.NoError(t, err)
	assert.Equal(t, "Generated Quiz", view.Title)
	assert.Equal(t, "medium", view.Difficulty)
	require.Len(t, view.Questions, 1)
	assert.Equal(t, fallbackQuestion.Question, view.Questions[0].Question)
	assert.Equal(t, model.QuestionShortAnswer, view.Questions[0].QuestionType)
}

func TestGenerate_Failures(t *testing.T) {
	qf := newQuizFixture(t, fourQuestions)

	_, err := qf.svc.Generate(context.Background(), 1, QuizOptions{})
	assert.ErrorIs(t, err, ErrNoSourceMaterial)
	assert.Empty(t, qf.generator.prompts)

	qf.material(t, 1)
	_, err = qf.svc.Generate(context.Background(), 1, QuizOptions{Difficulty: "impossible"})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = qf.svc.Generate(context.Background(), 1, QuizOptions{QuestionCount: 51})
	assert.ErrorIs(t, err, ErrInvalidInput)

	qf.generator.err = errBoom
	_, err = qf.svc.Generate(context.Background(), 1, QuizOptions{})
	assert.ErrorIs(t, err, ErrQuizGeneration)

	blueprints, err := qf.svc.ListBlueprints(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, blueprints)
}

func TestGrade_ScoresAndRecordsAttempt(t *testing.T) {
	qf := newQuizFixture(t, fourQuestions)
	qf.material(t, 1)
	view, err := qf.svc.Generate(context.Background(), 1, QuizOptions{Title: "Cells", QuestionCount: 4})
	require.NoError(t, err)
	require.Len(t, view.Questions, 4)
	q := view.Questions

	res, err := qf.svc.Grade(context.Background(), 1, view.ID, map[uint]string{
		q[0].ID: "B",
		q[1].ID: "True",
		q[2].ID: "nucleus",
		q[3].ID: " 46",
	}, 120)
	require.NoError(t, err)
	assert.Equal(t, 75, res.Score)
	assert.Equal(t, 3, res.CorrectCount)
	assert.Equal(t, 4, res.TotalQuestions)
	assert.False(t, res.GradedAnswers[q[3].ID].IsCorrect)
	assert.Equal(t, "46", res.GradedAnswers[q[3].ID].CorrectAnswer)

	attempts, err := qf.svc.ListAttempts(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.Equal(t, "Cells", attempts[0].QuizTitle)
	assert.Equal(t, 120, attempts[0].TimeTaken)
	assert.True(t, attempts[0].Answers.Data()[q[0].ID].IsCorrect)

	var mastery model.TopicMastery
	require.NoError(t, qf.db.Where("user_id = ? AND topic = ?", 1, "Cells").First(&mastery).Error)
	assert.InDelta(t, 0.75, mastery.MasteryLevel, 1e-9)
}

func TestGrade_MissingAnswersAndOwnership(t *testing.T) {
	qf := newQuizFixture(t, fourQuestions)
	qf.material(t, 1)
	view, err := qf.svc.Generate(context.Background(), 1, QuizOptions{QuestionCount: 4})
	require.NoError(t, err)

	res, err := qf.svc.Grade(context.Background(), 1, view.ID, map[uint]string{view.Questions[0].ID: "B"}, 5)
	require.NoError(t, err)
	assert.Equal(t, 25, res.Score)
	assert.Len(t, res.GradedAnswers, 4)

	_, err = qf.svc.Grade(context.Background(), 2, view.ID, nil, 5)
	assert.ErrorIs(t, err, ErrQuizNotFound)
	_, err = qf.svc.Grade(context.Background(), 1, view.ID, nil, -1)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = qf.svc.Questions(context.Background(), 2, view.ID)
	assert.ErrorIs(t, err, ErrQuizNotFound)
}

type failingMasteryStore struct {
	upserts int
}

func (s *failingMasteryStore) Upsert(context.Context, *model.TopicMastery, func(existing, incoming *model.TopicMastery)) error {
	s.upserts++
	return assert.AnError
}

func (s *failingMasteryStore) ListByUserID(context.Context, uint) ([]model.TopicMastery, error) {
	return nil, assert.AnError
}

func TestGrade_MasteryFailureDoesNotFailGrading(t *testing.T) {
	qf := newQuizFixture(t, fourQuestions)
	qf.material(t, 1)
	store := &failingMasteryStore{}
	retriever := qf.retriever().WithShuffle(func(int, func(i, j int)) {})
	svc := NewQuizService(qf.repo, retriever, qf.generator, NewMasteryUpdater(store, nil), nil, nil, nil)

	view, err := svc.Generate(context.Background(), 1, QuizOptions{Title: "Cells", QuestionCount: 4})
	require.NoError(t, err)

	res, err := svc.Grade(context.Background(), 1, view.ID, map[uint]string{view.Questions[0].ID: "B"}, 30)
	require.NoError(t, err)
	assert.Equal(t, 25, res.Score)
	assert.Equal(t, 1, store.upserts)

	attempts, err := svc.ListAttempts(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.Equal(t, 25, attempts[0].Score)

	var count int64
	require.NoError(t, qf.db.Model(&model.TopicMastery{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestGrade_EmptyBlueprint(t *testing.T) {
	qf := newQuizFixture(t, "")
	bp := &model.QuizBlueprint{UserID: 1, Title: "Empty", Difficulty: "easy"}
	require.NoError(t, qf.repo.CreateBlueprint(context.Background(), bp, nil))

	_, err := qf.svc.Grade(context.Background(), 1, bp.ID, map[uint]string{}, 0)
	assert.ErrorIs(t, err, ErrQuizEmpty)
}

func TestScorePercent(t *testing.T) {
	cases := []struct{ correct, total, want int }{
		{0, 4, 0},
		{3, 4, 75},
		{1, 3, 33},
		{2, 3, 67},
		{1, 8, 13},
		{5, 5, 100},
		{0, 0, 0},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, scorePercent(tc.correct, tc.total), "%d/%d", tc.correct, tc.total)
	}
}
