package app

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"studyhub/internal/model"
)

const quizPromptTemplate = `Based on the following study material, generate %d %s difficulty quiz questions.

Study Material:
%s

Please generate questions in the following JSON format:
[
  {
    "question": "Question text",
    "type": "multiple_choice",
    "options": ["A) Option 1", "B) Option 2", "C) Option 3", "D) Option 4"],
    "correctAnswer": "A",
    "explanation": "Explanation of why this is correct"
  },
  {
    "question": "Question text",
    "type": "true_false",
    "options": ["True", "False"],
    "correctAnswer": "True",
    "explanation": "Explanation"
  }
]

Mix different question types (multiple choice, true/false, short answer). Make sure questions test understanding, not just memorization.
Respond with the JSON array only.`

// fallbackQuestion is used when the model output holds no usable question.
var fallbackQuestion = generatedQuestion{
	Question:      "What is the main topic discussed in this material?",
	Type:          model.QuestionShortAnswer,
	Options:       []string{},
	CorrectAnswer: "See explanation",
	Explanation:   "This is a general question about the material content.",
}

type generatedQuestion struct {
	Question      string     `json:"question"`
	Type          string     `json:"type"`
	Options       []string   `json:"options"`
	CorrectAnswer flexString `json:"correctAnswer"`
	Explanation   string     `json:"explanation"`
}

// flexString accepts a JSON string, number or boolean.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case bool:
		if t {
			*f = "True"
		} else {
			*f = "False"
		}
	case float64:
		*f = flexString(strconv.FormatFloat(t, 'f', -1, 64))
	case nil:
		*f = ""
	default:
		return fmt.Errorf("unsupported answer value %s", string(b))
	}
	return nil
}

func buildQuizContext(sources []RetrievedChunk) string {
	parts := make([]string, len(sources))
	for i, c := range sources {
		parts[i] = fmt.Sprintf("[From: %s]\n%s", c.DocumentName, c.Content)
	}
	return strings.Join(parts, "\n\n---\n\n")
}

func buildQuizPrompt(sources []RetrievedChunk, count int, difficulty string) string {
	return fmt.Sprintf(quizPromptTemplate, count, difficulty, buildQuizContext(sources))
}

// parseQuestions extracts the question array from model output, tolerating
// code fences and prose around it. Entries without question text or answer
// are dropped. A nil result means nothing usable was found.
func parseQuestions(raw string) []generatedQuestion {
	start := strings.Index(raw, "[")
	end := strings.LastIndex(raw, "]")
	if start < 0 || end <= start {
		return nil
	}
	var parsed []generatedQuestion
	if err := json.Unmarshal([]byte(raw[start:end+1]), &parsed); err != nil {
		return nil
	}

	out := make([]generatedQuestion, 0, len(parsed))
	for _, q := range parsed {
		q.Question = strings.TrimSpace(q.Question)
		q.CorrectAnswer = flexString(strings.TrimSpace(string(q.CorrectAnswer)))
		if q.Question == "" || q.CorrectAnswer == "" {
			continue
		}
		q.Type = normalizeQuestionType(q.Type, len(q.Options))
		if q.Type != model.QuestionMultipleChoice {
			q.Options = []string{}
		}
		if q.Options == nil {
			q.Options = []string{}
		}
		out = append(out, q)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func normalizeQuestionType(raw string, optionCount int) string {
	t := strings.ToLower(strings.TrimSpace(raw))
	t = strings.NewReplacer("-", "_", " ", "_", "/", "_").Replace(t)
	switch t {
	case model.QuestionMultipleChoice, model.QuestionTrueFalse, model.QuestionShortAnswer:
		return t
	}
	if optionCount > 0 {
		return model.QuestionMultipleChoice
	}
	return model.QuestionShortAnswer
}
