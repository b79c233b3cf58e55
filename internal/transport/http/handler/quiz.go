package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"studyhub/internal/app"
	"studyhub/internal/transport/http/response"
)

type QuizHandler struct {
	quizzes *app.QuizService
	mastery *app.MasteryUpdater
}

type SubmitAttemptRequest struct {
	Answers   map[uint]string `json:"answers"`
	TimeTaken int             `json:"time_taken" binding:"gte=0"`
}

func NewQuizHandler(quizzes *app.QuizService, mastery *app.MasteryUpdater) *QuizHandler {
	return &QuizHandler{quizzes: quizzes, mastery: mastery}
}

func (h *QuizHandler) Generate(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var opts app.QuizOptions
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&opts); err != nil {
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
			return
		}
	}
	view, err := h.quizzes.Generate(c.Request.Context(), userID, opts)
	if err != nil {
		writeServiceError(c, err, "generate quiz failed")
		return
	}
	response.OK(c, view)
}

func (h *QuizHandler) ListBlueprints(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	blueprints, err := h.quizzes.ListBlueprints(c.Request.Context(), userID)
	if err != nil {
		writeServiceError(c, err, "list quizzes failed")
		return
	}
	response.OK(c, blueprints)
}

func (h *QuizHandler) Questions(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	blueprintID, ok := pathID(c, "quiz")
	if !ok {
		return
	}
	view, err := h.quizzes.Questions(c.Request.Context(), userID, blueprintID)
	if err != nil {
		writeServiceError(c, err, "get questions failed")
		return
	}
	response.OK(c, view)
}

func (h *QuizHandler) SubmitAttempt(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	blueprintID, ok := pathID(c, "quiz")
	if !ok {
		return
	}
	var req SubmitAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	result, err := h.quizzes.Grade(c.Request.Context(), userID, blueprintID, req.Answers, req.TimeTaken)
	if err != nil {
		writeServiceError(c, err, "grade quiz failed")
		return
	}
	response.OK(c, result)
}

func (h *QuizHandler) ListAttempts(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	attempts, err := h.quizzes.ListAttempts(c.Request.Context(), userID)
	if err != nil {
		writeServiceError(c, err, "list attempts failed")
		return
	}
	response.OK(c, attempts)
}

// Mastery lists the caller's topics, weakest first.
func (h *QuizHandler) Mastery(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	topics, err := h.mastery.List(c.Request.Context(), userID)
	if err != nil {
		writeServiceError(c, err, "list mastery failed")
		return
	}
	response.OK(c, topics)
}
