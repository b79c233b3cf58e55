package handler

import (
	"github.com/gin-gonic/gin"

	"studyhub/internal/app"
	"studyhub/internal/transport/http/response"
)

type ChatHandler struct {
	chat *app.ChatService
}

type CreateSessionRequest struct {
	Title string `json:"title" binding:"max=256"`
}

type SendMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

type AskRequest struct {
	Question string `json:"question" binding:"required"`
}

func NewChatHandler(chat *app.ChatService) *ChatHandler {
	return &ChatHandler{chat: chat}
}

// Ask answers a single question without storing it.
func (h *ChatHandler) Ask(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, 400, response.CodeBadRequest, "invalid request payload")
		return
	}
	answer, err := h.chat.Ask(c.Request.Context(), userID, req.Question)
	if err != nil {
		writeServiceError(c, err, "answer question failed")
		return
	}
	response.OK(c, answer)
}

func (h *ChatHandler) CreateSession(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req CreateSessionRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, 400, response.CodeBadRequest, "invalid request payload")
			return
		}
	}
	session, err := h.chat.CreateSession(c.Request.Context(), userID, req.Title)
	if err != nil {
		writeServiceError(c, err, "create session failed")
		return
	}
	response.OK(c, session)
}

func (h *ChatHandler) ListSessions(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	sessions, err := h.chat.ListSessions(c.Request.Context(), userID)
	if err != nil {
		writeServiceError(c, err, "list sessions failed")
		return
	}
	response.OK(c, sessions)
}

func (h *ChatHandler) DeleteSession(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	sessionID, ok := pathID(c, "session")
	if !ok {
		return
	}
	if err := h.chat.DeleteSession(c.Request.Context(), userID, sessionID); err != nil {
		writeServiceError(c, err, "delete session failed")
		return
	}
	response.OK(c, gin.H{"deleted_session_id": sessionID})
}

func (h *ChatHandler) SendMessage(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	sessionID, ok := pathID(c, "session")
	if !ok {
		return
	}
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, 400, response.CodeBadRequest, "invalid request payload")
		return
	}
	result, err := h.chat.SendMessage(c.Request.Context(), userID, sessionID, req.Content)
	if err != nil {
		writeServiceError(c, err, "send message failed")
		return
	}
	response.OK(c, result)
}

func (h *ChatHandler) History(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	sessionID, ok := pathID(c, "session")
	if !ok {
		return
	}
	messages, err := h.chat.GetHistory(c.Request.Context(), userID, sessionID)
	if err != nil {
		writeServiceError(c, err, "get history failed")
		return
	}
	response.OK(c, messages)
}
