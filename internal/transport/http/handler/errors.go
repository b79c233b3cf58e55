package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"studyhub/internal/app"
	"studyhub/internal/transport/http/middleware"
	"studyhub/internal/transport/http/response"
)

type errorMapping struct {
	err    error
	status int
	code   int
}

var errorMappings = []errorMapping{
	{app.ErrInvalidInput, http.StatusBadRequest, response.CodeBadRequest},
	{app.ErrUnsupportedFile, http.StatusBadRequest, response.CodeUnsupportedFile},
	{app.ErrFileTooLarge, http.StatusRequestEntityTooLarge, response.CodeFileTooLarge},
	{app.ErrMessageEmpty, http.StatusBadRequest, response.CodeMessageEmpty},
	{app.ErrNoSourceMaterial, http.StatusBadRequest, response.CodeNoSourceMaterial},
	{app.ErrDocumentNotFound, http.StatusNotFound, response.CodeDocumentNotFound},
	{app.ErrSessionNotFound, http.StatusNotFound, response.CodeSessionNotFound},
	{app.ErrQuizNotFound, http.StatusNotFound, response.CodeQuizNotFound},
	{app.ErrDocumentBusy, http.StatusConflict, response.CodeDocumentBusy},
	{app.ErrDocumentFinalized, http.StatusConflict, response.CodeDocumentBusy},
	{app.ErrQuizEmpty, http.StatusUnprocessableEntity, response.CodeQuizEmpty},
	{app.ErrRAGFailure, http.StatusBadGateway, response.CodeModelUnavailable},
	{app.ErrQuizGeneration, http.StatusBadGateway, response.CodeModelUnavailable},
	{app.ErrIngestDispatch, http.StatusServiceUnavailable, response.CodeIngestUnavailable},
}

// writeServiceError maps a service sentinel to its status and code. The
// sentinel's own text is shown; anything unrecognised gets fallback.
func writeServiceError(c *gin.Context, err error, fallback string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			response.Error(c, m.status, m.code, m.err.Error())
			return
		}
	}
	response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, fallback)
}

func currentUser(c *gin.Context) (uint, bool) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
	}
	return userID, ok
}

func pathID(c *gin.Context, what string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid "+what+" id")
		return 0, false
	}
	return uint(id), true
}
