package handler

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"studyhub/internal/app"
	"studyhub/internal/pkg/textextract"
	"studyhub/internal/platform/logger"
	"studyhub/internal/transport/http/response"
)

const uploadField = "document"

type DocumentHandler struct {
	documents *app.DocumentService
	uploadDir string
	maxBytes  int64
	log       *logger.Logger
}

func NewDocumentHandler(documents *app.DocumentService, uploadDir string, maxBytes int64, log *logger.Logger) *DocumentHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &DocumentHandler{documents: documents, uploadDir: uploadDir, maxBytes: maxBytes, log: log}
}

// Upload stores the multipart "document" file under a random name and
// registers it for background ingestion. The returned document is pending.
func (h *DocumentHandler) Upload(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	file, err := c.FormFile(uploadField)
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "missing document file")
		return
	}
	ext := filepath.Ext(file.Filename)
	mimeType, ok := textextract.MIMEFromExtension(ext)
	if !ok {
		response.Error(c, http.StatusBadRequest, response.CodeUnsupportedFile, "only .pdf, .docx and .txt files are allowed")
		return
	}
	if h.maxBytes > 0 && file.Size > h.maxBytes {
		response.Error(c, http.StatusRequestEntityTooLarge, response.CodeFileTooLarge, app.ErrFileTooLarge.Error())
		return
	}

	if err := os.MkdirAll(h.uploadDir, 0o755); err != nil {
		h.log.Error("create upload dir failed", "dir", h.uploadDir, "err", err)
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "store upload failed")
		return
	}
	stored := filepath.Join(h.uploadDir, uuid.NewString()+ext)
	if err := c.SaveUploadedFile(file, stored); err != nil {
		h.log.Error("save upload failed", "path", stored, "err", err)
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "store upload failed")
		return
	}

	doc, err := h.documents.Register(c.Request.Context(), app.RegisterDocumentInput{
		UserID:       userID,
		OriginalName: file.Filename,
		StoredPath:   stored,
		MIMEType:     mimeType,
		Size:         file.Size,
	})
	if err != nil {
		if errors.Is(err, app.ErrIngestDispatch) && doc != nil {
			response.ErrorWithData(c, http.StatusServiceUnavailable, response.CodeIngestUnavailable, app.ErrIngestDispatch.Error(), doc)
			return
		}
		_ = os.Remove(stored)
		writeServiceError(c, err, "upload document failed")
		return
	}
	response.OK(c, doc)
}

func (h *DocumentHandler) List(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	docs, err := h.documents.List(c.Request.Context(), userID)
	if err != nil {
		writeServiceError(c, err, "list documents failed")
		return
	}
	response.OK(c, docs)
}

func (h *DocumentHandler) Get(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	docID, ok := pathID(c, "document")
	if !ok {
		return
	}
	detail, err := h.documents.Get(c.Request.Context(), userID, docID)
	if err != nil {
		writeServiceError(c, err, "get document failed")
		return
	}
	response.OK(c, detail)
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	docID, ok := pathID(c, "document")
	if !ok {
		return
	}
	if err := h.documents.Delete(c.Request.Context(), userID, docID); err != nil {
		writeServiceError(c, err, "delete document failed")
		return
	}
	response.OK(c, gin.H{"deleted_document_id": docID})
}
