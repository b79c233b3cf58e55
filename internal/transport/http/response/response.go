package response

import "github.com/gin-gonic/gin"

const (
	CodeOK                = 0
	CodeBadRequest        = 40000
	CodeUnsupportedFile   = 40010
	CodeFileTooLarge      = 40011
	CodeMessageEmpty      = 40020
	CodeNoSourceMaterial  = 40030
	CodeUnauthorized      = 40100
	CodeSessionNotFound   = 40401
	CodeDocumentNotFound  = 40402
	CodeQuizNotFound      = 40403
	CodeDocumentBusy      = 40900
	CodeQuizEmpty         = 42200
	CodeInternalServer    = 50000
	CodeModelUnavailable  = 50200
	CodeIngestUnavailable = 50300
)

// RequestIDKey is the gin context key holding the request id.
const RequestIDKey = "request_id"

type APIResponse struct {
	Code      int         `json:"code"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
}

func OK(c *gin.Context, data interface{}) {
	c.JSON(200, APIResponse{
		Code:      CodeOK,
		Message:   "ok",
		Data:      data,
		RequestID: c.GetString(RequestIDKey),
	})
}

func Error(c *gin.Context, httpStatus, code int, message string) {
	c.JSON(httpStatus, APIResponse{
		Code:      code,
		Message:   message,
		RequestID: c.GetString(RequestIDKey),
	})
}

// ErrorWithData is used when a failure still produced a resource the client
// needs to see, such as a document whose ingestion could not be scheduled.
func ErrorWithData(c *gin.Context, httpStatus, code int, message string, data interface{}) {
	c.JSON(httpStatus, APIResponse{
		Code:      code,
		Message:   message,
		Data:      data,
		RequestID: c.GetString(RequestIDKey),
	})
}
