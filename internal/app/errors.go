package app

import "errors"

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrUnsupportedFile   = errors.New("unsupported file type")
	ErrFileTooLarge      = errors.New("file too large")
	ErrDocumentNotFound  = errors.New("document not found")
	ErrDocumentFinalized = errors.New("document already processed")
	ErrDocumentBusy      = errors.New("document is being processed")
	ErrIngestDispatch    = errors.New("ingestion could not be scheduled")
	ErrSessionNotFound   = errors.New("session not found")
	ErrMessageEmpty      = errors.New("message content is empty")
	ErrRAGFailure        = errors.New("failed to process question with RAG")
	ErrNoSourceMaterial  = errors.New("no documents available to generate quiz from")
	ErrQuizGeneration    = errors.New("failed to generate quiz questions")
	ErrQuizNotFound      = errors.New("quiz not found")
	ErrQuizEmpty         = errors.New("quiz has no questions")
)
