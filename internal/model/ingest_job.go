package model

// IngestJob asks a worker to ingest an already stored document.
type IngestJob struct {
	DocumentID uint   `json:"document_id"`
	FilePath   string `json:"file_path"`
	MIMEType   string `json:"mime_type"`
}
