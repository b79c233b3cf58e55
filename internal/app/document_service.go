package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"studyhub/internal/model"
	"studyhub/internal/pkg/textextract"
	"studyhub/internal/platform/logger"
)

// IngestDispatcher hands a stored document to background ingestion without
// waiting for it.
type IngestDispatcher interface {
	Dispatch(ctx context.Context, job model.IngestJob) error
}

type documentStore interface {
	Create(ctx context.Context, doc *model.Document) error
	ListByUserID(ctx context.Context, userID uint) ([]model.Document, error)
	GetByIDAndUserID(ctx context.Context, id, userID uint) (*model.Document, error)
	TransitionStatus(ctx context.Context, id uint, from []model.DocumentStatus, to model.DocumentStatus) (bool, error)
	DeleteCascade(ctx context.Context, id, userID uint) (bool, error)
}

type chunkCounter interface {
	CountByDocumentID(ctx context.Context, documentID uint) (total, embedded int64, err error)
}

type RegisterDocumentInput struct {
	UserID       uint
	OriginalName string
	StoredPath   string
	MIMEType     string
	Size         int64
}

type DocumentDetail struct {
	model.Document
	ChunkCount    int64   `json:"chunk_count"`
	EmbeddedCount int64   `json:"embedded_count"`
	Coverage      float64 `json:"coverage"`
}

type DocumentService struct {
	docs       documentStore
	chunks     chunkCounter
	dispatcher IngestDispatcher
	maxBytes   int64
	log        *logger.Logger
}

func NewDocumentService(docs documentStore, chunks chunkCounter, dispatcher IngestDispatcher, maxBytes int64, log *logger.Logger) *DocumentService {
	if log == nil {
		log = logger.Nop()
	}
	return &DocumentService{
		docs:       docs,
		chunks:     chunks,
		dispatcher: dispatcher,
		maxBytes:   maxBytes,
		log:        log.With("component", "documents"),
	}
}

// Register records an uploaded file as a pending document and schedules its
// ingestion. If scheduling fails the document is marked failed and
// ErrIngestDispatch is returned with it.
func (s *DocumentService) Register(ctx context.Context, input RegisterDocumentInput) (*model.Document, error) {
	name := strings.TrimSpace(input.OriginalName)
	if input.UserID == 0 || name == "" || input.StoredPath == "" {
		return nil, ErrInvalidInput
	}
	if !textextract.Supported(input.MIMEType) {
		return nil, ErrUnsupportedFile
	}
	if s.maxBytes > 0 && input.Size > s.maxBytes {
		return nil, ErrFileTooLarge
	}

	doc := &model.Document{
		UserID:           input.UserID,
		OriginalName:     name,
		StoredPath:       input.StoredPath,
		MIMEType:         input.MIMEType,
		FileSize:         input.Size,
		ProcessingStatus: model.DocumentPending,
	}
	if err := s.docs.Create(ctx, doc); err != nil {
		return nil, err
	}

	job := model.IngestJob{DocumentID: doc.ID, FilePath: doc.StoredPath, MIMEType: doc.MIMEType}
	if err := s.dispatcher.Dispatch(ctx, job); err != nil {
		s.log.Error("dispatch ingestion failed", "document_id", doc.ID, "err", err)
		if _, serr := s.docs.TransitionStatus(context.WithoutCancel(ctx), doc.ID,
			[]model.DocumentStatus{model.DocumentPending}, model.DocumentFailed); serr != nil {
			s.log.Error("could not mark document failed", "document_id", doc.ID, "err", serr)
		}
		doc.ProcessingStatus = model.DocumentFailed
		return doc, fmt.Errorf("%w: %v", ErrIngestDispatch, err)
	}
	s.log.Info("document registered", "document_id", doc.ID, "user_id", doc.UserID, "mime_type", doc.MIMEType)
	return doc, nil
}

func (s *DocumentService) List(ctx context.Context, userID uint) ([]model.Document, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	return s.docs.ListByUserID(ctx, userID)
}

func (s *DocumentService) Get(ctx context.Context, userID, documentID uint) (*DocumentDetail, error) {
	if userID == 0 || documentID == 0 {
		return nil, ErrInvalidInput
	}
	doc, err := s.docs.GetByIDAndUserID(ctx, documentID, userID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, ErrDocumentNotFound
	}
	total, embedded, err := s.chunks.CountByDocumentID(ctx, doc.ID)
	if err != nil {
		return nil, err
	}
	return &DocumentDetail{
		Document:      *doc,
		ChunkCount:    total,
		EmbeddedCount: embedded,
		Coverage:      coverage(total, embedded),
	}, nil
}

// Coverage returns the fraction of the document's chunks that have an
// embedding; 0 for a document without chunks.
func (s *DocumentService) Coverage(ctx context.Context, userID, documentID uint) (float64, error) {
	detail, err := s.Get(ctx, userID, documentID)
	if err != nil {
		return 0, err
	}
	return detail.Coverage, nil
}

// Delete removes the document, its chunks and embeddings, then the stored file.
func (s *DocumentService) Delete(ctx context.Context, userID, documentID uint) error {
	if userID == 0 || documentID == 0 {
		return ErrInvalidInput
	}
	doc, err := s.docs.GetByIDAndUserID(ctx, documentID, userID)
	if err != nil {
		return err
	}
	if doc == nil {
		return ErrDocumentNotFound
	}
	deleted, err := s.docs.DeleteCascade(ctx, documentID, userID)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrDocumentNotFound
	}
	if err := os.Remove(doc.StoredPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.log.Warn("remove stored file failed", "document_id", documentID, "path", doc.StoredPath, "err", err)
	}
	return nil
}

func coverage(total, embedded int64) float64 {
	if total == 0 {
		return 0
	}
	return float64(embedded) / float64(total)
}

// GoroutineDispatcher runs ingestion in-process on a detached goroutine. It
// is used when no message broker is configured.
type GoroutineDispatcher struct {
	ingestion *IngestionService
	log       *logger.Logger
	wg        sync.WaitGroup
}

func NewGoroutineDispatcher(ingestion *IngestionService, log *logger.Logger) *GoroutineDispatcher {
	if log == nil {
		log = logger.Nop()
	}
	return &GoroutineDispatcher{ingestion: ingestion, log: log}
}

func (d *GoroutineDispatcher) Dispatch(_ context.Context, job model.IngestJob) error {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		// the request context ends with the upload response
		if _, err := d.ingestion.ProcessDocument(context.Background(), job.DocumentID, job.FilePath, job.MIMEType); err != nil {
			d.log.Error("background ingestion failed", "document_id", job.DocumentID, "err", err)
		}
	}()
	return nil
}

// Wait blocks until every dispatched ingestion has returned.
func (d *GoroutineDispatcher) Wait() {
	d.wg.Wait()
}
