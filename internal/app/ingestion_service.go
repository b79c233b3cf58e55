package app

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"studyhub/internal/model"
	"studyhub/internal/observability"
	"studyhub/internal/pkg/chunker"
	"studyhub/internal/pkg/taskqueue"
	"studyhub/internal/pkg/textextract"
	"studyhub/internal/platform/logger"
)

type documentStatusStore interface {
	GetByID(ctx context.Context, id uint) (*model.Document, error)
	TransitionStatus(ctx context.Context, id uint, from []model.DocumentStatus, to model.DocumentStatus) (bool, error)
}

type chunkWriter interface {
	Create(ctx context.Context, chunk *model.Chunk) error
	CreateEmbedding(ctx context.Context, emb *model.Embedding) error
}

// ExtractFunc turns a stored file into plain text.
type ExtractFunc func(path, mimeType string) (string, error)

// IngestionReport summarises one ingestion run. Coverage is the fraction of
// stored chunks that received an embedding.
type IngestionReport struct {
	DocumentID       uint    `json:"document_id"`
	TotalChunks      int     `json:"total_chunks"`
	EmbeddedChunks   int     `json:"embedded_chunks"`
	FailedEmbeddings int     `json:"failed_embeddings"`
	Coverage         float64 `json:"coverage"`
}

type IngestionService struct {
	docs           documentStatusStore
	chunks         chunkWriter
	embedder       Embedder
	splitter       chunker.Chunker
	scheduler      taskqueue.Scheduler
	extract        ExtractFunc
	embeddingModel string
	log            *logger.Logger
	metrics        *observability.Metrics
}

type IngestionConfig struct {
	ChunkSize        int
	ChunkOverlap     int
	EmbedConcurrency int
	EmbeddingModel   string
}

func NewIngestionService(
	docs documentStatusStore,
	chunks chunkWriter,
	embedder Embedder,
	cfg IngestionConfig,
	log *logger.Logger,
	metrics *observability.Metrics,
) *IngestionService {
	if log == nil {
		log = logger.Nop()
	}
	return &IngestionService{
		docs:           docs,
		chunks:         chunks,
		embedder:       embedder,
		splitter:       chunker.New(cfg.ChunkSize, cfg.ChunkOverlap),
		scheduler:      taskqueue.ForConcurrency(cfg.EmbedConcurrency),
		extract:        textextract.ExtractFile,
		embeddingModel: cfg.EmbeddingModel,
		log:            log.With("component", "ingestion"),
		metrics:        metrics,
	}
}

// WithExtractor replaces the file extractor.
func (s *IngestionService) WithExtractor(fn ExtractFunc) *IngestionService {
	s.extract = fn
	return s
}

// WithScheduler replaces the per-chunk scheduler.
func (s *IngestionService) WithScheduler(sch taskqueue.Scheduler) *IngestionService {
	s.scheduler = sch
	return s
}

// ProcessDocument extracts, chunks and embeds a pending document. A failed
// embedding is logged and skipped; the document still completes. Any other
// failure after the document is claimed, a chunk write included, leaves it
// failed.
func (s *IngestionService) ProcessDocument(ctx context.Context, documentID uint, filePath, mimeType string) (*IngestionReport, error) {
	log := s.log.With("document_id", documentID)

	claimed, err := s.docs.TransitionStatus(ctx, documentID,
		[]model.DocumentStatus{model.DocumentPending}, model.DocumentProcessing)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, s.claimError(ctx, documentID)
	}
	log.Info("ingestion started", "mime_type", mimeType)

	text, err := s.extract(filePath, mimeType)
	if err != nil {
		s.fail(ctx, documentID, log, "extraction failed", err)
		return nil, fmt.Errorf("extract document %d failed: %w", documentID, err)
	}

	passages := s.splitter.Split(text)
	if len(passages) == 0 {
		s.fail(ctx, documentID, log, "chunking produced no passages", textextract.ErrEmptyDocument)
		return nil, fmt.Errorf("chunk document %d failed: %w", documentID, textextract.ErrEmptyDocument)
	}

	var (
		stored, embedded, embedFailed int64
		storeErr                      error
		storeOnce                     sync.Once
	)
	tasks := make([]taskqueue.Task, len(passages))
	for i, content := range passages {
		ordinal, content := i, content
		tasks[i] = func(ctx context.Context) {
			chunk := &model.Chunk{DocumentID: documentID, ChunkIndex: ordinal, Content: content}
			if err := s.chunks.Create(ctx, chunk); err != nil {
				storeOnce.Do(func() {
					storeErr = fmt.Errorf("store chunk %d of document %d failed: %w", ordinal, documentID, err)
				})
				return
			}
			atomic.AddInt64(&stored, 1)

			if s.embedChunk(ctx, log, chunk) {
				atomic.AddInt64(&embedded, 1)
			} else {
				atomic.AddInt64(&embedFailed, 1)
			}
		}
	}
	if err := s.scheduler.Run(ctx, tasks); err != nil {
		s.fail(ctx, documentID, log, "ingestion interrupted", err)
		return nil, fmt.Errorf("ingest document %d interrupted: %w", documentID, err)
	}
	// a missing chunk would leave a gap in the ordinals
	if storeErr != nil {
		s.fail(ctx, documentID, log, "chunk storage failed", storeErr)
		return nil, storeErr
	}

	if _, err := s.docs.TransitionStatus(context.WithoutCancel(ctx), documentID,
		[]model.DocumentStatus{model.DocumentProcessing}, model.DocumentCompleted); err != nil {
		s.fail(ctx, documentID, log, "mark completed failed", err)
		return nil, err
	}

	report := &IngestionReport{
		DocumentID:       documentID,
		TotalChunks:      int(stored),
		EmbeddedChunks:   int(embedded),
		FailedEmbeddings: int(embedFailed),
		Coverage:         float64(embedded) / float64(stored),
	}
	s.metrics.ObserveIngestion(string(model.DocumentCompleted), report.EmbeddedChunks, report.FailedEmbeddings, report.Coverage)
	log.Info("ingestion completed",
		"chunks", report.TotalChunks,
		"embedded", report.EmbeddedChunks,
		"failed_embeddings", report.FailedEmbeddings,
		"coverage", report.Coverage,
	)
	return report, nil
}

func (s *IngestionService) embedChunk(ctx context.Context, log *logger.Logger, chunk *model.Chunk) bool {
	started := time.Now()
	vec, err := s.embedder.Embed(ctx, chunk.Content)
	s.metrics.ObserveModelCall("embed", started, err)
	if err != nil {
		log.Warn("embedding failed, chunk kept without vector", "chunk_id", chunk.ID, "err", err)
		return false
	}
	emb := &model.Embedding{ChunkID: chunk.ID, Model: s.embeddingModel}
	emb.SetValues(vec)
	if err := s.chunks.CreateEmbedding(ctx, emb); err != nil {
		log.Warn("store embedding failed", "chunk_id", chunk.ID, "err", err)
		return false
	}
	return true
}

func (s *IngestionService) claimError(ctx context.Context, documentID uint) error {
	doc, err := s.docs.GetByID(ctx, documentID)
	if err != nil {
		return err
	}
	switch {
	case doc == nil:
		return ErrDocumentNotFound
	case doc.ProcessingStatus.Final():
		return ErrDocumentFinalized
	default:
		return ErrDocumentBusy
	}
}

// AbandonDocument marks a document failed when a previous run claimed it
// and never finished, e.g. a worker that died before acknowledging its job.
// It reports false when the document is not processing.
func (s *IngestionService) AbandonDocument(ctx context.Context, documentID uint) (bool, error) {
	moved, err := s.docs.TransitionStatus(context.WithoutCancel(ctx), documentID,
		[]model.DocumentStatus{model.DocumentProcessing}, model.DocumentFailed)
	if err != nil {
		return false, err
	}
	if moved {
		s.log.Warn("abandoned interrupted ingestion", "document_id", documentID)
		s.metrics.ObserveIngestion(string(model.DocumentFailed), 0, 0, 0)
	}
	return moved, nil
}

func (s *IngestionService) fail(ctx context.Context, documentID uint, log *logger.Logger, reason string, cause error) {
	log.Error(reason, "err", cause)
	// the status must be written even when ctx is already cancelled
	if _, err := s.docs.TransitionStatus(context.WithoutCancel(ctx), documentID,
		[]model.DocumentStatus{model.DocumentPending, model.DocumentProcessing}, model.DocumentFailed); err != nil {
		log.Error("could not mark document failed", "err", err)
	}
	s.metrics.ObserveIngestion(string(model.DocumentFailed), 0, 0, 0)
}
