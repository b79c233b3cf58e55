package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"studyhub/internal/app"
	"studyhub/internal/model"
	"studyhub/internal/platform/logger"
	"studyhub/internal/platform/rabbitmq"
)

type documentProcessor interface {
	ProcessDocument(ctx context.Context, documentID uint, filePath, mimeType string) (*app.IngestionReport, error)
	AbandonDocument(ctx context.Context, documentID uint) (bool, error)
}

// IngestWorker consumes ingestion jobs from the broker and runs them one at
// a time per consumer.
type IngestWorker struct {
	conn      *amqp.Connection
	processor documentProcessor
	queue     string
	prefetch  int
	log       *logger.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewIngestWorker(conn *amqp.Connection, processor documentProcessor, queue string, prefetch int, log *logger.Logger) *IngestWorker {
	if prefetch < 1 {
		prefetch = 1
	}
	if log == nil {
		log = logger.Nop()
	}
	return &IngestWorker{
		conn:      conn,
		processor: processor,
		queue:     queue,
		prefetch:  prefetch,
		log:       log.With("component", "ingest_worker", "queue", queue),
	}
}

func (w *IngestWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	ch, err := w.conn.Channel()
	if err != nil {
		return fmt.Errorf("open worker channel failed: %w", err)
	}
	if err := rabbitmq.DeclareQueue(ch, w.queue); err != nil {
		_ = ch.Close()
		return err
	}
	if err := ch.Qos(w.prefetch, 0, false); err != nil {
		_ = ch.Close()
		return fmt.Errorf("set worker qos failed: %w", err)
	}
	deliveries, err := ch.Consume(w.queue, "", false, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()

		for {
			select {
			case <-workerCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					w.log.Warn("delivery channel closed")
					return
				}
				settle(d, w.handle(workerCtx, d.Body, d.Redelivered))
			}
		}
	}()

	w.log.Info("ingest worker started", "prefetch", w.prefetch)
	return nil
}

type outcome int

const (
	ack outcome = iota
	reject
)

// handle runs one job. Finalized documents are acknowledged so redelivery
// never reprocesses them; every other failure is dropped without requeue
// since ingestion already marked the document failed. A redelivered job
// whose document is still processing belongs to a consumer that died
// mid-run, so the document is marked failed.
func (w *IngestWorker) handle(ctx context.Context, body []byte, redelivered bool) outcome {
	job, err := rabbitmq.DecodeJob(body)
	if err != nil {
		w.log.Error("drop malformed ingest job", "err", err)
		return reject
	}
	return w.process(ctx, job, redelivered)
}

func (w *IngestWorker) process(ctx context.Context, job model.IngestJob, redelivered bool) outcome {
	log := w.log.With("document_id", job.DocumentID)
	report, err := w.processor.ProcessDocument(ctx, job.DocumentID, job.FilePath, job.MIMEType)
	switch {
	case err == nil:
		log.Info("ingest job done", "chunks", report.TotalChunks, "coverage", report.Coverage)
		return ack
	case errors.Is(err, app.ErrDocumentFinalized), errors.Is(err, app.ErrDocumentNotFound):
		log.Warn("skip ingest job", "err", err)
		return ack
	case redelivered && errors.Is(err, app.ErrDocumentBusy):
		if _, abandonErr := w.processor.AbandonDocument(ctx, job.DocumentID); abandonErr != nil {
			log.Error("mark interrupted document failed", "err", abandonErr)
			return reject
		}
		log.Warn("interrupted ingest job marked failed")
		return ack
	default:
		log.Error("ingest job failed", "err", err)
		return reject
	}
}

func settle(d amqp.Delivery, o outcome) {
	if o == ack {
		_ = d.Ack(false)
		return
	}
	_ = d.Nack(false, false)
}

func (w *IngestWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
