package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"studyhub/internal/model"
)

// IngestPublisher enqueues ingestion jobs as persistent JSON messages.
type IngestPublisher struct {
	conn  *amqp.Connection
	queue string
}

func NewIngestPublisher(conn *amqp.Connection, queue string) *IngestPublisher {
	return &IngestPublisher{conn: conn, queue: queue}
}

// Dispatch publishes the job; it returns once the broker accepted the
// message, not when ingestion finishes.
func (p *IngestPublisher) Dispatch(ctx context.Context, job model.IngestJob) error {
	payload, err := EncodeJob(job)
	if err != nil {
		return err
	}

	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("open rabbitmq channel failed: %w", err)
	}
	defer ch.Close()

	if err := DeclareQueue(ch, p.queue); err != nil {
		return err
	}
	err = ch.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		Body:         payload,
		DeliveryMode: amqp.Persistent,
		Type:         "document.ingest",
	})
	if err != nil {
		return fmt.Errorf("publish ingest job failed: %w", err)
	}
	return nil
}

func EncodeJob(job model.IngestJob) ([]byte, error) {
	if job.DocumentID == 0 {
		return nil, fmt.Errorf("encode ingest job failed: missing document id")
	}
	payload, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("encode ingest job failed: %w", err)
	}
	return payload, nil
}

func DecodeJob(body []byte) (model.IngestJob, error) {
	var job model.IngestJob
	if err := json.Unmarshal(body, &job); err != nil {
		return model.IngestJob{}, fmt.Errorf("decode ingest job failed: %w", err)
	}
	if job.DocumentID == 0 {
		return model.IngestJob{}, fmt.Errorf("decode ingest job failed: missing document id")
	}
	return job, nil
}
