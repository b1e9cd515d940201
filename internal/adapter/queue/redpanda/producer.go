// Package redpanda carries evaluation tasks between the dispatcher and the
// workers over a Redpanda/Kafka topic.
package redpanda

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/plugin/kotel"
	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/hireval/internal/adapter/observability"
	"github.com/fairyhunter13/hireval/internal/domain"
)

// TopicEvaluate is the topic evaluation tasks travel on.
const TopicEvaluate = "evaluate-jobs"

// Producer implements domain.Queue over a transactional Kafka producer.
type Producer struct {
	client *kgo.Client
	// transactions on one client must not interleave
	txMu sync.Mutex
}

// NewProducer connects a transactional producer and ensures the topic exists.
func NewProducer(brokers []string, transactionalID string) (*Producer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("op=queue.producer: no seed brokers")
	}
	if transactionalID == "" {
		transactionalID = "hireval-dispatcher"
	}

	kotelService := kotel.NewKotel(kotel.WithTracer(kotel.NewTracer(
		kotel.TracerProvider(otel.GetTracerProvider()),
	)))
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.TransactionalID(transactionalID),
		kgo.RequestRetries(10),
		kgo.ProducerBatchMaxBytes(1_000_000),
		kgo.WithHooks(kotelService.Hooks()...),
	)
	if err != nil {
		return nil, fmt.Errorf("op=queue.producer: %w", err)
	}

	if err := createTopicIfNotExists(context.Background(), client, TopicEvaluate, 1, 1); err != nil {
		slog.Warn("topic ensure failed, assuming it exists",
			slog.String("topic", TopicEvaluate), slog.Any("error", err))
	}
	return &Producer{client: client}, nil
}

// EnqueueEvaluate publishes one task inside a transaction, keyed by job id so
// re-deliveries of the same job stay ordered. Returns the task id.
func (p *Producer) EnqueueEvaluate(ctx domain.Context, payload domain.EvaluateTaskPayload) (string, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("op=queue.enqueue: marshal: %w", err)
	}
	record := &kgo.Record{
		Topic: TopicEvaluate,
		Key:   []byte(payload.JobID),
		Value: b,
		Headers: []kgo.RecordHeader{
			{Key: "job_id", Value: []byte(payload.JobID)},
			{Key: "owner_id", Value: []byte(payload.OwnerID)},
		},
	}

	p.txMu.Lock()
	defer p.txMu.Unlock()

	if err := p.client.BeginTransaction(); err != nil {
		return "", fmt.Errorf("op=queue.enqueue: begin: %w", err)
	}
	promise := kgo.AbortingFirstErrPromise(p.client)
	p.client.Produce(ctx, record, promise.Promise())
	if err := promise.Err(); err != nil {
		if abortErr := p.client.EndTransaction(ctx, kgo.TryAbort); abortErr != nil {
			slog.Error("transaction abort failed", slog.Any("error", abortErr))
		}
		return "", fmt.Errorf("op=queue.enqueue: produce: %w", err)
	}
	if err := p.client.EndTransaction(ctx, kgo.TryCommit); err != nil {
		return "", fmt.Errorf("op=queue.enqueue: commit: %w", err)
	}

	observability.EnqueueJob("evaluate")
	slog.Info("evaluation task enqueued",
		slog.String("job_id", payload.JobID), slog.String("topic", TopicEvaluate))
	return payload.JobID, nil
}

// Close releases the underlying client.
func (p *Producer) Close() error {
	if p.client != nil {
		p.client.Close()
	}
	return nil
}
