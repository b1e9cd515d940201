package redpanda

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/plugin/kotel"
	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/hireval/internal/domain"
)

// Handler processes one delivered task. The consumer acknowledges the record
// regardless of the returned error: failed jobs are recorded in the job
// store, not redelivered, so operator-visible failures do not spin.
type Handler func(ctx context.Context, payload domain.EvaluateTaskPayload) error

// Consumer drains the evaluate topic with a bounded worker pool.
type Consumer struct {
	client   *kgo.Client
	handler  Handler
	poolSize int

	wg sync.WaitGroup
}

// NewConsumer joins the consumer group and subscribes to the evaluate topic.
// poolSize bounds concurrent handler invocations and, transitively, LLM
// concurrency.
func NewConsumer(brokers []string, group string, poolSize int, handler Handler) (*Consumer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("op=queue.consumer: no seed brokers")
	}
	if poolSize <= 0 {
		poolSize = 3
	}

	kotelService := kotel.NewKotel(kotel.WithTracer(kotel.NewTracer(
		kotel.TracerProvider(otel.GetTracerProvider()),
	)))
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ConsumerGroup(group),
		kgo.ConsumeTopics(TopicEvaluate),
		kgo.AutoCommitMarks(),
		kgo.AutoCommitInterval(time.Second),
		kgo.FetchIsolationLevel(kgo.ReadCommitted()),
		kgo.WithHooks(kotelService.Hooks()...),
	)
	if err != nil {
		return nil, fmt.Errorf("op=queue.consumer: %w", err)
	}
	return &Consumer{client: client, handler: handler, poolSize: poolSize}, nil
}

// Run polls until ctx is cancelled, dispatching records to the pool. It
// returns after in-flight handlers drain.
func (c *Consumer) Run(ctx context.Context) error {
	sem := make(chan struct{}, c.poolSize)
	defer c.wg.Wait()

	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			return ctx.Err()
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			slog.Error("fetch error",
				slog.String("topic", topic),
				slog.Int("partition", int(partition)),
				slog.Any("error", err))
		})

		fetches.EachRecord(func(rec *kgo.Record) {
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			c.wg.Add(1)
			go func() {
				defer c.wg.Done()
				defer func() { <-sem }()
				c.process(ctx, rec)
			}()
		})
	}
}

func (c *Consumer) process(ctx context.Context, rec *kgo.Record) {
	// always mark: at-least-once delivery plus job-store idempotence means a
	// poison record must not wedge the partition
	defer c.client.MarkCommitRecords(rec)

	var payload domain.EvaluateTaskPayload
	if err := json.Unmarshal(rec.Value, &payload); err != nil {
		slog.Error("dropping undecodable task record",
			slog.Int64("offset", rec.Offset), slog.Any("error", err))
		return
	}
	if err := c.handler(ctx, payload); err != nil {
		slog.Error("task handler failed",
			slog.String("job_id", payload.JobID), slog.Any("error", err))
	}
}

// Close leaves the group and releases the client.
func (c *Consumer) Close() error {
	if c.client != nil {
		c.client.Close()
	}
	c.wg.Wait()
	return nil
}
