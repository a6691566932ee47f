// Package consumer materializes audit events from the Kafka topic into a
// queryable store. Kafka is the source of truth; the store is a projection.
package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	audit "docverify/pkg/platform/audit"
)

// Consumer reads audit records as part of a consumer group and appends them
// to a sink. Offsets are committed only after a poll batch is handled.
type Consumer struct {
	client *kgo.Client
	sink   audit.Store
	logger *slog.Logger
}

// New joins group on topic. Extra kgo options are appended.
func New(brokers []string, topic, group string, sink audit.Store, logger *slog.Logger, opts ...kgo.Opt) (*Consumer, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	if topic == "" || group == "" {
		return nil, errors.New("audit topic and consumer group are required")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	base := []kgo.Opt{
		kgo.SeedBrokers(brokers...),
		kgo.ConsumeTopics(topic),
		kgo.ConsumerGroup(group),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
		kgo.DisableAutoCommit(),
	}
	client, err := kgo.NewClient(append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("create kafka consumer: %w", err)
	}
	return &Consumer{client: client, sink: sink, logger: logger}, nil
}

// Run polls until ctx is done. A sink failure stops the loop without
// committing, so the batch is redelivered after restart.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		fetches := c.client.PollFetches(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if fetches.IsClientClosed() {
			return nil
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			c.logger.WarnContext(ctx, "audit fetch error",
				"topic", topic,
				"partition", partition,
				"error", err,
			)
		})

		var handleErr error
		fetches.EachRecord(func(rec *kgo.Record) {
			if handleErr != nil {
				return
			}
			handleErr = c.Handle(ctx, rec)
		})
		if handleErr != nil {
			return handleErr
		}
		if err := c.client.CommitUncommittedOffsets(ctx); err != nil {
			c.logger.WarnContext(ctx, "audit offset commit failed", "error", err)
		}
	}
}

// Handle appends one record to the sink. Malformed payloads are logged and
// skipped so one bad record cannot block the partition.
func (c *Consumer) Handle(ctx context.Context, rec *kgo.Record) error {
	var event audit.Event
	if err := json.Unmarshal(rec.Value, &event); err != nil || event.Action == "" {
		c.logger.ErrorContext(ctx, "skipping malformed audit record",
			"partition", rec.Partition,
			"offset", rec.Offset,
			"key", string(rec.Key),
		)
		return nil
	}
	if err := c.sink.Append(ctx, event); err != nil {
		return fmt.Errorf("materialize audit event %s: %w", event.Action, err)
	}
	c.logger.DebugContext(ctx, "materialized audit event",
		"action", event.Action,
		"verification_id", event.VerificationID,
	)
	return nil
}

// Close leaves the group and closes the client.
func (c *Consumer) Close() {
	c.client.Close()
}
