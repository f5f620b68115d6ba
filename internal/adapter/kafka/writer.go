package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/storm-data-shared/retry"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/catchment-etl/internal/config"
	"github.com/couchcryptid/catchment-etl/internal/domain"
)

// messageWriter is the subset of *kafkago.Writer used by Writer.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

const (
	publishAttempts = 3
	initialBackoff  = 200 * time.Millisecond
	maxBackoff      = 5 * time.Second
)

// Writer publishes daily simulation results to a Kafka topic.
// It implements pipeline.Loader.
type Writer struct {
	writer  messageWriter
	logger  *slog.Logger
	backoff time.Duration
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger, backoff: initialBackoff}
}

// Load publishes one message per daily result in a single WriteMessages call.
// A failed write is retried with exponential backoff up to publishAttempts times.
func (w *Writer) Load(ctx context.Context, run domain.CatchmentRun) error {
	if len(run.Results) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(run.Results))
	for i := range run.Results {
		msg, err := serializeToMessage(run.Results[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.publish(ctx, run.Catchment, msgs); err != nil {
		return fmt.Errorf("publish %s results: %w", run.Catchment, err)
	}
	w.logger.Debug("results published", "catchment", run.Catchment, "messages", len(msgs))
	return nil
}

func (w *Writer) publish(ctx context.Context, catchment string, msgs []kafkago.Message) error {
	backoff := w.backoff
	var err error
	for attempt := 1; ; attempt++ {
		if err = w.writer.WriteMessages(ctx, msgs...); err == nil {
			return nil
		}
		if attempt == publishAttempts {
			return err
		}
		w.logger.Warn("publish failed, retrying", "catchment", catchment, "attempt", attempt, "backoff", backoff, "error", err)
		if !retry.SleepWithContext(ctx, backoff) {
			return ctx.Err()
		}
		backoff = retry.NextBackoff(backoff, maxBackoff)
	}
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// MessageKey identifies one catchment, model and day.
func MessageKey(r domain.DailyResult) string {
	return r.Catchment + "|" + r.Model + "|" + r.Date.Format(domain.DateLayout)
}

// serializeToMessage marshals a DailyResult into a Kafka message.
func serializeToMessage(r domain.DailyResult) (kafkago.Message, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize daily result: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(MessageKey(r)),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "catchment", Value: []byte(r.Catchment)},
			{Key: "model", Value: []byte(r.Model)},
			{Key: "processed_at", Value: []byte(r.ProcessedAt.Format(time.RFC3339))},
		},
	}, nil
}
