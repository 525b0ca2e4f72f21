package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/river-gauge-etl/internal/domain"
)

// Writer publishes normalized records to a Kafka topic, one message per
// gauging station reading. It implements pipeline.Publisher.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the sink topic.
func NewWriter(brokers []string, topic string, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// Publish serializes every record of a normalized report and writes them in a
// single WriteMessages call. Records of one station hash to one partition.
func (w *Writer) Publish(ctx context.Context, res domain.Result) error {
	if len(res.Records) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(res.Records))
	for i := range res.Records {
		msg, err := serializeToMessage(res.Records[i], res)
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish %d records: %w", len(msgs), err)
	}
	w.logger.Debug("records published", "topic", w.writer.Topic, "count", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a NormalizedRecord into a Kafka message.
func serializeToMessage(rec domain.NormalizedRecord, res domain.Result) (kafkago.Message, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize record: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(rec.GaugingStation),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "report_timestamp", Value: []byte(rec.ReportTimestamp)},
			{Key: "report_epoch", Value: []byte(strconv.FormatInt(res.Epoch, 10))},
			{Key: "water_level_change_tag", Value: []byte(rec.WaterLevelChangeTag)},
		},
	}, nil
}
