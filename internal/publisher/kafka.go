// Package publisher forwards appended waves to an external Kafka topic.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/waveportal/waveledger/internal/waves"
)

const writeTimeout = 5 * time.Second

// Kafka publishes one JSON message per appended wave. It is registered
// as a ledger subscriber; a failed produce is logged by the fan-out
// layer and never blocks the append.
type Kafka struct {
	writer *kafka.Writer
	logger *zap.Logger
}

// NewKafka creates a publisher for the given brokers and topic.
func NewKafka(brokers []string, topic string, logger *zap.Logger) *Kafka {
	return &Kafka{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			RequiredAcks: kafka.RequireAll,
			Async:        false,
			BatchTimeout: 10 * time.Millisecond,
		},
		logger: logger,
	}
}

// HandleWave implements waves.HandlerFunc.
func (p *Kafka) HandleWave(ev waves.Event) error {
	value, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode wave event: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.Itoa(ev.Index)),
		Value: value,
	}); err != nil {
		return fmt.Errorf("produce wave %d: %w", ev.Index, err)
	}

	p.logger.Debug("wave published to kafka", zap.Int("index", ev.Index))
	return nil
}

// Close flushes and closes the underlying writer.
func (p *Kafka) Close() error {
	return p.writer.Close()
}
