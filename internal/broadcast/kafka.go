package broadcast

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
)

type KafkaConfig struct {
	Brokers []string
	Topic   string
	// Key tags every message, typically the run id.
	Key string
}

// Kafka streams each dataset record so consumers can train without reading
// the CSV file.
type Kafka struct {
	writer *kafka.Writer
	key    []byte
}

func NewKafka(cfg KafkaConfig) *Kafka {
	return &Kafka{
		writer: newKafkaWriter(cfg.Brokers, cfg.Topic),
		key:    []byte(cfg.Key),
	}
}

func newKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		RequiredAcks:           kafka.RequireAll,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
		BatchTimeout:           10 * time.Millisecond,
		WriteTimeout:           5 * time.Second,
	}
}

func (*Kafka) Name() string {
	return "kafka"
}

func (k *Kafka) Send(ctx context.Context, ev Event) error {
	value, err := encodeRecord(ev.Record)
	if err != nil {
		return err
	}

	return k.writer.WriteMessages(ctx, kafka.Message{
		Key:   k.key,
		Value: value,
		Time:  ev.Record.Timestamp,
	})
}

func (k *Kafka) Close() error {
	return k.writer.Close()
}
