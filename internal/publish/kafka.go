package publish

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	DefaultKafkaBroker      = "localhost:9092"
	defaultKafkaDialTimeout = 10 * time.Second
)

// Kafka 通过 kafka-go 投递消息。
//
// Dial 会按顺序对 broker 做 TCP 探测，任一可达即可：全部不可达时在 connect 阶段失败，
// 而不是在 Flush 时才暴露。
type Kafka struct {
	DialTimeout time.Duration
}

func (Kafka) Name() string { return "kafka" }

func (k Kafka) Dial(ctx context.Context, t Target) (Sink, error) {
	if len(t.Brokers) == 0 {
		return nil, errors.New("kafka sink 至少需要一个 broker 地址")
	}
	timeout := k.DialTimeout
	if timeout <= 0 {
		timeout = defaultKafkaDialTimeout
	}

	if err := probeBrokers(ctx, &kafka.Dialer{Timeout: timeout}, t.Brokers); err != nil {
		return nil, err
	}
	return &kafkaSink{w: newKafkaWriter(t.Brokers)}, nil
}

// probeBrokers 依次尝试连接，遇到第一个可达的 broker 即返回 nil；否则返回所有失败原因。
func probeBrokers(ctx context.Context, d *kafka.Dialer, brokers []string) error {
	errs := make([]error, 0, len(brokers))
	for _, addr := range brokers {
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err == nil {
			_ = conn.Close()
			return nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", addr, err))
		if ctx.Err() != nil {
			break
		}
	}
	return errors.Join(errs...)
}

// newKafkaWriter 构造同步 writer：WriteMessages 在所有 batch 被确认后才返回。
// topic 由每条消息自带，因此 Writer.Topic 保持为空。
func newKafkaWriter(brokers []string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		MaxAttempts:            1,
		BatchTimeout:           10 * time.Millisecond,
		Async:                  false,
		AllowAutoTopicCreation: true,
	}
}

type kafkaSink struct {
	w       *kafka.Writer
	pending []kafka.Message
}

func (s *kafkaSink) Send(_ context.Context, msg Message) error {
	s.pending = append(s.pending, kafka.Message{
		Topic: msg.Topic,
		Key:   msg.Key,
		Value: msg.Value,
	})
	return nil
}

func (s *kafkaSink) Flush(ctx context.Context) error {
	if len(s.pending) == 0 {
		return nil
	}
	msgs := s.pending
	s.pending = nil
	return s.w.WriteMessages(ctx, msgs...)
}

func (s *kafkaSink) Close() error {
	if s.w == nil {
		return nil
	}
	return s.w.Close()
}
