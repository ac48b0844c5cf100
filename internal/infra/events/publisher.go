package events

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/SambhavSinghChouhan-CN/canvas/internal/domain/model"

	"github.com/segmentio/kafka-go"
)

// ブローカー文字列（カンマ区切り）を分解する。空なら nil
func ParseBrokers(csv string) []string {
	var brokers []string
	for _, b := range strings.Split(csv, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

type KafkaPublisher struct {
	writer  *kafka.Writer
	timeout time.Duration
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: true,
		},
		timeout: 5 * time.Second,
	}
}

// 注文IDをキーにする（同じ注文のイベントは同じパーティションで順序が保たれる）
func (p *KafkaPublisher) Publish(ctx context.Context, ev model.OrderEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	// リクエストの期限とは切り離す（コミット済みの注文のイベントなので）
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()

	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatInt(ev.OrderID, 10)),
		Value: data,
		Time:  ev.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(ev.Type)},
		},
	})
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// ブローカー未設定のとき用
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, model.OrderEvent) error { return nil }
func (NoopPublisher) Close() error                                    { return nil }

type Publisher interface {
	Publish(ctx context.Context, ev model.OrderEvent) error
	Close() error
}

// 設定からどちらかを選ぶ
func New(brokersCSV string, topic string) Publisher {
	brokers := ParseBrokers(brokersCSV)
	if len(brokers) == 0 {
		return NoopPublisher{}
	}
	return NewKafkaPublisher(brokers, topic)
}
