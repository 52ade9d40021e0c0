package adapter

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"

	"atlas/internal/pkg/mq"
	"atlas/internal/service/inventory/domain"
)

// StockEventKafkaAdapter 实现了 port.StockEventPublisher。
// 预占生命周期事件和低库存告警都从这里出去，消息按商品/预占 ID 分区，
// 同一聚合的事件保持有序。
type StockEventKafkaAdapter struct {
	writer *kafka.Writer
}

// NewStockEventKafkaAdapter 创建一个新的事件发布适配器。
func NewStockEventKafkaAdapter(writer *kafka.Writer) *StockEventKafkaAdapter {
	return &StockEventKafkaAdapter{writer: writer}
}

// Publish 序列化并发送事件，trace 上下文由 mq 层注入消息头。
func (a *StockEventKafkaAdapter) Publish(ctx context.Context, event *domain.StockEvent) error {
	eventBytes, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "marshal stock event")
	}

	key := event.ReservationID
	if key == "" {
		key = event.ProductID
	}
	return mq.ProduceMessage(ctx, a.writer, []byte(key), eventBytes)
}

// Close 关闭底层的 Kafka writer。
func (a *StockEventKafkaAdapter) Close() error {
	return a.writer.Close()
}
