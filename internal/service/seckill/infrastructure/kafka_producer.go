// internal/service/seckill/infrastructure/kafka_producer.go
package infrastructure

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/segmentio/kafka-go"

	"flashsale/internal/pkg/logger"
	"flashsale/internal/pkg/mq"
	"flashsale/internal/service/seckill/domain"
)

// OrderProducerAdapter 将通过准入的下单请求投递到订单主题。
// 以用户ID作为分区键，同一用户的消息天然有序。
type OrderProducerAdapter struct {
	writer *kafka.Writer
}

func NewOrderProducerAdapter(writer *kafka.Writer) *OrderProducerAdapter {
	return &OrderProducerAdapter{writer: writer}
}

func (p *OrderProducerAdapter) Produce(ctx context.Context, event *domain.OrderPlacementRequested) error {
	eventBytes, err := json.Marshal(event)
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).Int64("order_id", event.OrderID).Msg("下单事件序列化失败")
		return err
	}

	key := []byte(strconv.FormatInt(event.UserID, 10))
	headers := []kafka.Header{{Key: mq.HeaderRetryCount, Value: []byte("0")}}
	if err := mq.ProduceMessage(ctx, p.writer, key, eventBytes, headers...); err != nil {
		logger.Ctx(ctx).Error().Err(err).Int64("order_id", event.OrderID).Msg("下单事件投递失败")
		return err
	}
	return nil
}
