// internal/service/seckill/interfaces/order_consumer.go
package interfaces

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"golang.org/x/sync/errgroup"

	"flashsale/internal/pkg/logger"
	"flashsale/internal/pkg/metrics"
	"flashsale/internal/pkg/mq"
	"flashsale/internal/service/seckill/application"
	"flashsale/internal/service/seckill/domain"
)

// OrderConsumerAdapter 是一个驱动适配器：从履约队列拉取下单消息，
// 交给应用服务落库。同一个实现同时服务主主题和重试主题，
// 重试消费者通过 SetDelay 让消息按固定间隔延后处理。
//
// 每个 worker 持有自己的 Reader（同一消费组，各分到不同分区）。
// 提交组偏移量是分区级的高水位，共享 Reader 的并发提交会把
// 还在处理中的消息一并确认掉；各自独立的 Reader 不存在这个窗口。
type OrderConsumerAdapter struct {
	readers []*kafka.Reader
	appSvc  *application.SeckillApplicationService

	failureHandler *mq.FailureHandler
	delay          time.Duration

	group   *errgroup.Group
	stopped bool
}

// NewOrderConsumerAdapter 创建消费者适配器。newReader 每次调用必须返回
// 一个新的、属于同一消费组的 Reader；workers 决定并行度。
func NewOrderConsumerAdapter(newReader func() *kafka.Reader, appSvc *application.SeckillApplicationService, failureHandler *mq.FailureHandler, workers int) *OrderConsumerAdapter {
	if workers < 1 {
		workers = 1
	}
	readers := make([]*kafka.Reader, workers)
	for i := range readers {
		readers[i] = newReader()
	}
	return &OrderConsumerAdapter{
		readers:        readers,
		appSvc:         appSvc,
		failureHandler: failureHandler,
	}
}

// SetDelay 设置消息的最小处理间隔，用于重试主题的固定退避。
func (a *OrderConsumerAdapter) SetDelay(d time.Duration) {
	a.delay = d
}

// Start 启动消费循环，每个 Reader 一个循环。
func (a *OrderConsumerAdapter) Start(ctx context.Context) error {
	a.group, ctx = errgroup.WithContext(ctx)
	for _, reader := range a.readers {
		r := reader
		a.group.Go(func() error {
			a.consumeLoop(ctx, r)
			return nil
		})
	}
	logger.Ctx(ctx).Info().
		Str("topic", a.readers[0].Config().Topic).
		Int("workers", len(a.readers)).
		Msg("Order consumer started")
	return nil
}

func (a *OrderConsumerAdapter) consumeLoop(ctx context.Context, reader *kafka.Reader) {
	for {
		if a.stopped {
			return
		}
		// FetchMessage 而不是 ReadMessage，提交时机由我们控制
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Ctx(ctx).Error().Err(err).Msg("Failed to fetch message, retrying")
			time.Sleep(time.Second)
			continue
		}

		// 重试主题的固定延迟：按消息入队时间推算应处理时刻
		if a.delay > 0 {
			deliveryTime := msg.Time.Add(a.delay)
			if wait := time.Until(deliveryTime); wait > 0 {
				time.Sleep(wait)
			}
		}

		msgCtx := mq.ExtractTraceContext(ctx, msg.Headers)
		if err := a.processMessage(msgCtx, msg); err != nil {
			metrics.PersistRetries.Inc()
			// Kafka 没有 nack；失败的消息重新发布到重试或死信主题
			a.failureHandler.Handle(msgCtx, msg, err)
		}

		// 无论成功还是已移交失败路由，offset 都前进。
		// 这个 Reader 上没有其他在途消息，提交不会越过未处理的 offset。
		if err := reader.CommitMessages(ctx, msg); err != nil {
			logger.Ctx(ctx).Error().Err(err).Msg("Failed to commit offset")
		}
	}
}

// Stop 优雅地停止消费者。
func (a *OrderConsumerAdapter) Stop(ctx context.Context) {
	a.stopped = true
	for _, reader := range a.readers {
		reader.Close()
	}
	if a.group != nil {
		a.group.Wait()
	}
	logger.Ctx(ctx).Info().Str("topic", a.readers[0].Config().Topic).Msg("Order consumer stopped")
}

func (a *OrderConsumerAdapter) processMessage(ctx context.Context, msg kafka.Message) error {
	var event domain.OrderPlacementRequested
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		// 消息体损坏，重试不可能成功，直接进失败路由直至死信
		return err
	}
	return a.appSvc.HandleOrderMessage(ctx, &event)
}
