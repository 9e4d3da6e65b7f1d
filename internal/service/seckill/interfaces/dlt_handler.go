// internal/service/seckill/interfaces/dlt_handler.go
package interfaces

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"flashsale/internal/pkg/logger"
	"flashsale/internal/pkg/mq"
	"flashsale/internal/service/seckill/application"
	"flashsale/internal/service/seckill/domain"
)

// DltConsumerAdapter 监听死信主题，对重试耗尽的订单执行终局处理：
// 补偿回滚预占、登记审计表、把订单状态推进到 failed。
type DltConsumerAdapter struct {
	reader  *kafka.Reader
	appSvc  *application.SeckillApplicationService
	wg      sync.WaitGroup
	stopped bool
}

func NewDltConsumerAdapter(reader *kafka.Reader, appSvc *application.SeckillApplicationService) *DltConsumerAdapter {
	return &DltConsumerAdapter{
		reader: reader,
		appSvc: appSvc,
	}
}

func (a *DltConsumerAdapter) Start(ctx context.Context) error {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		logger.Ctx(ctx).Info().Str("topic", a.reader.Config().Topic).Msg("DLT consumer started")
		for {
			if a.stopped {
				return
			}
			msg, err := a.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				time.Sleep(time.Second)
				continue
			}

			msgCtx := mq.ExtractTraceContext(ctx, msg.Headers)
			logDeadLetter(msgCtx, msg)
			a.handleDeadLetter(msgCtx, msg)

			// 死信消息总是提交：终局处理失败只能靠日志与人工介入
			if err := a.reader.CommitMessages(ctx, msg); err != nil {
				logger.Ctx(ctx).Error().Err(err).Msg("Failed to commit DLT offset")
			}
		}
	}()
	return nil
}

func (a *DltConsumerAdapter) Stop(ctx context.Context) {
	a.stopped = true
	a.reader.Close()
	a.wg.Wait()
	logger.Ctx(ctx).Info().Str("topic", a.reader.Config().Topic).Msg("DLT consumer stopped")
}

func (a *DltConsumerAdapter) handleDeadLetter(ctx context.Context, msg kafka.Message) {
	var event domain.OrderPlacementRequested
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		logger.Ctx(ctx).Error().Err(err).
			Str("value", string(msg.Value)).
			Msg("Dead letter payload is not a valid order event, cannot compensate")
		return
	}

	reason := mq.GetHeader(msg.Headers, mq.HeaderExceptionMessage)
	if reason == "" {
		reason = "unknown failure"
	}

	if err := a.appSvc.HandleDeadLetter(ctx, &event, reason); err != nil {
		logger.Ctx(ctx).Error().Err(err).
			Int64("order_id", event.OrderID).
			Msg("CRITICAL: dead letter compensation failed, manual intervention required")
	}
}

func logDeadLetter(ctx context.Context, msg kafka.Message) {
	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}

	logger.Ctx(ctx).Error().
		Str("reason", "dead_letter_message_received").
		Str("original_topic", headers[mq.HeaderOriginalTopic]).
		Str("original_partition", headers[mq.HeaderOriginalPartition]).
		Str("original_offset", headers[mq.HeaderOriginalOffset]).
		Str("exception_message", headers[mq.HeaderExceptionMessage]).
		Str("retry_count", headers[mq.HeaderRetryCount]).
		Str("key", string(msg.Key)).
		Str("value", string(msg.Value)).
		Msg("Dead letter message received")
}
