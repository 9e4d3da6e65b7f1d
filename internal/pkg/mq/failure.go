// internal/pkg/mq/failure.go
package mq

import (
	"context"
	"strconv"

	"github.com/segmentio/kafka-go"

	"flashsale/internal/pkg/logger"
)

// 失败路由相关的消息头。重试计数随消息自身传递，
// 消费方不需要任何外部状态即可判断是否应当死信。
const (
	HeaderRetryCount        = "x-retry-count"
	HeaderOriginalTopic     = "x-original-topic"
	HeaderOriginalPartition = "x-original-partition"
	HeaderOriginalOffset    = "x-original-offset"
	HeaderExceptionMessage  = "x-exception-message"
)

// messageWriter 是 FailureHandler 对 kafka.Writer 的最小依赖面。
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// FailureHandler 实现消息处理失败后的路由状态机：
// 重试次数未超过上限 -> 重试主题（计数 +1）；超过上限 -> 死信主题。
// Kafka 没有 broker 级的 nack/requeue，所以 offset 总是提交，
// 失败的消息以重新发布的方式"重回队列"。
type FailureHandler struct {
	retryWriter messageWriter
	dltWriter   messageWriter
	maxRetries  int
}

func NewFailureHandler(retryWriter, dltWriter messageWriter, maxRetries int) *FailureHandler {
	return &FailureHandler{
		retryWriter: retryWriter,
		dltWriter:   dltWriter,
		maxRetries:  maxRetries,
	}
}

// RetryCount 读取消息已经经历的失败重投次数。
func RetryCount(msg kafka.Message) int {
	n, err := strconv.Atoi(GetHeader(msg.Headers, HeaderRetryCount))
	if err != nil {
		return 0
	}
	return n
}

// Handle 路由一条处理失败的消息。该方法不返回错误：
// 路由本身失败时只能记录日志，消息依赖下一次投递兜底。
func (h *FailureHandler) Handle(ctx context.Context, msg kafka.Message, cause error) {
	retries := RetryCount(msg)

	if retries >= h.maxRetries {
		h.routeToDeadLetter(ctx, msg, cause, retries)
		return
	}

	retryMsg := kafka.Message{
		Key:     msg.Key,
		Value:   msg.Value,
		Headers: SetHeader(cloneHeaders(msg.Headers), HeaderRetryCount, strconv.Itoa(retries+1)),
	}
	InjectTraceContext(ctx, &retryMsg.Headers)

	if err := h.retryWriter.WriteMessages(ctx, retryMsg); err != nil {
		// 重试主题不可写时消息绝不能丢：升级到死信路径，
		// 让补偿和审计兜底
		logger.Ctx(ctx).Error().Err(err).
			Str("key", string(msg.Key)).
			Int("retry_count", retries+1).
			Msg("Failed to publish message to retry topic, escalating to dead letter")
		h.routeToDeadLetter(ctx, msg, cause, retries)
		return
	}
	logger.Ctx(ctx).Warn().
		Str("key", string(msg.Key)).
		Int("retry_count", retries+1).
		Err(cause).
		Msg("Message re-queued for retry")
}

func (h *FailureHandler) routeToDeadLetter(ctx context.Context, msg kafka.Message, cause error, retries int) {
	headers := cloneHeaders(msg.Headers)
	headers = SetHeader(headers, HeaderRetryCount, strconv.Itoa(retries))
	headers = SetHeader(headers, HeaderOriginalTopic, msg.Topic)
	headers = SetHeader(headers, HeaderOriginalPartition, strconv.Itoa(msg.Partition))
	headers = SetHeader(headers, HeaderOriginalOffset, strconv.FormatInt(msg.Offset, 10))
	if cause != nil {
		headers = SetHeader(headers, HeaderExceptionMessage, cause.Error())
	}

	dltMsg := kafka.Message{Key: msg.Key, Value: msg.Value, Headers: headers}
	InjectTraceContext(ctx, &dltMsg.Headers)

	if err := h.dltWriter.WriteMessages(ctx, dltMsg); err != nil {
		logger.Ctx(ctx).Error().Err(err).
			Str("key", string(msg.Key)).
			Msg("CRITICAL: failed to publish message to dead letter topic")
		return
	}
	logger.Ctx(ctx).Error().
		Str("key", string(msg.Key)).
		Int("retry_count", retries).
		Err(cause).
		Msg("Message exceeded retry budget, routed to dead letter topic")
}

func cloneHeaders(headers []kafka.Header) []kafka.Header {
	out := make([]kafka.Header, len(headers))
	copy(out, headers)
	return out
}
