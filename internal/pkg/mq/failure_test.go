// internal/pkg/mq/failure_test.go
package mq

import (
	"context"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturingWriter struct {
	messages []kafka.Message
	err      error
}

func (w *capturingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func TestFailureHandler_FirstFailureGoesToRetry(t *testing.T) {
	retry := &capturingWriter{}
	dlt := &capturingWriter{}
	h := NewFailureHandler(retry, dlt, 3)

	msg := kafka.Message{
		Key:     []byte("1"),
		Value:   []byte(`{"orderId":42}`),
		Headers: []kafka.Header{{Key: HeaderRetryCount, Value: []byte("0")}},
	}
	h.Handle(context.Background(), msg, errors.New("db down"))

	require.Len(t, retry.messages, 1)
	assert.Empty(t, dlt.messages)
	assert.Equal(t, "1", GetHeader(retry.messages[0].Headers, HeaderRetryCount))
	assert.Equal(t, msg.Value, retry.messages[0].Value)
}

func TestFailureHandler_CountIncrementsEachHop(t *testing.T) {
	retry := &capturingWriter{}
	dlt := &capturingWriter{}
	h := NewFailureHandler(retry, dlt, 3)

	msg := kafka.Message{
		Key:     []byte("1"),
		Headers: []kafka.Header{{Key: HeaderRetryCount, Value: []byte("1")}},
	}
	h.Handle(context.Background(), msg, errors.New("still down"))

	require.Len(t, retry.messages, 1)
	assert.Equal(t, "2", GetHeader(retry.messages[0].Headers, HeaderRetryCount))
}

func TestFailureHandler_ExhaustedRetriesGoToDeadLetter(t *testing.T) {
	retry := &capturingWriter{}
	dlt := &capturingWriter{}
	h := NewFailureHandler(retry, dlt, 3)

	msg := kafka.Message{
		Topic:     "seckill-orders-retry",
		Partition: 2,
		Offset:    1337,
		Key:       []byte("1"),
		Value:     []byte(`{"orderId":42}`),
		Headers:   []kafka.Header{{Key: HeaderRetryCount, Value: []byte("3")}},
	}
	h.Handle(context.Background(), msg, errors.New("db down"))

	assert.Empty(t, retry.messages)
	require.Len(t, dlt.messages, 1)

	headers := dlt.messages[0].Headers
	assert.Equal(t, "seckill-orders-retry", GetHeader(headers, HeaderOriginalTopic))
	assert.Equal(t, "2", GetHeader(headers, HeaderOriginalPartition))
	assert.Equal(t, "1337", GetHeader(headers, HeaderOriginalOffset))
	assert.Equal(t, "db down", GetHeader(headers, HeaderExceptionMessage))
	assert.Equal(t, msg.Value, dlt.messages[0].Value)
}

func TestFailureHandler_MissingHeaderCountsAsZero(t *testing.T) {
	retry := &capturingWriter{}
	dlt := &capturingWriter{}
	h := NewFailureHandler(retry, dlt, 3)

	h.Handle(context.Background(), kafka.Message{Key: []byte("1")}, errors.New("oops"))

	require.Len(t, retry.messages, 1)
	assert.Equal(t, "1", GetHeader(retry.messages[0].Headers, HeaderRetryCount))
}

func TestFailureHandler_RetryPublishFailureEscalatesToDeadLetter(t *testing.T) {
	retry := &capturingWriter{err: errors.New("retry topic unavailable")}
	dlt := &capturingWriter{}
	h := NewFailureHandler(retry, dlt, 3)

	msg := kafka.Message{
		Topic:   "seckill-orders",
		Key:     []byte("1"),
		Value:   []byte(`{"orderId":42}`),
		Headers: []kafka.Header{{Key: HeaderRetryCount, Value: []byte("0")}},
	}
	h.Handle(context.Background(), msg, errors.New("db down"))

	// 消息不能凭空消失：重试主题不可写时必须落入死信
	require.Len(t, dlt.messages, 1)
	assert.Equal(t, msg.Value, dlt.messages[0].Value)
	assert.Equal(t, "db down", GetHeader(dlt.messages[0].Headers, HeaderExceptionMessage))
	assert.Equal(t, "seckill-orders", GetHeader(dlt.messages[0].Headers, HeaderOriginalTopic))
}

func TestRetryCount(t *testing.T) {
	assert.Equal(t, 0, RetryCount(kafka.Message{}))
	assert.Equal(t, 0, RetryCount(kafka.Message{Headers: []kafka.Header{{Key: HeaderRetryCount, Value: []byte("garbage")}}}))
	assert.Equal(t, 5, RetryCount(kafka.Message{Headers: []kafka.Header{{Key: HeaderRetryCount, Value: []byte("5")}}}))
}
