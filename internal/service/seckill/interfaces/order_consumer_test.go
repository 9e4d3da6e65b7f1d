// internal/service/seckill/interfaces/order_consumer_test.go
package interfaces

import (
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testReaderFactory(created *int) func() *kafka.Reader {
	return func() *kafka.Reader {
		*created++
		return kafka.NewReader(kafka.ReaderConfig{
			Brokers: []string{"localhost:9092"},
			Topic:   "seckill-orders",
			GroupID: "seckill-order-workers",
		})
	}
}

// 每个 worker 必须持有独立的 Reader：组偏移量按分区提交，
// 共享 Reader 时任一 worker 的提交都会确认掉其他 worker 在途的消息。
func TestOrderConsumer_OneReaderPerWorker(t *testing.T) {
	created := 0
	a := NewOrderConsumerAdapter(testReaderFactory(&created), nil, nil, 4)

	assert.Equal(t, 4, created)
	require.Len(t, a.readers, 4)
	seen := make(map[*kafka.Reader]bool)
	for _, r := range a.readers {
		assert.False(t, seen[r], "readers must not be shared between workers")
		seen[r] = true
	}
}

func TestOrderConsumer_WorkerCountClampedToOne(t *testing.T) {
	created := 0
	a := NewOrderConsumerAdapter(testReaderFactory(&created), nil, nil, 0)

	assert.Equal(t, 1, created)
	assert.Len(t, a.readers, 1)
}
