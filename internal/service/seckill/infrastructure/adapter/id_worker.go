// internal/service/seckill/infrastructure/adapter/id_worker.go
package adapter

import (
	"context"
	"fmt"
	"time"
)

// beginTimestamp 是 ID 时间戳段的固定纪元（秒），可用约 69 年。
const beginTimestamp int64 = 1730574577

const sequenceBits = 32

// SequenceStore 是 ID 序列号存储的最小依赖面：一次原子自增。
// 生产实现是 Redis INCR。
type SequenceStore interface {
	Incr(ctx context.Context, key string) (int64, error)
}

// IDWorker 生成 64 位订单号: 高 32 位为相对纪元的秒级时间戳，
// 低 32 位为按 "scope+日期" 维度的原子计数。
// 已知限制：同一 scope 单日超过 2^32 次调用会使序列号溢出进时间戳段，
// 按预期流量这不设防护。
type IDWorker struct {
	seq SequenceStore
}

func NewIDWorker(seq SequenceStore) *IDWorker {
	return &IDWorker{seq: seq}
}

// NextID 产生一个全局唯一、趋势递增的 ID。
func (w *IDWorker) NextID(ctx context.Context, scope string) (int64, error) {
	now := time.Now().UTC()
	timestamp := now.Unix() - beginTimestamp

	// 计数器按天分 key，避免单一计数器无限增长
	date := now.Format("2006:01:02")
	count, err := w.seq.Incr(ctx, "incr:"+scope+date)
	if err != nil {
		return 0, fmt.Errorf("id worker failed to increment sequence: %w", err)
	}

	return timestamp<<sequenceBits | count, nil
}
