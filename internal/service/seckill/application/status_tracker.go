// internal/service/seckill/application/status_tracker.go
package application

import (
	"sync"

	"flashsale/internal/service/seckill/domain"
)

// StatusTracker 是进程内的订单状态表：准入时登记为 pending，
// 持久化/死信路径推进到终态；终态在第一次被读取时删除，防止内存无界增长。
// 没有任何持久性：进程重启后在途状态丢失，客户端需回退查询数据库。
type StatusTracker struct {
	mu       sync.Mutex
	statuses map[int64]domain.OrderStatus
}

func NewStatusTracker() *StatusTracker {
	return &StatusTracker{
		statuses: make(map[int64]domain.OrderStatus),
	}
}

// Track 在准入通过时登记订单，初始状态 pending。已存在的条目不覆盖。
func (t *StatusTracker) Track(orderID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.statuses[orderID]; !ok {
		t.statuses[orderID] = domain.StatusPending
	}
}

// Forget 移除一个最终没有入队成功的订单，它不会再有任何状态推进。
func (t *StatusTracker) Forget(orderID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.statuses, orderID)
}

// Set 由持久化或死信路径推进订单状态。
func (t *StatusTracker) Set(orderID int64, status domain.OrderStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.statuses[orderID] = status
}

// Get 返回订单状态。pending 可反复读取（轮询继续）；
// 终态读一次即删，调用方必须把终态视为最终结果，不能用同一 ID 重试。
func (t *StatusTracker) Get(orderID int64) (domain.OrderStatus, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	status, ok := t.statuses[orderID]
	if !ok {
		return "", false
	}
	if status == domain.StatusPending {
		return status, true
	}
	delete(t.statuses, orderID)
	return status, true
}
