// internal/service/seckill/domain/port/ports.go
package port

import (
	"context"
	"time"

	"flashsale/internal/service/seckill/domain"
)

// RateLimiter 是粗粒度流量闸门的出站端口。
type RateLimiter interface {
	// TryAcquire 尝试取走一个令牌；桶空时返回 false（fail closed）。
	TryAcquire(ctx context.Context) (bool, error)
}

// IDGenerator 产生全局唯一、趋势递增的订单 ID。
type IDGenerator interface {
	NextID(ctx context.Context, scope string) (int64, error)
}

// OrderProducer 是履约队列的出站端口。
type OrderProducer interface {
	// Produce 发送一条下单消息，重试计数头初始化为 0。
	Produce(ctx context.Context, event *domain.OrderPlacementRequested) error
}

// Lock 是一把针对具体资源的分布式互斥锁。
type Lock interface {
	// TryLock 非阻塞地尝试加锁。ttl 用于崩溃自愈；实现可以忽略
	// （如基于临时节点的实现，会话断开即释放）。
	TryLock(ctx context.Context, ttl time.Duration) (bool, error)

	// Unlock 释放锁。实现必须校验自己仍是持有者（compare-then-delete），
	// 防止 TTL 过期后误删他人的锁。
	Unlock(ctx context.Context) error
}

// LockFactory 按资源名创建锁实例。
type LockFactory interface {
	NewLock(name string) (Lock, error)
}

// EligibilityEngine 对可选的券级资格规则求值。
type EligibilityEngine interface {
	Evaluate(rule string, fact domain.EligibilityFact) (bool, error)
}

// StatusNotifier 将终态订单状态推送给在线用户（轮询仍是权威途径）。
type StatusNotifier interface {
	Push(userID, orderID int64, status domain.OrderStatus)
}
