// internal/service/seckill/application/service.go
package application

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"flashsale/internal/pkg/logger"
	"flashsale/internal/pkg/metrics"
	"flashsale/internal/service/seckill/domain"
	"flashsale/internal/service/seckill/domain/port"
)

const orderIDScope = "order:"

// SeckillApplicationService 只关注下单流程编排：
// 同步路径（限流 -> 订单号 -> 原子准入 -> 入队）保持亚毫秒级，
// 持久化完全交给异步的消费路径。
type SeckillApplicationService struct {
	tracer trace.Tracer

	rateLimiter port.RateLimiter
	idWorker    port.IDGenerator
	admission   port.AdmissionService
	producer    port.OrderProducer

	orderRepo   domain.OrderRepository
	voucherRepo domain.VoucherRepository

	lockFactory port.LockFactory
	lockTTL     time.Duration
	eligibility port.EligibilityEngine

	tracker  *StatusTracker
	notifier port.StatusNotifier
}

func NewSeckillApplicationService(tracer trace.Tracer, rateLimiter port.RateLimiter, idWorker port.IDGenerator, admission port.AdmissionService, producer port.OrderProducer, orderRepo domain.OrderRepository, voucherRepo domain.VoucherRepository, lockFactory port.LockFactory, lockTTL time.Duration, eligibility port.EligibilityEngine, tracker *StatusTracker, notifier port.StatusNotifier) *SeckillApplicationService {
	return &SeckillApplicationService{
		tracer: tracer, rateLimiter: rateLimiter, idWorker: idWorker,
		admission: admission, producer: producer,
		orderRepo: orderRepo, voucherRepo: voucherRepo,
		lockFactory: lockFactory, lockTTL: lockTTL, eligibility: eligibility,
		tracker: tracker, notifier: notifier,
	}
}

// PlaceOrder 是秒杀下单的主路径。
// 除了一次原子脚本调用之外不做任何阻塞操作；被拒绝的请求同步返回原因，
// 被接受的请求立即返回订单号，落库结果通过状态轮询获知。
func (s *SeckillApplicationService) PlaceOrder(ctx context.Context, voucherID, userID int64) (*PlaceOrderResponse, error) {
	ctx, span := s.tracer.Start(ctx, "app.PlaceOrder")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("seckill.voucher.id", voucherID),
		attribute.Int64("user.id", userID),
	)

	// 1. 令牌桶限流，桶空直接拒绝
	ok, err := s.rateLimiter.TryAcquire(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Rate limiter failed")
		return nil, err
	}
	if !ok {
		metrics.AdmissionResults.WithLabelValues("rate_limited").Inc()
		span.AddEvent("Request rejected by rate limiter")
		return nil, port.ErrRateLimited
	}

	// 2. 预生成订单号
	orderID, err := s.idWorker.NextID(ctx, orderIDScope)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "ID generation failed")
		return nil, err
	}

	// 3. 单步原子准入：库存 + 一人一单，一次脚本内完成扣减和占位
	result, err := s.admission.Admit(ctx, voucherID, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Admission script failed")
		return nil, err
	}
	switch result {
	case port.AdmissionAdmitted:
		// fallthrough to enqueue
	case port.AdmissionSoldOut:
		metrics.AdmissionResults.WithLabelValues("sold_out").Inc()
		span.AddEvent("Admission rejected: sold out")
		return nil, port.ErrSoldOut
	case port.AdmissionAlreadyOrdered:
		metrics.AdmissionResults.WithLabelValues("already_ordered").Inc()
		span.AddEvent("Admission rejected: already ordered")
		return nil, port.ErrAlreadyOrdered
	default:
		return nil, fmt.Errorf("unknown admission result: %d", result)
	}

	// 4. 投入履约队列。状态登记必须先于入队：消费侧可能在 Produce
	// 返回之前就推进到终态，事后登记会把已被读走的终态复活成
	// 永远 pending 的孤儿条目。
	s.tracker.Track(orderID)
	event := &domain.OrderPlacementRequested{
		OrderID:   orderID,
		UserID:    userID,
		VoucherID: voucherID,
		PlacedAt:  time.Now(),
	}
	// 入队失败必须撤销刚才的预占，
	// 否则这份库存永远不会走到持久化，也不会被死信补偿。
	if err := s.producer.Produce(ctx, event); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to enqueue admitted order")
		if revokeErr := s.admission.Revoke(ctx, voucherID, userID); revokeErr != nil {
			logger.Ctx(ctx).Error().Err(revokeErr).
				Int64("order_id", orderID).
				Msg("CRITICAL: failed to revoke reservation after enqueue failure")
		}
		s.tracker.Forget(orderID)
		return nil, err
	}

	metrics.AdmissionResults.WithLabelValues("admitted").Inc()
	span.AddEvent("Order admitted and enqueued")
	logger.Ctx(ctx).Info().
		Int64("order_id", orderID).
		Int64("voucher_id", voucherID).
		Int64("user_id", userID).
		Msg("Order admitted")

	return &PlaceOrderResponse{OrderID: orderID, Status: domain.StatusPending}, nil
}

// PlaceOrderWithLock 是兜底的同步下单路径：
// 按用户加分布式锁，在锁内复核一人一单并用条件更新扣库存，当场落库。
// 锁只串行化同一用户的重复请求；防超卖靠的是锁内的条件扣减。
func (s *SeckillApplicationService) PlaceOrderWithLock(ctx context.Context, voucherID, userID int64) (*PlaceOrderResponse, error) {
	ctx, span := s.tracer.Start(ctx, "app.PlaceOrderWithLock")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("seckill.voucher.id", voucherID),
		attribute.Int64("user.id", userID),
	)

	voucher, err := s.voucherRepo.FindByID(ctx, voucherID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	now := time.Now()
	if err := voucher.CheckActive(now); err != nil {
		return nil, err
	}
	if voucher.Stock < 1 {
		return nil, port.ErrSoldOut
	}
	if voucher.Rule != "" && s.eligibility != nil {
		ok, err := s.eligibility.Evaluate(voucher.Rule, domain.EligibilityFact{
			UserID: userID,
			Stock:  voucher.Stock,
			Now:    now,
			Begin:  voucher.BeginTime,
			End:    voucher.EndTime,
		})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "Eligibility rule evaluation failed")
			return nil, err
		}
		if !ok {
			return nil, port.ErrIneligible
		}
	}

	lock, err := s.lockFactory.NewLock(fmt.Sprintf("order:%d", userID))
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	locked, err := lock.TryLock(ctx, s.lockTTL)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Lock acquisition failed")
		return nil, err
	}
	if !locked {
		span.AddEvent("Per-user lock contended")
		return nil, port.ErrTooFrequent
	}
	defer func() {
		if err := lock.Unlock(ctx); err != nil {
			// TTL 过期后锁可能已易主，compare-then-delete 会拒绝释放；记录即可
			logger.Ctx(ctx).Warn().Err(err).Int64("user_id", userID).Msg("Failed to release per-user lock")
		}
	}()

	orderID, err := s.idWorker.NextID(ctx, orderIDScope)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	order, err := domain.NewVoucherOrder(orderID, userID, voucherID)
	if err != nil {
		return nil, err
	}

	if err := s.orderRepo.CreateOrder(ctx, order); err != nil {
		switch err {
		case domain.ErrDuplicateOrder:
			return nil, port.ErrAlreadyOrdered
		case domain.ErrStockShortage:
			return nil, port.ErrSoldOut
		default:
			span.RecordError(err)
			span.SetStatus(codes.Error, "Synchronous order creation failed")
			return nil, err
		}
	}

	span.AddEvent("Order created synchronously under lock")
	return &PlaceOrderResponse{OrderID: orderID, Status: domain.StatusSuccess}, nil
}

// HandleOrderMessage 是持久化路径的入口，由队列消费适配器驱动。
// 返回非 nil 错误表示本次投递失败，交由失败路由决定重试或死信。
func (s *SeckillApplicationService) HandleOrderMessage(ctx context.Context, event *domain.OrderPlacementRequested) error {
	ctx, span := s.tracer.Start(ctx, "app.HandleOrderMessage", trace.WithSpanKind(trace.SpanKindConsumer))
	defer span.End()
	span.SetAttributes(attribute.Int64("order.id", event.OrderID))

	order, err := event.ToOrder()
	if err != nil {
		span.RecordError(err)
		return err
	}
	order.MarkAsSuccess()

	if err := s.orderRepo.CreateOrder(ctx, order); err != nil {
		if err == domain.ErrDuplicateOrder {
			// 至少一次投递的重复消息：前一次已经落库，按成功确认
			logger.Ctx(ctx).Warn().Int64("order_id", event.OrderID).Msg("Duplicate delivery, order already persisted")
			s.finishOrder(event, domain.StatusSuccess)
			return nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "Order persistence failed")
		return err
	}

	metrics.OrdersPersisted.Inc()
	s.finishOrder(event, domain.StatusSuccess)
	logger.Ctx(ctx).Info().Int64("order_id", event.OrderID).Msg("Order durably persisted")
	return nil
}

// HandleDeadLetter 处理重试耗尽的订单：
// 反向执行准入脚本恢复库存和占位、落审计表、推进终态。
func (s *SeckillApplicationService) HandleDeadLetter(ctx context.Context, event *domain.OrderPlacementRequested, reason string) error {
	ctx, span := s.tracer.Start(ctx, "app.HandleDeadLetter", trace.WithSpanKind(trace.SpanKindConsumer))
	defer span.End()
	span.SetAttributes(
		attribute.Int64("order.id", event.OrderID),
		attribute.String("failure.reason", reason),
	)

	if err := s.admission.Revoke(ctx, event.VoucherID, event.UserID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Compensation rollback failed")
		return err
	}

	order, err := event.ToOrder()
	if err != nil {
		return err
	}
	order.MarkAsFailed()
	if err := s.orderRepo.SaveFailedOrder(ctx, order, reason); err != nil {
		// 补偿已完成，审计写入失败不再回滚补偿，记录后返回错误让消息重投
		span.RecordError(err)
		return err
	}

	metrics.DeadLetters.Inc()
	s.finishOrder(event, domain.StatusFailed)
	logger.Ctx(ctx).Error().
		Int64("order_id", event.OrderID).
		Str("reason", reason).
		Msg("Order dead-lettered, reservation rolled back")
	return nil
}

func (s *SeckillApplicationService) finishOrder(event *domain.OrderPlacementRequested, status domain.OrderStatus) {
	s.tracker.Set(event.OrderID, status)
	if s.notifier != nil {
		s.notifier.Push(event.UserID, event.OrderID, status)
	}
}

// GetOrderStatus 返回订单的轮询状态；未知订单返回 ("", false)。
func (s *SeckillApplicationService) GetOrderStatus(orderID int64) (domain.OrderStatus, bool) {
	return s.tracker.Get(orderID)
}

// PrepareVoucher 创建（或重置）一个秒杀优惠券：写库存记录，并把库存预热到准入存储。
func (s *SeckillApplicationService) PrepareVoucher(ctx context.Context, voucher *domain.SeckillVoucher) error {
	ctx, span := s.tracer.Start(ctx, "app.PrepareVoucher")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("seckill.voucher.id", voucher.VoucherID),
		attribute.Int("seckill.voucher.stock", voucher.Stock),
	)

	if err := s.voucherRepo.Save(ctx, voucher); err != nil {
		span.RecordError(err)
		return err
	}
	if err := s.admission.Prepare(ctx, voucher.VoucherID, voucher.Stock); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to preload voucher stock")
		return err
	}
	logger.Ctx(ctx).Info().
		Int64("voucher_id", voucher.VoucherID).
		Int("stock", voucher.Stock).
		Msg("Seckill voucher prepared")
	return nil
}
