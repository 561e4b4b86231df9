// internal/service/order/application/service.go
package application

import (
	"context"
	"time"

	"demoshop/internal/pkg/apperr"
	"demoshop/internal/pkg/logger"
	"demoshop/internal/service/order/application/saga"
	"demoshop/internal/service/order/domain"
	"demoshop/internal/service/order/domain/port"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OrderApplicationService 编排结账事件到订单的完整流程。
type OrderApplicationService struct {
	orderRepo        domain.OrderRepository
	inventoryService port.InventoryService
	guard            port.IdempotencyGuard

	processingTimeout    time.Duration
	defaultPaymentMethod string
	tracer               trace.Tracer
}

func NewOrderApplicationService(orderRepo domain.OrderRepository, inventoryService port.InventoryService, guard port.IdempotencyGuard, processingTimeout time.Duration, defaultPaymentMethod string, tracer trace.Tracer) *OrderApplicationService {
	return &OrderApplicationService{
		orderRepo: orderRepo, inventoryService: inventoryService, guard: guard,
		processingTimeout: processingTimeout, defaultPaymentMethod: defaultPaymentMethod,
		tracer: tracer,
	}
}

// HandleCheckoutEvent 是消费侧的业务入口。
// 返回 nil 表示消息可以提交：要么下单成功，要么是重复消息，
// 要么是业务性失败且补偿已执行。返回错误时由调用方按错误
// 种类决定重试还是进死信。
func (s *OrderApplicationService) HandleCheckoutEvent(ctx context.Context, event *domain.CheckoutEvent, eventKey string) error {
	ctx, span := s.tracer.Start(ctx, "app.HandleCheckoutEvent", trace.WithSpanKind(trace.SpanKindConsumer))
	defer span.End()
	span.SetAttributes(attribute.String("event.key", eventKey))

	processingCtx, cancel := context.WithTimeout(ctx, s.processingTimeout)
	defer cancel()

	// 1. 校验事件并构造订单实体，失败即毒消息
	orderEntity, err := domain.NewOrder(event, eventKey, s.defaultPaymentMethod)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to create order entity")
		observeSagaOutcome(outcomePoison)
		return err
	}

	// 2. 幂等：先查库里有没有同键订单，再抢分布式锁
	if existing, err := s.orderRepo.FindByEventKey(processingCtx, eventKey); err == nil {
		span.AddEvent("Duplicate checkout event skipped")
		logger.Ctx(processingCtx).Info().
			Str("event_key", eventKey).
			Str("order_id", existing.ID).
			Msg("Checkout event already processed, skipping")
		observeSagaOutcome(outcomeDuplicate)
		return nil
	} else if apperr.KindOf(err) != apperr.NotFound {
		span.RecordError(err)
		return apperr.Wrap(err, apperr.Unavailable, "failed to check event key")
	}

	acquired, err := s.guard.Acquire(processingCtx, eventKey)
	if err != nil {
		span.RecordError(err)
		return apperr.Wrap(err, apperr.Unavailable, "failed to acquire idempotency key")
	}
	if !acquired {
		span.AddEvent("Idempotency key held by another consumer, skipping")
		observeSagaOutcome(outcomeDuplicate)
		return nil
	}

	// 3. 执行责任链
	orderContext := &saga.OrderContext{
		Ctx:       processingCtx,
		Event:     event,
		Order:     orderEntity,
		Tracer:    s.tracer,
		Repo:      s.orderRepo,
		Inventory: s.inventoryService,
	}

	logger.Ctx(processingCtx).Info().
		Str("order_id", orderEntity.ID).
		Str("user_id", orderEntity.UserID).
		Int("lines", len(orderEntity.Lines)).
		Msg("Starting order fulfillment saga")

	if err := s.buildChain().Handle(orderContext); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Order processing failed in chain")
		return s.failSaga(processingCtx, orderContext, eventKey, err)
	}

	// 4. 对账：明细合计即订单总额，回写 COMPLETED
	if err := orderEntity.MarkAsCompleted(); err != nil {
		span.RecordError(err)
		return s.failSaga(processingCtx, orderContext, eventKey, err)
	}
	if err := s.orderRepo.UpdateTotals(processingCtx, orderEntity); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to finalize order totals")
		return s.failSaga(processingCtx, orderContext, eventKey, err)
	}

	logger.Ctx(processingCtx).Info().
		Str("order_id", orderEntity.ID).
		Str("total_price", orderEntity.TotalPrice.String()).
		Msg("✅ Order fulfilled successfully")
	span.AddEvent("Order completed")
	observeSagaOutcome(outcomeCompleted)
	return nil
}

// failSaga 触发补偿并释放幂等键。业务性失败吞掉错误让消息提交，
// 暂时性失败把错误抛回消费侧重试。
func (s *OrderApplicationService) failSaga(ctx context.Context, orderContext *saga.OrderContext, eventKey string, cause error) error {
	orderContext.Order.MarkAsFailed()
	orderContext.TriggerCompensation(ctx)

	if err := s.guard.Release(ctx, eventKey); err != nil {
		logger.Ctx(ctx).Error().Str("event_key", eventKey).Err(err).
			Msg("Failed to release idempotency key after saga failure")
	}

	if apperr.IsTransient(cause) {
		logger.Ctx(ctx).Warn().
			Str("order_id", orderContext.Order.ID).
			Err(cause).
			Msg("Order saga failed transiently, message will be retried")
		observeSagaOutcome(outcomeTransient)
		return cause
	}

	logger.Ctx(ctx).Warn().
		Str("order_id", orderContext.Order.ID).
		Str("kind", apperr.KindOf(cause).String()).
		Err(cause).
		Msg("🛑 Order saga failed on business grounds, compensation done")
	observeSagaOutcome(outcomeBusinessFailed)
	if apperr.KindOf(cause) == apperr.InvalidArgument {
		// 结构性坏数据交给调用方送死信
		return cause
	}
	return nil
}

func (s *OrderApplicationService) buildChain() saga.Handler {
	chain := new(saga.ValidateStockHandler)
	chain.
		SetNext(new(saga.CreateOrderHandler)).
		SetNext(new(saga.ApplyLinesHandler))
	return chain
}

// ---- 读与运维接口 ----

func (s *OrderApplicationService) ListOrders(ctx context.Context) ([]*domain.Order, error) {
	return s.orderRepo.List(ctx)
}

func (s *OrderApplicationService) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	if id == "" {
		return nil, apperr.New(apperr.InvalidArgument, "order id is required")
	}
	return s.orderRepo.FindByID(ctx, id)
}

func (s *OrderApplicationService) GetOrderLines(ctx context.Context, orderID string) ([]*domain.Line, error) {
	if orderID == "" {
		return nil, apperr.New(apperr.InvalidArgument, "order id is required")
	}
	return s.orderRepo.FindLinesByOrderID(ctx, orderID)
}

// DeleteOrder 删除一个订单及其全部明细。
func (s *OrderApplicationService) DeleteOrder(ctx context.Context, id string) error {
	if id == "" {
		return apperr.New(apperr.InvalidArgument, "order id is required")
	}
	order, err := s.orderRepo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	for _, line := range order.Lines {
		if err := s.orderRepo.DeleteLine(ctx, line.ID); err != nil {
			return err
		}
	}
	return s.orderRepo.DeleteHeader(ctx, order.ID)
}

func (s *OrderApplicationService) DeleteAllOrders(ctx context.Context) error {
	return s.orderRepo.DeleteAll(ctx)
}
