// internal/service/order/application/saga/handler.go
package saga

import (
	"context"
	"sync"

	"demoshop/internal/pkg/logger"
	"demoshop/internal/service/order/domain"
	"demoshop/internal/service/order/domain/port"

	"go.opentelemetry.io/otel/trace"
)

// OrderContext 在 Saga 流程中传递上下文数据。
// 所有外部依赖都是抽象接口，步骤只面向端口编程。
type OrderContext struct {
	Ctx    context.Context
	Event  *domain.CheckoutEvent
	Order  *domain.Order
	Tracer trace.Tracer

	// 依赖出站端口 (Interfaces)
	Repo      domain.OrderRepository
	Inventory port.InventoryService

	// 补偿函数按 LIFO 顺序执行
	compensations []func(ctx context.Context)
	compLock      sync.Mutex
}

// AddCompensation 注册一个补偿函数，后注册的先执行。
func (c *OrderContext) AddCompensation(comp func(ctx context.Context)) {
	c.compLock.Lock()
	defer c.compLock.Unlock()
	c.compensations = append([]func(context.Context){comp}, c.compensations...)
}

// TriggerCompensation 执行全部已注册的补偿。
// 单个补偿失败只记日志，不中断其余补偿。
func (c *OrderContext) TriggerCompensation(ctx context.Context) {
	c.compLock.Lock()
	defer c.compLock.Unlock()
	logger.Ctx(ctx).Info().
		Str("order_id", c.Order.ID).
		Int("compensations", len(c.compensations)).
		Msg("Executing saga compensation functions")
	for _, comp := range c.compensations {
		comp(ctx)
	}
	c.compensations = nil
}

// Handler 是责任链的步骤接口。
type Handler interface {
	SetNext(handler Handler) Handler
	Handle(orderCtx *OrderContext) error
}

type NextHandler struct {
	next Handler
}

func (h *NextHandler) SetNext(handler Handler) Handler {
	h.next = handler
	return handler
}

func (h *NextHandler) executeNext(orderCtx *OrderContext) error {
	if h.next != nil {
		return h.next.Handle(orderCtx)
	}
	return nil
}
