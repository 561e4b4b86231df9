// internal/service/order/application/saga/create_order.go
package saga

import (
	"context"

	"demoshop/internal/pkg/apperr"
	"demoshop/internal/pkg/logger"
)

// CreateOrderHandler 负责持久化订单头。
// 明细由后续步骤逐行写入，这里只落 CREATED 状态的头记录。
type CreateOrderHandler struct {
	NextHandler
}

func (h *CreateOrderHandler) Handle(orderCtx *OrderContext) error {
	ctx, span := orderCtx.Tracer.Start(orderCtx.Ctx, "saga.CreateOrderHeader")
	defer span.End()

	if err := orderCtx.Repo.CreateHeader(ctx, orderCtx.Order); err != nil {
		span.RecordError(err)
		return apperr.Wrap(err, apperr.KindOf(err), "failed to create order header")
	}
	span.AddEvent("Order header saved with CREATED state")

	// 头写入成功后注册删除补偿，保证失败时不留孤儿头
	orderCtx.AddCompensation(func(compCtx context.Context) {
		compCtx, compSpan := orderCtx.Tracer.Start(compCtx, "saga.compensation.DeleteOrderHeader")
		defer compSpan.End()

		if err := orderCtx.Repo.DeleteHeader(compCtx, orderCtx.Order.ID); err != nil {
			compSpan.RecordError(err)
			logger.Ctx(compCtx).Error().
				Str("order_id", orderCtx.Order.ID).
				Err(err).
				Msg("CRITICAL: failed to delete order header during compensation")
		}
	})

	return h.executeNext(orderCtx)
}
