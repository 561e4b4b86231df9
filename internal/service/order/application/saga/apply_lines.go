// internal/service/order/application/saga/apply_lines.go
package saga

import (
	"context"

	"demoshop/internal/pkg/apperr"
	"demoshop/internal/pkg/logger"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// ApplyLinesHandler 逐行扣减库存并写入订单明细。
// 每写成功一行就注册一条删除补偿；库存扣减本身不回补，
// 失败订单已扣减的量需要线下对账处理。
type ApplyLinesHandler struct {
	NextHandler
}

func (h *ApplyLinesHandler) Handle(orderCtx *OrderContext) error {
	ctx, span := orderCtx.Tracer.Start(orderCtx.Ctx, "saga.ApplyOrderLines")
	defer span.End()

	for _, line := range orderCtx.Order.Lines {
		if err := orderCtx.Inventory.Consume(ctx, line.ProductID, line.Quantity); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "Inventory consume failed")
			span.SetAttributes(attribute.String("failed.product", line.ProductID))
			return apperr.Wrap(err, apperr.KindOf(err), "failed to consume inventory for "+line.ProductID)
		}

		if err := orderCtx.Repo.AddLine(ctx, line); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "Order line insert failed")
			return apperr.Wrap(err, apperr.KindOf(err), "failed to add order line for "+line.ProductID)
		}

		lineID := line.ID
		productID := line.ProductID
		orderCtx.AddCompensation(func(compCtx context.Context) {
			compCtx, compSpan := orderCtx.Tracer.Start(compCtx, "saga.compensation.DeleteOrderLine")
			defer compSpan.End()
			compSpan.SetAttributes(attribute.String("product.id", productID))

			if err := orderCtx.Repo.DeleteLine(compCtx, lineID); err != nil {
				compSpan.RecordError(err)
				logger.Ctx(compCtx).Error().
					Str("order_id", orderCtx.Order.ID).
					Str("line_id", lineID).
					Err(err).
					Msg("CRITICAL: failed to delete order line during compensation")
			}
		})
	}

	span.AddEvent("All order lines applied")
	return h.executeNext(orderCtx)
}
