// internal/service/order/application/saga/validate.go
package saga

import (
	"demoshop/internal/pkg/apperr"
	"demoshop/internal/pkg/logger"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// ValidateStockHandler 负责前置校验库存是否足够。
// 批量读走降级口径：远端不可用时所有可售量按 0 计，
// 整单直接失败，避免在库存黑盒状态下扣减。
type ValidateStockHandler struct {
	NextHandler
}

func (h *ValidateStockHandler) Handle(orderCtx *OrderContext) error {
	ctx, span := orderCtx.Tracer.Start(orderCtx.Ctx, "saga.ValidateStock")
	defer span.End()

	productIDs := make([]string, 0, len(orderCtx.Order.Lines))
	for _, line := range orderCtx.Order.Lines {
		productIDs = append(productIDs, line.ProductID)
	}
	span.SetAttributes(attribute.StringSlice("products", productIDs))

	available := orderCtx.Inventory.GetQuantities(ctx, productIDs)

	for _, line := range orderCtx.Order.Lines {
		if available[line.ProductID] < line.Quantity {
			err := apperr.Newf(apperr.InsufficientStock,
				"product %s has %d available, order needs %d",
				line.ProductID, available[line.ProductID], line.Quantity)
			span.RecordError(err)
			span.SetStatus(codes.Error, "Stock validation failed")
			logger.Ctx(ctx).Warn().
				Str("order_id", orderCtx.Order.ID).
				Str("product_id", line.ProductID).
				Int("available", available[line.ProductID]).
				Int("requested", line.Quantity).
				Msg("Stock validation rejected order")
			return err
		}
	}

	span.AddEvent("All items have sufficient stock")
	return h.executeNext(orderCtx)
}
