// internal/service/order/domain/event.go
package domain

import (
	"github.com/shopspring/decimal"
)

// CheckoutEvent 是购物车结账后发布的事件，驱动整个下单流程。
// EventID 缺失时由消费侧用消息坐标兜底，保证幂等键始终存在。
type CheckoutEvent struct {
	EventID       string              `json:"eventId,omitempty"`
	UserID        string              `json:"userId"`
	PaymentMethod string              `json:"paymentMethod,omitempty"`
	Items         []CheckoutEventItem `json:"items"`
}

// CheckoutEventItem 是结账事件里的单个商品行。
type CheckoutEventItem struct {
	ProductID string          `json:"productId"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice,omitempty"`
}
