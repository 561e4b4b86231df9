// internal/service/order/domain/order.go
package domain

import (
	"time"

	"demoshop/internal/pkg/apperr"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Order 是订单聚合的根实体
type Order struct {
	ID            string
	UserID        string
	PaymentMethod string
	EventKey      string // 幂等键，来自事件 ID 或消息坐标
	State         State
	TotalPrice    decimal.Decimal
	Lines         []*Line
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Line 是订单的一条商品明细。
type Line struct {
	ID        string
	OrderID   string
	ProductID string
	Quantity  int
	UnitPrice decimal.Decimal
	CreatedAt time.Time
}

// Subtotal 返回该行的小计金额。
func (l *Line) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// 工厂函数: NewOrder 校验结账事件并创建订单实体。
// 校验失败的事件属于结构性坏消息，调用方应将其判定为毒消息。
func NewOrder(event *CheckoutEvent, eventKey, defaultPaymentMethod string) (*Order, error) {
	if event.UserID == "" {
		return nil, apperr.New(apperr.InvalidArgument, "checkout event has empty userId")
	}
	if _, err := uuid.Parse(event.UserID); err != nil {
		return nil, apperr.Wrap(err, apperr.InvalidArgument, "checkout event has malformed userId")
	}
	if len(event.Items) == 0 {
		return nil, apperr.New(apperr.InvalidArgument, "checkout event has no items")
	}
	if eventKey == "" {
		return nil, apperr.New(apperr.InvalidArgument, "checkout event has no usable event key")
	}

	paymentMethod := event.PaymentMethod
	if paymentMethod == "" {
		paymentMethod = defaultPaymentMethod
	}

	now := time.Now()
	order := &Order{
		ID:            uuid.New().String(),
		UserID:        event.UserID,
		PaymentMethod: paymentMethod,
		EventKey:      eventKey,
		State:         StateCreated,
		TotalPrice:    decimal.Zero,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	for _, item := range event.Items {
		if item.ProductID == "" {
			return nil, apperr.New(apperr.InvalidArgument, "checkout event item has empty productId")
		}
		if item.Quantity <= 0 {
			return nil, apperr.Newf(apperr.InvalidArgument, "checkout event item %s has non-positive quantity %d", item.ProductID, item.Quantity)
		}
		order.Lines = append(order.Lines, &Line{
			ID:        uuid.New().String(),
			OrderID:   order.ID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			CreatedAt: now,
		})
	}

	return order, nil
}

// LinesTotal 按当前明细累加订单总额。
func (o *Order) LinesTotal() decimal.Decimal {
	total := decimal.Zero
	for _, line := range o.Lines {
		total = total.Add(line.Subtotal())
	}
	return total
}

// MarkAsCompleted 在全部明细落库并对账通过后调用。
func (o *Order) MarkAsCompleted() error {
	if o.State != StateCreated {
		return apperr.Newf(apperr.InvalidState, "order %s cannot complete from state %s", o.ID, o.State)
	}
	o.State = StateCompleted
	o.TotalPrice = o.LinesTotal()
	o.UpdatedAt = time.Now()
	return nil
}

// MarkAsFailed 将订单标记为失败
func (o *Order) MarkAsFailed() {
	o.State = StateFailed
	o.UpdatedAt = time.Now()
}
