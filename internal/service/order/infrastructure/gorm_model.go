package infrastructure

import (
	"time"

	"demoshop/internal/service/order/domain"

	"github.com/shopspring/decimal"
)

// OrderModel 对应数据库中的 orders 表
type OrderModel struct {
	ID            string          `gorm:"primaryKey;size:36"`
	UserID        string          `gorm:"size:36;not null;index"`
	PaymentMethod string          `gorm:"size:32;not null"`
	EventKey      string          `gorm:"uniqueIndex;size:128;not null"`
	State         string          `gorm:"size:16;not null"`
	TotalPrice    decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (OrderModel) TableName() string {
	return "orders"
}

// OrderDetailModel 对应 order_details 表，一行一条商品明细
type OrderDetailModel struct {
	ID        string          `gorm:"primaryKey;size:36"`
	OrderID   string          `gorm:"size:36;not null;index"`
	ProductID string          `gorm:"size:36;not null"`
	Quantity  int             `gorm:"not null"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	CreatedAt time.Time
}

func (OrderDetailModel) TableName() string {
	return "order_details"
}

func toDomainOrder(m *OrderModel) *domain.Order {
	return &domain.Order{
		ID:            m.ID,
		UserID:        m.UserID,
		PaymentMethod: m.PaymentMethod,
		EventKey:      m.EventKey,
		State:         domain.State(m.State),
		TotalPrice:    m.TotalPrice,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

func toOrderModel(o *domain.Order) *OrderModel {
	return &OrderModel{
		ID:            o.ID,
		UserID:        o.UserID,
		PaymentMethod: o.PaymentMethod,
		EventKey:      o.EventKey,
		State:         string(o.State),
		TotalPrice:    o.TotalPrice,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
}

func toDomainLine(m *OrderDetailModel) *domain.Line {
	return &domain.Line{
		ID:        m.ID,
		OrderID:   m.OrderID,
		ProductID: m.ProductID,
		Quantity:  m.Quantity,
		UnitPrice: m.UnitPrice,
		CreatedAt: m.CreatedAt,
	}
}

func toOrderDetailModel(l *domain.Line) *OrderDetailModel {
	return &OrderDetailModel{
		ID:        l.ID,
		OrderID:   l.OrderID,
		ProductID: l.ProductID,
		Quantity:  l.Quantity,
		UnitPrice: l.UnitPrice,
		CreatedAt: l.CreatedAt,
	}
}
