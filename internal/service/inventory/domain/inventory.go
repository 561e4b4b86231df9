// internal/service/inventory/domain/inventory.go
package domain

import (
	"time"

	"demoshop/internal/pkg/apperr"
)

var (
	ErrNotFound          = apperr.New(apperr.NotFound, "inventory record not found")
	ErrInvalidQuantity   = apperr.New(apperr.InvalidArgument, "quantity must be positive")
	ErrNegativeQuantity  = apperr.New(apperr.InvalidArgument, "quantity cannot be negative")
	ErrInsufficientStock = apperr.New(apperr.InsufficientStock, "insufficient available stock")
	ErrInvalidRelease    = apperr.New(apperr.InvalidState, "release exceeds reserved quantity")
	ErrReservedExceeded  = apperr.New(apperr.InvalidState, "quantity cannot drop below reserved quantity")
)

// Record 是某个商品的库存计数器，按 ProductID 唯一。
// 不变量: 0 <= ReservedQuantity <= Quantity。
// 所有修改方法要么完整生效，要么完全不改变状态。
type Record struct {
	ID               string
	ProductID        string
	Quantity         int // 在库量
	ReservedQuantity int // 被未完成订单占用的量
	Version          int // 乐观锁计数器，持久层在版本不匹配时拒绝写入
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Available 返回真正可售的数量，派生值，不落库。
func (r *Record) Available() int {
	return r.Quantity - r.ReservedQuantity
}

// Reserve 把 amount 个库存占用到预留池。
func (r *Record) Reserve(amount int) error {
	if amount <= 0 {
		return ErrInvalidQuantity
	}
	if r.Available() < amount {
		return ErrInsufficientStock
	}
	r.ReservedQuantity += amount
	return nil
}

// Release 归还 amount 个预留库存。
func (r *Record) Release(amount int) error {
	if amount <= 0 {
		return ErrInvalidQuantity
	}
	if r.ReservedQuantity < amount {
		return ErrInvalidRelease
	}
	r.ReservedQuantity -= amount
	return nil
}

// Consume 直接扣减在库量，订单履约使用的 check-and-decrement。
// 不要求先 Reserve。
func (r *Record) Consume(amount int) error {
	if amount <= 0 {
		return ErrInvalidQuantity
	}
	if r.Available() < amount {
		return ErrInsufficientStock
	}
	r.Quantity -= amount
	return nil
}

// SetQuantity 直接设置在库量（运营修正入口）。
// 不允许把在库量压到预留量以下，否则不变量被破坏。
func (r *Record) SetQuantity(quantity int) error {
	if quantity < 0 {
		return ErrNegativeQuantity
	}
	if quantity < r.ReservedQuantity {
		return ErrReservedExceeded
	}
	r.Quantity = quantity
	return nil
}
