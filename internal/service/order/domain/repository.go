// internal/service/order/domain/repository.go
package domain

import "context"

// OrderRepository 定义了订单聚合的持久化接口。
// 它位于领域层，但由基础设施层实现。
//
// 头和明细是分步写入的：CreateHeader 先落订单头，
// AddLine 逐行追加，UpdateTotals 最后回写总额与状态。
// 补偿路径按相反顺序用 DeleteLine / DeleteHeader 逐步回滚。
type OrderRepository interface {
	// CreateHeader 持久化订单头（不含明细）。
	CreateHeader(ctx context.Context, order *Order) error

	// AddLine 追加一条订单明细。
	AddLine(ctx context.Context, line *Line) error

	// UpdateTotals 回写订单总额和状态。
	UpdateTotals(ctx context.Context, order *Order) error

	// FindByID 根据 ID 查找订单聚合，包含全部明细。
	FindByID(ctx context.Context, id string) (*Order, error)

	// FindByEventKey 按幂等键查找订单，不存在返回 NotFound。
	FindByEventKey(ctx context.Context, eventKey string) (*Order, error)

	// FindLinesByOrderID 只取明细，供读接口使用。
	FindLinesByOrderID(ctx context.Context, orderID string) ([]*Line, error)

	// List 返回全部订单头（不含明细）。
	List(ctx context.Context) ([]*Order, error)

	// DeleteLine 删除一条明细，是 AddLine 的补偿。
	DeleteLine(ctx context.Context, lineID string) error

	// DeleteHeader 删除订单头，是 CreateHeader 的补偿。
	DeleteHeader(ctx context.Context, orderID string) error

	// DeleteAll 清空订单与明细，仅供运维接口使用。
	DeleteAll(ctx context.Context) error
}
