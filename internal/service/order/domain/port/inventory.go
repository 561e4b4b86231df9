// internal/service/order/domain/port/inventory.go
package port

import "context"

// InventoryService 是库存服务的出站端口。
// 读方法在远端不可用时降级为零值，写方法如实返回失败，
// 这样下单流程对库存故障是 fail-closed 的。
type InventoryService interface {
	// GetQuantity 查询单个商品的可售量，远端不可用时返回 0。
	GetQuantity(ctx context.Context, productID string) int

	// GetQuantities 批量查询可售量。远端缺失的 id 补 0，
	// 整体失败时所有 id 都是 0。
	GetQuantities(ctx context.Context, productIDs []string) map[string]int

	// UpdateQuantity 覆盖写商品库存量，远端不可用时返回 false。
	UpdateQuantity(ctx context.Context, productID string, quantity int) bool

	// Consume 原子扣减可售量，错误携带业务判定所需的错误种类。
	Consume(ctx context.Context, productID string, amount int) error
}

// QuantitySource 是缓存装饰器的回源口。与 InventoryService 的
// 读方法不同，回源失败要如实报告，降级出来的零值不进缓存。
type QuantitySource interface {
	FetchQuantity(ctx context.Context, productID string) (int, error)
	FetchQuantities(ctx context.Context, productIDs []string) (map[string]int, error)
}

// InventoryReader 是只读的可售量查询口，供展示路径使用。
// 缓存装饰器实现它；下单流程不经过这个口。
type InventoryReader interface {
	GetQuantity(ctx context.Context, productID string) int
	GetQuantities(ctx context.Context, productIDs []string) map[string]int

	// Invalidate 丢弃已缓存的可售量，下一次读回源。
	Invalidate()
}
