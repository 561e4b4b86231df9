// internal/service/order/domain/port/idempotency.go
package port

import "context"

// IdempotencyGuard 是跨实例的幂等锁出站端口。
// 数据库里的幂等键唯一约束是最终防线，这里只是挡掉
// 并发重复消费的快速通道。
type IdempotencyGuard interface {
	// Acquire 尝试占用幂等键，已被占用返回 false。
	Acquire(ctx context.Context, key string) (bool, error)

	// Release 释放幂等键，处理失败后调用以允许重试。
	Release(ctx context.Context, key string) error
}
