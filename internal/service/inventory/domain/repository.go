// internal/service/inventory/domain/repository.go
package domain

import "context"

// Repository 定义了库存记录的持久化接口。
// 它位于领域层，但由基础设施层实现。
type Repository interface {
	List(ctx context.Context) ([]*Record, error)
	FindByID(ctx context.Context, id string) (*Record, error)
	FindByProductID(ctx context.Context, productID string) (*Record, error)
	// FindByProductIDs 只返回存在的记录，不存在的 id 直接缺席。
	FindByProductIDs(ctx context.Context, productIDs []string) ([]*Record, error)

	Create(ctx context.Context, record *Record) error
	// Update 全量更新（CRUD 用）。
	Update(ctx context.Context, record *Record) error
	// UpdateCounters 带版本检查地写回计数器字段。
	// 版本不匹配时返回 Conflict 类错误，调用方据此重试。
	UpdateCounters(ctx context.Context, record *Record) error
	Delete(ctx context.Context, id string) error
}
