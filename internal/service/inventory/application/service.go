// internal/service/inventory/application/service.go
package application

import (
	"context"

	"demoshop/internal/pkg/apperr"
	"demoshop/internal/pkg/logger"
	"demoshop/internal/service/inventory/domain"

	"github.com/google/uuid"
)

// Quantity 是查询接口返回的数量视图。
type Quantity struct {
	Quantity  int
	Available int
}

// Service 封装库存台账的全部操作。
// 每个 ProductID 上的并发修改通过"读-改-版本写回"加有界重试来串行化，
// 不依赖调用方加锁，多实例水平扩展也成立。
type Service struct {
	repo       domain.Repository
	maxRetries int
}

func NewService(repo domain.Repository, maxRetries int) *Service {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &Service{repo: repo, maxRetries: maxRetries}
}

// GetQuantity 返回某商品的在库量和可售量。记录不存在时返回 NotFound。
func (s *Service) GetQuantity(ctx context.Context, productID string) (*Quantity, error) {
	record, err := s.repo.FindByProductID(ctx, productID)
	if err != nil {
		return nil, err
	}
	return &Quantity{Quantity: record.Quantity, Available: record.Available()}, nil
}

// GetQuantities 批量返回可售量。不存在的 id 不出现在结果里，
// 调用方必须把缺席当作零可售处理。
func (s *Service) GetQuantities(ctx context.Context, productIDs []string) (map[string]int, error) {
	records, err := s.repo.FindByProductIDs(ctx, productIDs)
	if err != nil {
		return nil, err
	}
	result := make(map[string]int, len(records))
	for _, record := range records {
		result[record.ProductID] = record.Available()
	}
	return result, nil
}

// SetQuantity 直接设置在库量。
func (s *Service) SetQuantity(ctx context.Context, productID string, quantity int) error {
	return s.mutate(ctx, "set_quantity", productID, func(r *domain.Record) error {
		return r.SetQuantity(quantity)
	})
}

// Reserve 占用库存。
func (s *Service) Reserve(ctx context.Context, productID string, amount int) error {
	return s.mutate(ctx, "reserve", productID, func(r *domain.Record) error {
		return r.Reserve(amount)
	})
}

// Release 归还预留库存。
func (s *Service) Release(ctx context.Context, productID string, amount int) error {
	return s.mutate(ctx, "release", productID, func(r *domain.Record) error {
		return r.Release(amount)
	})
}

// Consume 原子地检查并扣减在库量，订单履约的关键路径。
func (s *Service) Consume(ctx context.Context, productID string, amount int) error {
	return s.mutate(ctx, "consume", productID, func(r *domain.Record) error {
		return r.Consume(amount)
	})
}

// mutate 是所有计数器修改的公共骨架：加载、应用领域规则、
// 带版本写回；版本冲突说明有并发修改者，重读后重试。
func (s *Service) mutate(ctx context.Context, op, productID string, apply func(*domain.Record) error) error {
	var lastErr error
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		record, err := s.repo.FindByProductID(ctx, productID)
		if err != nil {
			observeOperation(op, err)
			return err
		}

		if err := apply(record); err != nil {
			observeOperation(op, err)
			return err
		}

		err = s.repo.UpdateCounters(ctx, record)
		if err == nil {
			observeOperation(op, nil)
			return nil
		}
		if !apperr.Is(err, apperr.Conflict) {
			observeOperation(op, err)
			return err
		}

		lastErr = err
		logger.Ctx(ctx).Debug().
			Str("product_id", productID).
			Str("op", op).
			Int("attempt", attempt+1).
			Msg("version conflict on inventory counters, retrying")
	}

	observeOperation(op, lastErr)
	return apperr.Wrap(lastErr, apperr.Conflict, "inventory mutation retries exhausted")
}

// ---- CRUD（台账自己的前门，RPC 层内部也会用到）----

func (s *Service) List(ctx context.Context) ([]*domain.Record, error) {
	return s.repo.List(ctx)
}

func (s *Service) GetByID(ctx context.Context, id string) (*domain.Record, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *Service) GetByProductID(ctx context.Context, productID string) (*domain.Record, error) {
	return s.repo.FindByProductID(ctx, productID)
}

func (s *Service) Create(ctx context.Context, productID string, quantity, reserved int) (*domain.Record, error) {
	if quantity < 0 || reserved < 0 || reserved > quantity {
		return nil, domain.ErrReservedExceeded
	}
	record := &domain.Record{
		ID:               uuid.New().String(),
		ProductID:        productID,
		Quantity:         quantity,
		ReservedQuantity: reserved,
	}
	if err := s.repo.Create(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

func (s *Service) Update(ctx context.Context, record *domain.Record) error {
	if record.ReservedQuantity < 0 || record.ReservedQuantity > record.Quantity {
		return domain.ErrReservedExceeded
	}
	return s.repo.Update(ctx, record)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}
