package infrastructure

import (
	"context"
	"errors"

	"demoshop/internal/pkg/apperr"
	"demoshop/internal/service/order/domain"

	"gorm.io/gorm"
)

// GormOrderRepository 是 domain.OrderRepository 的 GORM 实现
type GormOrderRepository struct {
	db *gorm.DB
}

func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// AutoMigrate 建表，部署脚本和测试环境使用。
func (r *GormOrderRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&OrderModel{}, &OrderDetailModel{})
}

func (r *GormOrderRepository) CreateHeader(ctx context.Context, order *domain.Order) error {
	model := toOrderModel(order)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// event_key 唯一索引兜底，并发重复消费会落到这里
			return apperr.Wrap(err, apperr.Conflict, "order with same event key already exists")
		}
		return apperr.Wrap(err, apperr.Unavailable, "create order header")
	}
	return nil
}

func (r *GormOrderRepository) AddLine(ctx context.Context, line *domain.Line) error {
	model := toOrderDetailModel(line)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return apperr.Wrap(err, apperr.Unavailable, "add order line")
	}
	return nil
}

func (r *GormOrderRepository) UpdateTotals(ctx context.Context, order *domain.Order) error {
	result := r.db.WithContext(ctx).Model(&OrderModel{}).
		Where("id = ?", order.ID).
		Updates(map[string]interface{}{
			"total_price": order.TotalPrice,
			"state":       string(order.State),
		})
	if result.Error != nil {
		return apperr.Wrap(result.Error, apperr.Unavailable, "update order totals")
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *GormOrderRepository) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	var model OrderModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, apperr.Wrap(err, apperr.Unavailable, "find order by id")
	}

	order := toDomainOrder(&model)
	lines, err := r.FindLinesByOrderID(ctx, id)
	if err != nil {
		return nil, err
	}
	order.Lines = lines
	return order, nil
}

func (r *GormOrderRepository) FindByEventKey(ctx context.Context, eventKey string) (*domain.Order, error) {
	var model OrderModel
	err := r.db.WithContext(ctx).Where("event_key = ?", eventKey).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, apperr.Wrap(err, apperr.Unavailable, "find order by event key")
	}
	return toDomainOrder(&model), nil
}

func (r *GormOrderRepository) FindLinesByOrderID(ctx context.Context, orderID string) ([]*domain.Line, error) {
	var models []OrderDetailModel
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Order("created_at").Find(&models).Error; err != nil {
		return nil, apperr.Wrap(err, apperr.Unavailable, "find order lines")
	}
	lines := make([]*domain.Line, 0, len(models))
	for i := range models {
		lines = append(lines, toDomainLine(&models[i]))
	}
	return lines, nil
}

func (r *GormOrderRepository) List(ctx context.Context) ([]*domain.Order, error) {
	var models []OrderModel
	if err := r.db.WithContext(ctx).Order("created_at desc").Find(&models).Error; err != nil {
		return nil, apperr.Wrap(err, apperr.Unavailable, "list orders")
	}
	orders := make([]*domain.Order, 0, len(models))
	for i := range models {
		orders = append(orders, toDomainOrder(&models[i]))
	}
	return orders, nil
}

func (r *GormOrderRepository) DeleteLine(ctx context.Context, lineID string) error {
	if err := r.db.WithContext(ctx).Where("id = ?", lineID).Delete(&OrderDetailModel{}).Error; err != nil {
		return apperr.Wrap(err, apperr.Unavailable, "delete order line")
	}
	return nil
}

func (r *GormOrderRepository) DeleteHeader(ctx context.Context, orderID string) error {
	if err := r.db.WithContext(ctx).Where("id = ?", orderID).Delete(&OrderModel{}).Error; err != nil {
		return apperr.Wrap(err, apperr.Unavailable, "delete order header")
	}
	return nil
}

func (r *GormOrderRepository) DeleteAll(ctx context.Context) error {
	if err := r.db.WithContext(ctx).Where("1 = 1").Delete(&OrderDetailModel{}).Error; err != nil {
		return apperr.Wrap(err, apperr.Unavailable, "delete order details")
	}
	if err := r.db.WithContext(ctx).Where("1 = 1").Delete(&OrderModel{}).Error; err != nil {
		return apperr.Wrap(err, apperr.Unavailable, "delete orders")
	}
	return nil
}
