package infrastructure

import (
	"context"
	"errors"

	"demoshop/internal/pkg/apperr"
	"demoshop/internal/service/inventory/domain"

	"gorm.io/gorm"
)

// GormInventoryRepository 是 domain.Repository 的 GORM 实现
type GormInventoryRepository struct {
	db *gorm.DB
}

func NewGormInventoryRepository(db *gorm.DB) *GormInventoryRepository {
	return &GormInventoryRepository{db: db}
}

// AutoMigrate 建表，部署脚本和测试环境使用。
func (r *GormInventoryRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&InventoryModel{})
}

func (r *GormInventoryRepository) List(ctx context.Context) ([]*domain.Record, error) {
	var models []InventoryModel
	if err := r.db.WithContext(ctx).Find(&models).Error; err != nil {
		return nil, apperr.Wrap(err, apperr.Unavailable, "list inventory")
	}
	records := make([]*domain.Record, 0, len(models))
	for i := range models {
		records = append(records, toDomainRecord(&models[i]))
	}
	return records, nil
}

func (r *GormInventoryRepository) FindByID(ctx context.Context, id string) (*domain.Record, error) {
	var model InventoryModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, apperr.Wrap(err, apperr.Unavailable, "find inventory by id")
	}
	return toDomainRecord(&model), nil
}

func (r *GormInventoryRepository) FindByProductID(ctx context.Context, productID string) (*domain.Record, error) {
	var model InventoryModel
	err := r.db.WithContext(ctx).Where("product_id = ?", productID).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, apperr.Wrap(err, apperr.Unavailable, "find inventory by product id")
	}
	return toDomainRecord(&model), nil
}

func (r *GormInventoryRepository) FindByProductIDs(ctx context.Context, productIDs []string) ([]*domain.Record, error) {
	if len(productIDs) == 0 {
		return nil, nil
	}
	var models []InventoryModel
	if err := r.db.WithContext(ctx).Where("product_id IN ?", productIDs).Find(&models).Error; err != nil {
		return nil, apperr.Wrap(err, apperr.Unavailable, "find inventory by product ids")
	}
	records := make([]*domain.Record, 0, len(models))
	for i := range models {
		records = append(records, toDomainRecord(&models[i]))
	}
	return records, nil
}

func (r *GormInventoryRepository) Create(ctx context.Context, record *domain.Record) error {
	model := toInventoryModel(record)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apperr.Wrap(err, apperr.Conflict, "inventory record already exists")
		}
		return apperr.Wrap(err, apperr.Unavailable, "create inventory record")
	}
	record.CreatedAt = model.CreatedAt
	record.UpdatedAt = model.UpdatedAt
	return nil
}

func (r *GormInventoryRepository) Update(ctx context.Context, record *domain.Record) error {
	result := r.db.WithContext(ctx).Model(&InventoryModel{}).
		Where("id = ?", record.ID).
		Updates(map[string]interface{}{
			"product_id":        record.ProductID,
			"quantity":          record.Quantity,
			"reserved_quantity": record.ReservedQuantity,
		})
	if result.Error != nil {
		return apperr.Wrap(result.Error, apperr.Unavailable, "update inventory record")
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// UpdateCounters 带版本检查写回计数器。WHERE 里带上旧版本号，
// 没有命中行说明有并发写入者抢先提交，返回 Conflict 让上层重试。
func (r *GormInventoryRepository) UpdateCounters(ctx context.Context, record *domain.Record) error {
	result := r.db.WithContext(ctx).Model(&InventoryModel{}).
		Where("id = ? AND version = ?", record.ID, record.Version).
		Updates(map[string]interface{}{
			"quantity":          record.Quantity,
			"reserved_quantity": record.ReservedQuantity,
			"version":           record.Version + 1,
		})
	if result.Error != nil {
		return apperr.Wrap(result.Error, apperr.Unavailable, "update inventory counters")
	}
	if result.RowsAffected == 0 {
		return apperr.Newf(apperr.Conflict, "stale version %d for inventory %s", record.Version, record.ID)
	}
	record.Version++
	return nil
}

func (r *GormInventoryRepository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&InventoryModel{})
	if result.Error != nil {
		return apperr.Wrap(result.Error, apperr.Unavailable, "delete inventory record")
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
