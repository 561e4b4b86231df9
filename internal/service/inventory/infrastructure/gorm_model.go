package infrastructure

import (
	"time"

	"demoshop/internal/service/inventory/domain"
)

// InventoryModel 对应数据库中的 inventory 表
type InventoryModel struct {
	ID               string `gorm:"primaryKey;size:36"`
	ProductID        string `gorm:"uniqueIndex;size:36;not null"`
	Quantity         int    `gorm:"not null"`
	ReservedQuantity int    `gorm:"not null;default:0"`
	Version          int    `gorm:"not null;default:0"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// TableName 指定 GORM 应该使用的表名
func (InventoryModel) TableName() string {
	return "inventory"
}

func toDomainRecord(m *InventoryModel) *domain.Record {
	return &domain.Record{
		ID:               m.ID,
		ProductID:        m.ProductID,
		Quantity:         m.Quantity,
		ReservedQuantity: m.ReservedQuantity,
		Version:          m.Version,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

func toInventoryModel(r *domain.Record) *InventoryModel {
	return &InventoryModel{
		ID:               r.ID,
		ProductID:        r.ProductID,
		Quantity:         r.Quantity,
		ReservedQuantity: r.ReservedQuantity,
		Version:          r.Version,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}
