package repository

import (
	"github.com/hongquyngo/production/internal/model/entity"
	"gorm.io/gorm"
)

// MasterRepository 产品/仓库主数据只读查询
type MasterRepository struct {
	db *gorm.DB
}

func NewMasterRepository(db *gorm.DB) *MasterRepository {
	return &MasterRepository{db: db}
}

func (r *MasterRepository) GetProduct(id string) (*entity.Product, error) {
	var p entity.Product
	err := r.db.Where("id = ? AND delete_flag = false", id).First(&p).Error
	return &p, err
}

func (r *MasterRepository) GetWarehouse(id string) (*entity.Warehouse, error) {
	var w entity.Warehouse
	err := r.db.Where("id = ? AND delete_flag = false", id).First(&w).Error
	return &w, err
}

func (r *MasterRepository) ListWarehouses() ([]entity.Warehouse, error) {
	var ws []entity.Warehouse
	err := r.db.Where("delete_flag = false").Order("name").Find(&ws).Error
	return ws, err
}
