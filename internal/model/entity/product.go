package entity

import (
	"time"
)

// Product 产品/物料主数据（只读，由主数据系统维护）
type Product struct {
	ID         string    `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	PTCode     string    `json:"pt_code" gorm:"size:64;not null;uniqueIndex"`
	Name       string    `json:"name" gorm:"size:128;not null"`
	UOM        string    `json:"uom" gorm:"size:20;not null;default:pcs"`
	IsService  bool      `json:"is_service" gorm:"default:false"`
	Approved   bool      `json:"approved" gorm:"default:true"`
	DeleteFlag bool      `json:"delete_flag" gorm:"default:false;index"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (Product) TableName() string {
	return "products"
}

// Warehouse 仓库主数据（只读）
type Warehouse struct {
	ID         string    `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	Code       string    `json:"code" gorm:"size:50;not null;uniqueIndex"`
	Name       string    `json:"name" gorm:"size:128;not null"`
	CompanyID  string    `json:"company_id" gorm:"size:64"` // 所属法人实体
	DeleteFlag bool      `json:"delete_flag" gorm:"default:false;index"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (Warehouse) TableName() string {
	return "warehouses"
}
