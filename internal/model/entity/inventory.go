package entity

import (
	"time"
)

// MovementType 库存流水类型
const (
	MovementStockIn       = "STOCK_IN"       // 期初/外部入库
	MovementProductionIn  = "PRODUCTION_IN"  // 生产入库
	MovementProductionOut = "PRODUCTION_OUT" // 生产领料出库
	MovementAdjust        = "ADJUST"         // 库存调整
)

// ExpiryStatus 效期分级
const (
	ExpiryStatusExpired  = "EXPIRED"
	ExpiryStatusCritical = "CRITICAL"
	ExpiryStatusWarning  = "WARNING"
	ExpiryStatusOK       = "OK"
)

// ClassifyExpiry 按距今天数对效期分级：过期 EXPIRED，7天内 CRITICAL，30天内 WARNING，其余 OK。
// 无效期视为 OK。
func ClassifyExpiry(expiry *time.Time, today time.Time) string {
	if expiry == nil {
		return ExpiryStatusOK
	}
	today = today.Truncate(24 * time.Hour)
	exp := expiry.Truncate(24 * time.Hour)
	switch {
	case exp.Before(today):
		return ExpiryStatusExpired
	case !exp.After(today.AddDate(0, 0, 7)):
		return ExpiryStatusCritical
	case !exp.After(today.AddDate(0, 0, 30)):
		return ExpiryStatusWarning
	default:
		return ExpiryStatusOK
	}
}

// InventoryHistory 库存流水（追加型账本）。
// 行一旦写入不再删除；入库行的 remain 是唯一可变字段，只减不增，
// 消耗到 0 即批次耗尽。余额 = 该产品/仓库所有行 remain 之和。
type InventoryHistory struct {
	ID             string     `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	MovementType   string     `json:"movement_type" gorm:"size:20;not null;index"`
	ProductID      string     `json:"product_id" gorm:"type:uuid;not null;index:idx_inv_product_wh"`
	WarehouseID    string     `json:"warehouse_id" gorm:"type:uuid;not null;index:idx_inv_product_wh"`
	Quantity       float64    `json:"quantity" gorm:"type:decimal(12,4);not null"` // 正=入库，负=出库
	Remain         float64    `json:"remain" gorm:"type:decimal(12,4);not null;default:0"`
	BatchNo        string     `json:"batch_no" gorm:"size:50;index"`
	UOM            string     `json:"uom" gorm:"size:20;not null;default:pcs"`
	ExpiredDate    *time.Time `json:"expired_date"`
	GroupID        string     `json:"group_id" gorm:"size:36;index"` // 同一次发料/完工写入的所有行共享
	ActionDetailID string     `json:"action_detail_id" gorm:"size:36;index"`
	SourceLotID    string     `json:"source_lot_id" gorm:"size:36;index"` // 出库行引用被消耗的入库行
	CreatedBy      string     `json:"created_by" gorm:"size:64;not null"`
	DeleteFlag     bool       `json:"delete_flag" gorm:"default:false;index"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func (InventoryHistory) TableName() string {
	return "inventory_histories"
}
