package entity

import (
	"time"
)

// QualityStatus 完工质检标记
const (
	QualityStatusPassed  = "PASSED"
	QualityStatusPending = "PENDING"
	QualityStatusFailed  = "FAILED"
)

// ValidQualityStatus 校验质检标记取值
func ValidQualityStatus(s string) bool {
	switch s {
	case QualityStatusPassed, QualityStatusPending, QualityStatusFailed:
		return true
	}
	return false
}

// ProductionReceipt 完工入库单。每张入库单生成一个新的库存批次。
type ProductionReceipt struct {
	ID                   string     `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	ReceiptNo            string     `json:"receipt_no" gorm:"size:50;not null;uniqueIndex"`
	ManufacturingOrderID string     `json:"manufacturing_order_id" gorm:"type:uuid;not null;index"`
	ReceiptDate          time.Time  `json:"receipt_date" gorm:"not null"`
	ProductID            string     `json:"product_id" gorm:"type:uuid;not null;index"`
	Quantity             float64    `json:"quantity" gorm:"type:decimal(12,4);not null"`
	UOM                  string     `json:"uom" gorm:"size:20;not null;default:pcs"`
	BatchNo              string     `json:"batch_no" gorm:"size:50;not null;index"`
	WarehouseID          string     `json:"warehouse_id" gorm:"type:uuid;not null"`
	QualityStatus        string     `json:"quality_status" gorm:"size:16;not null;default:PASSED"`
	ExpiredDate          *time.Time `json:"expired_date"`
	Notes                string     `json:"notes" gorm:"type:text"`
	CreatedBy            string     `json:"created_by" gorm:"size:64;not null"`
	CreatedAt            time.Time  `json:"created_at"`

	Product *Product `json:"product,omitempty" gorm:"foreignKey:ProductID"`
}

func (ProductionReceipt) TableName() string {
	return "production_receipts"
}
