package entity

import (
	"time"
)

// IssueStatus 领料单状态
const (
	IssueStatusConfirmed = "CONFIRMED"
)

// MaterialIssue 领料单头表。一次发料事件一张单，group_id 贯穿本次写入的全部账本行。
type MaterialIssue struct {
	ID                   string    `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	IssueNo              string    `json:"issue_no" gorm:"size:50;not null;uniqueIndex"`
	ManufacturingOrderID string    `json:"manufacturing_order_id" gorm:"type:uuid;not null;index"`
	IssueDate            time.Time `json:"issue_date" gorm:"not null"`
	WarehouseID          string    `json:"warehouse_id" gorm:"type:uuid;not null"`
	Status               string    `json:"status" gorm:"size:16;not null;default:CONFIRMED"`
	GroupID              string    `json:"group_id" gorm:"size:36;not null;index"`
	IssuedBy             string    `json:"issued_by" gorm:"size:64;not null"`
	CreatedBy            string    `json:"created_by" gorm:"size:64;not null"`
	CreatedAt            time.Time `json:"created_at"`

	Details []MaterialIssueDetail `json:"details,omitempty" gorm:"foreignKey:MaterialIssueID"`
}

func (MaterialIssue) TableName() string {
	return "material_issues"
}

// MaterialIssueDetail 领料明细：哪个批次满足了多少数量。
// 同时充当谱系边：订单 → 被消耗批次。
type MaterialIssueDetail struct {
	ID                   string    `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	MaterialIssueID      string    `json:"material_issue_id" gorm:"type:uuid;not null;index"`
	ManufacturingOrderID string    `json:"manufacturing_order_id" gorm:"type:uuid;not null;index"`
	MaterialID           string    `json:"material_id" gorm:"type:uuid;not null;index"`
	InventoryHistoryID   string    `json:"inventory_history_id" gorm:"type:uuid;not null;index"` // 被消耗的入库行
	BatchNo              string    `json:"batch_no" gorm:"size:50;index"`
	Quantity             float64   `json:"quantity" gorm:"type:decimal(12,4);not null"`
	UOM                  string    `json:"uom" gorm:"size:20;not null;default:pcs"`
	CreatedAt            time.Time `json:"created_at"`

	Material *Product `json:"material,omitempty" gorm:"foreignKey:MaterialID"`
}

func (MaterialIssueDetail) TableName() string {
	return "material_issue_details"
}
