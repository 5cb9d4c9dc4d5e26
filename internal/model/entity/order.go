package entity

import (
	"time"
)

// OrderStatus 生产订单状态
const (
	OrderStatusConfirmed  = "CONFIRMED"
	OrderStatusInProgress = "IN_PROGRESS"
	OrderStatusCompleted  = "COMPLETED"
	OrderStatusCancelled  = "CANCELLED"
)

// OrderPriority 生产订单优先级
const (
	PriorityLow    = "LOW"
	PriorityNormal = "NORMAL"
	PriorityHigh   = "HIGH"
	PriorityUrgent = "URGENT"
)

// MaterialStatus 订单物料需求状态
const (
	MaterialStatusPending = "PENDING"
	MaterialStatusIssued  = "ISSUED"
)

// orderStatusTransitions 订单状态流转表。COMPLETED/CANCELLED 为终态。
var orderStatusTransitions = map[string][]string{
	OrderStatusConfirmed:  {OrderStatusInProgress, OrderStatusCancelled},
	OrderStatusInProgress: {OrderStatusCompleted, OrderStatusCancelled},
}

// OrderStatusCanTransition 校验订单状态流转是否合法
func OrderStatusCanTransition(from, to string) bool {
	for _, s := range orderStatusTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// ValidPriority 校验优先级取值
func ValidPriority(p string) bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// ManufacturingOrder 生产订单
type ManufacturingOrder struct {
	ID                string     `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	OrderNo           string     `json:"order_no" gorm:"size:50;not null;uniqueIndex"`
	EntityID          string     `json:"entity_id" gorm:"size:64"` // 下单法人实体，取自源仓库
	OrderDate         time.Time  `json:"order_date" gorm:"not null"`
	BOMHeaderID       string     `json:"bom_header_id" gorm:"type:uuid;not null;index"`
	ProductID         string     `json:"product_id" gorm:"type:uuid;not null;index"`
	PlannedQty        float64    `json:"planned_qty" gorm:"type:decimal(12,4);not null"`
	ProducedQty       float64    `json:"produced_qty" gorm:"type:decimal(12,4);default:0"`
	UOM               string     `json:"uom" gorm:"size:20;not null;default:pcs"`
	WarehouseID       string     `json:"warehouse_id" gorm:"type:uuid;not null"` // 领料仓库
	TargetWarehouseID string     `json:"target_warehouse_id" gorm:"type:uuid;not null"`
	ScheduledDate     *time.Time `json:"scheduled_date"`
	CompletionDate    *time.Time `json:"completion_date"`
	Status            string     `json:"status" gorm:"size:20;not null;default:CONFIRMED;index"`
	Priority          string     `json:"priority" gorm:"size:10;not null;default:NORMAL"`
	Notes             string     `json:"notes" gorm:"type:text"`
	CreatedBy         string     `json:"created_by" gorm:"size:64;not null"`
	UpdatedBy         string     `json:"updated_by" gorm:"size:64"`
	DeleteFlag        bool       `json:"delete_flag" gorm:"default:false;index"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`

	BOMHeader *BOMHeader      `json:"bom_header,omitempty" gorm:"foreignKey:BOMHeaderID"`
	Product   *Product        `json:"product,omitempty" gorm:"foreignKey:ProductID"`
	Materials []OrderMaterial `json:"materials,omitempty" gorm:"foreignKey:ManufacturingOrderID"`
}

func (ManufacturingOrder) TableName() string {
	return "manufacturing_orders"
}

// OrderMaterial 订单物料需求。issued_qty 只在发料时更新，恒有 0 ≤ issued_qty ≤ required_qty。
type OrderMaterial struct {
	ID                   string    `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	ManufacturingOrderID string    `json:"manufacturing_order_id" gorm:"type:uuid;not null;index"`
	MaterialID           string    `json:"material_id" gorm:"type:uuid;not null;index"`
	RequiredQty          float64   `json:"required_qty" gorm:"type:decimal(12,4);not null"`
	IssuedQty            float64   `json:"issued_qty" gorm:"type:decimal(12,4);default:0"`
	UOM                  string    `json:"uom" gorm:"size:20;not null;default:pcs"`
	WarehouseID          string    `json:"warehouse_id" gorm:"type:uuid;not null"`
	Status               string    `json:"status" gorm:"size:16;not null;default:PENDING"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`

	Material *Product `json:"material,omitempty" gorm:"foreignKey:MaterialID"`
}

func (OrderMaterial) TableName() string {
	return "manufacturing_order_materials"
}
