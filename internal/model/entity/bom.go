package entity

import (
	"time"
)

// BOMType 配方类型
const (
	BOMTypeKitting   = "KITTING"   // 组套
	BOMTypeCutting   = "CUTTING"   // 分切
	BOMTypeRepacking = "REPACKING" // 改包装
)

// BOMStatus BOM状态
const (
	BOMStatusDraft    = "DRAFT"
	BOMStatusActive   = "ACTIVE"
	BOMStatusInactive = "INACTIVE"
)

// BOMMaterialType BOM物料类型
const (
	MaterialTypeRaw        = "RAW_MATERIAL"
	MaterialTypePackaging  = "PACKAGING"
	MaterialTypeConsumable = "CONSUMABLE"
)

// bomStatusTransitions BOM状态流转表
var bomStatusTransitions = map[string][]string{
	BOMStatusDraft:    {BOMStatusActive},
	BOMStatusActive:   {BOMStatusInactive},
	BOMStatusInactive: {BOMStatusActive},
}

// BOMStatusCanTransition 校验BOM状态流转是否合法
func BOMStatusCanTransition(from, to string) bool {
	for _, s := range bomStatusTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// BOMHeader 配方头表（单层BOM：一个产出产品 + 平铺物料清单）
type BOMHeader struct {
	ID            string     `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	BOMCode       string     `json:"bom_code" gorm:"size:50;not null;uniqueIndex"`
	BOMName       string     `json:"bom_name" gorm:"size:128;not null"`
	BOMType       string     `json:"bom_type" gorm:"size:20;not null;index"`
	ProductID     string     `json:"product_id" gorm:"type:uuid;not null;index"`
	OutputQty     float64    `json:"output_qty" gorm:"type:decimal(12,4);not null;default:1"`
	UOM           string     `json:"uom" gorm:"size:20;not null;default:pcs"`
	Status        string     `json:"status" gorm:"size:16;not null;default:DRAFT;index"`
	Version       int        `json:"version" gorm:"not null;default:1"`
	EffectiveDate *time.Time `json:"effective_date"`
	Notes         string     `json:"notes" gorm:"type:text"`
	CreatedBy     string     `json:"created_by" gorm:"size:64;not null"`
	DeleteFlag    bool       `json:"delete_flag" gorm:"default:false;index"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`

	Product *Product    `json:"product,omitempty" gorm:"foreignKey:ProductID"`
	Details []BOMDetail `json:"details,omitempty" gorm:"foreignKey:BOMHeaderID"`
}

func (BOMHeader) TableName() string {
	return "bom_headers"
}

// BOMDetail 配方明细行
type BOMDetail struct {
	ID           string  `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	BOMHeaderID  string  `json:"bom_header_id" gorm:"type:uuid;not null;index"`
	MaterialID   string  `json:"material_id" gorm:"type:uuid;not null;index"`
	MaterialType string  `json:"material_type" gorm:"size:20;not null;default:RAW_MATERIAL"`
	Quantity     float64 `json:"quantity" gorm:"type:decimal(12,4);not null"` // 单位产出用量
	UOM          string  `json:"uom" gorm:"size:20;not null;default:pcs"`
	ScrapRate    float64 `json:"scrap_rate" gorm:"type:decimal(5,2);default:0"` // 损耗率（百分比）

	Material *Product `json:"material,omitempty" gorm:"foreignKey:MaterialID"`
}

func (BOMDetail) TableName() string {
	return "bom_details"
}
