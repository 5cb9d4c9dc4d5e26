package repository

import (
	"github.com/hongquyngo/production/internal/model/entity"
	"gorm.io/gorm"
)

type BOMRepository struct {
	db *gorm.DB
}

func NewBOMRepository(db *gorm.DB) *BOMRepository {
	return &BOMRepository{db: db}
}

func (r *BOMRepository) Create(bom *entity.BOMHeader) error {
	return r.db.Create(bom).Error
}

func (r *BOMRepository) GetByID(id string) (*entity.BOMHeader, error) {
	var bom entity.BOMHeader
	err := r.db.Preload("Details").Preload("Details.Material").Preload("Product").
		Where("id = ? AND delete_flag = false", id).First(&bom).Error
	return &bom, err
}

func (r *BOMRepository) Update(bom *entity.BOMHeader) error {
	return r.db.Save(bom).Error
}

type BOMListParams struct {
	BOMType string
	Status  string
	Keyword string
	Page    int
	Size    int
}

func (r *BOMRepository) List(params BOMListParams) ([]entity.BOMHeader, int64, error) {
	query := r.db.Model(&entity.BOMHeader{}).Where("delete_flag = false")
	if params.BOMType != "" {
		query = query.Where("bom_type = ?", params.BOMType)
	}
	if params.Status != "" {
		query = query.Where("status = ?", params.Status)
	}
	if params.Keyword != "" {
		kw := "%" + params.Keyword + "%"
		query = query.Where("bom_code ILIKE ? OR bom_name ILIKE ?", kw, kw)
	}
	var total int64
	query.Count(&total)
	if params.Page <= 0 {
		params.Page = 1
	}
	if params.Size <= 0 {
		params.Size = 20
	}
	var boms []entity.BOMHeader
	err := query.Preload("Product").Order("created_at DESC").
		Offset((params.Page - 1) * params.Size).Limit(params.Size).Find(&boms).Error
	return boms, total, err
}

// WhereUsedRow 物料被哪些BOM使用
type WhereUsedRow struct {
	BOMID        string  `json:"bom_id"`
	BOMCode      string  `json:"bom_code"`
	BOMName      string  `json:"bom_name"`
	BOMStatus    string  `json:"bom_status"`
	ProductName  string  `json:"product_name"`
	Quantity     float64 `json:"quantity"`
	UOM          string  `json:"uom"`
	MaterialType string  `json:"material_type"`
}

// WhereUsed 反查物料在哪些BOM中作为投入（读BOM明细，不读谱系）
func (r *BOMRepository) WhereUsed(materialID string) ([]WhereUsedRow, error) {
	var rows []WhereUsedRow
	err := r.db.Raw(`
		SELECT h.id AS bom_id, h.bom_code, h.bom_name, h.status AS bom_status,
		       p.name AS product_name, d.quantity, d.uom, d.material_type
		FROM bom_details d
		JOIN bom_headers h ON d.bom_header_id = h.id
		JOIN products p ON h.product_id = p.id
		WHERE d.material_id = ? AND h.delete_flag = false
		ORDER BY h.status, h.bom_name
	`, materialID).Scan(&rows).Error
	return rows, err
}

// NextCodeSeq 同前缀下的下一个序号（用于BOM编码生成）
func (r *BOMRepository) NextCodeSeq(prefix string) (int, error) {
	var result struct{ MaxNum int }
	err := r.db.Raw(`
		SELECT COALESCE(MAX(CAST(SPLIT_PART(bom_code, '-', 3) AS INTEGER)), 0) AS max_num
		FROM bom_headers
		WHERE bom_code LIKE ?
	`, prefix+"-%").Scan(&result).Error
	return result.MaxNum + 1, err
}
