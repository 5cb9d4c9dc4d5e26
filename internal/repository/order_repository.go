package repository

import (
	"time"

	"github.com/hongquyngo/production/internal/model/entity"
	"gorm.io/gorm"
)

type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) Create(order *entity.ManufacturingOrder) error {
	return r.db.Create(order).Error
}

func (r *OrderRepository) GetByID(id string) (*entity.ManufacturingOrder, error) {
	var order entity.ManufacturingOrder
	err := r.db.Preload("Materials").Preload("Materials.Material").
		Preload("BOMHeader").Preload("Product").
		Where("id = ? AND delete_flag = false", id).First(&order).Error
	return &order, err
}

func (r *OrderRepository) GetByOrderNo(orderNo string) (*entity.ManufacturingOrder, error) {
	var order entity.ManufacturingOrder
	err := r.db.Preload("Materials").
		Where("order_no = ? AND delete_flag = false", orderNo).First(&order).Error
	return &order, err
}

func (r *OrderRepository) Update(order *entity.ManufacturingOrder) error {
	return r.db.Save(order).Error
}

type OrderListParams struct {
	Status   string
	BOMType  string
	FromDate *time.Time
	ToDate   *time.Time
	Keyword  string
	Page     int
	Size     int
}

func (r *OrderRepository) List(params OrderListParams) ([]entity.ManufacturingOrder, int64, error) {
	query := r.db.Model(&entity.ManufacturingOrder{}).
		Joins("JOIN bom_headers b ON manufacturing_orders.bom_header_id = b.id").
		Where("manufacturing_orders.delete_flag = false")
	if params.Status != "" {
		query = query.Where("manufacturing_orders.status = ?", params.Status)
	}
	if params.BOMType != "" {
		query = query.Where("b.bom_type = ?", params.BOMType)
	}
	if params.FromDate != nil {
		query = query.Where("manufacturing_orders.order_date >= ?", *params.FromDate)
	}
	if params.ToDate != nil {
		query = query.Where("manufacturing_orders.order_date <= ?", *params.ToDate)
	}
	if params.Keyword != "" {
		kw := "%" + params.Keyword + "%"
		query = query.Where("manufacturing_orders.order_no ILIKE ?", kw)
	}
	var total int64
	query.Count(&total)
	if params.Page <= 0 {
		params.Page = 1
	}
	if params.Size <= 0 {
		params.Size = 20
	}
	var orders []entity.ManufacturingOrder
	err := query.Preload("Product").Preload("BOMHeader").
		Order("manufacturing_orders.created_at DESC").
		Offset((params.Page - 1) * params.Size).Limit(params.Size).Find(&orders).Error
	return orders, total, err
}

func (r *OrderRepository) GetMaterials(orderID string) ([]entity.OrderMaterial, error) {
	var materials []entity.OrderMaterial
	err := r.db.Preload("Material").
		Where("manufacturing_order_id = ?", orderID).Find(&materials).Error
	return materials, err
}

// StatusCount 状态分布行
type StatusCount struct {
	Status string `json:"status"`
	Count  int64  `json:"count"`
}

// CountByStatus 按状态统计订单数
func (r *OrderRepository) CountByStatus(from, to time.Time) ([]StatusCount, error) {
	var rows []StatusCount
	err := r.db.Raw(`
		SELECT status, COUNT(*) AS count
		FROM manufacturing_orders
		WHERE order_date BETWEEN ? AND ? AND delete_flag = false
		GROUP BY status
	`, from, to).Scan(&rows).Error
	return rows, err
}

// TypeCount 按配方类型分布行
type TypeCount struct {
	BOMType string `json:"bom_type"`
	Count   int64  `json:"count"`
}

// CountByType 按配方类型统计订单数
func (r *OrderRepository) CountByType(from, to time.Time) ([]TypeCount, error) {
	var rows []TypeCount
	err := r.db.Raw(`
		SELECT b.bom_type, COUNT(*) AS count
		FROM manufacturing_orders o
		JOIN bom_headers b ON o.bom_header_id = b.id
		WHERE o.order_date BETWEEN ? AND ? AND o.delete_flag = false
		GROUP BY b.bom_type
	`, from, to).Scan(&rows).Error
	return rows, err
}

// ProductionSummary 区间生产汇总
type ProductionSummary struct {
	TotalOrders      int64   `json:"total_orders"`
	CompletedOrders  int64   `json:"completed_orders"`
	InProgressOrders int64   `json:"in_progress_orders"`
	CancelledOrders  int64   `json:"cancelled_orders"`
	TotalOutput      float64 `json:"total_output"`
	AvgLeadTimeDays  float64 `json:"avg_lead_time_days"`
	CompletionRate   float64 `json:"completion_rate"`
}

// GetSummary 区间生产汇总统计
func (r *OrderRepository) GetSummary(from, to time.Time) (*ProductionSummary, error) {
	var s ProductionSummary
	err := r.db.Raw(`
		SELECT
			COUNT(*) AS total_orders,
			SUM(CASE WHEN status = 'COMPLETED' THEN 1 ELSE 0 END) AS completed_orders,
			SUM(CASE WHEN status = 'IN_PROGRESS' THEN 1 ELSE 0 END) AS in_progress_orders,
			SUM(CASE WHEN status = 'CANCELLED' THEN 1 ELSE 0 END) AS cancelled_orders,
			COALESCE(SUM(produced_qty), 0) AS total_output,
			COALESCE(AVG(CASE WHEN status = 'COMPLETED'
				THEN EXTRACT(EPOCH FROM (completion_date - order_date)) / 86400
				ELSE NULL END), 0) AS avg_lead_time_days,
			CASE WHEN COUNT(*) > 0
				THEN SUM(CASE WHEN status = 'COMPLETED' THEN 1 ELSE 0 END) * 100.0 / COUNT(*)
				ELSE 0 END AS completion_rate
		FROM manufacturing_orders
		WHERE order_date BETWEEN ? AND ? AND delete_flag = false
	`, from, to).Scan(&s).Error
	return &s, err
}

// ActivityRow 近期生产动态行
type ActivityRow struct {
	ActivityType string    `json:"activity_type"` // ORDER_CREATED / MATERIAL_ISSUED / ORDER_COMPLETED
	RefNo        string    `json:"ref_no"`
	OrderNo      string    `json:"order_no"`
	Quantity     float64   `json:"quantity"`
	CreatedBy    string    `json:"created_by"`
	CreatedAt    time.Time `json:"created_at"`
}

// RecentActivities 最近的建单/发料/完工事件，按时间倒序
func (r *OrderRepository) RecentActivities(limit int) ([]ActivityRow, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows []ActivityRow
	err := r.db.Raw(`
		SELECT 'ORDER_CREATED' AS activity_type, mo.order_no AS ref_no, mo.order_no,
		       mo.planned_qty AS quantity, mo.created_by, mo.created_at
		FROM manufacturing_orders mo
		WHERE mo.delete_flag = false
		UNION ALL
		SELECT 'MATERIAL_ISSUED', mi.issue_no, mo.order_no,
		       0, mi.created_by, mi.created_at
		FROM material_issues mi
		JOIN manufacturing_orders mo ON mi.manufacturing_order_id = mo.id
		UNION ALL
		SELECT 'ORDER_COMPLETED', pr.receipt_no, mo.order_no,
		       pr.quantity, pr.created_by, pr.created_at
		FROM production_receipts pr
		JOIN manufacturing_orders mo ON pr.manufacturing_order_id = mo.id
		ORDER BY created_at DESC
		LIMIT ?
	`, limit).Scan(&rows).Error
	return rows, err
}
