package repository

import (
	"time"

	"github.com/hongquyngo/production/internal/model/entity"
	"gorm.io/gorm"
)

type ReceiptRepository struct {
	db *gorm.DB
}

func NewReceiptRepository(db *gorm.DB) *ReceiptRepository {
	return &ReceiptRepository{db: db}
}

func (r *ReceiptRepository) GetByOrder(orderID string) ([]entity.ProductionReceipt, error) {
	var receipts []entity.ProductionReceipt
	err := r.db.Preload("Product").
		Where("manufacturing_order_id = ?", orderID).
		Order("receipt_date").Find(&receipts).Error
	return receipts, err
}

func (r *ReceiptRepository) GetByBatchNo(batchNo string) (*entity.ProductionReceipt, error) {
	var receipt entity.ProductionReceipt
	err := r.db.Preload("Product").
		Where("batch_no = ?", batchNo).First(&receipt).Error
	return &receipt, err
}

// BatchRow 区间产出批次行
type BatchRow struct {
	BatchNo       string    `json:"batch_no"`
	ReceiptDate   time.Time `json:"receipt_date"`
	ProductName   string    `json:"product_name"`
	Quantity      float64   `json:"quantity"`
	QualityStatus string    `json:"quality_status"`
	OrderNo       string    `json:"order_no"`
	BOMType       string    `json:"bom_type"`
}

// BatchesByDate 区间内产出的批次
func (r *ReceiptRepository) BatchesByDate(from, to time.Time) ([]BatchRow, error) {
	var rows []BatchRow
	err := r.db.Raw(`
		SELECT pr.batch_no, pr.receipt_date, p.name AS product_name,
		       pr.quantity, pr.quality_status, o.order_no, b.bom_type
		FROM production_receipts pr
		JOIN products p ON pr.product_id = p.id
		JOIN manufacturing_orders o ON pr.manufacturing_order_id = o.id
		JOIN bom_headers b ON o.bom_header_id = b.id
		WHERE DATE(pr.receipt_date) BETWEEN DATE(?) AND DATE(?)
		ORDER BY pr.receipt_date DESC
	`, from, to).Scan(&rows).Error
	return rows, err
}

// DailyProductionRow 每日生产行
type DailyProductionRow struct {
	Date     time.Time `json:"date"`
	BOMType  string    `json:"bom_type"`
	Quantity float64   `json:"quantity"`
}

// DailyProduction 按天、按配方类型的产出
func (r *ReceiptRepository) DailyProduction(from, to time.Time) ([]DailyProductionRow, error) {
	var rows []DailyProductionRow
	err := r.db.Raw(`
		SELECT DATE(pr.receipt_date) AS date, b.bom_type, SUM(pr.quantity) AS quantity
		FROM production_receipts pr
		JOIN manufacturing_orders o ON pr.manufacturing_order_id = o.id
		JOIN bom_headers b ON o.bom_header_id = b.id
		WHERE DATE(pr.receipt_date) BETWEEN DATE(?) AND DATE(?)
		GROUP BY DATE(pr.receipt_date), b.bom_type
		ORDER BY date, bom_type
	`, from, to).Scan(&rows).Error
	return rows, err
}
