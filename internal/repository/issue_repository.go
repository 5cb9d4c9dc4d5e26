package repository

import (
	"time"

	"github.com/hongquyngo/production/internal/model/entity"
	"gorm.io/gorm"
)

type IssueRepository struct {
	db *gorm.DB
}

func NewIssueRepository(db *gorm.DB) *IssueRepository {
	return &IssueRepository{db: db}
}

func (r *IssueRepository) GetByOrder(orderID string) ([]entity.MaterialIssue, error) {
	var issues []entity.MaterialIssue
	err := r.db.Preload("Details").
		Where("manufacturing_order_id = ?", orderID).
		Order("issue_date").Find(&issues).Error
	return issues, err
}

// DetailsByOrder 某订单全部领料明细（谱系边）
func (r *IssueRepository) DetailsByOrder(orderID string) ([]entity.MaterialIssueDetail, error) {
	var details []entity.MaterialIssueDetail
	err := r.db.Preload("Material").
		Where("manufacturing_order_id = ?", orderID).Find(&details).Error
	return details, err
}

// MinConsumedExpiry 订单消耗的所有批次中最早的非空效期。
// 没有任何效期时 ok 返回 false。
func (r *IssueRepository) MinConsumedExpiry(tx *gorm.DB, orderID string) (time.Time, bool, error) {
	var result struct{ MinExpiry *time.Time }
	err := tx.Raw(`
		SELECT MIN(ih.expired_date) AS min_expiry
		FROM material_issue_details mid
		JOIN inventory_histories ih ON ih.id = mid.inventory_history_id
		WHERE mid.manufacturing_order_id = ? AND ih.expired_date IS NOT NULL
	`, orderID).Scan(&result).Error
	if err != nil || result.MinExpiry == nil {
		return time.Time{}, false, err
	}
	return *result.MinExpiry, true, nil
}

// ConsumptionRow 物料消耗汇总行
type ConsumptionRow struct {
	MaterialName  string  `json:"material_name"`
	TotalConsumed float64 `json:"total_consumed"`
	UOM           string  `json:"uom"`
	OrderCount    int64   `json:"order_count"`
}

// ConsumptionTotals 区间物料消耗汇总
func (r *IssueRepository) ConsumptionTotals(from, to time.Time, warehouseID string) ([]ConsumptionRow, error) {
	query := `
		SELECT p.name AS material_name, SUM(mid.quantity) AS total_consumed, mid.uom,
		       COUNT(DISTINCT mid.manufacturing_order_id) AS order_count
		FROM material_issue_details mid
		JOIN material_issues mi ON mid.material_issue_id = mi.id
		JOIN products p ON mid.material_id = p.id
		WHERE mi.issue_date BETWEEN ? AND ? AND mi.status = 'CONFIRMED'`
	args := []interface{}{from, to}
	if warehouseID != "" {
		query += ` AND mi.warehouse_id = ?`
		args = append(args, warehouseID)
	}
	query += ` GROUP BY p.name, mid.uom ORDER BY total_consumed DESC`

	var rows []ConsumptionRow
	err := r.db.Raw(query, args...).Scan(&rows).Error
	return rows, err
}

// DailyConsumptionRow 每日消耗趋势行
type DailyConsumptionRow struct {
	Date     time.Time `json:"date"`
	Quantity float64   `json:"quantity"`
}

func (r *IssueRepository) DailyConsumption(from, to time.Time) ([]DailyConsumptionRow, error) {
	var rows []DailyConsumptionRow
	err := r.db.Raw(`
		SELECT DATE(mi.issue_date) AS date, SUM(mid.quantity) AS quantity
		FROM material_issue_details mid
		JOIN material_issues mi ON mid.material_issue_id = mi.id
		WHERE DATE(mi.issue_date) BETWEEN DATE(?) AND DATE(?) AND mi.status = 'CONFIRMED'
		GROUP BY DATE(mi.issue_date)
		ORDER BY date
	`, from, to).Scan(&rows).Error
	return rows, err
}
