package repository

import (
	"time"

	"github.com/hongquyngo/production/internal/model/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// InventoryRepository 库存账本。流水只增不删，入库行的 remain 是唯一可变字段。
type InventoryRepository struct {
	db *gorm.DB
}

func NewInventoryRepository(db *gorm.DB) *InventoryRepository {
	return &InventoryRepository{db: db}
}

func (r *InventoryRepository) Create(row *entity.InventoryHistory) error {
	return r.db.Create(row).Error
}

func (r *InventoryRepository) GetByID(id string) (*entity.InventoryHistory, error) {
	var row entity.InventoryHistory
	err := r.db.Where("id = ? AND delete_flag = false", id).First(&row).Error
	return &row, err
}

// LotsForAllocation 取指定物料/仓库下仍有结余的批次，按FEFO排序并加行锁。
// 无效期的批次排在最后。必须在事务内调用。
func (r *InventoryRepository) LotsForAllocation(tx *gorm.DB, productID, warehouseID string) ([]entity.InventoryHistory, error) {
	var lots []entity.InventoryHistory
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("product_id = ? AND warehouse_id = ? AND remain > 0 AND delete_flag = false",
			productID, warehouseID).
		Order("expired_date ASC NULLS LAST, batch_no ASC").
		Find(&lots).Error
	return lots, err
}

// ConsumeLot 扣减批次结余。带 remain >= qty 守卫，返回是否扣减成功：
// 行锁之外再挡一道并发超扣。
func (r *InventoryRepository) ConsumeLot(tx *gorm.DB, lotID string, qty float64) (bool, error) {
	res := tx.Model(&entity.InventoryHistory{}).
		Where("id = ? AND remain >= ?", lotID, qty).
		UpdateColumn("remain", gorm.Expr("remain - ?", qty))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// Balance 产品库存余额 = 所有行 remain 之和。warehouseID 为空时跨仓汇总。
func (r *InventoryRepository) Balance(productID, warehouseID string) (float64, error) {
	query := r.db.Model(&entity.InventoryHistory{}).
		Where("product_id = ? AND remain > 0 AND delete_flag = false", productID)
	if warehouseID != "" {
		query = query.Where("warehouse_id = ?", warehouseID)
	}
	var result struct{ Total float64 }
	err := query.Select("COALESCE(SUM(remain), 0) AS total").Scan(&result).Error
	return result.Total, err
}

// BatchStock 按批次汇总的库存行
type BatchStock struct {
	BatchNo      string     `json:"batch_no"`
	AvailableQty float64    `json:"available_qty"`
	ExpiredDate  *time.Time `json:"expired_date"`
	ExpiryStatus string     `json:"expiry_status"`
}

// StockByBatch 指定物料/仓库的批次库存，FEFO顺序。效期分级由服务层补充。
func (r *InventoryRepository) StockByBatch(productID, warehouseID string) ([]BatchStock, error) {
	var rows []BatchStock
	err := r.db.Raw(`
		SELECT batch_no, SUM(remain) AS available_qty, expired_date
		FROM inventory_histories
		WHERE product_id = ? AND warehouse_id = ? AND remain > 0 AND delete_flag = false
		GROUP BY batch_no, expired_date
		ORDER BY expired_date ASC NULLS LAST, batch_no ASC
	`, productID, warehouseID).Scan(&rows).Error
	return rows, err
}

// ExpiringLot 临期批次行
type ExpiringLot struct {
	ProductID   string     `json:"product_id"`
	ProductName string     `json:"product_name"`
	BatchNo     string     `json:"batch_no"`
	Quantity    float64    `json:"quantity"`
	ExpiredDate *time.Time `json:"expired_date"`
	Warehouse   string     `json:"warehouse"`
}

// ExpiringLots 有效期且在窗口内的批次
func (r *InventoryRepository) ExpiringLots(until time.Time) ([]ExpiringLot, error) {
	var rows []ExpiringLot
	err := r.db.Raw(`
		SELECT ih.product_id, p.name AS product_name, ih.batch_no,
		       SUM(ih.remain) AS quantity, ih.expired_date, w.name AS warehouse
		FROM inventory_histories ih
		JOIN products p ON ih.product_id = p.id
		JOIN warehouses w ON ih.warehouse_id = w.id
		WHERE ih.remain > 0 AND ih.delete_flag = false
		  AND ih.expired_date IS NOT NULL AND ih.expired_date <= ?
		GROUP BY ih.product_id, p.name, ih.batch_no, ih.expired_date, w.name
		ORDER BY ih.expired_date ASC
	`, until).Scan(&rows).Error
	return rows, err
}

// ProductionImpact 区间内生产活动对库存的净影响
type ProductionImpactRow struct {
	ProductID   string  `json:"product_id"`
	ProductName string  `json:"product_name"`
	Produced    float64 `json:"produced"`
	Consumed    float64 `json:"consumed"`
	NetChange   float64 `json:"net_change"`
}

func (r *InventoryRepository) ProductionImpact(from, to time.Time) ([]ProductionImpactRow, error) {
	var rows []ProductionImpactRow
	err := r.db.Raw(`
		SELECT p.id AS product_id, p.name AS product_name,
		       SUM(CASE WHEN ih.movement_type = 'PRODUCTION_IN' THEN ih.quantity ELSE 0 END) AS produced,
		       SUM(CASE WHEN ih.movement_type = 'PRODUCTION_OUT' THEN -ih.quantity ELSE 0 END) AS consumed,
		       SUM(CASE WHEN ih.movement_type IN ('PRODUCTION_IN', 'PRODUCTION_OUT') THEN ih.quantity ELSE 0 END) AS net_change
		FROM inventory_histories ih
		JOIN products p ON ih.product_id = p.id
		WHERE ih.movement_type IN ('PRODUCTION_IN', 'PRODUCTION_OUT')
		  AND ih.created_at BETWEEN ? AND ?
		  AND ih.delete_flag = false
		GROUP BY p.id, p.name
		HAVING SUM(CASE WHEN ih.movement_type IN ('PRODUCTION_IN', 'PRODUCTION_OUT') THEN ih.quantity ELSE 0 END) <> 0
		ORDER BY ABS(SUM(CASE WHEN ih.movement_type IN ('PRODUCTION_IN', 'PRODUCTION_OUT') THEN ih.quantity ELSE 0 END)) DESC
	`, from, to).Scan(&rows).Error
	return rows, err
}

// LowStockRow 低库存行
type LowStockRow struct {
	ProductID   string  `json:"product_id"`
	ProductName string  `json:"product_name"`
	PTCode      string  `json:"pt_code"`
	Balance     float64 `json:"balance"`
	UOM         string  `json:"uom"`
}

// LowStock 余额低于阈值的产品（含余额为0但有过流水的产品）
func (r *InventoryRepository) LowStock(threshold float64) ([]LowStockRow, error) {
	var rows []LowStockRow
	err := r.db.Raw(`
		SELECT p.id AS product_id, p.name AS product_name, p.pt_code,
		       COALESCE(SUM(ih.remain), 0) AS balance, p.uom
		FROM products p
		JOIN inventory_histories ih ON ih.product_id = p.id AND ih.delete_flag = false
		WHERE p.delete_flag = false
		GROUP BY p.id, p.name, p.pt_code, p.uom
		HAVING COALESCE(SUM(ih.remain), 0) < ?
		ORDER BY balance ASC
	`, threshold).Scan(&rows).Error
	return rows, err
}

// ListByBatch 某批次的全部流水行
func (r *InventoryRepository) ListByBatch(batchNo string) ([]entity.InventoryHistory, error) {
	var rows []entity.InventoryHistory
	err := r.db.Where("batch_no = ? AND delete_flag = false", batchNo).
		Order("created_at").Find(&rows).Error
	return rows, err
}
