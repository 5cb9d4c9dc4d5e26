package service

import (
	"errors"
	"time"

	"github.com/hongquyngo/production/internal/apperrors"
	"github.com/hongquyngo/production/internal/model/entity"
	"github.com/hongquyngo/production/internal/repository"
	"gorm.io/gorm"
)

// TraceService 批次谱系查询：消耗批次 ↔ 产出批次的双向追溯。只读。
type TraceService struct {
	receiptRepo *repository.ReceiptRepository
	invRepo     *repository.InventoryRepository
	db          *gorm.DB // 跨聚合的追溯查询直接走底层
}

func NewTraceService(receiptRepo *repository.ReceiptRepository, invRepo *repository.InventoryRepository, db *gorm.DB) *TraceService {
	return &TraceService{receiptRepo: receiptRepo, invRepo: invRepo, db: db}
}

// BatchInfo 批次概要
type BatchInfo struct {
	BatchNo     string     `json:"batch_no"`
	ProductID   string     `json:"product_id"`
	ProductName string     `json:"product_name"`
	ProductCode string     `json:"product_code"`
	Quantity    float64    `json:"quantity"`
	UOM         string     `json:"uom"`
	ExpiredDate *time.Time `json:"expired_date"`
	CreatedDate time.Time  `json:"created_date"`
	Warehouse   string     `json:"warehouse"`
}

// GetBatchInfo 生产入库批次的概要信息
func (s *TraceService) GetBatchInfo(batchNo string) (*BatchInfo, error) {
	var info BatchInfo
	err := s.db.Raw(`
		SELECT ih.batch_no, ih.product_id, p.name AS product_name, p.pt_code AS product_code,
		       SUM(ih.quantity) AS quantity, ih.uom, ih.expired_date,
		       MIN(ih.created_at) AS created_date, w.name AS warehouse
		FROM inventory_histories ih
		JOIN products p ON ih.product_id = p.id
		JOIN warehouses w ON ih.warehouse_id = w.id
		WHERE ih.batch_no = ? AND ih.movement_type = 'PRODUCTION_IN' AND ih.delete_flag = false
		GROUP BY ih.batch_no, ih.product_id, p.name, p.pt_code, ih.uom, ih.expired_date, w.name
	`, batchNo).Scan(&info).Error
	if err != nil {
		return nil, err
	}
	if info.BatchNo == "" {
		return nil, apperrors.NewNotFound("批次", batchNo)
	}
	return &info, nil
}

// BatchSource 批次投入来源行（反向谱系）
type BatchSource struct {
	MaterialName string     `json:"material_name"`
	Quantity     float64    `json:"quantity"`
	SourceBatch  string     `json:"source_batch"`
	ExpiredDate  *time.Time `json:"expired_date"`
}

// GetBatchSources 产出批次消耗了哪些来源批次
func (s *TraceService) GetBatchSources(batchNo string) ([]BatchSource, error) {
	var rows []BatchSource
	err := s.db.Raw(`
		SELECT p.name AS material_name, mid.quantity, mid.batch_no AS source_batch,
		       ih.expired_date
		FROM production_receipts pr
		JOIN material_issue_details mid ON mid.manufacturing_order_id = pr.manufacturing_order_id
		JOIN products p ON mid.material_id = p.id
		LEFT JOIN inventory_histories ih ON ih.id = mid.inventory_history_id
		WHERE pr.batch_no = ?
		ORDER BY p.name
	`, batchNo).Scan(&rows).Error
	return rows, err
}

// BatchLocation 批次当前分布行（正向谱系）
type BatchLocation struct {
	Warehouse string  `json:"warehouse"`
	Quantity  float64 `json:"quantity"`
	Status    string  `json:"status"`
}

// GetBatchLocations 批次当前在哪些仓库、剩余多少
func (s *TraceService) GetBatchLocations(batchNo string) ([]BatchLocation, error) {
	var rows []BatchLocation
	err := s.db.Raw(`
		SELECT w.name AS warehouse, SUM(ih.remain) AS quantity,
		       CASE
		           WHEN ih.expired_date < CURRENT_DATE THEN 'EXPIRED'
		           ELSE 'AVAILABLE'
		       END AS status
		FROM inventory_histories ih
		JOIN warehouses w ON ih.warehouse_id = w.id
		WHERE ih.batch_no = ? AND ih.delete_flag = false
		GROUP BY w.name, status
		HAVING SUM(ih.remain) > 0
	`, batchNo).Scan(&rows).Error
	return rows, err
}

// GetBatchMovements 批次的全部账本流水（入库、消耗）
func (s *TraceService) GetBatchMovements(batchNo string) ([]entity.InventoryHistory, error) {
	rows, err := s.invRepo.ListByBatch(batchNo)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, apperrors.NewNotFound("批次", batchNo)
	}
	return rows, nil
}

// GetBatchesByDate 区间内的产出批次
func (s *TraceService) GetBatchesByDate(from, to time.Time) ([]repository.BatchRow, error) {
	return s.receiptRepo.BatchesByDate(from, to)
}

// GetReceiptByBatch 批次对应的入库单
func (s *TraceService) GetReceiptByBatch(batchNo string) (*entity.ProductionReceipt, error) {
	receipt, err := s.receiptRepo.GetByBatchNo(batchNo)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFound("批次", batchNo)
		}
		return nil, err
	}
	return receipt, nil
}
