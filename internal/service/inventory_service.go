package service

import (
	"fmt"
	"time"

	"github.com/hongquyngo/production/internal/apperrors"
	"github.com/hongquyngo/production/internal/model/entity"
	"github.com/hongquyngo/production/internal/repository"
)

// InventoryService 库存查询 + 外部入库
type InventoryService struct {
	repo       *repository.InventoryRepository
	masterRepo *repository.MasterRepository
	allocator  *Allocator
}

func NewInventoryService(repo *repository.InventoryRepository, masterRepo *repository.MasterRepository, allocator *Allocator) *InventoryService {
	return &InventoryService{repo: repo, masterRepo: masterRepo, allocator: allocator}
}

type StockInRequest struct {
	ProductID   string  `json:"product_id" binding:"required"`
	WarehouseID string  `json:"warehouse_id" binding:"required"`
	Quantity    float64 `json:"quantity" binding:"required,gt=0"`
	BatchNo     string  `json:"batch_no" binding:"required"`
	ExpiredDate string  `json:"expired_date"` // YYYY-MM-DD，可空
	Notes       string  `json:"notes"`
}

// StockIn 外部入库，生成一个新批次行。批次只会由入库创建，
// 之后只被消耗到 remain = 0，不会删除。
func (s *InventoryService) StockIn(req StockInRequest, userID string) (*entity.InventoryHistory, error) {
	product, err := s.masterRepo.GetProduct(req.ProductID)
	if err != nil {
		return nil, apperrors.NewNotFound("产品", req.ProductID)
	}
	if _, err := s.masterRepo.GetWarehouse(req.WarehouseID); err != nil {
		return nil, apperrors.NewNotFound("仓库", req.WarehouseID)
	}

	row := &entity.InventoryHistory{
		MovementType: entity.MovementStockIn,
		ProductID:    req.ProductID,
		WarehouseID:  req.WarehouseID,
		Quantity:     req.Quantity,
		Remain:       req.Quantity,
		BatchNo:      req.BatchNo,
		UOM:          product.UOM,
		CreatedBy:    userID,
	}
	if req.ExpiredDate != "" {
		t, err := time.Parse("2006-01-02", req.ExpiredDate)
		if err != nil {
			return nil, apperrors.NewValidation("expired_date", "日期格式错误: "+req.ExpiredDate)
		}
		row.ExpiredDate = &t
	}

	if err := s.repo.Create(row); err != nil {
		return nil, fmt.Errorf("入库失败: %w", err)
	}
	return row, nil
}

// GetLot 单条库存流水行
func (s *InventoryService) GetLot(id string) (*entity.InventoryHistory, error) {
	row, err := s.repo.GetByID(id)
	if err != nil {
		return nil, apperrors.NewNotFound("库存记录", id)
	}
	return row, nil
}

// Warehouses 可用仓库列表（主数据，只读）
func (s *InventoryService) Warehouses() ([]entity.Warehouse, error) {
	return s.masterRepo.ListWarehouses()
}

// Balance 产品库存余额
func (s *InventoryService) Balance(productID, warehouseID string) (float64, error) {
	return s.repo.Balance(productID, warehouseID)
}

// StockByBatch 批次库存明细，FEFO顺序，带效期分级
func (s *InventoryService) StockByBatch(productID, warehouseID string) ([]repository.BatchStock, error) {
	rows, err := s.repo.StockByBatch(productID, warehouseID)
	if err != nil {
		return nil, err
	}
	today := time.Now()
	for i := range rows {
		rows[i].ExpiryStatus = entity.ClassifyExpiry(rows[i].ExpiredDate, today)
	}
	return rows, nil
}

// ExpiryDashboardRow 临期看板行
type ExpiryDashboardRow struct {
	repository.ExpiringLot
	ExpiryStatus string `json:"expiry_status"`
	DaysToExpiry int    `json:"days_to_expiry"`
}

// ExpiryDashboard 未来 daysAhead 天内到期的批次
func (s *InventoryService) ExpiryDashboard(daysAhead int) ([]ExpiryDashboardRow, error) {
	if daysAhead <= 0 {
		daysAhead = 30
	}
	today := time.Now()
	lots, err := s.repo.ExpiringLots(today.AddDate(0, 0, daysAhead))
	if err != nil {
		return nil, err
	}
	rows := make([]ExpiryDashboardRow, 0, len(lots))
	for _, lot := range lots {
		days := 0
		if lot.ExpiredDate != nil {
			days = int(lot.ExpiredDate.Sub(today.Truncate(24*time.Hour)).Hours() / 24)
		}
		rows = append(rows, ExpiryDashboardRow{
			ExpiringLot:  lot,
			ExpiryStatus: entity.ClassifyExpiry(lot.ExpiredDate, today),
			DaysToExpiry: days,
		})
	}
	return rows, nil
}

// AllocationPreview FEFO试算结果
type AllocationPreview struct {
	Selections []LotAllocation `json:"selections"`
	Shortfall  float64         `json:"shortfall"`
	Sufficient bool            `json:"sufficient"`
}

// PreviewAllocation FEFO只读试算，不改任何批次
func (s *InventoryService) PreviewAllocation(productID, warehouseID string, quantity float64) (*AllocationPreview, error) {
	if quantity <= 0 {
		return nil, apperrors.NewValidation("quantity", "数量必须大于0")
	}
	selections, shortfall, err := s.allocator.Preview(productID, warehouseID, quantity)
	if err != nil {
		return nil, err
	}
	return &AllocationPreview{
		Selections: selections,
		Shortfall:  shortfall,
		Sufficient: shortfall <= 0,
	}, nil
}

// ProductionImpact 区间生产活动的库存净影响
func (s *InventoryService) ProductionImpact(from, to time.Time) ([]repository.ProductionImpactRow, error) {
	return s.repo.ProductionImpact(from, to)
}

// LowStock 余额低于阈值的产品
func (s *InventoryService) LowStock(threshold float64) ([]repository.LowStockRow, error) {
	if threshold <= 0 {
		return nil, apperrors.NewValidation("threshold", "阈值必须大于0")
	}
	return s.repo.LowStock(threshold)
}
