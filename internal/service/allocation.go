package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hongquyngo/production/internal/apperrors"
	"github.com/hongquyngo/production/internal/model/entity"
	"github.com/hongquyngo/production/internal/repository"
	"gorm.io/gorm"
)

// Allocator FEFO分配引擎。在调用方事务内按先到期先出的顺序消耗批次，
// 每次消耗写一条 PRODUCTION_OUT 账本行。单行需求无法完全满足时整体失败，
// 由事务回滚撤销本次全部扣减。
type Allocator struct {
	invRepo *repository.InventoryRepository
}

func NewAllocator(invRepo *repository.InventoryRepository) *Allocator {
	return &Allocator{invRepo: invRepo}
}

// qtyEpsilon 数量比较容差。损耗率展开是浮点乘法（如 4 × 10 × 1.05），
// 结果可能比账面库存大十几个ULP，不能按位比较。
const qtyEpsilon = 1e-9

// LotAllocation 单个批次的分配结果
type LotAllocation struct {
	InventoryHistoryID string     `json:"inventory_history_id"`
	BatchNo            string     `json:"batch_no"`
	ExpiredDate        *time.Time `json:"expired_date"`
	QtyTaken           float64    `json:"qty_taken"`
}

// AllocateInput 一次分配的上下文
type AllocateInput struct {
	MaterialID  string
	WarehouseID string
	NeedQty     float64
	UOM         string
	GroupID     string
	ActionID    string // 领料单等来源单据ID
	UserID      string
}

// Allocate 锁定候选批次并按FEFO贪心扣减。
// 库存不足返回 InsufficientStockError；守卫扣减失败返回 ConcurrencyConflictError，
// 两者都要求调用方回滚当前事务。
func (a *Allocator) Allocate(tx *gorm.DB, in AllocateInput) ([]LotAllocation, error) {
	lots, err := a.invRepo.LotsForAllocation(tx, in.MaterialID, in.WarehouseID)
	if err != nil {
		return nil, fmt.Errorf("读取批次失败: %w", err)
	}

	var available float64
	for _, lot := range lots {
		available += lot.Remain
	}
	if available+qtyEpsilon < in.NeedQty {
		return nil, &apperrors.InsufficientStockError{
			MaterialID:  in.MaterialID,
			WarehouseID: in.WarehouseID,
			Required:    in.NeedQty,
			Available:   available,
		}
	}

	remaining := in.NeedQty
	var allocations []LotAllocation
	for i := range lots {
		if remaining <= qtyEpsilon {
			break
		}
		lot := &lots[i]
		take := remaining
		if lot.Remain < take {
			take = lot.Remain
		}

		ok, err := a.invRepo.ConsumeLot(tx, lot.ID, take)
		if err != nil {
			return nil, fmt.Errorf("扣减批次失败: %w", err)
		}
		if !ok {
			// 行锁下不应发生；发生即说明 remain 被并发改写
			return nil, &apperrors.ConcurrencyConflictError{Resource: "批次 " + lot.BatchNo}
		}

		out := &entity.InventoryHistory{
			MovementType:   entity.MovementProductionOut,
			ProductID:      in.MaterialID,
			WarehouseID:    in.WarehouseID,
			Quantity:       -take,
			Remain:         0,
			BatchNo:        lot.BatchNo,
			UOM:            in.UOM,
			ExpiredDate:    lot.ExpiredDate,
			GroupID:        in.GroupID,
			ActionDetailID: in.ActionID,
			SourceLotID:    lot.ID,
			CreatedBy:      in.UserID,
		}
		if err := tx.Create(out).Error; err != nil {
			return nil, fmt.Errorf("写出库流水失败: %w", err)
		}

		allocations = append(allocations, LotAllocation{
			InventoryHistoryID: lot.ID,
			BatchNo:            lot.BatchNo,
			ExpiredDate:        lot.ExpiredDate,
			QtyTaken:           take,
		})
		remaining -= take
	}

	return allocations, nil
}

// Preview 只读试算：同样的FEFO遍历，不加锁不扣减。
func (a *Allocator) Preview(materialID, warehouseID string, needQty float64) ([]LotAllocation, float64, error) {
	lots, err := a.invRepo.StockByBatch(materialID, warehouseID)
	if err != nil {
		return nil, 0, fmt.Errorf("读取批次失败: %w", err)
	}
	remaining := needQty
	var allocations []LotAllocation
	for _, lot := range lots {
		if remaining <= qtyEpsilon {
			break
		}
		take := remaining
		if lot.AvailableQty < take {
			take = lot.AvailableQty
		}
		allocations = append(allocations, LotAllocation{
			BatchNo:     lot.BatchNo,
			ExpiredDate: lot.ExpiredDate,
			QtyTaken:    take,
		})
		remaining -= take
	}
	if remaining <= qtyEpsilon {
		remaining = 0
	}
	return allocations, remaining, nil
}

// retryableConflict 事务级可重试的并发冲突：
// 守卫扣减失败、单据号唯一索引碰撞、死锁、串行化失败。
// 单据号在每次重试时重新生成，所以碰撞靠重来整个事务解决。
func retryableConflict(err error) bool {
	var conflict *apperrors.ConcurrencyConflictError
	if errors.As(err, &conflict) {
		return true
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "deadlock detected") ||
		strings.Contains(msg, "could not serialize access")
}
