package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hongquyngo/production/internal/apperrors"
	"github.com/hongquyngo/production/internal/model/entity"
	"github.com/hongquyngo/production/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProductionService 生产订单状态机。
// createOrder / issueMaterials / completeOrder / cancelOrder 各自是一个事务边界：
// 要么全部落库，要么全部回滚。
type ProductionService struct {
	orderRepo   *repository.OrderRepository
	bomRepo     *repository.BOMRepository
	masterRepo  *repository.MasterRepository
	invRepo     *repository.InventoryRepository
	issueRepo   *repository.IssueRepository
	receiptRepo *repository.ReceiptRepository
	allocator   *Allocator
	numbering   *NumberingService
	db          *gorm.DB
	logger      *zap.Logger
	maxRetries  int
}

func NewProductionService(
	repos *repository.Repositories,
	allocator *Allocator,
	numbering *NumberingService,
	db *gorm.DB,
	logger *zap.Logger,
	maxRetries int,
) *ProductionService {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &ProductionService{
		orderRepo:   repos.Order,
		bomRepo:     repos.BOM,
		masterRepo:  repos.Master,
		invRepo:     repos.Inventory,
		issueRepo:   repos.Issue,
		receiptRepo: repos.Receipt,
		allocator:   allocator,
		numbering:   numbering,
		db:          db,
		logger:      logger,
		maxRetries:  maxRetries,
	}
}

type CreateOrderRequest struct {
	BOMHeaderID       string  `json:"bom_header_id" binding:"required"`
	PlannedQty        float64 `json:"planned_qty" binding:"required,gt=0"`
	WarehouseID       string  `json:"warehouse_id" binding:"required"`
	TargetWarehouseID string  `json:"target_warehouse_id" binding:"required"`
	ScheduledDate     string  `json:"scheduled_date"` // YYYY-MM-DD
	Priority          string  `json:"priority"`
	Notes             string  `json:"notes"`
}

// Create 创建生产订单：校验BOM为ACTIVE，解析仓库所属实体，
// 展开物料需求并与订单一并落库。订单直接进入 CONFIRMED。
func (s *ProductionService) Create(req CreateOrderRequest, userID string) (*entity.ManufacturingOrder, error) {
	priority := req.Priority
	if priority == "" {
		priority = entity.PriorityNormal
	}
	if !entity.ValidPriority(priority) {
		return nil, apperrors.NewValidation("priority", "不支持的优先级: "+priority)
	}

	bom, err := s.bomRepo.GetByID(req.BOMHeaderID)
	if err != nil {
		return nil, apperrors.NewNotFound("BOM", req.BOMHeaderID)
	}
	if bom.Status != entity.BOMStatusActive {
		return nil, apperrors.NewValidation("bom_header_id", "BOM未激活: "+bom.BOMCode)
	}
	if len(bom.Details) == 0 {
		return nil, apperrors.NewNotFound("BOM明细", req.BOMHeaderID)
	}

	srcWarehouse, err := s.masterRepo.GetWarehouse(req.WarehouseID)
	if err != nil {
		return nil, apperrors.NewNotFound("仓库", req.WarehouseID)
	}
	if _, err := s.masterRepo.GetWarehouse(req.TargetWarehouseID); err != nil {
		return nil, apperrors.NewNotFound("仓库", req.TargetWarehouseID)
	}

	requirements := Explode(bom.Details, req.PlannedQty)

	order := &entity.ManufacturingOrder{
		EntityID:          srcWarehouse.CompanyID,
		OrderDate:         time.Now(),
		BOMHeaderID:       bom.ID,
		ProductID:         bom.ProductID,
		PlannedQty:        req.PlannedQty,
		UOM:               bom.UOM,
		WarehouseID:       req.WarehouseID,
		TargetWarehouseID: req.TargetWarehouseID,
		Status:            entity.OrderStatusConfirmed,
		Priority:          priority,
		Notes:             req.Notes,
		CreatedBy:         userID,
	}
	if req.ScheduledDate != "" {
		if t, err := time.Parse("2006-01-02", req.ScheduledDate); err == nil {
			order.ScheduledDate = &t
		}
	}
	for _, r := range requirements {
		order.Materials = append(order.Materials, entity.OrderMaterial{
			MaterialID:  r.MaterialID,
			RequiredQty: r.RequiredQty,
			UOM:         r.UOM,
			WarehouseID: req.WarehouseID,
			Status:      entity.MaterialStatusPending,
		})
	}

	// 单据号碰撞时换号重试
	for attempt := 0; ; attempt++ {
		order.OrderNo = s.numbering.Next(context.Background(), NumberPrefixOrder)
		err = s.orderRepo.Create(order)
		if err == nil {
			break
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) && attempt < s.maxRetries {
			continue
		}
		return nil, fmt.Errorf("创建订单失败: %w", err)
	}

	s.logger.Info("Created manufacturing order",
		zap.String("order_no", order.OrderNo),
		zap.String("bom_code", bom.BOMCode),
		zap.Float64("planned_qty", req.PlannedQty),
	)
	return order, nil
}

// IssueDetailSummary 发料结果明细行
type IssueDetailSummary struct {
	MaterialName string  `json:"material_name"`
	Quantity     float64 `json:"quantity"`
	UOM          string  `json:"uom"`
}

// IssueResult 发料结果
type IssueResult struct {
	IssueNo string               `json:"issue_no"`
	Details []IssueDetailSummary `json:"details"`
}

// IssueMaterials 整单发料。所有待发需求行在同一事务内FEFO分配：
// 任何一行不足或冲突，整单回滚。并发冲突在内部有限重试，
// 耗尽后上抛 ConcurrencyConflictError。
func (s *ProductionService) IssueMaterials(orderID, userID string) (*IssueResult, error) {
	var lastErr error
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		result, err := s.issueOnce(orderID, userID)
		if err == nil {
			return result, nil
		}
		if !retryableConflict(err) {
			return nil, err
		}
		lastErr = err
		s.logger.Warn("Issue materials conflict, retrying",
			zap.String("order_id", orderID),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
	}
	return nil, &apperrors.ConcurrencyConflictError{
		Resource: fmt.Sprintf("订单 %s 发料 (%v)", orderID, lastErr),
		Attempts: s.maxRetries,
	}
}

func (s *ProductionService) issueOnce(orderID, userID string) (*IssueResult, error) {
	var result *IssueResult
	err := s.db.Transaction(func(tx *gorm.DB) error {
		// 锁订单行，串行化同一订单的并发发料
		var order entity.ManufacturingOrder
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND delete_flag = false", orderID).
			First(&order).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NewNotFound("生产订单", orderID)
			}
			return fmt.Errorf("load order: %w", err)
		}
		if order.Status != entity.OrderStatusConfirmed && order.Status != entity.OrderStatusInProgress {
			return &apperrors.InvalidStateTransitionError{
				Entity: "生产订单", Current: order.Status, Attempted: "发料",
			}
		}

		var materials []entity.OrderMaterial
		if err := tx.Preload("Material").
			Where("manufacturing_order_id = ?", orderID).Find(&materials).Error; err != nil {
			return fmt.Errorf("load materials: %w", err)
		}

		var pending []entity.OrderMaterial
		for _, m := range materials {
			if m.Status == entity.MaterialStatusPending && m.RequiredQty > m.IssuedQty {
				pending = append(pending, m)
			}
		}
		if len(pending) == 0 {
			return apperrors.NewValidation("materials", "没有待发料的物料需求")
		}

		groupID := uuid.New().String()
		issue := &entity.MaterialIssue{
			IssueNo:              s.numbering.Next(context.Background(), NumberPrefixIssue),
			ManufacturingOrderID: order.ID,
			IssueDate:            time.Now(),
			WarehouseID:          order.WarehouseID,
			Status:               entity.IssueStatusConfirmed,
			GroupID:              groupID,
			IssuedBy:             userID,
			CreatedBy:            userID,
		}
		if err := tx.Create(issue).Error; err != nil {
			return fmt.Errorf("创建领料单失败: %w", err)
		}

		var summaries []IssueDetailSummary
		for i := range pending {
			m := &pending[i]
			need := m.RequiredQty - m.IssuedQty

			allocations, err := s.allocator.Allocate(tx, AllocateInput{
				MaterialID:  m.MaterialID,
				WarehouseID: m.WarehouseID,
				NeedQty:     need,
				UOM:         m.UOM,
				GroupID:     groupID,
				ActionID:    issue.ID,
				UserID:      userID,
			})
			if err != nil {
				return err
			}

			for _, alloc := range allocations {
				detail := &entity.MaterialIssueDetail{
					MaterialIssueID:      issue.ID,
					ManufacturingOrderID: order.ID,
					MaterialID:           m.MaterialID,
					InventoryHistoryID:   alloc.InventoryHistoryID,
					BatchNo:              alloc.BatchNo,
					Quantity:             alloc.QtyTaken,
					UOM:                  m.UOM,
				}
				if err := tx.Create(detail).Error; err != nil {
					return fmt.Errorf("写领料明细失败: %w", err)
				}
			}

			m.IssuedQty = m.RequiredQty
			m.Status = entity.MaterialStatusIssued
			if err := tx.Save(m).Error; err != nil {
				return fmt.Errorf("更新物料发料数量失败: %w", err)
			}

			name := m.MaterialID
			if m.Material != nil {
				name = m.Material.Name
			}
			summaries = append(summaries, IssueDetailSummary{
				MaterialName: name,
				Quantity:     need,
				UOM:          m.UOM,
			})
		}

		if order.Status == entity.OrderStatusConfirmed {
			order.Status = entity.OrderStatusInProgress
			order.UpdatedBy = userID
			if err := tx.Save(&order).Error; err != nil {
				return fmt.Errorf("更新订单状态失败: %w", err)
			}
		}

		result = &IssueResult{IssueNo: issue.IssueNo, Details: summaries}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Issued materials",
		zap.String("order_id", orderID),
		zap.String("issue_no", result.IssueNo),
	)
	return result, nil
}

type CompleteOrderRequest struct {
	ProducedQty   float64 `json:"produced_qty"`
	BatchNo       string  `json:"batch_no" binding:"required"`
	QualityStatus string  `json:"quality_status"`
	Notes         string  `json:"notes"`
}

// CompleteResult 完工结果
type CompleteResult struct {
	ReceiptNo string  `json:"receipt_no"`
	BatchNo   string  `json:"batch_no"`
	Quantity  float64 `json:"quantity"`
}

// Complete 完工入库。KITTING 订单的产出效期继承消耗批次的最早非空效期；
// CUTTING/REPACKING 不继承。生成入库单 + 一条新的 PRODUCTION_IN 批次行，
// 订单进入 COMPLETED。
func (s *ProductionService) Complete(orderID string, req CompleteOrderRequest, userID string) (*CompleteResult, error) {
	qualityStatus := req.QualityStatus
	if qualityStatus == "" {
		qualityStatus = entity.QualityStatusPassed
	}
	if !entity.ValidQualityStatus(qualityStatus) {
		return nil, apperrors.NewValidation("quality_status", "不支持的质检标记: "+qualityStatus)
	}

	// 入库单号碰撞或锁冲突时整个事务重来，单号每次重新生成
	var lastErr error
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		result, err := s.completeOnce(orderID, req, qualityStatus, userID)
		if err == nil {
			s.logger.Info("Completed manufacturing order",
				zap.String("order_id", orderID),
				zap.String("receipt_no", result.ReceiptNo),
				zap.Float64("produced_qty", result.Quantity),
			)
			return result, nil
		}
		if !retryableConflict(err) {
			return nil, err
		}
		lastErr = err
		s.logger.Warn("Complete order conflict, retrying",
			zap.String("order_id", orderID),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
	}
	return nil, &apperrors.ConcurrencyConflictError{
		Resource: fmt.Sprintf("订单 %s 完工 (%v)", orderID, lastErr),
		Attempts: s.maxRetries,
	}
}

func (s *ProductionService) completeOnce(orderID string, req CompleteOrderRequest, qualityStatus, userID string) (*CompleteResult, error) {
	var result *CompleteResult
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var order entity.ManufacturingOrder
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND delete_flag = false", orderID).
			First(&order).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NewNotFound("生产订单", orderID)
			}
			return fmt.Errorf("load order: %w", err)
		}
		if order.Status != entity.OrderStatusInProgress {
			return &apperrors.InvalidStateTransitionError{
				Entity: "生产订单", Current: order.Status, Attempted: entity.OrderStatusCompleted,
			}
		}
		if req.ProducedQty < 0 || req.ProducedQty > order.PlannedQty {
			return apperrors.NewValidation("produced_qty",
				fmt.Sprintf("完工数量越界: %.4f (计划 %.4f)", req.ProducedQty, order.PlannedQty))
		}

		var bom entity.BOMHeader
		if err := tx.Where("id = ?", order.BOMHeaderID).First(&bom).Error; err != nil {
			return fmt.Errorf("load bom: %w", err)
		}

		// 组套订单继承消耗批次的最早效期
		var expiry *time.Time
		if bom.BOMType == entity.BOMTypeKitting {
			if minExpiry, ok, err := s.issueRepo.MinConsumedExpiry(tx, order.ID); err != nil {
				return fmt.Errorf("计算继承效期失败: %w", err)
			} else if ok {
				expiry = &minExpiry
			}
		}

		// 沿用发料的 group_id，保持同一工作流的流水可追溯
		groupID := uuid.New().String()
		var issue entity.MaterialIssue
		if err := tx.Where("manufacturing_order_id = ?", order.ID).
			Order("created_at").First(&issue).Error; err == nil {
			groupID = issue.GroupID
		}

		now := time.Now()
		receipt := &entity.ProductionReceipt{
			ReceiptNo:            s.numbering.Next(context.Background(), NumberPrefixReceipt),
			ManufacturingOrderID: order.ID,
			ReceiptDate:          now,
			ProductID:            order.ProductID,
			Quantity:             req.ProducedQty,
			UOM:                  order.UOM,
			BatchNo:              req.BatchNo,
			WarehouseID:          order.TargetWarehouseID,
			QualityStatus:        qualityStatus,
			ExpiredDate:          expiry,
			Notes:                req.Notes,
			CreatedBy:            userID,
		}
		if err := tx.Create(receipt).Error; err != nil {
			return fmt.Errorf("创建入库单失败: %w", err)
		}

		lot := &entity.InventoryHistory{
			MovementType:   entity.MovementProductionIn,
			ProductID:      order.ProductID,
			WarehouseID:    order.TargetWarehouseID,
			Quantity:       req.ProducedQty,
			Remain:         req.ProducedQty,
			BatchNo:        req.BatchNo,
			UOM:            order.UOM,
			ExpiredDate:    expiry,
			GroupID:        groupID,
			ActionDetailID: receipt.ID,
			CreatedBy:      userID,
		}
		if err := tx.Create(lot).Error; err != nil {
			return fmt.Errorf("写入库流水失败: %w", err)
		}

		order.ProducedQty = req.ProducedQty
		order.Status = entity.OrderStatusCompleted
		order.CompletionDate = &now
		order.UpdatedBy = userID
		if err := tx.Save(&order).Error; err != nil {
			return fmt.Errorf("更新订单状态失败: %w", err)
		}

		result = &CompleteResult{
			ReceiptNo: receipt.ReceiptNo,
			BatchNo:   req.BatchNo,
			Quantity:  req.ProducedQty,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Cancel 取消订单。CONFIRMED 可直接取消；IN_PROGRESS 仅在尚未发料时可取消，
// 已消耗的批次不做自动冲销。
func (s *ProductionService) Cancel(orderID, userID string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var order entity.ManufacturingOrder
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND delete_flag = false", orderID).
			First(&order).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NewNotFound("生产订单", orderID)
			}
			return fmt.Errorf("load order: %w", err)
		}
		if !entity.OrderStatusCanTransition(order.Status, entity.OrderStatusCancelled) {
			return &apperrors.InvalidStateTransitionError{
				Entity: "生产订单", Current: order.Status, Attempted: entity.OrderStatusCancelled,
			}
		}
		if order.Status == entity.OrderStatusInProgress {
			var issuedCount int64
			if err := tx.Model(&entity.OrderMaterial{}).
				Where("manufacturing_order_id = ? AND issued_qty > 0", orderID).
				Count(&issuedCount).Error; err != nil {
				return fmt.Errorf("check issued materials: %w", err)
			}
			if issuedCount > 0 {
				return &apperrors.InvalidStateTransitionError{
					Entity: "生产订单（已发料）", Current: order.Status, Attempted: entity.OrderStatusCancelled,
				}
			}
		}
		order.Status = entity.OrderStatusCancelled
		order.UpdatedBy = userID
		if err := tx.Save(&order).Error; err != nil {
			return fmt.Errorf("更新订单状态失败: %w", err)
		}
		return nil
	})
}

func (s *ProductionService) GetByID(id string) (*entity.ManufacturingOrder, error) {
	order, err := s.orderRepo.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFound("生产订单", id)
		}
		return nil, err
	}
	return order, nil
}

// GetByOrderNo 按单号查订单
func (s *ProductionService) GetByOrderNo(orderNo string) (*entity.ManufacturingOrder, error) {
	order, err := s.orderRepo.GetByOrderNo(orderNo)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFound("生产订单", orderNo)
		}
		return nil, err
	}
	return order, nil
}

func (s *ProductionService) List(params repository.OrderListParams) ([]entity.ManufacturingOrder, int64, error) {
	return s.orderRepo.List(params)
}

// OrderConsumptions 订单的领料明细（谱系边：订单 → 被消耗批次）
func (s *ProductionService) OrderConsumptions(orderID string) ([]entity.MaterialIssueDetail, error) {
	return s.issueRepo.DetailsByOrder(orderID)
}

func (s *ProductionService) GetMaterials(orderID string) ([]entity.OrderMaterial, error) {
	return s.orderRepo.GetMaterials(orderID)
}

// MaterialAvailability 需求预览行：展开数量 + 当前可用量
type MaterialAvailability struct {
	Requirement
	Available  float64 `json:"available"`
	Sufficient bool    `json:"sufficient"`
}

// PreviewRequirements 建单前的需求试算：展开BOM并检查库存可用性，不落库。
func (s *ProductionService) PreviewRequirements(bomID string, targetQty float64, warehouseID string) ([]MaterialAvailability, error) {
	bom, err := s.bomRepo.GetByID(bomID)
	if err != nil {
		return nil, apperrors.NewNotFound("BOM", bomID)
	}
	if len(bom.Details) == 0 {
		return nil, apperrors.NewNotFound("BOM明细", bomID)
	}
	requirements := Explode(bom.Details, targetQty)

	rows := make([]MaterialAvailability, 0, len(requirements))
	for _, r := range requirements {
		available, err := s.invRepo.Balance(r.MaterialID, warehouseID)
		if err != nil {
			return nil, fmt.Errorf("查询库存失败: %w", err)
		}
		rows = append(rows, MaterialAvailability{
			Requirement: r,
			Available:   available,
			Sufficient:  available >= r.RequiredQty,
		})
	}
	return rows, nil
}

// --- 报表查询（只读，不保证与写入者隔离） ---

func (s *ProductionService) Summary(from, to time.Time) (*repository.ProductionSummary, error) {
	return s.orderRepo.GetSummary(from, to)
}

func (s *ProductionService) DailyProduction(from, to time.Time) ([]repository.DailyProductionRow, error) {
	return s.receiptRepo.DailyProduction(from, to)
}

func (s *ProductionService) ConsumptionTotals(from, to time.Time, warehouseID string) ([]repository.ConsumptionRow, error) {
	return s.issueRepo.ConsumptionTotals(from, to, warehouseID)
}

func (s *ProductionService) DailyConsumption(from, to time.Time) ([]repository.DailyConsumptionRow, error) {
	return s.issueRepo.DailyConsumption(from, to)
}

func (s *ProductionService) StatusDistribution(from, to time.Time) ([]repository.StatusCount, error) {
	return s.orderRepo.CountByStatus(from, to)
}

func (s *ProductionService) TypeDistribution(from, to time.Time) ([]repository.TypeCount, error) {
	return s.orderRepo.CountByType(from, to)
}

func (s *ProductionService) OrderBatches(orderID string) ([]entity.ProductionReceipt, error) {
	return s.receiptRepo.GetByOrder(orderID)
}

func (s *ProductionService) OrderIssues(orderID string) ([]entity.MaterialIssue, error) {
	return s.issueRepo.GetByOrder(orderID)
}

func (s *ProductionService) RecentActivities(limit int) ([]repository.ActivityRow, error) {
	return s.orderRepo.RecentActivities(limit)
}
