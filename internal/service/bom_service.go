package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/hongquyngo/production/internal/apperrors"
	"github.com/hongquyngo/production/internal/model/entity"
	"github.com/hongquyngo/production/internal/repository"
	"gorm.io/gorm"
)

// BOMService 配方管理 + 需求展开
type BOMService struct {
	repo       *repository.BOMRepository
	masterRepo *repository.MasterRepository
}

func NewBOMService(repo *repository.BOMRepository, masterRepo *repository.MasterRepository) *BOMService {
	return &BOMService{repo: repo, masterRepo: masterRepo}
}

// Requirement 展开后的单行物料需求
type Requirement struct {
	MaterialID   string  `json:"material_id"`
	MaterialName string  `json:"material_name"`
	MaterialType string  `json:"material_type"`
	RequiredQty  float64 `json:"required_qty"`
	UOM          string  `json:"uom"`
}

// Explode 按目标数量展开BOM：required = 单位用量 × 目标数量 × (1 + 损耗率/100)。
// 纯计算，不落库；建单和可用性预览共用。
func Explode(details []entity.BOMDetail, targetQty float64) []Requirement {
	reqs := make([]Requirement, 0, len(details))
	for _, d := range details {
		name := ""
		if d.Material != nil {
			name = d.Material.Name
		}
		reqs = append(reqs, Requirement{
			MaterialID:   d.MaterialID,
			MaterialName: name,
			MaterialType: d.MaterialType,
			RequiredQty:  d.Quantity * targetQty * (1 + d.ScrapRate/100),
			UOM:          d.UOM,
		})
	}
	return reqs
}

// ExplodeBOM 加载BOM并展开需求。明细为空视为配方不存在。
func (s *BOMService) ExplodeBOM(bomID string, targetQty float64) ([]Requirement, error) {
	bom, err := s.repo.GetByID(bomID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFound("BOM", bomID)
		}
		return nil, fmt.Errorf("load bom: %w", err)
	}
	if len(bom.Details) == 0 {
		return nil, apperrors.NewNotFound("BOM明细", bomID)
	}
	return Explode(bom.Details, targetQty), nil
}

type CreateBOMRequest struct {
	BOMName       string  `json:"bom_name" binding:"required"`
	BOMType       string  `json:"bom_type" binding:"required"`
	ProductID     string  `json:"product_id" binding:"required"`
	OutputQty     float64 `json:"output_qty" binding:"required,gt=0"`
	UOM           string  `json:"uom"`
	EffectiveDate string  `json:"effective_date"` // YYYY-MM-DD
	Notes         string  `json:"notes"`
	Materials     []struct {
		MaterialID   string  `json:"material_id" binding:"required"`
		MaterialType string  `json:"material_type"`
		Quantity     float64 `json:"quantity" binding:"required,gt=0"`
		UOM          string  `json:"uom"`
		ScrapRate    float64 `json:"scrap_rate"`
	} `json:"materials" binding:"required,min=1"`
}

// Create 创建配方，初始状态 DRAFT
func (s *BOMService) Create(req CreateBOMRequest, userID string) (*entity.BOMHeader, error) {
	switch req.BOMType {
	case entity.BOMTypeKitting, entity.BOMTypeCutting, entity.BOMTypeRepacking:
	default:
		return nil, apperrors.NewValidation("bom_type", "不支持的配方类型: "+req.BOMType)
	}

	product, err := s.masterRepo.GetProduct(req.ProductID)
	if err != nil {
		return nil, apperrors.NewNotFound("产品", req.ProductID)
	}
	if product.IsService {
		return nil, apperrors.NewValidation("product_id", "服务类产品不能作为产出")
	}

	seq, err := s.repo.NextCodeSeq("BOM-" + req.BOMType[:3])
	if err != nil {
		return nil, fmt.Errorf("generate bom code: %w", err)
	}

	uom := req.UOM
	if uom == "" {
		uom = product.UOM
	}

	bom := &entity.BOMHeader{
		BOMCode:   fmt.Sprintf("BOM-%s-%04d", req.BOMType[:3], seq),
		BOMName:   req.BOMName,
		BOMType:   req.BOMType,
		ProductID: req.ProductID,
		OutputQty: req.OutputQty,
		UOM:       uom,
		Status:    entity.BOMStatusDraft,
		Version:   1,
		Notes:     req.Notes,
		CreatedBy: userID,
	}
	if req.EffectiveDate != "" {
		if t, err := time.Parse("2006-01-02", req.EffectiveDate); err == nil {
			bom.EffectiveDate = &t
		}
	}

	for _, m := range req.Materials {
		mat, err := s.masterRepo.GetProduct(m.MaterialID)
		if err != nil {
			return nil, apperrors.NewNotFound("物料", m.MaterialID)
		}
		matType := m.MaterialType
		if matType == "" {
			matType = entity.MaterialTypeRaw
		}
		matUOM := m.UOM
		if matUOM == "" {
			matUOM = mat.UOM
		}
		bom.Details = append(bom.Details, entity.BOMDetail{
			MaterialID:   m.MaterialID,
			MaterialType: matType,
			Quantity:     m.Quantity,
			UOM:          matUOM,
			ScrapRate:    m.ScrapRate,
		})
	}

	if err := s.repo.Create(bom); err != nil {
		return nil, fmt.Errorf("创建BOM失败: %w", err)
	}
	return bom, nil
}

// UpdateStatus 配方状态流转（DRAFT→ACTIVE→INACTIVE→ACTIVE）
func (s *BOMService) UpdateStatus(id, newStatus, userID string) (*entity.BOMHeader, error) {
	bom, err := s.repo.GetByID(id)
	if err != nil {
		return nil, apperrors.NewNotFound("BOM", id)
	}
	if !entity.BOMStatusCanTransition(bom.Status, newStatus) {
		return nil, &apperrors.InvalidStateTransitionError{
			Entity: "BOM", Current: bom.Status, Attempted: newStatus,
		}
	}
	bom.Status = newStatus
	if err := s.repo.Update(bom); err != nil {
		return nil, fmt.Errorf("更新BOM状态失败: %w", err)
	}
	return bom, nil
}

func (s *BOMService) GetByID(id string) (*entity.BOMHeader, error) {
	bom, err := s.repo.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFound("BOM", id)
		}
		return nil, err
	}
	return bom, nil
}

func (s *BOMService) List(params repository.BOMListParams) ([]entity.BOMHeader, int64, error) {
	return s.repo.List(params)
}

// WhereUsed 物料反查
func (s *BOMService) WhereUsed(materialID string) ([]repository.WhereUsedRow, error) {
	return s.repo.WhereUsed(materialID)
}
