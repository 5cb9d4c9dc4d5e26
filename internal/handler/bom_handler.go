package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/hongquyngo/production/internal/repository"
	"github.com/hongquyngo/production/internal/service"
)

// BOMHandler 配方接口
type BOMHandler struct {
	bomService *service.BOMService
}

func NewBOMHandler(bomService *service.BOMService) *BOMHandler {
	return &BOMHandler{bomService: bomService}
}

// Create 创建配方
// POST /api/v1/boms
func (h *BOMHandler) Create(c *gin.Context) {
	var req service.CreateBOMRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	bom, err := h.bomService.Create(req, currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondCreated(c, bom)
}

// List 配方列表
// GET /api/v1/boms
func (h *BOMHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "20"))
	params := repository.BOMListParams{
		BOMType: c.Query("bom_type"),
		Status:  c.Query("status"),
		Keyword: c.Query("keyword"),
		Page:    page,
		Size:    size,
	}
	boms, total, err := h.bomService.List(params)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"list": boms, "total": total, "page": page, "size": size})
}

// Get 配方详情
// GET /api/v1/boms/:id
func (h *BOMHandler) Get(c *gin.Context) {
	bom, err := h.bomService.GetByID(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, bom)
}

// UpdateStatus 配方状态流转
// PUT /api/v1/boms/:id/status
func (h *BOMHandler) UpdateStatus(c *gin.Context) {
	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	bom, err := h.bomService.UpdateStatus(c.Param("id"), req.Status, currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, bom)
}

// Explode 按目标数量展开物料需求
// GET /api/v1/boms/:id/explode?quantity=
func (h *BOMHandler) Explode(c *gin.Context) {
	qty, err := strconv.ParseFloat(c.DefaultQuery("quantity", "1"), 64)
	if err != nil || qty <= 0 {
		c.JSON(400, gin.H{"code": 10001, "message": "数量必须为正数"})
		return
	}
	requirements, err := h.bomService.ExplodeBOM(c.Param("id"), qty)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, requirements)
}

// WhereUsed 反查物料被哪些配方使用
// GET /api/v1/boms/where-used/:materialId
func (h *BOMHandler) WhereUsed(c *gin.Context) {
	rows, err := h.bomService.WhereUsed(c.Param("materialId"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, rows)
}
