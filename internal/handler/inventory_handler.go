package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/hongquyngo/production/internal/service"
)

// InventoryHandler 库存接口
type InventoryHandler struct {
	inventoryService *service.InventoryService
}

func NewInventoryHandler(inventoryService *service.InventoryService) *InventoryHandler {
	return &InventoryHandler{inventoryService: inventoryService}
}

// StockIn 外部入库
// POST /api/v1/inventory/stock-in
func (h *InventoryHandler) StockIn(c *gin.Context) {
	var req service.StockInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	lot, err := h.inventoryService.StockIn(req, currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondCreated(c, lot)
}

// GetLot 单条库存流水行
// GET /api/v1/inventory/lots/:id
func (h *InventoryHandler) GetLot(c *gin.Context) {
	lot, err := h.inventoryService.GetLot(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, lot)
}

// Warehouses 仓库列表
// GET /api/v1/warehouses
func (h *InventoryHandler) Warehouses(c *gin.Context) {
	rows, err := h.inventoryService.Warehouses()
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, rows)
}

// Balance 产品在仓余量
// GET /api/v1/inventory/balance?product_id=&warehouse_id=
func (h *InventoryHandler) Balance(c *gin.Context) {
	balance, err := h.inventoryService.Balance(c.Query("product_id"), c.Query("warehouse_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"balance": balance})
}

// StockByBatch 按批次列示库存，FEFO顺序
// GET /api/v1/inventory/batches?product_id=&warehouse_id=
func (h *InventoryHandler) StockByBatch(c *gin.Context) {
	rows, err := h.inventoryService.StockByBatch(c.Query("product_id"), c.Query("warehouse_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, rows)
}

// ExpiryDashboard 效期看板
// GET /api/v1/inventory/expiry?days=
func (h *InventoryHandler) ExpiryDashboard(c *gin.Context) {
	days, _ := strconv.Atoi(c.DefaultQuery("days", "30"))
	rows, err := h.inventoryService.ExpiryDashboard(days)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, rows)
}

// PreviewAllocation 发料预览，只读不落库
// GET /api/v1/inventory/allocation-preview?product_id=&warehouse_id=&quantity=
func (h *InventoryHandler) PreviewAllocation(c *gin.Context) {
	qty, err := strconv.ParseFloat(c.DefaultQuery("quantity", "0"), 64)
	if err != nil || qty <= 0 {
		c.JSON(400, gin.H{"code": 10001, "message": "数量必须为正数"})
		return
	}
	preview, err := h.inventoryService.PreviewAllocation(c.Query("product_id"), c.Query("warehouse_id"), qty)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, preview)
}

// LowStock 低库存清单
// GET /api/v1/inventory/low-stock?threshold=
func (h *InventoryHandler) LowStock(c *gin.Context) {
	threshold, err := strconv.ParseFloat(c.DefaultQuery("threshold", "10"), 64)
	if err != nil {
		c.JSON(400, gin.H{"code": 10001, "message": "阈值格式错误"})
		return
	}
	rows, err := h.inventoryService.LowStock(threshold)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, rows)
}

// ProductionImpact 生产对库存的净影响
// GET /api/v1/inventory/production-impact
func (h *InventoryHandler) ProductionImpact(c *gin.Context) {
	from, to := dateRange(c)
	rows, err := h.inventoryService.ProductionImpact(from, to)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, rows)
}
