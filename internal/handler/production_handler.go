package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hongquyngo/production/internal/repository"
	"github.com/hongquyngo/production/internal/service"
)

// ProductionHandler 生产订单接口
type ProductionHandler struct {
	productionService *service.ProductionService
}

func NewProductionHandler(productionService *service.ProductionService) *ProductionHandler {
	return &ProductionHandler{productionService: productionService}
}

// Create 创建生产订单
// POST /api/v1/orders
func (h *ProductionHandler) Create(c *gin.Context) {
	var req service.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	order, err := h.productionService.Create(req, currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondCreated(c, order)
}

// List 订单列表
// GET /api/v1/orders
func (h *ProductionHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "20"))
	params := repository.OrderListParams{
		Status:  c.Query("status"),
		BOMType: c.Query("bom_type"),
		Keyword: c.Query("keyword"),
		Page:    page,
		Size:    size,
	}
	if v := c.Query("from"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			params.FromDate = &t
		}
	}
	if v := c.Query("to"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			end := t.AddDate(0, 0, 1).Add(-time.Second)
			params.ToDate = &end
		}
	}
	orders, total, err := h.productionService.List(params)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"list": orders, "total": total, "page": page, "size": size})
}

// Get 订单详情
// GET /api/v1/orders/:id
func (h *ProductionHandler) Get(c *gin.Context) {
	order, err := h.productionService.GetByID(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, order)
}

// GetByOrderNo 按单号查订单
// GET /api/v1/orders/no/:orderNo
func (h *ProductionHandler) GetByOrderNo(c *gin.Context) {
	order, err := h.productionService.GetByOrderNo(c.Param("orderNo"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, order)
}

// Materials 订单物料需求行
// GET /api/v1/orders/:id/materials
func (h *ProductionHandler) Materials(c *gin.Context) {
	materials, err := h.productionService.GetMaterials(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, materials)
}

// IssueMaterials 按FEFO对订单所有待发料行发料，整单原子
// POST /api/v1/orders/:id/issue
func (h *ProductionHandler) IssueMaterials(c *gin.Context) {
	result, err := h.productionService.IssueMaterials(c.Param("id"), currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, result)
}

// Complete 完工入库
// POST /api/v1/orders/:id/complete
func (h *ProductionHandler) Complete(c *gin.Context) {
	var req service.CompleteOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	result, err := h.productionService.Complete(c.Param("id"), req, currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, result)
}

// Cancel 取消订单
// POST /api/v1/orders/:id/cancel
func (h *ProductionHandler) Cancel(c *gin.Context) {
	if err := h.productionService.Cancel(c.Param("id"), currentUserID(c)); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, nil)
}

// Issues 订单发料单列表
// GET /api/v1/orders/:id/issues
func (h *ProductionHandler) Issues(c *gin.Context) {
	issues, err := h.productionService.OrderIssues(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, issues)
}

// Consumptions 订单的领料明细行
// GET /api/v1/orders/:id/consumptions
func (h *ProductionHandler) Consumptions(c *gin.Context) {
	details, err := h.productionService.OrderConsumptions(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, details)
}

// Batches 订单产出批次列表
// GET /api/v1/orders/:id/batches
func (h *ProductionHandler) Batches(c *gin.Context) {
	receipts, err := h.productionService.OrderBatches(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, receipts)
}

// PreviewRequirements 下单前预检物料可用量
// GET /api/v1/orders/preview?bom_id=&quantity=&warehouse_id=
func (h *ProductionHandler) PreviewRequirements(c *gin.Context) {
	qty, err := strconv.ParseFloat(c.DefaultQuery("quantity", "1"), 64)
	if err != nil || qty <= 0 {
		c.JSON(400, gin.H{"code": 10001, "message": "数量必须为正数"})
		return
	}
	rows, err := h.productionService.PreviewRequirements(c.Query("bom_id"), qty, c.Query("warehouse_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, rows)
}

// Summary 生产汇总报表
// GET /api/v1/reports/production/summary
func (h *ProductionHandler) Summary(c *gin.Context) {
	from, to := dateRange(c)
	summary, err := h.productionService.Summary(from, to)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, summary)
}

// DailyProduction 按日产量报表
// GET /api/v1/reports/production/daily
func (h *ProductionHandler) DailyProduction(c *gin.Context) {
	from, to := dateRange(c)
	rows, err := h.productionService.DailyProduction(from, to)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, rows)
}

// ConsumptionTotals 物料消耗汇总报表
// GET /api/v1/reports/consumption/totals
func (h *ProductionHandler) ConsumptionTotals(c *gin.Context) {
	from, to := dateRange(c)
	rows, err := h.productionService.ConsumptionTotals(from, to, c.Query("warehouse_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, rows)
}

// DailyConsumption 按日消耗报表
// GET /api/v1/reports/consumption/daily
func (h *ProductionHandler) DailyConsumption(c *gin.Context) {
	from, to := dateRange(c)
	rows, err := h.productionService.DailyConsumption(from, to)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, rows)
}

// StatusDistribution 订单状态分布
// GET /api/v1/reports/orders/status
func (h *ProductionHandler) StatusDistribution(c *gin.Context) {
	from, to := dateRange(c)
	rows, err := h.productionService.StatusDistribution(from, to)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, rows)
}

// RecentActivities 近期生产动态
// GET /api/v1/reports/activities?limit=
func (h *ProductionHandler) RecentActivities(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	rows, err := h.productionService.RecentActivities(limit)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, rows)
}

// TypeDistribution 订单类型分布
// GET /api/v1/reports/orders/type
func (h *ProductionHandler) TypeDistribution(c *gin.Context) {
	from, to := dateRange(c)
	rows, err := h.productionService.TypeDistribution(from, to)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, rows)
}
