package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/hongquyngo/production/internal/service"
)

// TraceHandler 批次追溯接口
type TraceHandler struct {
	traceService *service.TraceService
}

func NewTraceHandler(traceService *service.TraceService) *TraceHandler {
	return &TraceHandler{traceService: traceService}
}

// BatchInfo 批次基本信息
// GET /api/v1/trace/batches/:batchNo
func (h *TraceHandler) BatchInfo(c *gin.Context) {
	info, err := h.traceService.GetBatchInfo(c.Param("batchNo"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, info)
}

// BatchSources 批次谱系：产出批次消耗了哪些来源批次
// GET /api/v1/trace/batches/:batchNo/sources
func (h *TraceHandler) BatchSources(c *gin.Context) {
	sources, err := h.traceService.GetBatchSources(c.Param("batchNo"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, sources)
}

// BatchLocations 批次当前库存分布
// GET /api/v1/trace/batches/:batchNo/locations
func (h *TraceHandler) BatchLocations(c *gin.Context) {
	locations, err := h.traceService.GetBatchLocations(c.Param("batchNo"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, locations)
}

// BatchMovements 批次的全部账本流水
// GET /api/v1/trace/batches/:batchNo/movements
func (h *TraceHandler) BatchMovements(c *gin.Context) {
	rows, err := h.traceService.GetBatchMovements(c.Param("batchNo"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, rows)
}

// BatchesByDate 按生产日期检索批次
// GET /api/v1/trace/batches?from=&to=
func (h *TraceHandler) BatchesByDate(c *gin.Context) {
	from, to := dateRange(c)
	rows, err := h.traceService.GetBatchesByDate(from, to)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, rows)
}

// ReceiptByBatch 按批次号查完工单
// GET /api/v1/trace/receipts/:batchNo
func (h *TraceHandler) ReceiptByBatch(c *gin.Context) {
	receipt, err := h.traceService.GetReceiptByBatch(c.Param("batchNo"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, receipt)
}
