package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hongquyngo/production/internal/apperrors"
	"github.com/hongquyngo/production/internal/service"
)

// Handlers HTTP处理器集合
type Handlers struct {
	BOM        *BOMHandler
	Production *ProductionHandler
	Inventory  *InventoryHandler
	Trace      *TraceHandler
}

func NewHandlers(services *service.Services) *Handlers {
	return &Handlers{
		BOM:        NewBOMHandler(services.BOM),
		Production: NewProductionHandler(services.Production),
		Inventory:  NewInventoryHandler(services.Inventory),
		Trace:      NewTraceHandler(services.Trace),
	}
}

func respondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{"code": 0, "message": "success", "data": data})
}

func respondCreated(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, gin.H{"code": 0, "message": "success", "data": data})
}

// respondError 域错误映射为HTTP状态码。所有命令要么返回成功负载，
// 要么返回一个分类错误，不报告部分成功。
func respondError(c *gin.Context, err error) {
	var (
		validation  *apperrors.ValidationError
		notFound    *apperrors.NotFoundError
		insuffStock *apperrors.InsufficientStockError
		invalidStat *apperrors.InvalidStateTransitionError
		conflict    *apperrors.ConcurrencyConflictError
	)
	switch {
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"code": 10001, "message": err.Error()})
	case errors.As(err, &notFound):
		c.JSON(http.StatusNotFound, gin.H{"code": 10002, "message": err.Error()})
	case errors.As(err, &insuffStock):
		c.JSON(http.StatusConflict, gin.H{"code": 10003, "message": err.Error()})
	case errors.As(err, &invalidStat):
		c.JSON(http.StatusConflict, gin.H{"code": 10004, "message": err.Error()})
	case errors.As(err, &conflict):
		c.JSON(http.StatusConflict, gin.H{"code": 10005, "message": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"code": 50001, "message": err.Error()})
	}
}

func bindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"code": 10001, "message": err.Error()})
}

func currentUserID(c *gin.Context) string {
	if userID, ok := c.Get("user_id"); ok {
		return userID.(string)
	}
	return ""
}

// dateRange 解析 from/to 查询参数，默认最近30天
func dateRange(c *gin.Context) (time.Time, time.Time) {
	now := time.Now()
	from := now.AddDate(0, 0, -30)
	to := now
	if v := c.Query("from"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			from = t
		}
	}
	if v := c.Query("to"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			// 含当天
			to = t.AddDate(0, 0, 1).Add(-time.Second)
		}
	}
	return from, to
}
