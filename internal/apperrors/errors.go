// Package apperrors 定义核心域的封闭错误分类。
// 处理层通过 errors.As 匹配类型并映射为 HTTP 响应。
package apperrors

import "fmt"

// ValidationError 输入校验失败（字段缺失、取值越界）
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidation 构造校验错误
func NewValidation(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// NotFoundError 引用的资源不存在
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s不存在: %s", e.Resource, e.ID)
}

// NewNotFound 构造资源不存在错误
func NewNotFound(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// InsufficientStockError FEFO分配无法完全满足需求
type InsufficientStockError struct {
	MaterialID  string
	WarehouseID string
	Required    float64
	Available   float64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("物料 %s 库存不足: 需要%.4f, 可用%.4f", e.MaterialID, e.Required, e.Available)
}

// InvalidStateTransitionError 当前状态下不允许执行该命令
type InvalidStateTransitionError struct {
	Entity    string
	Current   string
	Attempted string
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("%s当前状态 %s 不允许流转到 %s", e.Entity, e.Current, e.Attempted)
}

// ConcurrencyConflictError 行锁/乐观校验竞争重试耗尽
type ConcurrencyConflictError struct {
	Resource string
	Attempts int
}

func (e *ConcurrencyConflictError) Error() string {
	return fmt.Sprintf("%s并发冲突, 已重试%d次", e.Resource, e.Attempts)
}
