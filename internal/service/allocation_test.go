package service

import (
	"fmt"
	"testing"

	"github.com/hongquyngo/production/internal/apperrors"
	"gorm.io/gorm"
)

// 发料与完工的外层重试以 retryableConflict 为准：
// 单据号唯一索引碰撞必须触发换号重试，而不是直接上抛。
func TestRetryableConflictClassification(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"duplicated key", gorm.ErrDuplicatedKey, true},
		{"wrapped duplicated key", fmt.Errorf("创建入库单失败: %w", gorm.ErrDuplicatedKey), true},
		{"concurrency conflict", &apperrors.ConcurrencyConflictError{Resource: "批次 B-1"}, true},
		{"deadlock", fmt.Errorf("driver: deadlock detected"), true},
		{"serialization failure", fmt.Errorf("pq: could not serialize access due to concurrent update"), true},
		{"insufficient stock", &apperrors.InsufficientStockError{MaterialID: "m"}, false},
		{"validation", apperrors.NewValidation("f", "bad"), false},
		{"plain error", fmt.Errorf("boom"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := retryableConflict(tc.err); got != tc.want {
				t.Errorf("retryableConflict(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}
