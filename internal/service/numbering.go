package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// 单据号前缀
const (
	NumberPrefixOrder   = "MO"
	NumberPrefixIssue   = "MI"
	NumberPrefixReceipt = "PR"
)

// NumberingService 单据号生成。纯时间戳格式在并发下会碰撞，
// 这里用 redis 按天自增序列；redis 不可用时退化为随机后缀，
// 最终唯一性由单据号唯一索引 + 调用方重试兜底。
type NumberingService struct {
	rdb *redis.Client
}

func NewNumberingService(rdb *redis.Client) *NumberingService {
	return &NumberingService{rdb: rdb}
}

// Next 生成 <prefix>-YYYYMMDD-NNNN 格式的单据号
func (s *NumberingService) Next(ctx context.Context, prefix string) string {
	day := time.Now().Format("20060102")
	if s.rdb != nil {
		key := fmt.Sprintf("seq:%s:%s", prefix, day)
		seq, err := s.rdb.Incr(ctx, key).Result()
		if err == nil {
			if seq == 1 {
				// 当天第一个号，给序列设置过期
				s.rdb.Expire(ctx, key, 48*time.Hour)
			}
			return fmt.Sprintf("%s-%s-%04d", prefix, day, seq)
		}
	}
	// redis 不可用：随机后缀，靠唯一索引挡碰撞
	return fmt.Sprintf("%s-%s-%s", prefix, day, uuid.New().String()[:8])
}
