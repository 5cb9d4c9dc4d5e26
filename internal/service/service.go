package service

import (
	"github.com/hongquyngo/production/internal/repository"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Services 服务集合
type Services struct {
	BOM        *BOMService
	Production *ProductionService
	Inventory  *InventoryService
	Trace      *TraceService
}

func NewServices(repos *repository.Repositories, db *gorm.DB, rdb *redis.Client, logger *zap.Logger, allocMaxRetries int) *Services {
	allocator := NewAllocator(repos.Inventory)
	numbering := NewNumberingService(rdb)
	return &Services{
		BOM:        NewBOMService(repos.BOM, repos.Master),
		Production: NewProductionService(repos, allocator, numbering, db, logger, allocMaxRetries),
		Inventory:  NewInventoryService(repos.Inventory, repos.Master, allocator),
		Trace:      NewTraceService(repos.Receipt, repos.Inventory, db),
	}
}
