package repository

import "gorm.io/gorm"

// Repositories 仓库集合
type Repositories struct {
	Master    *MasterRepository
	BOM       *BOMRepository
	Order     *OrderRepository
	Inventory *InventoryRepository
	Issue     *IssueRepository
	Receipt   *ReceiptRepository
}

func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Master:    NewMasterRepository(db),
		BOM:       NewBOMRepository(db),
		Order:     NewOrderRepository(db),
		Inventory: NewInventoryRepository(db),
		Issue:     NewIssueRepository(db),
		Receipt:   NewReceiptRepository(db),
	}
}
