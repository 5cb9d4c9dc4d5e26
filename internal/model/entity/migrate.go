package entity

import "gorm.io/gorm"

// AutoMigrate 同步所有生产域表结构
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Product{},
		&Warehouse{},
		&BOMHeader{},
		&BOMDetail{},
		&ManufacturingOrder{},
		&OrderMaterial{},
		&InventoryHistory{},
		&MaterialIssue{},
		&MaterialIssueDetail{},
		&ProductionReceipt{},
	)
}
