package inventory

import (
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	inventoryEntity "inventory.GO/model/entity/inventory"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	err = db.AutoMigrate(
		&inventoryEntity.Part{},
		&inventoryEntity.Location{},
		&inventoryEntity.Balance{},
		&inventoryEntity.InventoryEvent{},
		&inventoryEntity.EventLine{},
		&inventoryEntity.ReasonAccount{},
		&inventoryEntity.SyncSession{},
		&inventoryEntity.ApprovalRequest{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedCatalog(t *testing.T, db *gorm.DB) {
	t.Helper()
	parts := []inventoryEntity.Part{
		{SKU: "WID-1", Description: "Widget", Active: true, QBItemFullName: "Widgets:WID-1", CogsAccountFullName: "COGS"},
		{SKU: "GAD-2", Description: "Gadget", Active: true},
	}
	for i := range parts {
		if err := db.Create(&parts[i]).Error; err != nil {
			t.Fatalf("seed part: %v", err)
		}
	}
	locations := []inventoryEntity.Location{
		{Code: "MAIN", DisplayName: "Main Warehouse", Active: true, QBSiteFullName: "Main"},
		{Code: "FLOOR", DisplayName: "Shop Floor", Active: true, QBSiteFullName: "Floor"},
		{Code: "OLD", DisplayName: "Closed Annex", Active: false},
	}
	for i := range locations {
		if err := db.Create(&locations[i]).Error; err != nil {
			t.Fatalf("seed location: %v", err)
		}
	}
}

func seedStock(t *testing.T, db *gorm.DB, sku, locationCode string, onHand float64) {
	t.Helper()
	var loc inventoryEntity.Location
	if err := db.Where("code = ?", locationCode).First(&loc).Error; err != nil {
		t.Fatalf("seed stock: location %s: %v", locationCode, err)
	}
	bal := inventoryEntity.Balance{SKU: sku, LocationID: loc.LocationID, OnHand: onHand, Available: onHand}
	if err := db.Create(&bal).Error; err != nil {
		t.Fatalf("seed stock: %v", err)
	}
}

func balanceAt(t *testing.T, db *gorm.DB, sku, locationCode string) inventoryEntity.Balance {
	t.Helper()
	var loc inventoryEntity.Location
	if err := db.Where("code = ?", locationCode).First(&loc).Error; err != nil {
		t.Fatalf("location %s: %v", locationCode, err)
	}
	var bal inventoryEntity.Balance
	if err := db.Where("sku = ? AND location_id = ?", sku, loc.LocationID).First(&bal).Error; err != nil {
		t.Fatalf("balance %s@%s: %v", sku, locationCode, err)
	}
	return bal
}

func f(v float64) *float64 { return &v }
