package inventory

import (
	"errors"
	"testing"
	"time"

	inventoryEntity "inventory.GO/model/entity/inventory"
)

func TestOverview(t *testing.T) {
	db := testDB(t)
	seedCatalog(t, db)
	seedStock(t, db, "WID-1", "MAIN", 10)
	seedStock(t, db, "WID-1", "FLOOR", 2)
	seedStock(t, db, "GAD-2", "MAIN", 7)
	reads := NewReadsRepository(db)

	rows, err := reads.Overview("", "", false, 0)
	if err != nil {
		t.Fatalf("Overview: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}
	// Ordered by sku then location code.
	if rows[0].SKU != "GAD-2" || rows[1].LocationCode != "FLOOR" {
		t.Errorf("order = %+v", rows)
	}

	rows, err = reads.Overview("Widget", "MAIN", false, 0)
	if err != nil {
		t.Fatalf("Overview filtered: %v", err)
	}
	if len(rows) != 1 || rows[0].SKU != "WID-1" || rows[0].OnHand != 10 {
		t.Errorf("filtered rows = %+v", rows)
	}
}

func TestOverview_HidesInactiveParts(t *testing.T) {
	db := testDB(t)
	seedCatalog(t, db)
	seedStock(t, db, "WID-1", "MAIN", 10)
	db.Model(&inventoryEntity.Part{}).Where("sku = ?", "WID-1").Update("active", false)
	reads := NewReadsRepository(db)

	rows, err := reads.Overview("", "", false, 0)
	if err != nil {
		t.Fatalf("Overview: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("inactive part shown: %+v", rows)
	}

	rows, err = reads.Overview("", "", true, 0)
	if err != nil {
		t.Fatalf("Overview includeInactive: %v", err)
	}
	if len(rows) != 1 {
		t.Errorf("includeInactive rows = %d, want 1", len(rows))
	}
}

func TestItemDetail(t *testing.T) {
	db := testDB(t)
	seedCatalog(t, db)
	seedStock(t, db, "WID-1", "MAIN", 10)
	ledger := NewLedgerRepository(db)
	if _, err := ledger.CreateTransfer("2026-08-01", []TransferLine{
		{SKU: "WID-1", Qty: 3, FromLocation: "MAIN", ToLocation: "FLOOR"},
	}, "", ""); err != nil {
		t.Fatalf("CreateTransfer: %v", err)
	}
	reads := NewReadsRepository(db)

	detail, err := reads.ItemDetail("WID-1", 10)
	if err != nil {
		t.Fatalf("ItemDetail: %v", err)
	}
	if detail.Part.SKU != "WID-1" {
		t.Errorf("part = %+v", detail.Part)
	}
	if len(detail.Balances) != 2 {
		t.Errorf("balances = %d, want 2", len(detail.Balances))
	}
	if len(detail.Events) != 1 {
		t.Errorf("events = %d, want 1", len(detail.Events))
	}

	if _, err := reads.ItemDetail("NOPE", 10); !errors.Is(err, ErrUnknownSKU) {
		t.Errorf("missing sku: err = %v, want ErrUnknownSKU", err)
	}
}

func TestQueueSummary(t *testing.T) {
	db := testDB(t)
	seedCatalog(t, db)
	event := seedTransferEvent(t, db)
	queue := NewQueueRepository(db)
	if _, err := queue.ApplyResult(ApplyResultInput{EventID: event.EventID, Success: false, ErrorCode: "3120", ErrorMessage: "gone"}); err != nil {
		t.Fatalf("ApplyResult: %v", err)
	}
	seedStock(t, db, "GAD-2", "MAIN", 5)
	ledger := NewLedgerRepository(db)
	if _, err := ledger.CreateTransfer("2026-08-01", []TransferLine{
		{SKU: "GAD-2", Qty: 1, FromLocation: "MAIN", ToLocation: "FLOOR"},
	}, "", ""); err != nil {
		t.Fatalf("CreateTransfer: %v", err)
	}

	summary, err := NewReadsRepository(db).QueueSummary(5)
	if err != nil {
		t.Fatalf("QueueSummary: %v", err)
	}
	if summary.Counts[inventoryEntity.QBStatusError] != 1 {
		t.Errorf("error count = %d", summary.Counts[inventoryEntity.QBStatusError])
	}
	if summary.Counts[inventoryEntity.QBStatusPending] != 1 {
		t.Errorf("pending count = %d", summary.Counts[inventoryEntity.QBStatusPending])
	}
	if summary.EligibleNow != 1 {
		t.Errorf("eligible_now = %d, want 1", summary.EligibleNow)
	}
	if len(summary.RecentErrors) != 1 || summary.RecentErrors[0].EventID != event.EventID {
		t.Errorf("recent errors = %+v", summary.RecentErrors)
	}
}

func TestRecentEventsAndGetEvent(t *testing.T) {
	db := testDB(t)
	seedCatalog(t, db)
	first := seedTransferEvent(t, db)
	// Force distinct timestamps so ordering is deterministic.
	db.Model(&inventoryEntity.InventoryEvent{}).Where("event_id = ?", first.EventID).
		Update("created_at_ms", time.Now().UnixMilli()-10_000)
	ledger := NewLedgerRepository(db)
	second, err := ledger.CreateAdjustment("2026-08-02", "MAIN", "delta", []AdjustmentLine{
		{SKU: "WID-1", Qty: f(-1)},
	}, "", "", "")
	if err != nil {
		t.Fatalf("CreateAdjustment: %v", err)
	}

	events, err := NewReadsRepository(db).RecentEvents(10)
	if err != nil {
		t.Fatalf("RecentEvents: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events", len(events))
	}
	if events[0].EventID != second.EventID {
		t.Errorf("newest first: got %s", events[0].EventID)
	}
	if len(events[0].Lines) != 1 {
		t.Errorf("lines = %d", len(events[0].Lines))
	}

	got, err := NewReadsRepository(db).GetEvent(first.EventID)
	if err != nil {
		t.Fatalf("GetEvent: %v", err)
	}
	if got.EventID != first.EventID || len(got.Lines) != 1 {
		t.Errorf("GetEvent = %+v", got)
	}
	if _, err := NewReadsRepository(db).GetEvent("missing"); !errors.Is(err, ErrEventNotFound) {
		t.Errorf("missing event: err = %v", err)
	}
}

func TestLocationRepository(t *testing.T) {
	db := testDB(t)
	locations := NewLocationRepository(db)

	loc := &inventoryEntity.Location{Code: "MAIN", DisplayName: "Main Warehouse", Active: true}
	if err := locations.Upsert(loc); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	got, err := locations.GetByCode("MAIN")
	if err != nil {
		t.Fatalf("GetByCode: %v", err)
	}
	if got.QBSiteFullName != "Main Warehouse" {
		t.Errorf("site name = %q, want display-name default", got.QBSiteFullName)
	}

	// Upsert by code updates in place.
	if err := locations.Upsert(&inventoryEntity.Location{Code: "MAIN", DisplayName: "Main WH", Active: true, QBSiteFullName: "Main"}); err != nil {
		t.Fatalf("Upsert update: %v", err)
	}
	got, _ = locations.GetByCode("MAIN")
	if got.DisplayName != "Main WH" || got.QBSiteFullName != "Main" {
		t.Errorf("updated = %+v", got)
	}

	var count int64
	db.Model(&inventoryEntity.Location{}).Count(&count)
	if count != 1 {
		t.Errorf("location count = %d, want 1", count)
	}

	if _, err := locations.GetByCode("NOPE"); !errors.Is(err, ErrUnknownLocation) {
		t.Errorf("missing code: err = %v", err)
	}

	if err := locations.UpsertReasonAccount("DAMAGE", "Shrinkage"); err != nil {
		t.Fatalf("UpsertReasonAccount: %v", err)
	}
	if err := locations.UpsertReasonAccount("DAMAGE", "Shrink Expense"); err != nil {
		t.Fatalf("UpsertReasonAccount update: %v", err)
	}
	var ra inventoryEntity.ReasonAccount
	if err := db.Where("reason_code = ?", "DAMAGE").First(&ra).Error; err != nil {
		t.Fatalf("load reason account: %v", err)
	}
	if ra.QBAccountFullName != "Shrink Expense" {
		t.Errorf("account = %q", ra.QBAccountFullName)
	}
}
