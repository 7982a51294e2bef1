package inventory

import (
	"errors"
	"testing"

	inventoryEntity "inventory.GO/model/entity/inventory"
)

func TestCreateTransfer_MovesStock(t *testing.T) {
	db := testDB(t)
	seedCatalog(t, db)
	seedStock(t, db, "WID-1", "MAIN", 10)

	repo := NewLedgerRepository(db)
	event, err := repo.CreateTransfer("2026-08-01", []TransferLine{
		{SKU: "WID-1", Qty: 4, FromLocation: "MAIN", ToLocation: "FLOOR"},
	}, "restock", "alice")
	if err != nil {
		t.Fatalf("CreateTransfer: %v", err)
	}

	if event.Status != inventoryEntity.StatusCommitted {
		t.Errorf("status = %q, want committed", event.Status)
	}
	if event.QBStatus != inventoryEntity.QBStatusPending {
		t.Errorf("qb_status = %q, want pending", event.QBStatus)
	}
	if event.IdempotencyKey != event.EventID {
		t.Errorf("idempotency key %q != event id %q", event.IdempotencyKey, event.EventID)
	}

	if got := balanceAt(t, db, "WID-1", "MAIN").OnHand; got != 6 {
		t.Errorf("MAIN on_hand = %v, want 6", got)
	}
	to := balanceAt(t, db, "WID-1", "FLOOR")
	if to.OnHand != 4 {
		t.Errorf("FLOOR on_hand = %v, want 4", to.OnHand)
	}
	if to.Available != 4 {
		t.Errorf("FLOOR available = %v, want 4", to.Available)
	}
}

func TestCreateTransfer_InsufficientStockRollsBack(t *testing.T) {
	db := testDB(t)
	seedCatalog(t, db)
	seedStock(t, db, "WID-1", "MAIN", 3)

	repo := NewLedgerRepository(db)
	_, err := repo.CreateTransfer("2026-08-01", []TransferLine{
		{SKU: "WID-1", Qty: 2, FromLocation: "MAIN", ToLocation: "FLOOR"},
		{SKU: "WID-1", Qty: 5, FromLocation: "MAIN", ToLocation: "FLOOR"},
	}, "", "")
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("err = %v, want ErrInsufficientStock", err)
	}

	// First line must have been rolled back with the failing one.
	if got := balanceAt(t, db, "WID-1", "MAIN").OnHand; got != 3 {
		t.Errorf("MAIN on_hand = %v, want 3 after rollback", got)
	}
	var events int64
	db.Model(&inventoryEntity.InventoryEvent{}).Count(&events)
	if events != 0 {
		t.Errorf("event count = %d, want 0 after rollback", events)
	}
}

func TestCreateTransfer_Validation(t *testing.T) {
	db := testDB(t)
	seedCatalog(t, db)
	seedStock(t, db, "WID-1", "MAIN", 10)
	repo := NewLedgerRepository(db)

	cases := []struct {
		name  string
		lines []TransferLine
		want  error
	}{
		{"no lines", nil, ErrNoLines},
		{"zero qty", []TransferLine{{SKU: "WID-1", Qty: 0, FromLocation: "MAIN", ToLocation: "FLOOR"}}, ErrInvalidQuantity},
		{"negative qty", []TransferLine{{SKU: "WID-1", Qty: -2, FromLocation: "MAIN", ToLocation: "FLOOR"}}, ErrInvalidQuantity},
		{"same location", []TransferLine{{SKU: "WID-1", Qty: 1, FromLocation: "MAIN", ToLocation: "MAIN"}}, ErrSameLocation},
		{"unknown sku", []TransferLine{{SKU: "NOPE", Qty: 1, FromLocation: "MAIN", ToLocation: "FLOOR"}}, ErrUnknownSKU},
		{"unknown location", []TransferLine{{SKU: "WID-1", Qty: 1, FromLocation: "NOWHERE", ToLocation: "FLOOR"}}, ErrUnknownLocation},
		{"inactive location", []TransferLine{{SKU: "WID-1", Qty: 1, FromLocation: "MAIN", ToLocation: "OLD"}}, ErrInactiveLocation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := repo.CreateTransfer("2026-08-01", tc.lines, "", "")
			if !errors.Is(err, tc.want) {
				t.Errorf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestCreateAdjustment_DeltaMode(t *testing.T) {
	db := testDB(t)
	seedCatalog(t, db)
	seedStock(t, db, "WID-1", "MAIN", 10)
	repo := NewLedgerRepository(db)

	event, err := repo.CreateAdjustment("2026-08-01", "MAIN", "delta", []AdjustmentLine{
		{SKU: "WID-1", Qty: f(-3), ReasonCode: "DAMAGE"},
	}, "broken pallet", "bob", "")
	if err != nil {
		t.Fatalf("CreateAdjustment: %v", err)
	}
	if event.EventType != inventoryEntity.EventTypeAdjustment {
		t.Errorf("event_type = %q", event.EventType)
	}
	if got := balanceAt(t, db, "WID-1", "MAIN").OnHand; got != 7 {
		t.Errorf("on_hand = %v, want 7", got)
	}

	var line inventoryEntity.EventLine
	if err := db.Where("event_id = ?", event.EventID).First(&line).Error; err != nil {
		t.Fatalf("load line: %v", err)
	}
	if line.Qty != -3 || line.ReasonCode != "DAMAGE" {
		t.Errorf("line = %+v", line)
	}
}

func TestCreateAdjustment_SetMode(t *testing.T) {
	db := testDB(t)
	seedCatalog(t, db)
	seedStock(t, db, "WID-1", "MAIN", 10)
	repo := NewLedgerRepository(db)

	event, err := repo.CreateAdjustment("2026-08-01", "MAIN", "set", []AdjustmentLine{
		{SKU: "WID-1", NewQty: f(4)},
	}, "", "", "CYCLE_COUNT")
	if err != nil {
		t.Fatalf("CreateAdjustment: %v", err)
	}
	if got := balanceAt(t, db, "WID-1", "MAIN").OnHand; got != 4 {
		t.Errorf("on_hand = %v, want 4", got)
	}

	var line inventoryEntity.EventLine
	if err := db.Where("event_id = ?", event.EventID).First(&line).Error; err != nil {
		t.Fatalf("load line: %v", err)
	}
	if line.Qty != -6 {
		t.Errorf("recorded delta = %v, want -6", line.Qty)
	}
	if line.NewQty == nil || *line.NewQty != 4 {
		t.Errorf("recorded new_qty = %v, want 4", line.NewQty)
	}
}

func TestCreateAdjustment_SetModeCreatesBalanceRow(t *testing.T) {
	db := testDB(t)
	seedCatalog(t, db)
	repo := NewLedgerRepository(db)

	// No balance row for GAD-2 yet; set mode must treat on-hand as 0.
	_, err := repo.CreateAdjustment("2026-08-01", "FLOOR", "set", []AdjustmentLine{
		{SKU: "GAD-2", NewQty: f(12)},
	}, "", "", "")
	if err != nil {
		t.Fatalf("CreateAdjustment: %v", err)
	}
	if got := balanceAt(t, db, "GAD-2", "FLOOR").OnHand; got != 12 {
		t.Errorf("on_hand = %v, want 12", got)
	}
}

func TestCreateAdjustment_Validation(t *testing.T) {
	db := testDB(t)
	seedCatalog(t, db)
	repo := NewLedgerRepository(db)

	if _, err := repo.CreateAdjustment("2026-08-01", "MAIN", "wiggle", []AdjustmentLine{{SKU: "WID-1", Qty: f(1)}}, "", "", ""); !errors.Is(err, ErrInvalidMode) {
		t.Errorf("bad mode: err = %v, want ErrInvalidMode", err)
	}
	if _, err := repo.CreateAdjustment("2026-08-01", "MAIN", "delta", []AdjustmentLine{{SKU: "WID-1", Qty: f(0)}}, "", "", ""); !errors.Is(err, ErrInvalidQuantity) {
		t.Errorf("zero delta: err = %v, want ErrInvalidQuantity", err)
	}
	if _, err := repo.CreateAdjustment("2026-08-01", "MAIN", "set", []AdjustmentLine{{SKU: "WID-1", NewQty: f(-1)}}, "", "", ""); !errors.Is(err, ErrInvalidQuantity) {
		t.Errorf("negative target: err = %v, want ErrInvalidQuantity", err)
	}
	if _, err := repo.CreateAdjustment("2026-08-01", "OLD", "delta", []AdjustmentLine{{SKU: "WID-1", Qty: f(1)}}, "", "", ""); !errors.Is(err, ErrInactiveLocation) {
		t.Errorf("inactive location: err = %v, want ErrInactiveLocation", err)
	}
}

func TestVoidEvent_Transfer(t *testing.T) {
	db := testDB(t)
	seedCatalog(t, db)
	seedStock(t, db, "WID-1", "MAIN", 10)
	repo := NewLedgerRepository(db)

	event, err := repo.CreateTransfer("2026-08-01", []TransferLine{
		{SKU: "WID-1", Qty: 4, FromLocation: "MAIN", ToLocation: "FLOOR"},
	}, "", "")
	if err != nil {
		t.Fatalf("CreateTransfer: %v", err)
	}

	voided, err := repo.VoidEvent(event.EventID)
	if err != nil {
		t.Fatalf("VoidEvent: %v", err)
	}
	if voided.Status != inventoryEntity.StatusVoided {
		t.Errorf("status = %q, want voided", voided.Status)
	}
	if voided.QBStatus != inventoryEntity.QBStatusNotReady {
		t.Errorf("qb_status = %q, want not_ready", voided.QBStatus)
	}
	if voided.LastErrorCode != inventoryEntity.ErrorCodeVoided {
		t.Errorf("last_error_code = %q", voided.LastErrorCode)
	}
	if got := balanceAt(t, db, "WID-1", "MAIN").OnHand; got != 10 {
		t.Errorf("MAIN on_hand = %v, want 10 after void", got)
	}
	if got := balanceAt(t, db, "WID-1", "FLOOR").OnHand; got != 0 {
		t.Errorf("FLOOR on_hand = %v, want 0 after void", got)
	}

	// Voiding again is a no-op, not an error.
	again, err := repo.VoidEvent(event.EventID)
	if err != nil {
		t.Fatalf("VoidEvent twice: %v", err)
	}
	if again.Status != inventoryEntity.StatusVoided {
		t.Errorf("second void status = %q", again.Status)
	}
	if got := balanceAt(t, db, "WID-1", "MAIN").OnHand; got != 10 {
		t.Errorf("double void moved stock: MAIN on_hand = %v", got)
	}
}

func TestVoidEvent_FrozenOnceSynced(t *testing.T) {
	db := testDB(t)
	seedCatalog(t, db)
	seedStock(t, db, "WID-1", "MAIN", 10)
	repo := NewLedgerRepository(db)

	event, err := repo.CreateAdjustment("2026-08-01", "MAIN", "delta", []AdjustmentLine{
		{SKU: "WID-1", Qty: f(-1)},
	}, "", "", "")
	if err != nil {
		t.Fatalf("CreateAdjustment: %v", err)
	}

	for _, qbStatus := range []string{inventoryEntity.QBStatusInFlight, inventoryEntity.QBStatusApplied} {
		db.Model(&inventoryEntity.InventoryEvent{}).
			Where("event_id = ?", event.EventID).
			Update("qb_status", qbStatus)
		if _, err := repo.VoidEvent(event.EventID); !errors.Is(err, ErrEventFrozen) {
			t.Errorf("qb_status=%s: err = %v, want ErrEventFrozen", qbStatus, err)
		}
	}

	if _, err := repo.VoidEvent("no-such-event"); !errors.Is(err, ErrEventNotFound) {
		t.Errorf("missing event: err = %v, want ErrEventNotFound", err)
	}
}

func TestApplyBalanceDelta_EpsilonClamp(t *testing.T) {
	db := testDB(t)
	seedCatalog(t, db)
	seedStock(t, db, "WID-1", "MAIN", 0.3)
	repo := NewLedgerRepository(db)

	// Draining 0.3 in three 0.1 steps lands a hair below zero in binary
	// floats; the clamp must accept it and store exactly 0.
	for i := 0; i < 3; i++ {
		_, err := repo.CreateTransfer("2026-08-01", []TransferLine{
			{SKU: "WID-1", Qty: 0.1, FromLocation: "MAIN", ToLocation: "FLOOR"},
		}, "", "")
		if err != nil {
			t.Fatalf("CreateTransfer #%d: %v", i+1, err)
		}
	}
	if got := balanceAt(t, db, "WID-1", "MAIN").OnHand; got != 0 {
		t.Errorf("on_hand = %v, want exactly 0", got)
	}
}

func TestRoundQty(t *testing.T) {
	if got := RoundQty(1.00005); got != 1.0001 {
		t.Errorf("RoundQty(1.00005) = %v", got)
	}
	if got := RoundQty(2.5); got != 2.5 {
		t.Errorf("RoundQty(2.5) = %v", got)
	}
}

func TestAdjustment_StoredQuantitiesAreRounded(t *testing.T) {
	db := testDB(t)
	seedCatalog(t, db)
	seedStock(t, db, "WID-1", "MAIN", 0)
	ledger := NewLedgerRepository(db)

	// 0.1 is not exact in binary; ten deltas must still land on exactly 1.
	for i := 0; i < 10; i++ {
		if _, err := ledger.CreateAdjustment("2026-08-01", "MAIN", "delta", []AdjustmentLine{
			{SKU: "WID-1", Qty: f(0.1)},
		}, "", "", ""); err != nil {
			t.Fatalf("adjustment #%d: %v", i+1, err)
		}
	}
	if got := balanceAt(t, db, "WID-1", "MAIN").OnHand; got != 1 {
		t.Errorf("on_hand = %v, want exactly 1", got)
	}
}
