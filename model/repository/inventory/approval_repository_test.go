package inventory

import (
	"errors"
	"testing"
)

func TestApprovalRepository_Lifecycle(t *testing.T) {
	db := testDB(t)
	repo := NewApprovalRepository(db)

	payload := []byte(`{"lines":[{"sku":"WID-1","qty":50}]}`)
	req, err := repo.Create("create_transfer", payload, "large transfer", "alice")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if req.Status != "pending" || req.RequestID == "" {
		t.Fatalf("created request: %+v", req)
	}

	claimed, err := repo.Claim(req.RequestID, "bob")
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if claimed.Status != "in_progress" || claimed.DecidedBy != "bob" {
		t.Fatalf("claimed: %+v", claimed)
	}

	// A second approver loses the race.
	if _, err := repo.Claim(req.RequestID, "carol"); !errors.Is(err, ErrApprovalNotPending) {
		t.Fatalf("second claim err = %v", err)
	}

	done, err := repo.Finish(req.RequestID, "bob", "looks fine", "ev-1", "")
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if done.Status != "approved" || done.ExecutionEventID != "ev-1" || done.DecidedAtMs == 0 {
		t.Fatalf("finished: %+v", done)
	}
}

func TestApprovalRepository_FinishWithError(t *testing.T) {
	db := testDB(t)
	repo := NewApprovalRepository(db)

	req, err := repo.Create("create_adjustment", []byte(`{}`), "", "alice")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := repo.Claim(req.RequestID, "bob"); err != nil {
		t.Fatalf("Claim: %v", err)
	}
	done, err := repo.Finish(req.RequestID, "bob", "", "", "unknown sku: NOPE")
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if done.Status != "error" || done.ExecutionError == "" {
		t.Fatalf("finished: %+v", done)
	}
}

func TestApprovalRepository_Reject(t *testing.T) {
	db := testDB(t)
	repo := NewApprovalRepository(db)

	req, err := repo.Create("create_transfer", []byte(`{}`), "", "alice")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	rejected, err := repo.Reject(req.RequestID, "bob", "not needed")
	if err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if rejected.Status != "rejected" || rejected.DecisionNote != "not needed" {
		t.Fatalf("rejected: %+v", rejected)
	}

	// Rejecting again fails: no longer pending.
	if _, err := repo.Reject(req.RequestID, "bob", ""); !errors.Is(err, ErrApprovalNotPending) {
		t.Fatalf("double reject err = %v", err)
	}
	if _, err := repo.Reject("missing", "bob", ""); !errors.Is(err, ErrApprovalNotFound) {
		t.Fatalf("missing reject err = %v", err)
	}
}

func TestApprovalRepository_List(t *testing.T) {
	db := testDB(t)
	clock := int64(1000)
	repo := NewApprovalRepository(db).WithClock(func() int64 { clock += 1000; return clock })

	a, _ := repo.Create("create_transfer", []byte(`{}`), "", "alice")
	b, _ := repo.Create("create_transfer", []byte(`{}`), "", "alice")
	c, _ := repo.Create("create_adjustment", []byte(`{}`), "", "alice")
	if _, err := repo.Reject(c.RequestID, "bob", ""); err != nil {
		t.Fatalf("Reject: %v", err)
	}

	pending, err := repo.List("pending", 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("pending = %d, want 2", len(pending))
	}
	// Newest first.
	if pending[0].RequestID != b.RequestID || pending[1].RequestID != a.RequestID {
		t.Errorf("order: %s, %s", pending[0].RequestID, pending[1].RequestID)
	}

	all, err := repo.List("all", 10)
	if err != nil {
		t.Fatalf("List all: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("all = %d, want 3", len(all))
	}

	limited, err := repo.List("all", 1)
	if err != nil {
		t.Fatalf("List limited: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("limited = %d, want 1", len(limited))
	}
}
