package inventory

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	inventoryEntity "inventory.GO/model/entity/inventory"
)

// Validation errors. Callers branch on these to map to HTTP status codes.
var (
	ErrUnknownSKU        = errors.New("unknown sku")
	ErrUnknownLocation   = errors.New("unknown location")
	ErrInactiveLocation  = errors.New("inactive location")
	ErrInvalidQuantity   = errors.New("invalid quantity")
	ErrSameLocation      = errors.New("from and to location must differ")
	ErrInsufficientStock = errors.New("insufficient on-hand quantity")
	ErrInvalidMode       = errors.New("mode must be delta or set")
	ErrEventNotFound     = errors.New("event not found")
	ErrEventFrozen       = errors.New("event is in flight or applied and can no longer be voided")
	ErrNoLines           = errors.New("at least one line is required")
)

// negativeEpsilon: deltas that would land within this of zero are clamped
// to exactly 0 instead of rejected (matches historical ledger behavior for
// float drift).
const negativeEpsilon = 1e-9

// LedgerRepository owns all inventory writes: events, lines and balances.
type LedgerRepository struct {
	db *gorm.DB
}

func NewLedgerRepository(db *gorm.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// TransferLine is one line of a transfer request.
type TransferLine struct {
	SKU          string  `json:"sku"`
	Qty          float64 `json:"qty"`
	FromLocation string  `json:"fromLocation"`
	ToLocation   string  `json:"toLocation"`
}

// AdjustmentLine is one line of an adjustment request. In delta mode Qty
// is the signed change; in set mode NewQty is the target on-hand.
type AdjustmentLine struct {
	SKU        string   `json:"sku"`
	Qty        *float64 `json:"qty,omitempty"`
	NewQty     *float64 `json:"newQty,omitempty"`
	ReasonCode string   `json:"reasonCode,omitempty"`
}

// lockBalance loads (creating if absent) the balance row for (sku, loc)
// with a row lock on engines that support it. This is the single choke
// point for all quantity reads that precede a write.
func lockBalance(tx *gorm.DB, sku string, locationID uint) (*inventoryEntity.Balance, error) {
	q := tx
	if tx.Dialector.Name() == "mysql" {
		q = tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var bal inventoryEntity.Balance
	err := q.Where("sku = ? AND location_id = ?", sku, locationID).First(&bal).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		bal = inventoryEntity.Balance{SKU: sku, LocationID: locationID}
		if err := tx.Create(&bal).Error; err != nil {
			return nil, err
		}
		return &bal, nil
	}
	if err != nil {
		return nil, err
	}
	return &bal, nil
}

// applyBalanceDelta mutates one balance row inside the caller's
// transaction, enforcing the non-negativity invariant.
func applyBalanceDelta(tx *gorm.DB, sku string, locationID uint, delta float64) error {
	bal, err := lockBalance(tx, sku, locationID)
	if err != nil {
		return err
	}
	next := bal.OnHand + delta
	if next < 0 {
		if next > -negativeEpsilon {
			next = 0
		} else {
			return fmt.Errorf("%w: sku=%s location=%d on_hand=%v delta=%v", ErrInsufficientStock, sku, locationID, bal.OnHand, delta)
		}
	}
	bal.OnHand = RoundQty(next)
	bal.Available = RoundQty(bal.OnHand - bal.Reserved)
	return tx.Model(&inventoryEntity.Balance{}).
		Where("balance_id = ?", bal.BalanceID).
		Updates(map[string]interface{}{"on_hand": bal.OnHand, "available": bal.Available}).Error
}

func (r *LedgerRepository) partBySKU(tx *gorm.DB, sku string) (*inventoryEntity.Part, error) {
	var part inventoryEntity.Part
	err := tx.Where("sku = ?", sku).First(&part).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSKU, sku)
	}
	if err != nil {
		return nil, err
	}
	return &part, nil
}

func (r *LedgerRepository) activeLocationByCode(tx *gorm.DB, code string) (*inventoryEntity.Location, error) {
	var loc inventoryEntity.Location
	err := tx.Where("code = ?", code).First(&loc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownLocation, code)
	}
	if err != nil {
		return nil, err
	}
	if !loc.Active {
		return nil, fmt.Errorf("%w: %s", ErrInactiveLocation, code)
	}
	return &loc, nil
}

// CreateTransfer appends an immutable transfer event, applies the balance
// deltas and enqueues the event for QuickBooks. The whole operation is one
// transaction: any validation failure leaves no partial writes.
func (r *LedgerRepository) CreateTransfer(effectiveDate string, lines []TransferLine, memo, actor string) (*inventoryEntity.InventoryEvent, error) {
	if len(lines) == 0 {
		return nil, ErrNoLines
	}
	if strings.TrimSpace(effectiveDate) == "" {
		return nil, errors.New("effectiveDate is required")
	}

	eventID := uuid.NewString()
	event := inventoryEntity.InventoryEvent{
		EventID:        eventID,
		EventType:      inventoryEntity.EventTypeTransfer,
		Status:         inventoryEntity.StatusCommitted,
		EffectiveDate:  effectiveDate,
		CreatedBy:      actor,
		Memo:           memo,
		QBStatus:       inventoryEntity.QBStatusPending,
		IdempotencyKey: eventID,
	}

	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&event).Error; err != nil {
			return err
		}
		for _, line := range lines {
			if line.Qty <= 0 {
				return fmt.Errorf("%w: transfer qty must be > 0, got %v (sku=%s)", ErrInvalidQuantity, line.Qty, line.SKU)
			}
			if line.FromLocation == line.ToLocation {
				return fmt.Errorf("%w: %s", ErrSameLocation, line.FromLocation)
			}
			if _, err := r.partBySKU(tx, line.SKU); err != nil {
				return err
			}
			from, err := r.activeLocationByCode(tx, line.FromLocation)
			if err != nil {
				return err
			}
			to, err := r.activeLocationByCode(tx, line.ToLocation)
			if err != nil {
				return err
			}

			fromID, toID := from.LocationID, to.LocationID
			row := inventoryEntity.EventLine{
				EventID:        eventID,
				SKU:            line.SKU,
				Qty:            line.Qty,
				FromLocationID: &fromID,
				ToLocationID:   &toID,
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
			if err := applyBalanceDelta(tx, line.SKU, fromID, -line.Qty); err != nil {
				return err
			}
			if err := applyBalanceDelta(tx, line.SKU, toID, line.Qty); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// CreateAdjustment appends an immutable adjustment event at one location.
// Delta mode applies a signed non-zero change; set mode forces on-hand to
// an explicit target and records both the computed delta and the target.
func (r *LedgerRepository) CreateAdjustment(effectiveDate, locationCode, mode string, lines []AdjustmentLine, memo, actor, reasonCode string) (*inventoryEntity.InventoryEvent, error) {
	if len(lines) == 0 {
		return nil, ErrNoLines
	}
	if mode != inventoryEntity.AdjustmentModeDelta && mode != inventoryEntity.AdjustmentModeSet {
		return nil, ErrInvalidMode
	}
	if strings.TrimSpace(effectiveDate) == "" {
		return nil, errors.New("effectiveDate is required")
	}

	eventID := uuid.NewString()
	event := inventoryEntity.InventoryEvent{
		EventID:        eventID,
		EventType:      inventoryEntity.EventTypeAdjustment,
		Status:         inventoryEntity.StatusCommitted,
		EffectiveDate:  effectiveDate,
		Mode:           mode,
		ReasonCode:     reasonCode,
		CreatedBy:      actor,
		Memo:           memo,
		QBStatus:       inventoryEntity.QBStatusPending,
		IdempotencyKey: eventID,
	}

	err := r.db.Transaction(func(tx *gorm.DB) error {
		loc, err := r.activeLocationByCode(tx, locationCode)
		if err != nil {
			return err
		}
		if err := tx.Create(&event).Error; err != nil {
			return err
		}
		locID := loc.LocationID
		for _, line := range lines {
			if _, err := r.partBySKU(tx, line.SKU); err != nil {
				return err
			}

			var delta float64
			var newQty *float64
			switch mode {
			case inventoryEntity.AdjustmentModeDelta:
				if line.Qty == nil || *line.Qty == 0 {
					return fmt.Errorf("%w: delta adjustment needs a non-zero qty (sku=%s)", ErrInvalidQuantity, line.SKU)
				}
				delta = *line.Qty
			case inventoryEntity.AdjustmentModeSet:
				if line.NewQty == nil || *line.NewQty < 0 {
					return fmt.Errorf("%w: set adjustment needs newQty >= 0 (sku=%s)", ErrInvalidQuantity, line.SKU)
				}
				bal, err := lockBalance(tx, line.SKU, locID)
				if err != nil {
					return err
				}
				delta = *line.NewQty - bal.OnHand
				target := *line.NewQty
				newQty = &target
			}

			row := inventoryEntity.EventLine{
				EventID:    eventID,
				SKU:        line.SKU,
				Qty:        delta,
				LocationID: &locID,
				NewQty:     newQty,
				ReasonCode: line.ReasonCode,
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
			if delta != 0 {
				if err := applyBalanceDelta(tx, line.SKU, locID, delta); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// VoidEvent reverses a committed event by replaying every line with
// inverted sign, then freezes it out of the sync queue. Once QuickBooks
// has started or finished processing the event it can no longer be voided;
// correction requires a new compensating event. Voiding an already-voided
// event is a no-op that returns the current state.
func (r *LedgerRepository) VoidEvent(eventID string) (*inventoryEntity.InventoryEvent, error) {
	var event inventoryEntity.InventoryEvent
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("event_id = ?", eventID).First(&event).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrEventNotFound
			}
			return err
		}
		if event.Status == inventoryEntity.StatusVoided {
			return nil
		}
		if event.QBStatus == inventoryEntity.QBStatusInFlight || event.QBStatus == inventoryEntity.QBStatusApplied {
			return fmt.Errorf("%w: %s (qb_status=%s)", ErrEventFrozen, eventID, event.QBStatus)
		}

		var lines []inventoryEntity.EventLine
		if err := tx.Where("event_id = ?", eventID).Find(&lines).Error; err != nil {
			return err
		}
		for _, line := range lines {
			switch event.EventType {
			case inventoryEntity.EventTypeTransfer:
				// Swap direction: add back at from, remove at to.
				if err := applyBalanceDelta(tx, line.SKU, *line.ToLocationID, -line.Qty); err != nil {
					return err
				}
				if err := applyBalanceDelta(tx, line.SKU, *line.FromLocationID, line.Qty); err != nil {
					return err
				}
			case inventoryEntity.EventTypeAdjustment:
				if line.Qty != 0 {
					if err := applyBalanceDelta(tx, line.SKU, *line.LocationID, -line.Qty); err != nil {
						return err
					}
				}
			}
		}

		event.Status = inventoryEntity.StatusVoided
		event.QBStatus = inventoryEntity.QBStatusNotReady
		event.LastErrorCode = inventoryEntity.ErrorCodeVoided
		event.LastErrorMessage = "event voided before sync"
		return tx.Model(&inventoryEntity.InventoryEvent{}).
			Where("event_id = ?", eventID).
			Updates(map[string]interface{}{
				"status":             event.Status,
				"qb_status":          event.QBStatus,
				"last_error_code":    event.LastErrorCode,
				"last_error_message": event.LastErrorMessage,
			}).Error
	})
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// RoundQty normalizes a quantity to 4 decimal places, the precision the
// balance columns store.
func RoundQty(v float64) float64 {
	return math.Round(v*10000) / 10000
}
