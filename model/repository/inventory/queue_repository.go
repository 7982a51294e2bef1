package inventory

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	inventoryEntity "inventory.GO/model/entity/inventory"
)

// MaxRetries caps the retry ladder; after the 10th failure the event is
// frozen in error until a manual retry.
const MaxRetries = 10

// retryDelaysSeconds is the stepped backoff ladder, constant at the last
// step once exceeded.
var retryDelaysSeconds = []int64{60, 300, 900, 3600}

// nonRetryableCodes are QuickBooks structural rejections: retrying the
// same request can never succeed. 3100 = duplicate name, 3120 = object
// not found, 3140/3170/3175/3176/3180 = invalid or unusable references.
// BUILD_ERROR marks bridge-side hydration failures.
var nonRetryableCodes = map[string]bool{
	"3100":        true,
	"3120":        true,
	"3140":        true,
	"3170":        true,
	"3175":        true,
	"3176":        true,
	"3180":        true,
	"BUILD_ERROR": true,
}

var (
	ErrNotClaimable  = errors.New("event is not claimable")
	ErrNotRetryable  = errors.New("event is not in error state")
	ErrUnknownTicket = errors.New("unknown session ticket")
)

// RetryDelaySeconds returns the ladder delay for the given retry count
// (1-based).
func RetryDelaySeconds(retryCount int) int64 {
	idx := retryCount - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(retryDelaysSeconds) {
		idx = len(retryDelaysSeconds) - 1
	}
	return retryDelaysSeconds[idx]
}

// IsRetryableCode reports whether a QuickBooks status code is worth
// retrying. Unknown codes default to retryable.
func IsRetryableCode(code string) bool {
	return !nonRetryableCodes[code]
}

// QueueRepository owns the per-event sync state machine:
// not_ready -> pending -> in_flight -> applied | error.
type QueueRepository struct {
	db  *gorm.DB
	now func() int64
}

func NewQueueRepository(db *gorm.DB) *QueueRepository {
	return &QueueRepository{db: db, now: func() int64 { return time.Now().UnixMilli() }}
}

// WithClock overrides the clock (tests).
func (r *QueueRepository) WithClock(now func() int64) *QueueRepository {
	r.now = now
	return r
}

// HydratedLine carries everything the bridge needs to render one qbXML
// line without further lookups.
type HydratedLine struct {
	SKU            string   `json:"sku"`
	Qty            float64  `json:"qty"`
	NewQty         *float64 `json:"newQty,omitempty"`
	QBItemFullName string   `json:"qbItemFullName"`

	FromSiteFullName string `json:"fromSiteFullName,omitempty"`
	ToSiteFullName   string `json:"toSiteFullName,omitempty"`
	SiteFullName     string `json:"siteFullName,omitempty"`

	QBAccountFullName string `json:"qbAccountFullName,omitempty"`

	// Part defaults, used when auto-creating the item in QuickBooks.
	IncomeAccountFullName string   `json:"itemIncomeAccountFullName,omitempty"`
	CogsAccountFullName   string   `json:"itemCogsAccountFullName,omitempty"`
	AssetAccountFullName  string   `json:"itemAssetAccountFullName,omitempty"`
	SalesDesc             string   `json:"itemSalesDescription,omitempty"`
	PurchaseDesc          string   `json:"itemPurchaseDescription,omitempty"`
	SalesPrice            *float64 `json:"itemSalesPrice,omitempty"`
	PurchaseCost          *float64 `json:"itemPurchaseCost,omitempty"`
}

// HydratedEvent is one queue entry ready for request building.
type HydratedEvent struct {
	EventID        string         `json:"eventId"`
	EventType      string         `json:"eventType"`
	EffectiveDate  string         `json:"effectiveDate"`
	CreatedBy      string         `json:"createdBy,omitempty"`
	Memo           string         `json:"memo,omitempty"`
	IdempotencyKey string         `json:"idempotencyKey"`
	QBTxnType      string         `json:"qbTxnType"`
	Lines          []HydratedLine `json:"lines"`
}

func txnTypeForEvent(eventType string) string {
	if eventType == inventoryEntity.EventTypeTransfer {
		return "TransferInventoryAdd"
	}
	return "InventoryAdjustmentAdd"
}

// NextEligible returns up to limit committed events with qb_status pending
// and retry_at <= now, oldest first, fully hydrated with item/site/account
// lookups. Claiming is a separate step. An event whose lookups fail (a Part
// or Location row removed after the event was committed) is frozen in error
// with BUILD_ERROR and skipped, so one unbuildable event cannot stall the
// rest of the queue.
func (r *QueueRepository) NextEligible(nowMs int64, limit int) ([]HydratedEvent, error) {
	if limit <= 0 {
		limit = 1
	}
	var events []inventoryEntity.InventoryEvent
	err := r.db.
		Where("qb_status = ? AND status = ? AND retry_at_ms <= ?",
			inventoryEntity.QBStatusPending, inventoryEntity.StatusCommitted, nowMs).
		Order("created_at_ms ASC, event_id ASC").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, err
	}

	out := make([]HydratedEvent, 0, len(events))
	for _, ev := range events {
		hydrated, hydrateErr := r.hydrate(&ev)
		if hydrateErr != nil {
			if _, applyErr := r.ApplyResult(ApplyResultInput{
				EventID:      ev.EventID,
				Success:      false,
				ErrorCode:    "BUILD_ERROR",
				ErrorMessage: hydrateErr.Error(),
			}); applyErr != nil {
				return nil, applyErr
			}
			continue
		}
		out = append(out, *hydrated)
	}
	return out, nil
}

func (r *QueueRepository) hydrate(ev *inventoryEntity.InventoryEvent) (*HydratedEvent, error) {
	var lines []inventoryEntity.EventLine
	if err := r.db.Where("event_id = ?", ev.EventID).Order("line_id ASC").Find(&lines).Error; err != nil {
		return nil, err
	}

	out := &HydratedEvent{
		EventID:        ev.EventID,
		EventType:      ev.EventType,
		EffectiveDate:  ev.EffectiveDate,
		CreatedBy:      ev.CreatedBy,
		Memo:           ev.Memo,
		IdempotencyKey: ev.IdempotencyKey,
		QBTxnType:      txnTypeForEvent(ev.EventType),
	}

	locNames := map[uint]string{}
	siteName := func(id *uint) (string, error) {
		if id == nil {
			return "", nil
		}
		if name, ok := locNames[*id]; ok {
			return name, nil
		}
		var loc inventoryEntity.Location
		if err := r.db.First(&loc, "location_id = ?", *id).Error; err != nil {
			return "", fmt.Errorf("hydrate event %s: location %d: %w", ev.EventID, *id, err)
		}
		locNames[*id] = loc.QBSiteFullName
		return loc.QBSiteFullName, nil
	}

	for _, line := range lines {
		var part inventoryEntity.Part
		if err := r.db.Where("sku = ?", line.SKU).First(&part).Error; err != nil {
			return nil, fmt.Errorf("hydrate event %s: sku %s: %w", ev.EventID, line.SKU, err)
		}

		itemName := part.QBItemFullName
		if itemName == "" {
			itemName = line.SKU
		}

		hl := HydratedLine{
			SKU:                   line.SKU,
			Qty:                   line.Qty,
			NewQty:                line.NewQty,
			QBItemFullName:        itemName,
			IncomeAccountFullName: part.IncomeAccountFullName,
			CogsAccountFullName:   part.CogsAccountFullName,
			AssetAccountFullName:  part.AssetAccountFullName,
			SalesDesc:             part.SalesDescription,
			PurchaseDesc:          part.PurchaseDescription,
			SalesPrice:            part.SalesPrice,
			PurchaseCost:          part.PurchaseCost,
		}

		var err error
		if hl.FromSiteFullName, err = siteName(line.FromLocationID); err != nil {
			return nil, err
		}
		if hl.ToSiteFullName, err = siteName(line.ToLocationID); err != nil {
			return nil, err
		}
		if hl.SiteFullName, err = siteName(line.LocationID); err != nil {
			return nil, err
		}

		// Reason code resolution: line reason overrides the event default;
		// mapped account falls back to the part's COGS account.
		reason := line.ReasonCode
		if reason == "" {
			reason = ev.ReasonCode
		}
		if reason != "" {
			var ra inventoryEntity.ReasonAccount
			err := r.db.Where("reason_code = ?", reason).First(&ra).Error
			if err == nil {
				hl.QBAccountFullName = ra.QBAccountFullName
			} else if !errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, err
			}
		}
		if hl.QBAccountFullName == "" {
			hl.QBAccountFullName = part.CogsAccountFullName
		}

		out.Lines = append(out.Lines, hl)
	}
	return out, nil
}

// Claim transitions pending|in_flight -> in_flight for the given ticket
// and touches the session heartbeat. Re-claiming an in-flight event is
// allowed: the idempotency key is stable, so a poller retry after a
// transport failure cannot create a duplicate QuickBooks transaction.
// Stale claims fail closed via the status re-check inside the update.
func (r *QueueRepository) Claim(eventID, ticket string) error {
	nowMs := r.now()
	return r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&inventoryEntity.InventoryEvent{}).
			Where("event_id = ? AND status = ? AND qb_status IN ?",
				eventID, inventoryEntity.StatusCommitted,
				[]string{inventoryEntity.QBStatusPending, inventoryEntity.QBStatusInFlight}).
			Update("qb_status", inventoryEntity.QBStatusInFlight)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var ev inventoryEntity.InventoryEvent
			if err := tx.Where("event_id = ?", eventID).First(&ev).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrEventNotFound
				}
				return err
			}
			return fmt.Errorf("%w: %s (status=%s qb_status=%s)", ErrNotClaimable, eventID, ev.Status, ev.QBStatus)
		}

		session := inventoryEntity.SyncSession{
			Ticket:          ticket,
			StartedAtMs:     nowMs,
			LastSeenAtMs:    nowMs,
			InFlightEventID: eventID,
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "ticket"}},
			DoUpdates: clause.AssignmentColumns([]string{"last_seen_at_ms", "in_flight_event_id"}),
		}).Create(&session).Error
	})
}

// ApplyResultInput carries the outcome of one QuickBooks round trip.
type ApplyResultInput struct {
	EventID      string
	Ticket       string
	Success      bool
	QBTxnID      string
	QBTxnType    string
	ErrorCode    string
	ErrorMessage string
	// Retryable overrides the code lookup when non-nil.
	Retryable *bool
}

// ApplyResult records a sync outcome: success moves the event to applied;
// failure walks the retry ladder or freezes the event in error.
func (r *QueueRepository) ApplyResult(in ApplyResultInput) (*inventoryEntity.InventoryEvent, error) {
	nowMs := r.now()
	var event inventoryEntity.InventoryEvent
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("event_id = ?", in.EventID).First(&event).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrEventNotFound
			}
			return err
		}

		updates := map[string]interface{}{}
		if in.Success {
			event.QBStatus = inventoryEntity.QBStatusApplied
			event.QBTxnID = in.QBTxnID
			if in.QBTxnType != "" {
				event.QBTxnType = in.QBTxnType
			}
			event.LastErrorCode = ""
			event.LastErrorMessage = ""
			updates = map[string]interface{}{
				"qb_status":          event.QBStatus,
				"qb_txn_id":          event.QBTxnID,
				"qb_txn_type":        event.QBTxnType,
				"last_error_code":    "",
				"last_error_message": "",
			}
		} else {
			event.RetryCount++
			retryable := IsRetryableCode(in.ErrorCode)
			if in.Retryable != nil {
				retryable = *in.Retryable
			}
			event.LastErrorCode = in.ErrorCode
			event.LastErrorMessage = in.ErrorMessage
			if in.QBTxnType != "" {
				event.QBTxnType = in.QBTxnType
			}
			if retryable && event.RetryCount < MaxRetries {
				event.QBStatus = inventoryEntity.QBStatusPending
				event.RetryAtMs = nowMs + RetryDelaySeconds(event.RetryCount)*1000
			} else {
				event.QBStatus = inventoryEntity.QBStatusError
			}
			updates = map[string]interface{}{
				"qb_status":          event.QBStatus,
				"retry_count":        event.RetryCount,
				"retry_at_ms":        event.RetryAtMs,
				"qb_txn_type":        event.QBTxnType,
				"last_error_code":    event.LastErrorCode,
				"last_error_message": event.LastErrorMessage,
			}
		}
		if err := tx.Model(&inventoryEntity.InventoryEvent{}).
			Where("event_id = ?", in.EventID).Updates(updates).Error; err != nil {
			return err
		}

		if in.Ticket != "" {
			sessUpdates := map[string]interface{}{
				"last_seen_at_ms":    nowMs,
				"in_flight_event_id": "",
			}
			if !in.Success {
				sessUpdates["last_error"] = in.ErrorMessage
			}
			if err := tx.Model(&inventoryEntity.SyncSession{}).
				Where("ticket = ?", in.Ticket).Updates(sessUpdates).Error; err != nil {
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

// ManualRetry re-enqueues a terminally failed event. The retry counter is
// preserved so the exhausted ladder stays visible; retry_at is now, so the
// event is immediately eligible.
func (r *QueueRepository) ManualRetry(eventID string) (*inventoryEntity.InventoryEvent, error) {
	nowMs := r.now()
	var event inventoryEntity.InventoryEvent
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("event_id = ?", eventID).First(&event).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrEventNotFound
			}
			return err
		}
		if event.QBStatus != inventoryEntity.QBStatusError {
			return fmt.Errorf("%w: %s (qb_status=%s)", ErrNotRetryable, eventID, event.QBStatus)
		}
		event.QBStatus = inventoryEntity.QBStatusPending
		event.RetryAtMs = nowMs
		event.LastErrorCode = ""
		event.LastErrorMessage = ""
		return tx.Model(&inventoryEntity.InventoryEvent{}).
			Where("event_id = ?", eventID).
			Updates(map[string]interface{}{
				"qb_status":          event.QBStatus,
				"retry_at_ms":        event.RetryAtMs,
				"last_error_code":    "",
				"last_error_message": "",
			}).Error
	})
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// PendingCount reports how many committed events are eligible now; the
// bridge uses it to decide the QBWC progress percentage.
func (r *QueueRepository) PendingCount(nowMs int64) (int64, error) {
	var count int64
	err := r.db.Model(&inventoryEntity.InventoryEvent{}).
		Where("qb_status = ? AND status = ? AND retry_at_ms <= ?",
			inventoryEntity.QBStatusPending, inventoryEntity.StatusCommitted, nowMs).
		Count(&count).Error
	return count, err
}
