package inventory

import (
	"time"

	"gorm.io/gorm"

	inventoryEntity "inventory.GO/model/entity/inventory"
)

// ReadsRepository serves the dashboard read surface. Pure aggregation over
// the ledger tables, no state of its own.
type ReadsRepository struct {
	db  *gorm.DB
	now func() int64
}

func NewReadsRepository(db *gorm.DB) *ReadsRepository {
	return &ReadsRepository{db: db, now: func() int64 { return time.Now().UnixMilli() }}
}

func (r *ReadsRepository) WithClock(now func() int64) *ReadsRepository {
	r.now = now
	return r
}

// OverviewRow is one SKU/location balance with catalog context.
type OverviewRow struct {
	SKU          string  `json:"sku"`
	Description  string  `json:"description,omitempty"`
	LocationCode string  `json:"location_code"`
	LocationName string  `json:"location_name"`
	OnHand       float64 `json:"on_hand"`
	Reserved     float64 `json:"reserved"`
	Available    float64 `json:"available"`
}

// Overview lists balances filtered by SKU/description search and location
// code. Inactive parts are hidden unless includeInactive is set.
func (r *ReadsRepository) Overview(search, locationCode string, includeInactive bool, limit int) ([]OverviewRow, error) {
	if limit <= 0 || limit > 1000 {
		limit = 200
	}
	q := r.db.Table("inventory_balance AS b").
		Select(`b.sku, p.description, l.code AS location_code, l.display_name AS location_name,
			b.on_hand, b.reserved, b.available`).
		Joins("JOIN inventory_part p ON p.sku = b.sku").
		Joins("JOIN inventory_location l ON l.location_id = b.location_id")
	if search != "" {
		pattern := "%" + search + "%"
		q = q.Where("b.sku LIKE ? OR p.description LIKE ?", pattern, pattern)
	}
	if locationCode != "" {
		q = q.Where("l.code = ?", locationCode)
	}
	if !includeInactive {
		q = q.Where("p.active = ?", true)
	}
	var rows []OverviewRow
	err := q.Order("b.sku ASC, l.code ASC").Limit(limit).Scan(&rows).Error
	return rows, err
}

// ItemDetail bundles a part with its balances and recent events.
type ItemDetail struct {
	Part     inventoryEntity.Part             `json:"part"`
	Balances []OverviewRow                    `json:"balances"`
	Events   []inventoryEntity.InventoryEvent `json:"events"`
}

func (r *ReadsRepository) ItemDetail(sku string, eventLimit int) (*ItemDetail, error) {
	if eventLimit <= 0 || eventLimit > 500 {
		eventLimit = 50
	}
	var part inventoryEntity.Part
	if err := r.db.Where("sku = ?", sku).First(&part).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrUnknownSKU
		}
		return nil, err
	}

	detail := &ItemDetail{Part: part}
	err := r.db.Table("inventory_balance AS b").
		Select(`b.sku, l.code AS location_code, l.display_name AS location_name,
			b.on_hand, b.reserved, b.available`).
		Joins("JOIN inventory_location l ON l.location_id = b.location_id").
		Where("b.sku = ?", sku).
		Order("l.code ASC").
		Scan(&detail.Balances).Error
	if err != nil {
		return nil, err
	}

	var eventIDs []string
	err = r.db.Model(&inventoryEntity.EventLine{}).
		Distinct("event_id").
		Where("sku = ?", sku).
		Pluck("event_id", &eventIDs).Error
	if err != nil {
		return nil, err
	}
	if len(eventIDs) > 0 {
		err = r.db.Where("event_id IN ?", eventIDs).
			Order("created_at_ms DESC, event_id DESC").
			Limit(eventLimit).
			Find(&detail.Events).Error
		if err != nil {
			return nil, err
		}
	}
	return detail, nil
}

// QueueSummary reports the sync backlog by status plus the most recent
// failures.
type QueueSummary struct {
	Counts       map[string]int64                 `json:"counts"`
	EligibleNow  int64                            `json:"eligible_now"`
	RecentErrors []inventoryEntity.InventoryEvent `json:"recent_errors"`
}

func (r *ReadsRepository) QueueSummary(recentLimit int) (*QueueSummary, error) {
	if recentLimit <= 0 || recentLimit > 100 {
		recentLimit = 10
	}
	summary := &QueueSummary{Counts: map[string]int64{}}

	type statusCount struct {
		QBStatus string
		N        int64
	}
	var counts []statusCount
	err := r.db.Model(&inventoryEntity.InventoryEvent{}).
		Select("qb_status, COUNT(*) AS n").
		Where("status = ?", inventoryEntity.StatusCommitted).
		Group("qb_status").
		Scan(&counts).Error
	if err != nil {
		return nil, err
	}
	for _, c := range counts {
		summary.Counts[c.QBStatus] = c.N
	}

	err = r.db.Model(&inventoryEntity.InventoryEvent{}).
		Where("status = ? AND qb_status = ? AND retry_at_ms <= ?",
			inventoryEntity.StatusCommitted, inventoryEntity.QBStatusPending, r.now()).
		Count(&summary.EligibleNow).Error
	if err != nil {
		return nil, err
	}

	err = r.db.Where("qb_status = ?", inventoryEntity.QBStatusError).
		Order("created_at_ms DESC, event_id DESC").
		Limit(recentLimit).
		Find(&summary.RecentErrors).Error
	if err != nil {
		return nil, err
	}
	return summary, nil
}

// EventWithLines is an event joined with its lines for listing endpoints.
type EventWithLines struct {
	inventoryEntity.InventoryEvent
	Lines []inventoryEntity.EventLine `json:"lines"`
}

// RecentEvents lists the newest events with their lines, newest first.
func (r *ReadsRepository) RecentEvents(limit int) ([]EventWithLines, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	var events []inventoryEntity.InventoryEvent
	err := r.db.Order("created_at_ms DESC, event_id DESC").Limit(limit).Find(&events).Error
	if err != nil {
		return nil, err
	}
	out := make([]EventWithLines, 0, len(events))
	for _, ev := range events {
		var lines []inventoryEntity.EventLine
		if err := r.db.Where("event_id = ?", ev.EventID).Order("line_id ASC").Find(&lines).Error; err != nil {
			return nil, err
		}
		out = append(out, EventWithLines{InventoryEvent: ev, Lines: lines})
	}
	return out, nil
}

// GetEvent returns one event with lines.
func (r *ReadsRepository) GetEvent(eventID string) (*EventWithLines, error) {
	var ev inventoryEntity.InventoryEvent
	if err := r.db.Where("event_id = ?", eventID).First(&ev).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrEventNotFound
		}
		return nil, err
	}
	var lines []inventoryEntity.EventLine
	if err := r.db.Where("event_id = ?", ev.EventID).Order("line_id ASC").Find(&lines).Error; err != nil {
		return nil, err
	}
	return &EventWithLines{InventoryEvent: ev, Lines: lines}, nil
}
