package inventory

// EventLine is one immutable line of an event: a signed quantity plus
// either a from/to location pair (transfer) or a single location with an
// optional set-to target quantity and reason code (adjustment).
type EventLine struct {
	LineID  uint   `gorm:"column:line_id;primaryKey;autoIncrement" json:"line_id,omitempty"`
	EventID string `gorm:"column:event_id;type:varchar(36);not null;index" json:"event_id"`
	SKU     string `gorm:"column:sku;type:varchar(64);not null;index" json:"sku"`

	// Signed quantity delta. For transfers this is the moved quantity
	// (positive); for adjustments the applied delta.
	Qty float64 `gorm:"column:qty;type:decimal(12,4);not null" json:"qty"`

	FromLocationID *uint `gorm:"column:from_location_id" json:"from_location_id,omitempty"`
	ToLocationID   *uint `gorm:"column:to_location_id" json:"to_location_id,omitempty"`
	LocationID     *uint `gorm:"column:location_id" json:"location_id,omitempty"`

	// NewQty is the set-mode target quantity, recorded for audit.
	NewQty     *float64 `gorm:"column:new_qty;type:decimal(12,4)" json:"new_qty,omitempty"`
	ReasonCode string   `gorm:"column:reason_code;type:varchar(64)" json:"reason_code,omitempty"`
}

func (EventLine) TableName() string {
	return "inventory_event_line"
}
