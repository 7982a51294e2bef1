package inventory

// Event types
const (
	EventTypeTransfer   = "transfer"
	EventTypeAdjustment = "adjustment"
)

// Event lifecycle statuses
const (
	StatusDraft     = "draft"
	StatusCommitted = "committed"
	StatusVoided    = "voided"
)

// QuickBooks sync statuses
const (
	QBStatusNotReady = "not_ready"
	QBStatusPending  = "pending"
	QBStatusInFlight = "in_flight"
	QBStatusApplied  = "applied"
	QBStatusError    = "error"
)

// Adjustment modes
const (
	AdjustmentModeDelta = "delta"
	AdjustmentModeSet   = "set"
)

// ErrorCodeVoided marks voided events so they are permanently excluded
// from the sync queue.
const ErrorCodeVoided = "VOIDED"

// InventoryEvent is one immutable business operation (transfer or
// adjustment). Only the sync-state fields and the voided transition are
// ever mutated after creation.
type InventoryEvent struct {
	EventID       string `gorm:"column:event_id;type:varchar(36);primaryKey" json:"event_id"`
	EventType     string `gorm:"column:event_type;type:varchar(16);not null" json:"event_type"`
	Status        string `gorm:"column:status;type:varchar(16);not null;index" json:"status"`
	EffectiveDate string `gorm:"column:effective_date;type:varchar(10);not null" json:"effective_date"`
	Mode          string `gorm:"column:mode;type:varchar(8)" json:"mode,omitempty"`
	ReasonCode    string `gorm:"column:reason_code;type:varchar(64)" json:"reason_code,omitempty"`
	CreatedBy     string `gorm:"column:created_by;type:varchar(128)" json:"created_by,omitempty"`
	Memo          string `gorm:"column:memo;type:varchar(1024)" json:"memo,omitempty"`
	CreatedAtMs   int64  `gorm:"column:created_at_ms;autoCreateTime:milli;index" json:"created_at_ms"`

	// Sync state group
	QBStatus         string `gorm:"column:qb_status;type:varchar(16);not null;index" json:"qb_status"`
	RetryCount       int    `gorm:"column:retry_count;not null;default:0" json:"retry_count"`
	RetryAtMs        int64  `gorm:"column:retry_at_ms;not null;default:0" json:"retry_at_ms"`
	IdempotencyKey   string `gorm:"column:idempotency_key;type:varchar(36);not null" json:"idempotency_key"`
	QBTxnID          string `gorm:"column:qb_txn_id;type:varchar(64)" json:"qb_txn_id,omitempty"`
	QBTxnType        string `gorm:"column:qb_txn_type;type:varchar(64)" json:"qb_txn_type,omitempty"`
	LastErrorCode    string `gorm:"column:last_error_code;type:varchar(64)" json:"last_error_code,omitempty"`
	LastErrorMessage string `gorm:"column:last_error_message;type:varchar(1024)" json:"last_error_message,omitempty"`
}

func (InventoryEvent) TableName() string {
	return "inventory_event"
}
