package inventory

// SyncSession is one Web Connector polling session. At most one event is
// in flight per ticket. Sessions are ephemeral; a cron sweep removes stale
// rows but never releases the in-flight event (the retry ladder owns
// recovery).
type SyncSession struct {
	Ticket          string `gorm:"column:ticket;type:varchar(36);primaryKey" json:"ticket"`
	StartedAtMs     int64  `gorm:"column:started_at_ms;not null" json:"started_at_ms"`
	LastSeenAtMs    int64  `gorm:"column:last_seen_at_ms;not null;index" json:"last_seen_at_ms"`
	InFlightEventID string `gorm:"column:in_flight_event_id;type:varchar(36)" json:"in_flight_event_id,omitempty"`
	LastError       string `gorm:"column:last_error;type:varchar(1024)" json:"last_error,omitempty"`
}

func (SyncSession) TableName() string {
	return "inventory_sync_session"
}
