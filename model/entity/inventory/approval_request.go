package inventory

import "gorm.io/datatypes"

// Approval request statuses
const (
	ApprovalStatusPending    = "pending"
	ApprovalStatusInProgress = "in_progress"
	ApprovalStatusApproved   = "approved"
	ApprovalStatusRejected   = "rejected"
	ApprovalStatusError      = "error"
)

// Approval request actions
const (
	ApprovalActionTransfer   = "create_transfer"
	ApprovalActionAdjustment = "create_adjustment"
)

// ApprovalRequest parks a gated write until an admin decides on it. The
// original request payload is replayed verbatim on approval.
type ApprovalRequest struct {
	RequestID     string         `gorm:"column:request_id;type:varchar(36);primaryKey" json:"request_id"`
	Status        string         `gorm:"column:status;type:varchar(16);not null;index" json:"status"`
	Action        string         `gorm:"column:action;type:varchar(32);not null" json:"action"`
	Payload       datatypes.JSON `gorm:"column:payload" json:"payload"`
	Reason        string         `gorm:"column:reason;type:varchar(255)" json:"reason,omitempty"`
	RequestedBy   string         `gorm:"column:requested_by;type:varchar(128)" json:"requested_by"`
	RequestedAtMs int64          `gorm:"column:requested_at_ms;autoCreateTime:milli;index" json:"requested_at_ms"`
	DecidedBy     string         `gorm:"column:decided_by;type:varchar(128)" json:"decided_by,omitempty"`
	DecidedAtMs   int64          `gorm:"column:decided_at_ms" json:"decided_at_ms,omitempty"`
	DecisionNote  string         `gorm:"column:decision_note;type:varchar(1024)" json:"decision_note,omitempty"`

	ExecutionEventID string `gorm:"column:execution_event_id;type:varchar(36)" json:"execution_event_id,omitempty"`
	ExecutionError   string `gorm:"column:execution_error;type:varchar(1024)" json:"execution_error,omitempty"`
}

func (ApprovalRequest) TableName() string {
	return "inventory_approval_request"
}
