package inventory

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	inventoryEntity "inventory.GO/model/entity/inventory"
)

var (
	ErrApprovalNotFound   = errors.New("approval request not found")
	ErrApprovalNotPending = errors.New("approval request is not pending")
)

// ApprovalRepository stores parked writes waiting for an admin decision.
type ApprovalRepository struct {
	db  *gorm.DB
	now func() int64
}

func NewApprovalRepository(db *gorm.DB) *ApprovalRepository {
	return &ApprovalRepository{db: db, now: func() int64 { return time.Now().UnixMilli() }}
}

// WithClock overrides the time source. Tests only.
func (r *ApprovalRepository) WithClock(now func() int64) *ApprovalRepository {
	r.now = now
	return r
}

// Create parks a gated write and returns the new pending request.
func (r *ApprovalRepository) Create(action string, payload []byte, reason, requestedBy string) (*inventoryEntity.ApprovalRequest, error) {
	req := inventoryEntity.ApprovalRequest{
		RequestID:     uuid.NewString(),
		Status:        inventoryEntity.ApprovalStatusPending,
		Action:        action,
		Payload:       datatypes.JSON(payload),
		Reason:        reason,
		RequestedBy:   requestedBy,
		RequestedAtMs: r.now(),
	}
	if err := r.db.Create(&req).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *ApprovalRepository) Get(requestID string) (*inventoryEntity.ApprovalRequest, error) {
	var req inventoryEntity.ApprovalRequest
	err := r.db.Where("request_id = ?", requestID).First(&req).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrApprovalNotFound, requestID)
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// List returns requests with the given status ("all" for every status),
// newest first.
func (r *ApprovalRepository) List(status string, limit int) ([]inventoryEntity.ApprovalRequest, error) {
	if limit <= 0 {
		limit = 50
	}
	q := r.db.Model(&inventoryEntity.ApprovalRequest{})
	if status != "" && status != "all" {
		q = q.Where("status = ?", status)
	}
	var rows []inventoryEntity.ApprovalRequest
	err := q.Order("requested_at_ms DESC").Limit(limit).Find(&rows).Error
	return rows, err
}

// Claim moves a pending request to in_progress so concurrent approvers
// cannot execute it twice. Only one caller wins the transition.
func (r *ApprovalRepository) Claim(requestID, decidedBy string) (*inventoryEntity.ApprovalRequest, error) {
	req, err := r.Get(requestID)
	if err != nil {
		return nil, err
	}
	res := r.db.Model(&inventoryEntity.ApprovalRequest{}).
		Where("request_id = ? AND status = ?", requestID, inventoryEntity.ApprovalStatusPending).
		Updates(map[string]interface{}{
			"status":     inventoryEntity.ApprovalStatusInProgress,
			"decided_by": decidedBy,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: %s (status=%s)", ErrApprovalNotPending, requestID, req.Status)
	}
	return r.Get(requestID)
}

// Finish records the outcome of an approved execution. An empty
// executionError marks the request approved, otherwise error.
func (r *ApprovalRepository) Finish(requestID, decidedBy, note, eventID, executionError string) (*inventoryEntity.ApprovalRequest, error) {
	status := inventoryEntity.ApprovalStatusApproved
	if executionError != "" {
		status = inventoryEntity.ApprovalStatusError
	}
	err := r.db.Model(&inventoryEntity.ApprovalRequest{}).
		Where("request_id = ?", requestID).
		Updates(map[string]interface{}{
			"status":             status,
			"decided_by":         decidedBy,
			"decided_at_ms":      r.now(),
			"decision_note":      note,
			"execution_event_id": eventID,
			"execution_error":    executionError,
		}).Error
	if err != nil {
		return nil, err
	}
	return r.Get(requestID)
}

// Reject declines a pending request. Only pending requests can be
// rejected.
func (r *ApprovalRepository) Reject(requestID, decidedBy, note string) (*inventoryEntity.ApprovalRequest, error) {
	req, err := r.Get(requestID)
	if err != nil {
		return nil, err
	}
	res := r.db.Model(&inventoryEntity.ApprovalRequest{}).
		Where("request_id = ? AND status = ?", requestID, inventoryEntity.ApprovalStatusPending).
		Updates(map[string]interface{}{
			"status":        inventoryEntity.ApprovalStatusRejected,
			"decided_by":    decidedBy,
			"decided_at_ms": r.now(),
			"decision_note": note,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: %s (status=%s)", ErrApprovalNotPending, requestID, req.Status)
	}
	return r.Get(requestID)
}
