package inventory

import (
	"errors"
	"time"

	"gorm.io/gorm"

	inventoryEntity "inventory.GO/model/entity/inventory"
)

// SessionRepository tracks Web Connector polling sessions keyed by ticket.
type SessionRepository struct {
	db  *gorm.DB
	now func() int64
}

func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db, now: func() int64 { return time.Now().UnixMilli() }}
}

func (r *SessionRepository) WithClock(now func() int64) *SessionRepository {
	r.now = now
	return r
}

// Open records a freshly authenticated session.
func (r *SessionRepository) Open(ticket string) error {
	nowMs := r.now()
	session := inventoryEntity.SyncSession{
		Ticket:       ticket,
		StartedAtMs:  nowMs,
		LastSeenAtMs: nowMs,
	}
	return r.db.Create(&session).Error
}

// Touch refreshes the heartbeat. A missing row is recreated rather than
// rejected; the sweep may have removed it mid-session.
func (r *SessionRepository) Touch(ticket string) error {
	nowMs := r.now()
	res := r.db.Model(&inventoryEntity.SyncSession{}).
		Where("ticket = ?", ticket).
		Update("last_seen_at_ms", nowMs)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return r.db.Create(&inventoryEntity.SyncSession{
			Ticket:       ticket,
			StartedAtMs:  nowMs,
			LastSeenAtMs: nowMs,
		}).Error
	}
	return nil
}

// Get returns the session or ErrUnknownTicket.
func (r *SessionRepository) Get(ticket string) (*inventoryEntity.SyncSession, error) {
	var session inventoryEntity.SyncSession
	if err := r.db.Where("ticket = ?", ticket).First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnknownTicket
		}
		return nil, err
	}
	return &session, nil
}

// SetLastError stores the most recent failure for getLastError.
func (r *SessionRepository) SetLastError(ticket, message string) error {
	return r.db.Model(&inventoryEntity.SyncSession{}).
		Where("ticket = ?", ticket).
		Update("last_error", message).Error
}

// Close removes the session row.
func (r *SessionRepository) Close(ticket string) error {
	return r.db.Where("ticket = ?", ticket).Delete(&inventoryEntity.SyncSession{}).Error
}

// SweepStale deletes sessions with no heartbeat for maxAge. In-flight
// events are left untouched; the retry ladder re-enqueues them on the
// next failure report, never the sweep.
func (r *SessionRepository) SweepStale(maxAge time.Duration) (int64, error) {
	cutoff := r.now() - maxAge.Milliseconds()
	res := r.db.Where("last_seen_at_ms < ?", cutoff).Delete(&inventoryEntity.SyncSession{})
	return res.RowsAffected, res.Error
}
