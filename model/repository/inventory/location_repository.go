package inventory

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	inventoryEntity "inventory.GO/model/entity/inventory"
)

// LocationRepository manages the stock location registry.
type LocationRepository struct {
	db *gorm.DB
}

func NewLocationRepository(db *gorm.DB) *LocationRepository {
	return &LocationRepository{db: db}
}

// Upsert creates or updates a location by code. The QuickBooks site name
// defaults to the display name so a freshly registered location is usable
// by the bridge without a second call.
func (r *LocationRepository) Upsert(loc *inventoryEntity.Location) error {
	if loc.QBSiteFullName == "" && !loc.IsVirtual {
		loc.QBSiteFullName = loc.DisplayName
	}
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "code"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"display_name", "active", "is_virtual", "qb_site_full_name", "qb_site_list_id",
		}),
	}).Create(loc).Error
}

// List returns locations ordered active first, then by code. Inactive
// locations are included only on request.
func (r *LocationRepository) List(includeInactive bool) ([]inventoryEntity.Location, error) {
	var locations []inventoryEntity.Location
	q := r.db.Order("active DESC, code ASC")
	if !includeInactive {
		q = q.Where("active = ?", true)
	}
	err := q.Find(&locations).Error
	return locations, err
}

// GetByCode returns the location or ErrUnknownLocation.
func (r *LocationRepository) GetByCode(code string) (*inventoryEntity.Location, error) {
	var loc inventoryEntity.Location
	if err := r.db.Where("code = ?", code).First(&loc).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrUnknownLocation
		}
		return nil, err
	}
	return &loc, nil
}

// UpsertReasonAccount maps an adjustment reason code to a QuickBooks
// account.
func (r *LocationRepository) UpsertReasonAccount(reasonCode, accountFullName string) error {
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "reason_code"}},
		DoUpdates: clause.AssignmentColumns([]string{"qb_account_full_name"}),
	}).Create(&inventoryEntity.ReasonAccount{
		ReasonCode:        reasonCode,
		QBAccountFullName: accountFullName,
	}).Error
}
