package inventory

// Location represents one stock location (site). Virtual locations exist
// only in the ledger and are never pushed to QuickBooks sites.
type Location struct {
	LocationID  uint   `gorm:"column:location_id;primaryKey;autoIncrement" json:"location_id,omitempty"`
	Code        string `gorm:"column:code;type:varchar(64);not null;uniqueIndex" json:"code"`
	DisplayName string `gorm:"column:display_name;type:varchar(255);not null" json:"display_name"`
	Active      bool   `gorm:"column:active;not null;default:true" json:"active"`
	IsVirtual   bool   `gorm:"column:is_virtual;not null;default:false" json:"is_virtual"`

	QBSiteFullName string `gorm:"column:qb_site_full_name;type:varchar(255)" json:"qb_site_full_name,omitempty"`
	QBSiteListID   string `gorm:"column:qb_site_list_id;type:varchar(64)" json:"qb_site_list_id,omitempty"`
}

func (Location) TableName() string {
	return "inventory_location"
}
