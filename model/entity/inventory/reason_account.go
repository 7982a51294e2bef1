package inventory

// ReasonAccount maps an adjustment reason code to the QuickBooks account
// the adjustment posts against.
type ReasonAccount struct {
	ReasonAccountID   uint   `gorm:"column:reason_account_id;primaryKey;autoIncrement" json:"reason_account_id,omitempty"`
	ReasonCode        string `gorm:"column:reason_code;type:varchar(64);not null;uniqueIndex" json:"reason_code"`
	QBAccountFullName string `gorm:"column:qb_account_full_name;type:varchar(255);not null" json:"qb_account_full_name"`
}

func (ReasonAccount) TableName() string {
	return "inventory_reason_account"
}
