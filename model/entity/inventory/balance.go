package inventory

// Balance is the materialized stock quantity for one SKU at one location.
// Rows are created lazily on first reference and mutated only by the
// balance engine. Invariant: OnHand >= 0, Available = OnHand - Reserved.
type Balance struct {
	BalanceID  uint    `gorm:"column:balance_id;primaryKey;autoIncrement" json:"balance_id,omitempty"`
	SKU        string  `gorm:"column:sku;type:varchar(64);not null;uniqueIndex:idx_balance_sku_loc" json:"sku"`
	LocationID uint    `gorm:"column:location_id;not null;uniqueIndex:idx_balance_sku_loc" json:"location_id"`
	OnHand     float64 `gorm:"column:on_hand;type:decimal(12,4);not null;default:0" json:"on_hand"`
	Reserved   float64 `gorm:"column:reserved;type:decimal(12,4);not null;default:0" json:"reserved"`
	Available  float64 `gorm:"column:available;type:decimal(12,4);not null;default:0" json:"available"`
}

func (Balance) TableName() string {
	return "inventory_balance"
}
