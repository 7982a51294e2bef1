package inventory

import "gorm.io/datatypes"

// Part represents one SKU of the master catalog. Rows are created by bulk
// import and are read-only to the ledger core.
type Part struct {
	PartID      uint   `gorm:"column:part_id;primaryKey;autoIncrement" json:"part_id,omitempty"`
	SKU         string `gorm:"column:sku;type:varchar(64);not null;uniqueIndex" json:"sku"`
	Description string `gorm:"column:description;type:varchar(255)" json:"description,omitempty"`
	Active      bool   `gorm:"column:active;not null;default:true" json:"active"`

	// QuickBooks item mapping (empty until the item is known in QB)
	QBItemFullName string `gorm:"column:qb_item_full_name;type:varchar(255)" json:"qb_item_full_name,omitempty"`
	QBItemListID   string `gorm:"column:qb_item_list_id;type:varchar(64)" json:"qb_item_list_id,omitempty"`

	// Account defaults used when hydrating requests and auto-creating items
	IncomeAccountFullName string `gorm:"column:income_account_full_name;type:varchar(255)" json:"income_account_full_name,omitempty"`
	CogsAccountFullName   string `gorm:"column:cogs_account_full_name;type:varchar(255)" json:"cogs_account_full_name,omitempty"`
	AssetAccountFullName  string `gorm:"column:asset_account_full_name;type:varchar(255)" json:"asset_account_full_name,omitempty"`

	SalesDescription    string   `gorm:"column:sales_description;type:varchar(255)" json:"sales_description,omitempty"`
	PurchaseDescription string   `gorm:"column:purchase_description;type:varchar(255)" json:"purchase_description,omitempty"`
	SalesPrice          *float64 `gorm:"column:sales_price;type:decimal(12,4)" json:"sales_price,omitempty"`
	PurchaseCost        *float64 `gorm:"column:purchase_cost;type:decimal(12,4)" json:"purchase_cost,omitempty"`

	// Extra carries passthrough columns from the import feed that the core
	// never interprets.
	Extra datatypes.JSONMap `gorm:"column:extra" json:"extra,omitempty"`
}

func (Part) TableName() string {
	return "inventory_part"
}
