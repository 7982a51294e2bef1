package partimport

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	inventoryEntity "inventory.GO/model/entity/inventory"
)

// ImportOptions configures a part master import run.
type ImportOptions struct {
	BatchSize int
	// DeactivateMissing marks catalog parts absent from the feed inactive.
	DeactivateMissing bool
}

// ImportResult holds counters and timing from an import run.
type ImportResult struct {
	TotalRows   int           `json:"totalRows"`
	Upserted    int           `json:"upserted"`
	Skipped     int           `json:"skipped"`
	Deactivated int           `json:"deactivated"`
	Warnings    []string      `json:"warnings,omitempty"`
	TotalTime   time.Duration `json:"-"`
}

// headerAliases maps canonical field names to the normalized header
// spellings seen across QuickBooks item exports and hand-built feeds.
var headerAliases = map[string][]string{
	"sku":                  {"sku", "item", "itemnamenumber", "itemname"},
	"description":          {"description", "desc"},
	"qb_item_full_name":    {"fullname", "qbitemfullname"},
	"income_account":       {"incomeaccount", "incomeaccountfullname"},
	"cogs_account":         {"cogsaccount", "cogsaccountfullname"},
	"asset_account":        {"assetaccount", "assetaccountfullname", "inventoryassetaccount"},
	"sales_description":    {"salesdescription", "salesdesc"},
	"purchase_description": {"purchasedescription", "purchasedesc"},
	"sales_price":          {"salesprice", "price"},
	"purchase_cost":        {"purchasecost", "cost"},
	"active":               {"active", "isactive", "activestatus"},
}

// normalizeHeader lowercases and strips everything but letters and digits
// so "Item Name/Number" and "item_name_number" match the same alias.
func normalizeHeader(h string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(h)) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func canonicalFor(header string) string {
	norm := normalizeHeader(header)
	for canonical, aliases := range headerAliases {
		for _, alias := range aliases {
			if norm == alias {
				return canonical
			}
		}
	}
	return ""
}

// partRow is the decode target for one CSV row. Weakly typed decoding
// turns "12.50" into the float fields; pointers keep absent columns from
// zeroing existing values on upsert.
type partRow struct {
	SKU                 string   `mapstructure:"sku"`
	Description         string   `mapstructure:"description"`
	QBItemFullName      string   `mapstructure:"qb_item_full_name"`
	IncomeAccount       string   `mapstructure:"income_account"`
	CogsAccount         string   `mapstructure:"cogs_account"`
	AssetAccount        string   `mapstructure:"asset_account"`
	SalesDescription    string   `mapstructure:"sales_description"`
	PurchaseDescription string   `mapstructure:"purchase_description"`
	SalesPrice          *float64 `mapstructure:"sales_price"`
	PurchaseCost        *float64 `mapstructure:"purchase_cost"`
}

func decodeRow(values map[string]interface{}) (*partRow, error) {
	var row partRow
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &row,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(values); err != nil {
		return nil, err
	}
	return &row, nil
}

// parseActive accepts the bool spellings plus the QB export's
// "Active Status" values.
func parseActive(raw string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "y", "active":
		return true, true
	case "0", "false", "no", "n", "inactive", "not active":
		return false, true
	}
	return false, false
}

// ImportPartsCSV reads a part master feed from r and upserts the catalog
// by SKU. Columns without a known alias pass through into Part.Extra
// untouched.
func ImportPartsCSV(db *gorm.DB, r io.Reader, opts ImportOptions) (*ImportResult, error) {
	startTotal := time.Now()
	if opts.BatchSize <= 0 {
		opts.BatchSize = 500
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	headers, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read CSV header: %w", err)
	}
	if len(headers) > 0 {
		headers[0] = strings.TrimPrefix(headers[0], "\ufeff")
	}

	canonicals := make([]string, len(headers))
	skuCol := -1
	for i, h := range headers {
		canonicals[i] = canonicalFor(h)
		if canonicals[i] == "sku" && skuCol < 0 {
			skuCol = i
		}
	}
	if skuCol < 0 {
		return nil, fmt.Errorf("CSV must contain a sku column (one of: sku, item, item name/number)")
	}

	result := &ImportResult{}
	var parts []inventoryEntity.Part
	seen := make(map[string]bool)

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read CSV row: %w", err)
		}
		result.TotalRows++

		sku := ""
		if skuCol < len(record) {
			sku = strings.TrimSpace(record[skuCol])
		}
		if sku == "" {
			result.Skipped++
			result.Warnings = append(result.Warnings, fmt.Sprintf("row %d: empty sku, skipping", result.TotalRows))
			continue
		}
		if seen[sku] {
			result.Skipped++
			result.Warnings = append(result.Warnings, fmt.Sprintf("row %d: duplicate sku %s, skipping", result.TotalRows, sku))
			continue
		}
		seen[sku] = true

		known := make(map[string]interface{})
		extra := datatypes.JSONMap{}
		var activeRaw string
		for i, canonical := range canonicals {
			if i >= len(record) {
				break
			}
			value := strings.TrimSpace(record[i])
			if value == "" {
				continue
			}
			switch canonical {
			case "":
				extra[headers[i]] = value
			case "active":
				activeRaw = value
			default:
				known[canonical] = value
			}
		}

		row, err := decodeRow(known)
		if err != nil {
			result.Skipped++
			result.Warnings = append(result.Warnings, fmt.Sprintf("sku=%s: %v", sku, err))
			continue
		}

		part := inventoryEntity.Part{
			SKU:                   sku,
			Description:           row.Description,
			Active:                true,
			QBItemFullName:        row.QBItemFullName,
			IncomeAccountFullName: row.IncomeAccount,
			CogsAccountFullName:   row.CogsAccount,
			AssetAccountFullName:  row.AssetAccount,
			SalesDescription:      row.SalesDescription,
			PurchaseDescription:   row.PurchaseDescription,
			SalesPrice:            row.SalesPrice,
			PurchaseCost:          row.PurchaseCost,
		}
		if activeRaw != "" {
			if active, ok := parseActive(activeRaw); ok {
				part.Active = active
			} else {
				result.Warnings = append(result.Warnings, fmt.Sprintf("sku=%s: unrecognized active value %q", sku, activeRaw))
			}
		}
		if len(extra) > 0 {
			part.Extra = extra
		}
		parts = append(parts, part)
	}

	if len(parts) > 0 {
		upsert := clause.OnConflict{
			Columns: []clause.Column{{Name: "sku"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"description", "active", "qb_item_full_name",
				"income_account_full_name", "cogs_account_full_name", "asset_account_full_name",
				"sales_description", "purchase_description", "sales_price", "purchase_cost",
				"extra",
			}),
		}
		if err := db.Clauses(upsert).CreateInBatches(parts, opts.BatchSize).Error; err != nil {
			return nil, fmt.Errorf("part upsert: %w", err)
		}
	}
	result.Upserted = len(parts)

	if opts.DeactivateMissing && len(seen) > 0 {
		skus := make([]string, 0, len(seen))
		for sku := range seen {
			skus = append(skus, sku)
		}
		res := db.Model(&inventoryEntity.Part{}).
			Where("active = ? AND sku NOT IN ?", true, skus).
			Update("active", false)
		if res.Error != nil {
			return nil, fmt.Errorf("deactivate missing: %w", res.Error)
		}
		result.Deactivated = int(res.RowsAffected)
	}

	result.TotalTime = time.Since(startTotal)
	return result, nil
}
