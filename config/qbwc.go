package config

import (
	"os"
	"strconv"
	"strings"
	"sync"
)

// QbwcConfig holds everything the QuickBooks Web Connector bridge needs:
// session credentials, qbXML versioning, default accounts and the item
// cache tuning knobs.
type QbwcConfig struct {
	Username         string
	Password         string
	CompanyFile      string
	QbxmlVersion     string
	ServerVersion    string
	MinClientVersion string

	DefaultAdjustmentAccount string

	// Item cache
	ItemsSource         string // "csv" or "live"
	ItemsCSV            string
	ItemsRefreshMinutes int // 0 = refresh only when empty
	ItemsQueryMax       int // live-query page size
	ItemsQueryMode      string
	ItemsAutoCreate     bool

	// Defaults for auto-created items
	ItemIncomeAccountDefault string
	ItemCogsAccountDefault   string
	ItemAssetAccountDefault  string

	SessionStaleMinutes int
}

var QbwcCfg *QbwcConfig
var qbwcOnce sync.Once

func envInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

func envBool(key string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "y", "on":
		return true
	}
	return false
}

func envStr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

// LoadQbwcConfig initializes the global QbwcCfg variable
func LoadQbwcConfig() *QbwcConfig {
	qbwcOnce.Do(func() {
		QbwcCfg = &QbwcConfig{
			Username:         envStr("QBWC_USERNAME", ""),
			Password:         envStr("QBWC_PASSWORD", ""),
			CompanyFile:      envStr("QB_COMPANY_FILE", ""),
			QbxmlVersion:     envStr("QBXML_VERSION", "13.0"),
			ServerVersion:    envStr("QBWC_SERVER_VERSION", "inventory-qbwc-0.1.0"),
			MinClientVersion: envStr("QBWC_MIN_CLIENT_VERSION", ""),

			DefaultAdjustmentAccount: envStr("QB_ADJUSTMENT_ACCOUNT_DEFAULT", "Inventory Adjustments"),

			ItemsSource:         envStr("QB_ITEMS_SOURCE", "csv"),
			ItemsCSV:            envStr("QB_ITEMS_CSV", ".tmp/qb_items_export.csv"),
			ItemsRefreshMinutes: envInt("QB_ITEMS_REFRESH_MINUTES", 0),
			ItemsQueryMax:       envInt("QB_ITEMS_QUERY_MAX_RETURNED", 500),
			ItemsQueryMode:      envStr("QB_ITEMS_QUERY_MODE", ""),
			ItemsAutoCreate:     envBool("QB_ITEMS_AUTO_CREATE"),

			ItemIncomeAccountDefault: envStr("QB_ITEM_INCOME_ACCOUNT_DEFAULT", ""),
			ItemCogsAccountDefault:   envStr("QB_ITEM_COGS_ACCOUNT_DEFAULT", ""),
			ItemAssetAccountDefault:  envStr("QB_ITEM_ASSET_ACCOUNT_DEFAULT", ""),

			SessionStaleMinutes: envInt("SESSION_STALE_MINUTES", 30),
		}
	})
	return QbwcCfg
}
