package qbwc

import (
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/redis/go-redis/v9"

	"inventory.GO/config"
)

// Item source modes.
const (
	ItemSourceCSV  = "csv"
	ItemSourceLive = "live"
)

const redisItemCacheKey = "qbwc:item_cache"

// Column candidates for the QuickBooks item export, matched after header
// normalization.
var (
	typeColumnCandidates = []string{"Type", "Item Type"}
	skuColumnCandidates  = []string{"Sku", "SKU", "Item", "Item Name/Number", "Item Name", "Full Name", "Name"}
)

func normalizeHeader(value string) string {
	var b strings.Builder
	for _, ch := range strings.ToLower(value) {
		if unicode.IsLetter(ch) || unicode.IsDigit(ch) {
			b.WriteRune(ch)
		}
	}
	return b.String()
}

func normalizeItemKey(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

// AddItemKeyVariants registers every lookup key an item name answers to:
// the casefolded full name and, for hierarchical names, the leaf after the
// last colon.
func AddItemKeyVariants(keys map[string]struct{}, raw string) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return
	}
	keys[normalizeItemKey(value)] = struct{}{}
	if idx := strings.LastIndex(value, ":"); idx >= 0 {
		if leaf := strings.TrimSpace(value[idx+1:]); leaf != "" {
			keys[normalizeItemKey(leaf)] = struct{}{}
		}
	}
}

// ItemKeyCandidates returns the lookup keys for one event line.
func ItemKeyCandidates(itemFullName, sku string) map[string]struct{} {
	keys := map[string]struct{}{}
	AddItemKeyVariants(keys, itemFullName)
	AddItemKeyVariants(keys, sku)
	return keys
}

func isInventoryPartType(value string) bool {
	key := normalizeHeader(strings.TrimSpace(value))
	if strings.Contains(key, "inventoryassembly") {
		return false
	}
	return strings.Contains(key, "inventorypart")
}

func resolveCSVColumn(headers []string, candidates []string, label string) (int, error) {
	index := map[string]int{}
	for i, h := range headers {
		index[normalizeHeader(h)] = i
	}
	for _, candidate := range candidates {
		if i, ok := index[normalizeHeader(candidate)]; ok {
			return i, nil
		}
	}
	return -1, fmt.Errorf("unable to find %s column in QB export CSV (headers: %v)", label, headers)
}

// ItemCache holds the set of item names QuickBooks knows about. The sync
// loop consults it before building requests so events never reference
// items the company file will reject.
type ItemCache struct {
	mu sync.Mutex

	source         string
	csvPath        string
	refreshMinutes int
	queryMax       int
	fallbackMode   bool

	keys     map[string]struct{}
	names    map[string]struct{}
	loadedAt time.Time

	cachedPath  string
	cachedMtime time.Time

	queryInProgress bool
	queryIteratorID string
	accKeys         map[string]struct{}
	accNames        map[string]struct{}

	redis *redis.Client
}

// NewItemCache builds a cache from the QBWC config. A non-nil redis client
// enables warm-start persistence of live-mode snapshots across restarts.
func NewItemCache(cfg *config.QbwcConfig, rdb *redis.Client) *ItemCache {
	source := ItemSourceCSV
	switch strings.ToLower(strings.TrimSpace(cfg.ItemsSource)) {
	case "qb", "qbwc", "quickbooks", "live":
		source = ItemSourceLive
	}
	fallback := false
	switch strings.ToLower(strings.TrimSpace(cfg.ItemsQueryMode)) {
	case "itemquery", "item_query", "itemqueryfallback", "item_query_fallback", "fallback", "compat", "compatibility":
		fallback = true
	}
	c := &ItemCache{
		source:         source,
		csvPath:        cfg.ItemsCSV,
		refreshMinutes: cfg.ItemsRefreshMinutes,
		queryMax:       cfg.ItemsQueryMax,
		fallbackMode:   fallback,
		keys:           map[string]struct{}{},
		names:          map[string]struct{}{},
		redis:          rdb,
	}
	if source == ItemSourceLive {
		c.warmStart()
	}
	return c
}

// warmStart restores the last persisted live snapshot so a restarted
// bridge can sync before the first full item query completes.
func (c *ItemCache) warmStart() {
	if c.redis == nil {
		return
	}
	names, err := c.redis.SMembers(config.RedisCtx(), redisItemCacheKey).Result()
	if err != nil || len(names) == 0 {
		return
	}
	for _, name := range names {
		AddItemKeyVariants(c.keys, name)
		c.names[name] = struct{}{}
	}
	// Deliberately stale: loadedAt stays zero so the next session still
	// runs a full refresh query.
	log.Printf("qbwc: item cache warm-started with %d names from redis", len(names))
}

func (c *ItemCache) persistSnapshot() {
	if c.redis == nil || len(c.names) == 0 {
		return
	}
	members := make([]interface{}, 0, len(c.names))
	for name := range c.names {
		members = append(members, name)
	}
	ctx := config.RedisCtx()
	pipe := c.redis.TxPipeline()
	pipe.Del(ctx, redisItemCacheKey)
	pipe.SAdd(ctx, redisItemCacheKey, members...)
	if _, err := pipe.Exec(ctx); err != nil {
		// Cache persistence must never break the sync flow.
		log.Printf("qbwc: persist item cache: %v", err)
	}
}

// LiveMode reports whether items come from QuickBooks queries rather than
// a CSV export.
func (c *ItemCache) LiveMode() bool {
	return c.source == ItemSourceLive
}

// FallbackMode reports whether item queries use the ItemQueryRq
// compatibility grammar.
func (c *ItemCache) FallbackMode() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fallbackMode
}

// SwitchToFallback flips item queries to the compatibility grammar. The
// switch is sticky for the process lifetime. Returns false when already
// in fallback mode.
func (c *ItemCache) SwitchToFallback() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fallbackMode {
		return false
	}
	c.fallbackMode = true
	c.resetQueryLocked()
	return true
}

func (c *ItemCache) freshLocked() bool {
	if len(c.keys) == 0 {
		return false
	}
	if c.refreshMinutes <= 0 {
		// 0 disables periodic refresh; reload only when empty.
		return true
	}
	return time.Since(c.loadedAt) < time.Duration(c.refreshMinutes)*time.Minute
}

// Fresh reports whether the snapshot is usable without a reload.
func (c *ItemCache) Fresh() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.freshLocked()
}

// Keys returns a copy of the current lookup key set, loading the CSV on
// demand in csv mode. In live mode an empty cache is an error: the caller
// must wait for the item query cycle to complete.
func (c *ItemCache) Keys() (map[string]struct{}, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.source == ItemSourceCSV {
		if err := c.loadCSVLocked(); err != nil {
			return nil, err
		}
	} else if len(c.keys) == 0 {
		return nil, fmt.Errorf("item cache is empty in live mode; wait for the item query to complete")
	}
	out := make(map[string]struct{}, len(c.keys))
	for k := range c.keys {
		out[k] = struct{}{}
	}
	return out, nil
}

// RefreshCSV forces a reload check against the export file. No-op in live
// mode.
func (c *ItemCache) RefreshCSV() error {
	if c.source != ItemSourceCSV {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadCSVLocked()
}

// loadCSVLocked reloads the export when the file changed since the last
// load. Keeps the previous snapshot on any read error once one exists.
func (c *ItemCache) loadCSVLocked() error {
	info, err := os.Stat(c.csvPath)
	if err != nil {
		return fmt.Errorf("QB items CSV is not readable: %s: %w", c.csvPath, err)
	}
	if c.cachedPath == c.csvPath && c.cachedMtime.Equal(info.ModTime()) && len(c.keys) > 0 {
		return nil
	}

	f, err := os.Open(c.csvPath)
	if err != nil {
		return fmt.Errorf("QB items CSV is not readable: %s: %w", c.csvPath, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	headers, err := reader.Read()
	if err != nil {
		return fmt.Errorf("QB items CSV has no headers: %s: %w", c.csvPath, err)
	}
	if len(headers) > 0 {
		// Strip a UTF-8 BOM from exports written by Windows tools.
		headers[0] = strings.TrimPrefix(headers[0], "\ufeff")
	}

	typeCol, err := resolveCSVColumn(headers, typeColumnCandidates, "item type")
	if err != nil {
		return err
	}
	skuCol, err := resolveCSVColumn(headers, skuColumnCandidates, "sku")
	if err != nil {
		return err
	}

	keys := map[string]struct{}{}
	names := map[string]struct{}{}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("read QB items CSV: %s: %w", c.csvPath, err)
		}
		if typeCol >= len(record) || skuCol >= len(record) {
			continue
		}
		if !isInventoryPartType(record[typeCol]) {
			continue
		}
		sku := strings.TrimSpace(record[skuCol])
		if sku == "" {
			continue
		}
		AddItemKeyVariants(keys, sku)
		names[sku] = struct{}{}
	}
	if len(keys) == 0 {
		return fmt.Errorf("QB items CSV contains no Inventory Part SKUs: %s", c.csvPath)
	}

	c.cachedPath = c.csvPath
	c.cachedMtime = info.ModTime()
	c.keys = keys
	c.names = names
	c.loadedAt = time.Now()
	return nil
}

func (c *ItemCache) resetQueryLocked() {
	c.queryInProgress = false
	c.queryIteratorID = ""
	c.accKeys = nil
	c.accNames = nil
}

// ResetQuery abandons an in-progress item query cycle.
func (c *ItemCache) ResetQuery() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetQueryLocked()
}

// NextQueryRequest returns the next item query qbXML to send, or "" when
// the snapshot is fresh and no cycle is running. Live mode only.
func (c *ItemCache) NextQueryRequest(qbxmlVersion string) string {
	if c.source != ItemSourceLive {
		return ""
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.freshLocked() && !c.queryInProgress {
		return ""
	}
	if !c.queryInProgress {
		c.queryInProgress = true
		c.queryIteratorID = ""
		c.accKeys = map[string]struct{}{}
		c.accNames = map[string]struct{}{}
	}
	return BuildItemsQuery(qbxmlVersion, c.fallbackMode, c.queryIteratorID, c.queryMax)
}

// AbsorbQueryPage folds one parsed response page into the running cycle.
// Returns true when more pages remain.
func (c *ItemCache) AbsorbQueryPage(page *ItemQueryPage) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.accKeys == nil {
		c.accKeys = map[string]struct{}{}
		c.accNames = map[string]struct{}{}
	}
	for k := range page.Keys {
		c.accKeys[k] = struct{}{}
	}
	for _, name := range page.Names {
		c.accNames[name] = struct{}{}
	}

	if page.RemainingCount > 0 {
		if page.IteratorID == "" {
			c.resetQueryLocked()
			return false, fmt.Errorf("item query response missing iteratorID with %d items remaining", page.RemainingCount)
		}
		c.queryInProgress = true
		c.queryIteratorID = page.IteratorID
		return true, nil
	}

	if len(c.accKeys) == 0 {
		c.resetQueryLocked()
		return false, fmt.Errorf("item query returned zero inventory-part items")
	}

	// Atomic swap: readers never observe a partially loaded snapshot.
	c.keys = c.accKeys
	c.names = c.accNames
	c.loadedAt = time.Now()
	c.resetQueryLocked()
	c.persistSnapshot()
	return false, nil
}

// CacheCreatedItem appends a freshly created item so subsequent requests
// in the same session see it without a full refresh. loadedAt is left
// alone: freshness tracks full loads only, appends must not postpone the
// next refresh cycle.
func (c *ItemCache) CacheCreatedItem(itemFullName string) {
	name := strings.TrimSpace(itemFullName)
	if name == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	AddItemKeyVariants(c.keys, name)
	c.names[name] = struct{}{}
	c.persistSnapshot()
}

// Snapshot reports cache state for the health endpoint.
type CacheSnapshot struct {
	Source          string   `json:"source"`
	CacheReady      bool     `json:"cacheReady"`
	CacheFresh      bool     `json:"cacheFresh"`
	ItemCount       int      `json:"itemCount"`
	QueryInProgress bool     `json:"queryInProgress"`
	FallbackMode    bool     `json:"fallbackMode"`
	Items           []string `json:"items,omitempty"`
}

func (c *ItemCache) Snapshot(includeItems bool) CacheSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap := CacheSnapshot{
		Source:          c.source,
		CacheReady:      len(c.keys) > 0,
		CacheFresh:      c.freshLocked(),
		ItemCount:       len(c.names),
		QueryInProgress: c.queryInProgress,
		FallbackMode:    c.fallbackMode,
	}
	if includeItems {
		names := make([]string, 0, len(c.names))
		for name := range c.names {
			names = append(names, name)
		}
		sort.Strings(names)
		snap.Items = names
	}
	return snap
}
