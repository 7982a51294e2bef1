package cache

import (
	"path/filepath"
	"testing"
	"time"
)

func TestNewCache(t *testing.T) {
	c := NewCache()
	if c == nil {
		t.Fatal("NewCache returned nil")
	}
}

func TestGetInstance(t *testing.T) {
	inst := GetInstance()
	if inst == nil {
		t.Fatal("GetInstance returned nil")
	}
	if GetInstance() != inst {
		t.Error("GetInstance should return same instance")
	}
}

func TestSet_Get(t *testing.T) {
	c := GetInstance()
	key := "item:WID-1"
	c.Set(key, 42.5, 0, nil)
	got, ok := c.Get(key)
	if !ok {
		t.Fatal("Get: want true")
	}
	if got != 42.5 {
		t.Errorf("Get = %v, want 42.5", got)
	}
	c.Delete(key)
}

func TestGet_Missing(t *testing.T) {
	c := GetInstance()
	if _, ok := c.Get("item:NO-SUCH-SKU"); ok {
		t.Error("Get missing key: want false")
	}
}

func TestGet_Expired(t *testing.T) {
	c := GetInstance()
	key := "item:SHORT-TTL"
	c.Set(key, "stale", 1, nil)
	if _, ok := c.Get(key); !ok {
		t.Fatal("Get before expiry: want true")
	}
	time.Sleep(1100 * time.Millisecond)
	if _, ok := c.Get(key); ok {
		t.Error("Get after expiry: want false")
	}
}

func TestDelete(t *testing.T) {
	c := GetInstance()
	key := "item:DEL-1"
	c.Set(key, "x", 0, nil)
	c.Delete(key)
	if _, ok := c.Get(key); ok {
		t.Error("Delete: key should be gone")
	}
}

func TestGetOrDefault(t *testing.T) {
	c := GetInstance()
	key := "threshold:default"
	if got := c.GetOrDefault(key, 25.0); got != 25.0 {
		t.Errorf("GetOrDefault missing = %v, want 25", got)
	}
	c.Set(key, 50.0, 0, nil)
	if got := c.GetOrDefault(key, 25.0); got != 50.0 {
		t.Errorf("GetOrDefault found = %v, want 50", got)
	}
	c.Delete(key)
}

func TestDeleteMany(t *testing.T) {
	c := GetInstance()
	c.Set("item:DM-1", 1, 0, nil)
	c.Set("item:DM-2", 2, 0, nil)
	c.DeleteMany("item:DM-1", "item:DM-2")
	if _, ok := c.Get("item:DM-1"); ok {
		t.Error("DeleteMany: DM-1 should be gone")
	}
	if _, ok := c.Get("item:DM-2"); ok {
		t.Error("DeleteMany: DM-2 should be gone")
	}
}

func TestSetN_GetN_DeleteN(t *testing.T) {
	c := GetInstance()
	key := []interface{}{"overview", "WID", "MAIN", false, 0}
	c.SetN(key, "overview-payload", 0, nil)
	got, ok := c.GetN(key...)
	if !ok || got != "overview-payload" {
		t.Errorf("GetN = %v, %v; want overview-payload, true", got, ok)
	}
	c.DeleteN(key...)
	if _, ok = c.GetN(key...); ok {
		t.Error("DeleteN: key should be gone")
	}
}

func TestGetMany(t *testing.T) {
	c := GetInstance()
	c.Set("item:GM-1", "v1", 0, nil)
	c.Set("item:GM-2", "v2", 0, nil)
	results := c.GetMany("item:GM-1", "item:GM-2", "item:GM-missing")
	if len(results) != 3 {
		t.Fatalf("GetMany len = %d, want 3", len(results))
	}
	if results[0] != "v1" || results[1] != "v2" {
		t.Errorf("GetMany values = %v, want v1 v2", results[:2])
	}
	if results[2] != nil {
		t.Error("GetMany missing key: want nil")
	}
	c.DeleteMany("item:GM-1", "item:GM-2")
}

func TestTagKey_GetKeysByTag_DeleteByTag(t *testing.T) {
	c := GetInstance()
	c.Set("ov:1", "v1", 0, []string{"inventory:overview"})
	c.Set("ov:2", "v2", 0, []string{"inventory:overview"})

	keys := c.GetKeysByTag("inventory:overview")
	if len(keys) != 2 {
		t.Errorf("GetKeysByTag = %d keys, want 2", len(keys))
	}

	c.DeleteByTag("inventory:overview")
	if _, ok := c.Get("ov:1"); ok {
		t.Error("DeleteByTag: ov:1 should be gone")
	}
	if _, ok := c.Get("ov:2"); ok {
		t.Error("DeleteByTag: ov:2 should be gone")
	}
	if keys := c.GetKeysByTag("inventory:overview"); len(keys) != 0 {
		t.Errorf("GetKeysByTag after DeleteByTag = %d keys, want 0", len(keys))
	}
}

func TestDelete_RemovesFromTagIndex(t *testing.T) {
	c := GetInstance()
	key := "ov:del"
	c.Set(key, "v", 0, []string{"inventory:overview"})
	c.Delete(key)
	if keys := c.GetKeysByTag("inventory:overview"); len(keys) != 0 {
		t.Errorf("GetKeysByTag after Delete = %d keys, want 0", len(keys))
	}
}

func TestIterateFilter(t *testing.T) {
	c := GetInstance()
	c.Set("qty:A", 10, 0, nil)
	c.Set("qty:B", 20, 0, nil)
	c.Set("qty:C", 30, 0, nil)
	defer c.DeleteMany("qty:A", "qty:B", "qty:C")

	results := c.IterateFilter(func(key, value interface{}) bool {
		return key == "qty:A" || key == "qty:C"
	})
	if len(results) != 2 {
		t.Errorf("IterateFilter = %d results, want 2", len(results))
	}
	// Values come back unwrapped, not as internal cache items.
	has10, has30 := false, false
	for _, v := range results {
		if v == 10 {
			has10 = true
		}
		if v == 30 {
			has30 = true
		}
	}
	if !has10 || !has30 {
		t.Errorf("IterateFilter values = %v, want 10 and 30", results)
	}
}

func TestDumpToFile_RestoreFromFile(t *testing.T) {
	c := GetInstance()
	key := "snapshot:WID-1"
	c.Set(key, "widget", 0, nil)
	defer c.Delete(key)

	tmp := filepath.Join(t.TempDir(), "cache.json")
	if err := c.DumpToFile(tmp); err != nil {
		t.Fatalf("DumpToFile: %v", err)
	}

	c.Delete(key)
	if err := c.RestoreFromFile(tmp); err != nil {
		t.Fatalf("RestoreFromFile: %v", err)
	}
	got, ok := c.Get(key)
	if !ok || got != "widget" {
		t.Errorf("after restore Get = %v, ok=%v; want widget, true", got, ok)
	}
	c.Delete(key)
}

func TestRestoreFromFile_MissingFile(t *testing.T) {
	c := GetInstance()
	if err := c.RestoreFromFile("/nonexistent/path/cache.json"); err == nil {
		t.Error("RestoreFromFile missing file: want error")
	}
}
