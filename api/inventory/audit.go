package inventory

import (
	"bufio"
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// AuditEntry is one line of the append-only audit trail.
type AuditEntry struct {
	Ts      int64                  `json:"ts"`
	Action  string                 `json:"action"`
	Outcome string                 `json:"outcome"` // success, error, denied, pending_approval
	Actor   string                 `json:"actor"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// AuditLogger appends JSONL audit rows. Write failures are logged, never
// propagated: a broken audit file must not take the API down.
type AuditLogger struct {
	mu   sync.Mutex
	path string
}

func NewAuditLogger(path string) *AuditLogger {
	return &AuditLogger{path: path}
}

func (a *AuditLogger) Record(action, outcome, actor string, details map[string]interface{}) {
	entry := AuditEntry{
		Ts:      time.Now().UnixMilli(),
		Action:  action,
		Outcome: outcome,
		Actor:   actor,
		Details: details,
	}
	line, err := json.Marshal(entry)
	if err != nil {
		log.Printf("[audit] marshal failed: %v", err)
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if dir := filepath.Dir(a.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Printf("[audit] mkdir %s: %v", dir, err)
			return
		}
	}
	f, err := os.OpenFile(a.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		log.Printf("[audit] open %s: %v", a.path, err)
		return
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		log.Printf("[audit] write %s: %v", a.path, err)
	}
}

// Recent returns the newest entries, newest first. Limit is clamped to
// 1..500 and defaults to 100. A missing file reads as empty.
func (a *AuditLogger) Recent(limit int) ([]AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > 500 {
		limit = 500
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	f, err := os.Open(a.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []AuditEntry{}, nil
		}
		return nil, err
	}
	defer f.Close()

	var entries []AuditEntry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		var entry AuditEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			// Skip corrupt lines instead of failing the whole read.
			continue
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}
