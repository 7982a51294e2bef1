package config

import (
	"os"
	"strconv"
	"strings"
)

// SecurityConfig controls API token enforcement and the approval gate.
// A token left empty disables the corresponding check.
type SecurityConfig struct {
	WriteToken string
	AdminToken string

	RequireApproval      bool
	ApprovalQtyThreshold float64

	AuditPath string
}

func envFloat(key string, def float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return def
	}
	return v
}

// LoadSecurityConfig reads the security settings from the environment.
// Read per call rather than once so tokens can rotate without a restart.
func LoadSecurityConfig() *SecurityConfig {
	threshold := envFloat("INVENTORY_APPROVAL_QTY_THRESHOLD", 25)
	if threshold < 0 {
		threshold = 0
	}
	return &SecurityConfig{
		WriteToken:           envStr("INVENTORY_API_TOKEN", ""),
		AdminToken:           envStr("INVENTORY_ADMIN_TOKEN", ""),
		RequireApproval:      envBool("INVENTORY_REQUIRE_APPROVAL"),
		ApprovalQtyThreshold: threshold,
		AuditPath:            envStr("INVENTORY_AUDIT_PATH", ".tmp/inventory_api_audit.jsonl"),
	}
}
