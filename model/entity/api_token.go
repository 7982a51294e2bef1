package entity

import "time"

// Token roles, weakest to strongest.
const (
	TokenRoleRead  = "read"
	TokenRoleWrite = "write"
	TokenRoleAdmin = "admin"
)

// ApiToken is a DB-backed bearer token for the /api group (AUTH_TYPE=token).
type ApiToken struct {
	TokenID   uint      `gorm:"column:token_id;primaryKey;autoIncrement"`
	Token     string    `gorm:"column:token;type:varchar(64);not null;uniqueIndex"`
	Label     string    `gorm:"column:label;type:varchar(128)"`
	Role      string    `gorm:"column:role;type:varchar(16);not null;default:'read'"`
	Revoked   bool      `gorm:"column:revoked;not null;default:false"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (ApiToken) TableName() string {
	return "inventory_api_token"
}
