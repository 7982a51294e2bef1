package auth

import (
	"gorm.io/gorm"

	entity "inventory.GO/model/entity"
)

type AuthRepository struct {
	db *gorm.DB
}

func NewAuthRepository(db *gorm.DB) *AuthRepository {
	return &AuthRepository{db: db}
}

// FindActiveToken returns a non-revoked token by its token string.
func (r *AuthRepository) FindActiveToken(token string) (*entity.ApiToken, error) {
	var t entity.ApiToken
	err := r.db.Where("token = ? AND revoked = ?", token, false).First(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateToken stores a new token with the given label and role.
func (r *AuthRepository) CreateToken(token, label, role string) (*entity.ApiToken, error) {
	if role == "" {
		role = entity.TokenRoleRead
	}
	t := entity.ApiToken{Token: token, Label: label, Role: role}
	if err := r.db.Create(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

// RevokeToken marks a token revoked. Returns the number of rows touched
// so callers can tell a miss from a no-op.
func (r *AuthRepository) RevokeToken(token string) (int64, error) {
	res := r.db.Model(&entity.ApiToken{}).
		Where("token = ?", token).
		Update("revoked", true)
	return res.RowsAffected, res.Error
}
