package profile

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/asthahub/storefront-backend/internal/coupon"
)

// Repository wires user profile persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a profile.
func (r *Repository) Create(ctx context.Context, p *UserProfile) error {
	return r.db.WithContext(ctx).Create(p).Error
}

// FindByEmail loads a profile by its case-insensitive email. Returns nil
// when no profile exists.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*UserProfile, error) {
	var p UserProfile
	err := r.db.WithContext(ctx).
		Where("lower(email) = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// UserContext resolves the coupon targeting context for an email. Unknown
// or unverified users get an email-only context: their tags cannot be
// trusted until verification.
func (r *Repository) UserContext(ctx context.Context, email string) (coupon.UserContext, error) {
	user := coupon.UserContext{Email: strings.TrimSpace(email)}
	if user.Email == "" {
		return user, nil
	}
	p, err := r.FindByEmail(ctx, user.Email)
	if err != nil {
		return user, err
	}
	if p != nil && p.Verified {
		user.Tags = append(user.Tags, p.Tags...)
	}
	return user, nil
}
