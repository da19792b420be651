package coupon

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository wires coupon persistence helpers.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// Create inserts a coupon.
func (r *Repository) Create(ctx context.Context, c *Coupon) error {
	return r.db.WithContext(ctx).Create(c).Error
}

// FindByCode loads a coupon by its case-insensitive code. Returns nil
// when no coupon matches.
func (r *Repository) FindByCode(ctx context.Context, code string) (*Coupon, error) {
	var c Coupon
	err := r.db.WithContext(ctx).
		Where("lower(code) = ?", strings.ToLower(strings.TrimSpace(code))).
		First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

// LockByCodeTx loads the coupon row under FOR UPDATE so the usage counter
// cannot move between validation and increment.
func (r *Repository) LockByCodeTx(tx *gorm.DB, code string) (*Coupon, error) {
	if tx == nil {
		return nil, errors.New("transaction required")
	}
	query := tx.Where("lower(code) = ?", strings.ToLower(strings.TrimSpace(code)))
	if tx.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var c Coupon
	if err := query.First(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

// IncrementUsageTx bumps used_count guarded by the usage limit and reports
// whether a redemption slot was actually claimed.
func (r *Repository) IncrementUsageTx(tx *gorm.DB, id uuid.UUID) (bool, error) {
	if tx == nil {
		return false, errors.New("transaction required")
	}
	result := tx.Model(&Coupon{}).
		Where("id = ?", id).
		Where("usage_limit IS NULL OR used_count < usage_limit").
		Update("used_count", gorm.Expr("used_count + 1"))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
