package checkout

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// Repository wires order persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// CreateTx inserts the order inside the commit transaction.
func (r *Repository) CreateTx(tx *gorm.DB, order *Order) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	return tx.Create(order).Error
}

// FindByID loads an order. Returns nil when absent.
func (r *Repository) FindByID(ctx context.Context, id string) (*Order, error) {
	var order Order
	err := r.db.WithContext(ctx).First(&order, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// ListByEmail returns a customer's orders, newest first.
func (r *Repository) ListByEmail(ctx context.Context, email string, limit int) ([]Order, error) {
	if limit <= 0 {
		limit = 20
	}
	var orders []Order
	err := r.db.WithContext(ctx).
		Where("lower(customer_email) = lower(?)", email).
		Order("placed_at DESC").
		Limit(limit).
		Find(&orders).Error
	return orders, err
}
