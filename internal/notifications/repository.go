package notifications

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository wires notification persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a notification.
func (r *Repository) Create(ctx context.Context, n *Notification) error {
	return r.db.WithContext(ctx).Create(n).Error
}

// ListForRecipient returns a recipient's notifications, newest first.
func (r *Repository) ListForRecipient(ctx context.Context, email string, limit int) ([]Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []Notification
	err := r.db.WithContext(ctx).
		Where("lower(recipient_email) = lower(?)", email).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// MarkRead flags a notification as read.
func (r *Repository) MarkRead(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&Notification{}).
		Where("id = ?", id).
		Update("read", true).Error
}
