package notifications

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/asthahub/storefront-backend/pkg/enums"
)

// Notification is one in-app notification row.
type Notification struct {
	ID             uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	Type           enums.NotificationType `gorm:"column:type;not null"`
	RecipientEmail string                 `gorm:"column:recipient_email;not null"`
	Title          string                 `gorm:"column:title;not null"`
	Body           string                 `gorm:"column:body;not null;default:''"`
	OrderID        *string                `gorm:"column:order_id"`
	Read           bool                   `gorm:"column:read;not null;default:false"`
	CreatedAt      time.Time              `gorm:"column:created_at;autoCreateTime"`
}

func (Notification) TableName() string { return "notifications" }

func (n *Notification) BeforeCreate(_ *gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}
