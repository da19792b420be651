package profile

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// UserProfile holds the verified identity facts coupon targeting reads.
// Tags are assigned by staff tooling, never by the storefront client.
type UserProfile struct {
	ID        uuid.UUID      `gorm:"column:id;type:uuid;primaryKey"`
	Email     string         `gorm:"column:email;not null"`
	Name      string         `gorm:"column:name;not null;default:''"`
	Tags      pq.StringArray `gorm:"column:tags;type:text[]"`
	Verified  bool           `gorm:"column:verified;not null;default:false"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

func (UserProfile) TableName() string { return "user_profiles" }

func (p *UserProfile) BeforeCreate(_ *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
