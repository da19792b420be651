package coupon

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/asthahub/storefront-backend/pkg/enums"
)

// Coupon is the server-side source of truth for a promotion code. All
// targeting lists live here; nothing about eligibility is trusted from the
// client.
type Coupon struct {
	ID                uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	Code              string           `gorm:"column:code;not null"`
	Type              enums.CouponType `gorm:"column:type;not null"`
	Value             decimal.Decimal  `gorm:"column:value;type:numeric(12,2);not null"`
	MaxDiscountAmount *decimal.Decimal `gorm:"column:max_discount_amount;type:numeric(12,2)"`
	MinOrderValue     decimal.Decimal  `gorm:"column:min_order_value;type:numeric(12,2);not null;default:0"`
	MinCartItems      int              `gorm:"column:min_cart_items;not null;default:0"`
	UsageLimit        *int             `gorm:"column:usage_limit"`
	UsedCount         int              `gorm:"column:used_count;not null;default:0"`
	IsActive          bool             `gorm:"column:is_active;not null"`
	ExpiresAt         *time.Time       `gorm:"column:expires_at"`
	ExcludedEmails    pq.StringArray   `gorm:"column:excluded_emails;type:text[]"`
	AllowedEmails     pq.StringArray   `gorm:"column:allowed_emails;type:text[]"`
	UserTags          pq.StringArray   `gorm:"column:user_tags;type:text[]"`
	TargetCategories  pq.StringArray   `gorm:"column:target_categories;type:text[]"`
	CreatedAt         time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (Coupon) TableName() string { return "coupons" }

func (c *Coupon) BeforeCreate(_ *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// Expired reports whether the coupon's expiry has passed. A nil expiry
// never expires.
func (c *Coupon) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && now.After(*c.ExpiresAt)
}

// UsageExhausted reports whether the redemption budget is spent. A nil
// limit is unlimited.
func (c *Coupon) UsageExhausted() bool {
	return c.UsageLimit != nil && c.UsedCount >= *c.UsageLimit
}
