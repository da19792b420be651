package checkout

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/asthahub/storefront-backend/internal/pricing"
	"github.com/asthahub/storefront-backend/pkg/enums"
	"github.com/asthahub/storefront-backend/pkg/orderid"
	"github.com/asthahub/storefront-backend/pkg/types"
)

// Order is the committed order record. Every monetary field is computed
// server-side; client-submitted totals never reach this row.
type Order struct {
	ID              string                `gorm:"column:id;primaryKey"`
	CustomerEmail   string                `gorm:"column:customer_email;not null"`
	CustomerName    string                `gorm:"column:customer_name;not null;default:''"`
	ShippingAddress types.ShippingAddress `gorm:"column:shipping_address;type:jsonb"`
	Lines           types.OrderLines      `gorm:"column:lines;type:jsonb;not null"`
	Subtotal        decimal.Decimal       `gorm:"column:subtotal;type:numeric(12,2);not null"`
	TotalDiscount   decimal.Decimal       `gorm:"column:total_discount;type:numeric(12,2);not null;default:0"`
	TotalTax        decimal.Decimal       `gorm:"column:total_tax;type:numeric(12,2);not null;default:0"`
	CouponCode      *string               `gorm:"column:coupon_code"`
	CouponDiscount  decimal.Decimal       `gorm:"column:coupon_discount;type:numeric(12,2);not null;default:0"`
	FinalTotal      decimal.Decimal       `gorm:"column:final_total;type:numeric(12,2);not null"`
	PaymentMethod   enums.PaymentMethod   `gorm:"column:payment_method;not null"`
	PaymentTrxID    *string               `gorm:"column:payment_trx_id"`
	PaymentStatus   enums.PaymentStatus   `gorm:"column:payment_status;not null;default:'unpaid'"`
	PaymentVerified bool                  `gorm:"column:payment_is_verified;not null"`
	SecurityMeta    types.SecurityMeta    `gorm:"column:security_meta;type:jsonb"`
	Status          enums.OrderStatus     `gorm:"column:status;not null;default:'pending'"`
	PlacedAt        time.Time             `gorm:"column:placed_at;not null"`
	CreatedAt       time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

func (Order) TableName() string { return "orders" }

// BeforeCreate assigns an order id when the caller did not.
func (o *Order) BeforeCreate(_ *gorm.DB) error {
	if o.ID == "" {
		o.ID = orderid.New()
	}
	return nil
}

// orderLines converts a priced cart into the persisted line shape.
func orderLines(lines []pricing.Line) types.OrderLines {
	out := make(types.OrderLines, 0, len(lines))
	for _, line := range lines {
		out = append(out, types.OrderLine{
			ProductID: line.ProductID,
			Name:      line.Name,
			Category:  line.Category,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			Subtotal:  line.Subtotal,
			Discount:  line.DiscountAmount,
			Tax:       line.TaxAmount,
			Total:     line.Total,
		})
	}
	return out
}
