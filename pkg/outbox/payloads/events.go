package payloads

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/asthahub/storefront-backend/pkg/enums"
)

// OrderLine is one priced line as committed, suitable for receipts and
// analytics without a catalog lookup.
type OrderLine struct {
	ProductID  string          `json:"product_id"`
	Name       string          `json:"name"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	GrossTotal decimal.Decimal `json:"gross_total"`
	Discount   decimal.Decimal `json:"discount"`
	Tax        decimal.Decimal `json:"tax"`
	FinalPrice decimal.Decimal `json:"final_price"`
}

// OrderCreatedEvent is emitted once per committed order.
type OrderCreatedEvent struct {
	OrderID        string              `json:"order_id"`
	CustomerEmail  string              `json:"customer_email"`
	CustomerName   string              `json:"customer_name,omitempty"`
	Lines          []OrderLine         `json:"lines"`
	Subtotal       decimal.Decimal     `json:"subtotal"`
	TotalDiscount  decimal.Decimal     `json:"total_discount"`
	TotalTax       decimal.Decimal     `json:"total_tax"`
	CouponCode     string              `json:"coupon_code,omitempty"`
	CouponDiscount decimal.Decimal     `json:"coupon_discount"`
	FinalTotal     decimal.Decimal     `json:"final_total"`
	PaymentMethod  enums.PaymentMethod `json:"payment_method"`
	PlacedAt       time.Time           `json:"placed_at"`
}

// OrderFailedOverEvent is emitted when an order could not reach the
// primary store and was parked in the failover sink instead.
type OrderFailedOverEvent struct {
	OrderID       string          `json:"order_id"`
	ObjectPath    string          `json:"object_path"`
	CustomerEmail string          `json:"customer_email"`
	FinalTotal    decimal.Decimal `json:"final_total"`
	ParkedAt      time.Time       `json:"parked_at"`
}

// CouponRedeemedEvent records a successful redemption against a coupon.
type CouponRedeemedEvent struct {
	CouponCode    string          `json:"coupon_code"`
	OrderID       string          `json:"order_id"`
	CustomerEmail string          `json:"customer_email"`
	Discount      decimal.Decimal `json:"discount"`
	RedeemedAt    time.Time       `json:"redeemed_at"`
}
