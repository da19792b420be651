package catalog

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/asthahub/storefront-backend/internal/pricing"
	"github.com/asthahub/storefront-backend/pkg/enums"
)

// Product is the catalog row all pricing trusts. Client payloads carry
// product IDs and quantities only; everything else comes from here.
type Product struct {
	ID              string                    `gorm:"column:id;primaryKey"`
	Name            string                    `gorm:"column:name;not null"`
	Category        string                    `gorm:"column:category;not null;default:''"`
	Price           decimal.Decimal           `gorm:"column:price;type:numeric(12,2);not null"`
	Stock           int                       `gorm:"column:stock;not null;default:0"`
	TaxPercent      decimal.Decimal           `gorm:"column:tax_percent;type:numeric(5,2);not null;default:0"`
	DiscountType    enums.ProductDiscountType `gorm:"column:discount_type;not null;default:''"`
	DiscountValue   decimal.Decimal           `gorm:"column:discount_value;type:numeric(12,2);not null;default:0"`
	DiscountFlat    decimal.Decimal           `gorm:"column:discount_flat;type:numeric(12,2);not null;default:0"`
	DiscountPercent decimal.Decimal           `gorm:"column:discount_percent;type:numeric(5,2);not null;default:0"`
	IsActive        bool                      `gorm:"column:is_active;not null"`
	CreatedAt       time.Time                 `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time                 `gorm:"column:updated_at;autoUpdateTime"`
}

func (Product) TableName() string { return "products" }

// Snapshot converts the row into the immutable shape the pricing engine
// consumes.
func (p *Product) Snapshot() pricing.Product {
	return pricing.Product{
		ID:              p.ID,
		Name:            p.Name,
		Category:        p.Category,
		Price:           p.Price,
		Stock:           p.Stock,
		StockKnown:      true,
		TaxPercent:      p.TaxPercent,
		DiscountType:    p.DiscountType,
		DiscountValue:   p.DiscountValue,
		DiscountFlat:    p.DiscountFlat,
		DiscountPercent: p.DiscountPercent,
	}
}

// SnapshotMap builds the catalog map for a pricing run.
func SnapshotMap(products []Product) map[string]pricing.Product {
	snapshots := make(map[string]pricing.Product, len(products))
	for i := range products {
		snapshots[products[i].ID] = products[i].Snapshot()
	}
	return snapshots
}
