package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/asthahub/storefront-backend/pkg/enums"
	pkgerrors "github.com/asthahub/storefront-backend/pkg/errors"
	"github.com/asthahub/storefront-backend/pkg/money"
)

// DefaultMaxQtyPerItem caps any single line regardless of stock.
const DefaultMaxQtyPerItem = 450

// Product is the trusted catalog snapshot a line is priced against.
// Client-supplied prices and names never enter the calculation.
type Product struct {
	ID              string
	Name            string
	Category        string
	Price           decimal.Decimal
	Stock           int
	StockKnown      bool
	TaxPercent      decimal.Decimal
	DiscountType    enums.ProductDiscountType
	DiscountValue   decimal.Decimal
	DiscountFlat    decimal.Decimal
	DiscountPercent decimal.Decimal
}

// Request is one requested line: a product reference and a quantity.
type Request struct {
	ProductID string
	Quantity  int
}

// Line is one fully priced cart line.
type Line struct {
	ProductID      string
	Name           string
	Category       string
	UnitPrice      decimal.Decimal
	Quantity       int
	Subtotal       decimal.Decimal
	DiscountAmount decimal.Decimal
	TaxAmount      decimal.Decimal
	Total          decimal.Decimal
	Missing        bool
}

// Summary aggregates line totals before any coupon is applied.
type Summary struct {
	Subtotal      decimal.Decimal
	TotalDiscount decimal.Decimal
	TotalTax      decimal.Decimal
	FinalTotal    decimal.Decimal
}

// Result is the priced cart.
type Result struct {
	Lines   []Line
	Summary Summary
}

// MissingProductPolicy controls what happens when a requested product has
// no catalog entry.
type MissingProductPolicy int

const (
	// MissingZeroPlaceholder prices the unknown line at zero. Used by the
	// preview endpoint so a stale cart still renders.
	MissingZeroPlaceholder MissingProductPolicy = iota
	// MissingFail rejects the whole cart. Used by the commit path.
	MissingFail
)

// Options tunes a pricing run.
type Options struct {
	MissingProduct MissingProductPolicy
	MaxQtyPerItem  int
}

// Price computes every line and the aggregate summary from trusted catalog
// snapshots. It is deterministic and touches no external state. Amounts are
// rounded to two decimal places at every intermediate step so that repeated
// runs over the same inputs agree to the cent.
func Price(requests []Request, catalog map[string]Product, opts Options) (*Result, error) {
	maxQty := opts.MaxQtyPerItem
	if maxQty <= 0 {
		maxQty = DefaultMaxQtyPerItem
	}

	lines := make([]Line, 0, len(requests))
	summary := Summary{
		Subtotal:      decimal.Zero,
		TotalDiscount: decimal.Zero,
		TotalTax:      decimal.Zero,
		FinalTotal:    decimal.Zero,
	}

	for _, req := range requests {
		product, ok := catalog[req.ProductID]
		if !ok {
			if opts.MissingProduct == MissingFail {
				return nil, pkgerrors.New(pkgerrors.CodeProductNotFound,
					fmt.Sprintf("product %s not found", req.ProductID))
			}
			product = Product{
				ID:         req.ProductID,
				Name:       fmt.Sprintf("Product %s (Not Found)", req.ProductID),
				Category:   "Unknown",
				Price:      decimal.Zero,
				Stock:      0,
				StockKnown: true,
			}
		}

		line := priceLine(req, product, maxQty)
		line.Missing = !ok
		lines = append(lines, line)

		summary.Subtotal = money.Round2(summary.Subtotal.Add(line.Subtotal))
		summary.TotalDiscount = money.Round2(summary.TotalDiscount.Add(line.DiscountAmount))
		summary.TotalTax = money.Round2(summary.TotalTax.Add(line.TaxAmount))
		summary.FinalTotal = money.Round2(summary.FinalTotal.Add(line.Total))
	}

	return &Result{Lines: lines, Summary: summary}, nil
}

func priceLine(req Request, product Product, maxQty int) Line {
	qty := req.Quantity
	if qty < 1 {
		qty = 1
	}
	if product.StockKnown && qty > product.Stock {
		qty = product.Stock
	}
	if qty > maxQty {
		qty = maxQty
	}

	qtyDec := decimal.NewFromInt(int64(qty))
	gross := product.Price.Mul(qtyDec)

	discount := lineDiscount(product, gross, qtyDec)

	// never discount below zero money
	discount = money.Round2(money.Min(discount, gross))
	afterDiscount := money.Round2(gross.Sub(discount))
	tax := money.Percent(afterDiscount, product.TaxPercent)
	total := money.Round2(afterDiscount.Add(tax))

	return Line{
		ProductID:      req.ProductID,
		Name:           product.Name,
		Category:       product.Category,
		UnitPrice:      product.Price,
		Quantity:       qty,
		Subtotal:       money.Round2(gross),
		DiscountAmount: discount,
		TaxAmount:      tax,
		Total:          total,
	}
}

func lineDiscount(product Product, gross, qty decimal.Decimal) decimal.Decimal {
	// structured descriptor wins over legacy fields
	if product.DiscountType != enums.ProductDiscountNone && !product.DiscountValue.IsZero() {
		switch product.DiscountType {
		case enums.ProductDiscountPercent:
			return money.Percent(gross, product.DiscountValue)
		case enums.ProductDiscountFixed:
			return product.DiscountValue.Mul(qty)
		}
	}
	if product.DiscountFlat.IsPositive() {
		return product.DiscountFlat.Mul(qty)
	}
	return money.Percent(gross, product.DiscountPercent)
}
