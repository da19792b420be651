package checkout

import (
	"context"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/asthahub/storefront-backend/internal/catalog"
	"github.com/asthahub/storefront-backend/internal/coupon"
	"github.com/asthahub/storefront-backend/internal/pricing"
	"github.com/asthahub/storefront-backend/pkg/config"
	"github.com/asthahub/storefront-backend/pkg/enums"
	pkgerrors "github.com/asthahub/storefront-backend/pkg/errors"
)

func newTestPreviewer(t *testing.T, db *gorm.DB) *Previewer {
	t.Helper()
	return NewPreviewer(
		catalog.NewRepository(db),
		coupon.NewRepository(db),
		nil,
		config.CheckoutConfig{},
		nil,
	)
}

func seedFlatCoupon(t *testing.T, db *gorm.DB, mutate func(*coupon.Coupon)) {
	t.Helper()
	c := coupon.Coupon{
		Code:     "SAVE50",
		Type:     enums.CouponFlat,
		Value:    dec("50"),
		IsActive: true,
	}
	if mutate != nil {
		mutate(&c)
	}
	if err := db.Create(&c).Error; err != nil {
		t.Fatalf("seed coupon: %v", err)
	}
}

func TestPreviewPricesCart(t *testing.T) {
	db := newTestDB(t)
	seedProduct(t, db, teaProduct())
	previewer := newTestPreviewer(t, db)

	res, err := previewer.Preview(context.Background(), PreviewInput{
		Items: []pricing.Request{{ProductID: "tea-100", Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if !res.FinalTotal.Equal(dec("189.00")) {
		t.Fatalf("final total = %s", res.FinalTotal)
	}
	if len(res.Pricing.Lines) != 1 || res.Pricing.Lines[0].Quantity != 2 {
		t.Fatalf("unexpected lines %+v", res.Pricing.Lines)
	}
	if res.CouponError != "" {
		t.Fatalf("unexpected coupon error %q", res.CouponError)
	}
}

func TestPreviewUnknownProductPricesAsZero(t *testing.T) {
	db := newTestDB(t)
	seedProduct(t, db, teaProduct())
	previewer := newTestPreviewer(t, db)

	res, err := previewer.Preview(context.Background(), PreviewInput{
		Items: []pricing.Request{
			{ProductID: "tea-100", Quantity: 2},
			{ProductID: "ghost-1", Quantity: 1},
		},
	})
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if !res.FinalTotal.Equal(dec("189.00")) {
		t.Fatalf("final total = %s", res.FinalTotal)
	}
	if !res.Pricing.Lines[1].Missing {
		t.Fatalf("expected the unknown line to be flagged missing")
	}
	if !res.Pricing.Lines[1].Total.IsZero() {
		t.Fatalf("unknown line should price at zero, got %s", res.Pricing.Lines[1].Total)
	}
}

func TestPreviewAppliesCoupon(t *testing.T) {
	db := newTestDB(t)
	seedProduct(t, db, teaProduct())
	seedFlatCoupon(t, db, nil)
	previewer := newTestPreviewer(t, db)

	res, err := previewer.Preview(context.Background(), PreviewInput{
		Items:      []pricing.Request{{ProductID: "tea-100", Quantity: 2}},
		CouponCode: "SAVE50",
		Email:      "farah@example.com",
	})
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if !res.CouponDiscount.Equal(dec("50")) {
		t.Fatalf("coupon discount = %s", res.CouponDiscount)
	}
	if !res.FinalTotal.Equal(dec("139.00")) {
		t.Fatalf("final total = %s", res.FinalTotal)
	}
}

func TestPreviewExpiredCouponKeepsTotals(t *testing.T) {
	db := newTestDB(t)
	seedProduct(t, db, teaProduct())
	past := time.Now().Add(-time.Hour)
	seedFlatCoupon(t, db, func(c *coupon.Coupon) { c.ExpiresAt = &past })
	previewer := newTestPreviewer(t, db)

	res, err := previewer.Preview(context.Background(), PreviewInput{
		Items:      []pricing.Request{{ProductID: "tea-100", Quantity: 2}},
		CouponCode: "SAVE50",
	})
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if res.CouponError == "" {
		t.Fatalf("expected a coupon error")
	}
	if !res.CouponDiscount.IsZero() {
		t.Fatalf("expired coupon must not discount, got %s", res.CouponDiscount)
	}
	if !res.FinalTotal.Equal(dec("189.00")) {
		t.Fatalf("final total = %s", res.FinalTotal)
	}
}

func TestPreviewUnknownCouponReportsError(t *testing.T) {
	db := newTestDB(t)
	seedProduct(t, db, teaProduct())
	previewer := newTestPreviewer(t, db)

	res, err := previewer.Preview(context.Background(), PreviewInput{
		Items:      []pricing.Request{{ProductID: "tea-100", Quantity: 2}},
		CouponCode: "NOPE",
	})
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if res.CouponError == "" {
		t.Fatalf("expected a coupon error for an unknown code")
	}
	if !res.FinalTotal.Equal(dec("189.00")) {
		t.Fatalf("final total = %s", res.FinalTotal)
	}
}

func TestPreviewMatchesCommittedTotals(t *testing.T) {
	db := newTestDB(t)
	seedProduct(t, db, teaProduct())
	previewer := newTestPreviewer(t, db)
	svc := newTestService(t, db, nil)

	preview, err := previewer.Preview(context.Background(), PreviewInput{
		Items: []pricing.Request{{ProductID: "tea-100", Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}

	committed, err := svc.PlaceOrder(context.Background(), basicInput(pricing.Request{ProductID: "tea-100", Quantity: 2}))
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}

	if !preview.FinalTotal.Equal(committed.FinalTotal) {
		t.Fatalf("preview %s != committed %s", preview.FinalTotal, committed.FinalTotal)
	}
}

func TestPreviewValidatesInput(t *testing.T) {
	db := newTestDB(t)
	previewer := newTestPreviewer(t, db)

	_, err := previewer.Preview(context.Background(), PreviewInput{})
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected VALIDATION_ERROR, got %v", err)
	}

	_, err = previewer.Preview(context.Background(), PreviewInput{
		Items: []pricing.Request{{ProductID: "  ", Quantity: 1}},
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected VALIDATION_ERROR, got %v", err)
	}
}
