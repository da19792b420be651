package coupon

import (
	"strings"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/asthahub/storefront-backend/internal/pricing"
	"github.com/asthahub/storefront-backend/pkg/enums"
	pkgerrors "github.com/asthahub/storefront-backend/pkg/errors"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func intPtr(v int) *int { return &v }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func pricedCart() *pricing.Result {
	return &pricing.Result{
		Lines: []pricing.Line{
			{ProductID: "a", Category: "grocery", Subtotal: dec("1000.00"), DiscountAmount: dec("100.00"), Total: dec("900.00")},
			{ProductID: "b", Category: "care", Subtotal: dec("500.00"), DiscountAmount: dec("0.00"), Total: dec("500.00")},
		},
		Summary: pricing.Summary{
			Subtotal:      dec("1500.00"),
			TotalDiscount: dec("100.00"),
			TotalTax:      dec("0.00"),
			FinalTotal:    dec("1400.00"),
		},
	}
}

func activeCoupon() *Coupon {
	return &Coupon{
		Code:          "SAVE10",
		Type:          enums.CouponPercentage,
		Value:         dec("10"),
		MinOrderValue: dec("0"),
		IsActive:      true,
	}
}

func assertInvalid(t *testing.T, err error, fragment string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected COUPON_INVALID error containing %q", fragment)
	}
	if !pkgerrors.HasCode(err, pkgerrors.CodeCouponInvalid) {
		t.Fatalf("unexpected error code: %v", err)
	}
	if !strings.Contains(err.Error(), fragment) {
		t.Fatalf("error %q does not mention %q", err.Error(), fragment)
	}
}

func TestValidateActiveCouponPasses(t *testing.T) {
	if err := Validate(activeCoupon(), UserContext{}, pricedCart(), time.Now()); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateInactive(t *testing.T) {
	c := activeCoupon()
	c.IsActive = false
	assertInvalid(t, Validate(c, UserContext{}, pricedCart(), time.Now()), "inactive")
}

func TestValidateExpired(t *testing.T) {
	c := activeCoupon()
	past := time.Now().Add(-time.Hour)
	c.ExpiresAt = &past
	assertInvalid(t, Validate(c, UserContext{}, pricedCart(), time.Now()), "expired")
}

func TestValidateNilExpiryNeverExpires(t *testing.T) {
	c := activeCoupon()
	c.ExpiresAt = nil
	if err := Validate(c, UserContext{}, pricedCart(), time.Now().AddDate(10, 0, 0)); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateUsageLimit(t *testing.T) {
	c := activeCoupon()
	c.UsageLimit = intPtr(5)
	c.UsedCount = 5
	assertInvalid(t, Validate(c, UserContext{}, pricedCart(), time.Now()), "usage limit")

	c.UsedCount = 4
	if err := Validate(c, UserContext{}, pricedCart(), time.Now()); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateMinOrderValue(t *testing.T) {
	c := activeCoupon()
	c.MinOrderValue = dec("2000")
	assertInvalid(t, Validate(c, UserContext{}, pricedCart(), time.Now()), "minimum order")
}

func TestValidateMinCartItemsCountsDistinctLines(t *testing.T) {
	c := activeCoupon()
	c.MinCartItems = 3
	// two distinct lines regardless of quantities
	assertInvalid(t, Validate(c, UserContext{}, pricedCart(), time.Now()), "different items")

	c.MinCartItems = 2
	if err := Validate(c, UserContext{}, pricedCart(), time.Now()); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateExcludedEmail(t *testing.T) {
	c := activeCoupon()
	c.ExcludedEmails = pq.StringArray{"blocked@example.com"}
	assertInvalid(t, Validate(c, UserContext{Email: "blocked@example.com"}, pricedCart(), time.Now()), "not eligible")

	if err := Validate(c, UserContext{Email: "fine@example.com"}, pricedCart(), time.Now()); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateAllowedEmails(t *testing.T) {
	c := activeCoupon()
	c.AllowedEmails = pq.StringArray{"vip@example.com"}

	assertInvalid(t, Validate(c, UserContext{Email: "other@example.com"}, pricedCart(), time.Now()), "allowed list")
	assertInvalid(t, Validate(c, UserContext{}, pricedCart(), time.Now()), "allowed list")

	if err := Validate(c, UserContext{Email: "vip@example.com"}, pricedCart(), time.Now()); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateUserTagsIntersect(t *testing.T) {
	c := activeCoupon()
	c.UserTags = pq.StringArray{"wholesale", "staff"}

	assertInvalid(t, Validate(c, UserContext{Email: "a@b.c", Tags: []string{"retail"}}, pricedCart(), time.Now()), "user group")

	if err := Validate(c, UserContext{Email: "a@b.c", Tags: []string{"staff"}}, pricedCart(), time.Now()); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestDiscountPercentageOverNetSubtotal(t *testing.T) {
	c := activeCoupon()
	// eligible = 1500 - 100 = 1400, 10% = 140
	got, err := Discount(c, pricedCart())
	if err != nil {
		t.Fatalf("Discount: %v", err)
	}
	if !got.Equal(dec("140.00")) {
		t.Fatalf("discount = %s", got)
	}
}

func TestDiscountPercentageCappedByMax(t *testing.T) {
	c := activeCoupon()
	c.MaxDiscountAmount = decPtr("50")
	got, err := Discount(c, pricedCart())
	if err != nil {
		t.Fatalf("Discount: %v", err)
	}
	if !got.Equal(dec("50.00")) {
		t.Fatalf("discount = %s", got)
	}
}

func TestDiscountFlatCappedByEligible(t *testing.T) {
	c := activeCoupon()
	c.Type = enums.CouponFlat
	c.Value = dec("5000")
	got, err := Discount(c, pricedCart())
	if err != nil {
		t.Fatalf("Discount: %v", err)
	}
	if !got.Equal(dec("1400.00")) {
		t.Fatalf("discount = %s", got)
	}
}

func TestDiscountFreeShippingContributesZero(t *testing.T) {
	c := activeCoupon()
	c.Type = enums.CouponFreeShipping
	got, err := Discount(c, pricedCart())
	if err != nil {
		t.Fatalf("Discount: %v", err)
	}
	if !got.IsZero() {
		t.Fatalf("discount = %s, want 0", got)
	}
}

func TestDiscountTargetCategoriesNarrowEligibleBase(t *testing.T) {
	c := activeCoupon()
	c.TargetCategories = pq.StringArray{"grocery"}
	// eligible = 1000 - 100 = 900, 10% = 90
	got, err := Discount(c, pricedCart())
	if err != nil {
		t.Fatalf("Discount: %v", err)
	}
	if !got.Equal(dec("90.00")) {
		t.Fatalf("discount = %s", got)
	}
}

func TestDiscountNoEligibleItems(t *testing.T) {
	c := activeCoupon()
	c.TargetCategories = pq.StringArray{"electronics"}
	_, err := Discount(c, pricedCart())
	assertInvalid(t, err, "eligible items")
}
