package coupon

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/asthahub/storefront-backend/internal/pricing"
	"github.com/asthahub/storefront-backend/pkg/enums"
	pkgerrors "github.com/asthahub/storefront-backend/pkg/errors"
	"github.com/asthahub/storefront-backend/pkg/money"
)

// UserContext carries the verified identity facts targeting predicates run
// against. Tags come from the user profile store, never the request body.
type UserContext struct {
	Email string
	Tags  []string
}

// Validate runs the eligibility predicate chain in a fixed order and
// returns the first failure as a COUPON_INVALID error. The order matters:
// state checks first, then cart thresholds, then user targeting.
func Validate(c *Coupon, user UserContext, res *pricing.Result, now time.Time) error {
	if c == nil {
		return invalid("coupon not found")
	}
	if !c.IsActive {
		return invalid("coupon is inactive")
	}
	if c.Expired(now) {
		return invalid("coupon has expired")
	}
	if c.UsageExhausted() {
		return invalid("coupon usage limit reached")
	}
	if res.Summary.Subtotal.LessThan(c.MinOrderValue) {
		return invalid(fmt.Sprintf("minimum order of %s required", c.MinOrderValue.StringFixed(2)))
	}
	if c.MinCartItems > 0 && len(res.Lines) < c.MinCartItems {
		return invalid(fmt.Sprintf("minimum %d different items required", c.MinCartItems))
	}
	if user.Email != "" && contains(c.ExcludedEmails, user.Email) {
		return invalid("your account is not eligible for this coupon")
	}
	if len(c.AllowedEmails) > 0 && (user.Email == "" || !contains(c.AllowedEmails, user.Email)) {
		return invalid("your email is not in the allowed list for this coupon")
	}
	if len(c.UserTags) > 0 && !intersects(c.UserTags, user.Tags) {
		return invalid("you do not have the required user group for this coupon")
	}
	return nil
}

// Discount computes the coupon benefit against the priced cart. The
// eligible base honors category targeting and is net of per-item
// discounts. FREE_SHIPPING contributes nothing to the order total.
func Discount(c *Coupon, res *pricing.Result) (decimal.Decimal, error) {
	eligible := eligibleSubtotal(c, res)
	if !eligible.IsPositive() {
		return decimal.Zero, invalid("no eligible items in cart for this coupon")
	}

	var discount decimal.Decimal
	switch c.Type {
	case enums.CouponPercentage:
		discount = money.Percent(eligible, c.Value)
		if c.MaxDiscountAmount != nil && c.MaxDiscountAmount.IsPositive() {
			discount = money.Min(discount, *c.MaxDiscountAmount)
		}
	case enums.CouponFlat:
		discount = money.Min(c.Value, eligible)
	case enums.CouponFreeShipping:
		discount = decimal.Zero
	default:
		return decimal.Zero, invalid(fmt.Sprintf("unsupported coupon type %s", c.Type))
	}

	return money.Round2(discount), nil
}

func eligibleSubtotal(c *Coupon, res *pricing.Result) decimal.Decimal {
	if len(c.TargetCategories) == 0 {
		return res.Summary.Subtotal.Sub(res.Summary.TotalDiscount)
	}
	eligible := decimal.Zero
	for _, line := range res.Lines {
		if contains(c.TargetCategories, line.Category) {
			eligible = eligible.Add(line.Subtotal.Sub(line.DiscountAmount))
		}
	}
	return eligible
}

func invalid(msg string) error {
	return pkgerrors.New(pkgerrors.CodeCouponInvalid, msg)
}

func contains(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}

func intersects(a, b []string) bool {
	for _, item := range a {
		if contains(b, item) {
			return true
		}
	}
	return false
}
