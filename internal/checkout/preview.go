package checkout

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/asthahub/storefront-backend/internal/catalog"
	"github.com/asthahub/storefront-backend/internal/coupon"
	"github.com/asthahub/storefront-backend/internal/pricing"
	"github.com/asthahub/storefront-backend/pkg/config"
	pkgerrors "github.com/asthahub/storefront-backend/pkg/errors"
	"github.com/asthahub/storefront-backend/pkg/logger"
	"github.com/asthahub/storefront-backend/pkg/money"
)

// PreviewInput is a cart the client wants priced without committing.
type PreviewInput struct {
	Items      []pricing.Request
	CouponCode string
	Email      string
}

// PreviewResult mirrors the commit-time calculation for display. A coupon
// that fails eligibility sets CouponError and contributes nothing, the rest
// of the cart still prices.
type PreviewResult struct {
	Pricing        *pricing.Result
	CouponCode     string
	CouponDiscount decimal.Decimal
	CouponError    string
	FinalTotal     decimal.Decimal
}

// Previewer prices carts with plain reads. It shares the engine and the
// coupon predicate chain with the coordinator so a previewed total never
// disagrees with the committed one.
type Previewer struct {
	products *catalog.Repository
	coupons  *coupon.Repository
	profiles ProfileSource
	cfg      config.CheckoutConfig
	logg     *logger.Logger
	now      func() time.Time
}

// NewPreviewer builds the preview pricer. Profiles and Logger may be nil.
func NewPreviewer(products *catalog.Repository, coupons *coupon.Repository, profiles ProfileSource, cfg config.CheckoutConfig, logg *logger.Logger) *Previewer {
	return &Previewer{
		products: products,
		coupons:  coupons,
		profiles: profiles,
		cfg:      cfg,
		logg:     logg,
		now:      time.Now,
	}
}

// Preview prices the cart. Unknown products render as zero-priced
// placeholders so a stale cart still gets a quote.
func (p *Previewer) Preview(ctx context.Context, in PreviewInput) (*PreviewResult, error) {
	if len(in.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one item is required")
	}

	ids := make([]string, 0, len(in.Items))
	for _, item := range in.Items {
		if strings.TrimSpace(item.ProductID) == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required on every item")
		}
		ids = append(ids, item.ProductID)
	}

	products, err := p.products.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	res, err := pricing.Price(in.Items, activeSnapshot(products), pricing.Options{
		MissingProduct: pricing.MissingZeroPlaceholder,
		MaxQtyPerItem:  p.cfg.MaxQtyPerItem,
	})
	if err != nil {
		return nil, err
	}

	result := &PreviewResult{
		Pricing:        res,
		CouponDiscount: decimal.Zero,
		FinalTotal:     res.Summary.FinalTotal,
	}

	code := strings.TrimSpace(in.CouponCode)
	if code == "" {
		return result, nil
	}
	result.CouponCode = code

	discount, couponErr, err := p.previewCoupon(ctx, code, in.Email, res)
	if err != nil {
		return nil, err
	}
	result.CouponError = couponErr
	result.CouponDiscount = discount
	result.FinalTotal = money.ClampNonNegative(money.Round2(res.Summary.FinalTotal.Sub(discount)))
	return result, nil
}

// previewCoupon runs the same predicate chain as the commit path. An
// eligibility failure comes back as a display string, not an error; the
// preview succeeds with a zero coupon discount.
func (p *Previewer) previewCoupon(ctx context.Context, code, email string, res *pricing.Result) (decimal.Decimal, string, error) {
	c, err := p.coupons.FindByCode(ctx, code)
	if err != nil {
		return decimal.Zero, "", err
	}

	user := coupon.UserContext{Email: strings.ToLower(strings.TrimSpace(email))}
	if p.profiles != nil && user.Email != "" {
		user, err = p.profiles.UserContext(ctx, email)
		if err != nil {
			return decimal.Zero, "", err
		}
	}

	if err := coupon.Validate(c, user, res, p.now()); err != nil {
		return decimal.Zero, couponMessage(err), nil
	}
	discount, err := coupon.Discount(c, res)
	if err != nil {
		return decimal.Zero, couponMessage(err), nil
	}
	return discount, "", nil
}

func couponMessage(err error) string {
	if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeCouponInvalid {
		return typed.Message()
	}
	return "coupon cannot be applied"
}
