package controllers

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/asthahub/storefront-backend/api/responses"
	"github.com/asthahub/storefront-backend/api/validators"
	checkoutsvc "github.com/asthahub/storefront-backend/internal/checkout"
	"github.com/asthahub/storefront-backend/internal/pricing"
	pkgerrors "github.com/asthahub/storefront-backend/pkg/errors"
	"github.com/asthahub/storefront-backend/pkg/logger"
)

type cartItemRequest struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,gt=0"`
}

type cartCalculateRequest struct {
	Items      []cartItemRequest `json:"items" validate:"required,min=1,dive"`
	CouponCode string            `json:"couponCode,omitempty"`
	UserEmail  string            `json:"userEmail,omitempty" validate:"omitempty,email"`
	// UserTags is accepted for payload compatibility but never trusted;
	// targeting tags are resolved from the profile store.
	UserTags []string `json:"userTags,omitempty"`
}

type cartLineResponse struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	Discount  decimal.Decimal `json:"discount"`
	Tax       decimal.Decimal `json:"tax"`
	Total     decimal.Decimal `json:"total"`
	Missing   bool            `json:"missing,omitempty"`
}

type cartSummaryResponse struct {
	Subtotal       decimal.Decimal `json:"subtotal"`
	TotalDiscount  decimal.Decimal `json:"totalDiscount"`
	TotalTax       decimal.Decimal `json:"totalTax"`
	CouponCode     string          `json:"couponCode,omitempty"`
	CouponDiscount decimal.Decimal `json:"couponDiscount"`
	CouponError    string          `json:"couponError,omitempty"`
	FinalTotal     decimal.Decimal `json:"finalTotal"`
}

type cartCalculateResponse struct {
	Items   []cartLineResponse  `json:"items"`
	Summary cartSummaryResponse `json:"summary"`
}

// CartCalculate prices a cart for display. The response is advisory; the
// commit path re-prices from scratch.
func CartCalculate(previewer *checkoutsvc.Previewer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if previewer == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "pricing service unavailable"))
			return
		}

		var payload cartCalculateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]pricing.Request, 0, len(payload.Items))
		for _, item := range payload.Items {
			items = append(items, pricing.Request{
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
			})
		}

		result, err := previewer.Preview(r.Context(), checkoutsvc.PreviewInput{
			Items:      items,
			CouponCode: payload.CouponCode,
			Email:      payload.UserEmail,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newCartCalculateResponse(result))
	}
}

func newCartCalculateResponse(result *checkoutsvc.PreviewResult) cartCalculateResponse {
	lines := make([]cartLineResponse, 0, len(result.Pricing.Lines))
	for _, line := range result.Pricing.Lines {
		lines = append(lines, cartLineResponse{
			ProductID: line.ProductID,
			Name:      line.Name,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			Subtotal:  line.Subtotal,
			Discount:  line.DiscountAmount,
			Tax:       line.TaxAmount,
			Total:     line.Total,
			Missing:   line.Missing,
		})
	}
	return cartCalculateResponse{
		Items: lines,
		Summary: cartSummaryResponse{
			Subtotal:       result.Pricing.Summary.Subtotal,
			TotalDiscount:  result.Pricing.Summary.TotalDiscount,
			TotalTax:       result.Pricing.Summary.TotalTax,
			CouponCode:     result.CouponCode,
			CouponDiscount: result.CouponDiscount,
			CouponError:    result.CouponError,
			FinalTotal:     result.FinalTotal,
		},
	}
}
