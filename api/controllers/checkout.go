package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/asthahub/storefront-backend/api/responses"
	"github.com/asthahub/storefront-backend/api/validators"
	checkoutsvc "github.com/asthahub/storefront-backend/internal/checkout"
	"github.com/asthahub/storefront-backend/internal/pricing"
	"github.com/asthahub/storefront-backend/pkg/enums"
	pkgerrors "github.com/asthahub/storefront-backend/pkg/errors"
	"github.com/asthahub/storefront-backend/pkg/logger"
	"github.com/asthahub/storefront-backend/pkg/types"
)

type checkoutCustomerRequest struct {
	Name    string `json:"name" validate:"required,min=1"`
	Phone   string `json:"phone" validate:"required,min=11"`
	Address string `json:"address" validate:"required,min=5"`
}

type checkoutPaymentRequest struct {
	Method string `json:"method" validate:"required,oneof=cod other"`
	TrxID  string `json:"trxId,omitempty"`
}

type checkoutRequest struct {
	Items      []cartItemRequest       `json:"items" validate:"required,min=1,dive"`
	Customer   checkoutCustomerRequest `json:"customer" validate:"required"`
	Payment    checkoutPaymentRequest  `json:"payment" validate:"required"`
	CouponCode string                  `json:"couponCode,omitempty"`
	UserEmail  string                  `json:"userEmail,omitempty" validate:"omitempty,email"`
	// UserTags is accepted for payload compatibility but never trusted.
	UserTags []string `json:"userTags,omitempty"`
}

type checkoutResponse struct {
	Success bool   `json:"success"`
	OrderID string `json:"orderId"`
	Message string `json:"message,omitempty"`
}

// Checkout commits the order through the transaction coordinator. A parked
// order still answers success; the message carries the reconciliation
// caveat.
func Checkout(svc *checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		raw, err := json.Marshal(payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encoding order payload"))
			return
		}

		items := make([]pricing.Request, 0, len(payload.Items))
		for _, item := range payload.Items {
			items = append(items, pricing.Request{
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
			})
		}

		result, err := svc.PlaceOrder(r.Context(), checkoutsvc.PlaceOrderInput{
			Items: items,
			Customer: checkoutsvc.Customer{
				Name:    payload.Customer.Name,
				Phone:   payload.Customer.Phone,
				Address: payload.Customer.Address,
				Email:   payload.UserEmail,
			},
			Payment: checkoutsvc.Payment{
				Method: enums.PaymentMethod(payload.Payment.Method),
				TrxID:  payload.Payment.TrxID,
			},
			CouponCode: payload.CouponCode,
			Security: types.SecurityMeta{
				IP:        clientAddress(r),
				UserAgent: r.UserAgent(),
			},
			RawPayload: raw,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := checkoutResponse{Success: true, OrderID: result.OrderID}
		if result.FailedOver {
			resp.Message = "order accepted and queued for reconciliation"
			responses.WriteSuccessStatus(w, http.StatusAccepted, resp)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, resp)
	}
}
