package controllers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/asthahub/storefront-backend/api/responses"
	checkoutsvc "github.com/asthahub/storefront-backend/internal/checkout"
	pkgerrors "github.com/asthahub/storefront-backend/pkg/errors"
	"github.com/asthahub/storefront-backend/pkg/logger"
	"github.com/asthahub/storefront-backend/pkg/types"
)

type orderResponse struct {
	OrderID         string           `json:"orderId"`
	CustomerName    string           `json:"customerName"`
	CustomerEmail   string           `json:"customerEmail,omitempty"`
	Items           types.OrderLines `json:"items"`
	Subtotal        decimal.Decimal  `json:"subtotal"`
	TotalDiscount   decimal.Decimal  `json:"totalDiscount"`
	TotalTax        decimal.Decimal  `json:"totalTax"`
	CouponCode      *string          `json:"couponCode,omitempty"`
	CouponDiscount  decimal.Decimal  `json:"couponDiscount"`
	FinalTotal      decimal.Decimal  `json:"finalTotal"`
	PaymentMethod   string           `json:"paymentMethod"`
	PaymentStatus   string           `json:"paymentStatus"`
	PaymentVerified bool             `json:"paymentVerified"`
	Status          string           `json:"status"`
	PlacedAt        time.Time        `json:"placedAt"`
}

func newOrderResponse(order *checkoutsvc.Order) orderResponse {
	return orderResponse{
		OrderID:         order.ID,
		CustomerName:    order.CustomerName,
		CustomerEmail:   order.CustomerEmail,
		Items:           order.Lines,
		Subtotal:        order.Subtotal,
		TotalDiscount:   order.TotalDiscount,
		TotalTax:        order.TotalTax,
		CouponCode:      order.CouponCode,
		CouponDiscount:  order.CouponDiscount,
		FinalTotal:      order.FinalTotal,
		PaymentMethod:   string(order.PaymentMethod),
		PaymentStatus:   string(order.PaymentStatus),
		PaymentVerified: order.PaymentVerified,
		Status:          string(order.Status),
		PlacedAt:        order.PlacedAt,
	}
}

// OrderDetail returns one committed order by id.
func OrderDetail(repo *checkoutsvc.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID := strings.TrimSpace(chi.URLParam(r, "orderId"))
		if orderID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "order id is required"))
			return
		}

		order, err := repo.FindByID(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if order == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "order not found"))
			return
		}

		responses.WriteSuccess(w, newOrderResponse(order))
	}
}

// OrderList returns a customer's recent orders, newest first.
func OrderList(repo *checkoutsvc.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		email := strings.TrimSpace(r.URL.Query().Get("email"))
		if email == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "email query parameter is required"))
			return
		}

		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed <= 0 {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "limit must be a positive integer"))
				return
			}
			limit = parsed
		}

		orders, err := repo.ListByEmail(r.Context(), email, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]orderResponse, 0, len(orders))
		for i := range orders {
			out = append(out, newOrderResponse(&orders[i]))
		}
		responses.WriteSuccess(w, out)
	}
}
