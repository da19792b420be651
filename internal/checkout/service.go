package checkout

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/asthahub/storefront-backend/internal/catalog"
	"github.com/asthahub/storefront-backend/internal/coupon"
	"github.com/asthahub/storefront-backend/internal/failover"
	"github.com/asthahub/storefront-backend/internal/pricing"
	"github.com/asthahub/storefront-backend/pkg/config"
	dbpkg "github.com/asthahub/storefront-backend/pkg/db"
	"github.com/asthahub/storefront-backend/pkg/enums"
	pkgerrors "github.com/asthahub/storefront-backend/pkg/errors"
	"github.com/asthahub/storefront-backend/pkg/logger"
	"github.com/asthahub/storefront-backend/pkg/metrics"
	"github.com/asthahub/storefront-backend/pkg/money"
	"github.com/asthahub/storefront-backend/pkg/orderid"
	"github.com/asthahub/storefront-backend/pkg/outbox"
	"github.com/asthahub/storefront-backend/pkg/outbox/payloads"
	"github.com/asthahub/storefront-backend/pkg/types"
)

// TxRunner runs a function inside a database transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ProfileSource resolves the verified targeting context for an email.
type ProfileSource interface {
	UserContext(ctx context.Context, email string) (coupon.UserContext, error)
}

// FailoverSink parks orders the primary store refused for capacity.
type FailoverSink interface {
	Park(ctx context.Context, req failover.ParkRequest) (failover.Receipt, error)
}

// Customer is the buyer contact block from the validated request.
type Customer struct {
	Name    string
	Phone   string
	Address string
	Email   string
}

// Payment is the declared payment instrument.
type Payment struct {
	Method enums.PaymentMethod
	TrxID  string
}

// PlaceOrderInput is a fully validated checkout request.
type PlaceOrderInput struct {
	Items      []pricing.Request
	Customer   Customer
	Payment    Payment
	CouponCode string
	Security   types.SecurityMeta
	// RawPayload is the validated request body. It is what the failover
	// sink parks when the primary store cannot take the write.
	RawPayload json.RawMessage
}

// PlaceOrderResult reports the committed (or parked) order.
type PlaceOrderResult struct {
	OrderID        string
	FailedOver     bool
	Pricing        *pricing.Result
	CouponDiscount decimal.Decimal
	FinalTotal     decimal.Decimal
}

// Service is the order transaction coordinator. It re-prices the cart from
// trusted catalog rows, mutates stock and coupon usage, and writes the
// order record, all inside one transaction.
type Service struct {
	db       TxRunner
	products *catalog.Repository
	coupons  *coupon.Repository
	profiles ProfileSource
	orders   *Repository
	events   *outbox.Service
	failover FailoverSink
	cfg      config.CheckoutConfig
	metrics  *metrics.CheckoutMetrics
	logg     *logger.Logger
	now      func() time.Time
	sleep    func(time.Duration)
}

// ServiceParams wires the coordinator's collaborators.
type ServiceParams struct {
	DB       TxRunner
	Products *catalog.Repository
	Coupons  *coupon.Repository
	Profiles ProfileSource
	Orders   *Repository
	Events   *outbox.Service
	Failover FailoverSink
	Config   config.CheckoutConfig
	Metrics  *metrics.CheckoutMetrics
	Logger   *logger.Logger
}

// NewService builds the coordinator. Profiles, Failover, Metrics and
// Logger may be nil; everything else is required.
func NewService(params ServiceParams) (*Service, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("database runner is required")
	}
	if params.Products == nil {
		return nil, fmt.Errorf("catalog repository is required")
	}
	if params.Coupons == nil {
		return nil, fmt.Errorf("coupon repository is required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("order repository is required")
	}
	if params.Events == nil {
		return nil, fmt.Errorf("outbox service is required")
	}
	return &Service{
		db:       params.DB,
		products: params.Products,
		coupons:  params.Coupons,
		profiles: params.Profiles,
		orders:   params.Orders,
		events:   params.Events,
		failover: params.Failover,
		cfg:      params.Config,
		metrics:  params.Metrics,
		logg:     params.Logger,
		now:      time.Now,
		sleep:    time.Sleep,
	}, nil
}

// PlaceOrder commits the order atomically. Write conflicts are retried a
// bounded number of times; capacity exhaustion falls through to the
// failover sink. The returned result carries the authoritative totals.
func (s *Service) PlaceOrder(ctx context.Context, in PlaceOrderInput) (*PlaceOrderResult, error) {
	start := s.now()

	if err := validateInput(in); err != nil {
		s.metrics.IncRejected("validation")
		return nil, err
	}

	var (
		result *PlaceOrderResult
		err    error
	)
	for attempt := 0; ; attempt++ {
		result, err = s.commit(ctx, in)
		if err == nil {
			break
		}
		if dbpkg.IsSerializationFailure(err) && attempt < s.maxRetries() {
			s.metrics.IncConflictRetry()
			s.sleep(s.retryBackoff())
			continue
		}
		break
	}

	if err == nil {
		s.metrics.IncCommitted(string(in.Payment.Method))
		s.metrics.ObserveDuration("committed", s.now().Sub(start))
		if s.logg != nil {
			logCtx := s.logg.WithOrderID(ctx, result.OrderID)
			logCtx = s.logg.WithField(logCtx, "final_total", result.FinalTotal.StringFixed(2))
			s.logg.Info(logCtx, "order committed")
		}
		return result, nil
	}

	if dbpkg.IsQuotaExhausted(err) {
		return s.parkOrder(ctx, in, start, err)
	}

	if dbpkg.IsSerializationFailure(err) {
		s.metrics.IncRejected("conflict")
		s.metrics.ObserveDuration("rejected", s.now().Sub(start))
		return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "checkout conflicted with concurrent orders")
	}

	if typed := pkgerrors.As(err); typed != nil {
		s.metrics.IncRejected(strings.ToLower(string(typed.Code())))
		s.metrics.ObserveDuration("rejected", s.now().Sub(start))
		return nil, err
	}

	s.metrics.IncRejected("internal")
	s.metrics.ObserveDuration("rejected", s.now().Sub(start))
	return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "placing order failed")
}

func (s *Service) commit(ctx context.Context, in PlaceOrderInput) (*PlaceOrderResult, error) {
	var result *PlaceOrderResult
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		ids := make([]string, 0, len(in.Items))
		for _, item := range in.Items {
			ids = append(ids, item.ProductID)
		}

		products, err := s.products.LockByIDsTx(tx, ids)
		if err != nil {
			return err
		}
		snapshot := activeSnapshot(products)

		res, err := pricing.Price(in.Items, snapshot, pricing.Options{
			MissingProduct: pricing.MissingFail,
			MaxQtyPerItem:  s.cfg.MaxQtyPerItem,
		})
		if err != nil {
			return err
		}

		for i, line := range res.Lines {
			desired := desiredQty(in.Items[i].Quantity, s.maxQty())
			if line.Quantity < desired {
				return pkgerrors.New(pkgerrors.CodeOutOfStock,
					fmt.Sprintf("insufficient stock for %s", line.ProductID))
			}
			ok, err := s.products.DecrementStockTx(tx, line.ProductID, line.Quantity)
			if err != nil {
				return err
			}
			if !ok {
				return pkgerrors.New(pkgerrors.CodeOutOfStock,
					fmt.Sprintf("insufficient stock for %s", line.ProductID))
			}
		}

		couponDiscount := decimal.Zero
		var applied *coupon.Coupon
		if code := strings.TrimSpace(in.CouponCode); code != "" {
			applied, couponDiscount, err = s.applyCoupon(ctx, tx, code, in.Customer.Email, res)
			if err != nil {
				return err
			}
		}

		finalTotal := money.ClampNonNegative(money.Round2(res.Summary.FinalTotal.Sub(couponDiscount)))
		placedAt := s.now()

		order := &Order{
			ID:            orderid.New(),
			CustomerEmail: in.Customer.Email,
			CustomerName:  in.Customer.Name,
			ShippingAddress: types.ShippingAddress{
				Phone:   in.Customer.Phone,
				Address: in.Customer.Address,
			},
			Lines:          orderLines(res.Lines),
			Subtotal:       res.Summary.Subtotal,
			TotalDiscount:  res.Summary.TotalDiscount,
			TotalTax:       res.Summary.TotalTax,
			CouponDiscount: couponDiscount,
			FinalTotal:     finalTotal,
			PaymentMethod:  in.Payment.Method,
			PaymentStatus:  enums.PaymentUnpaid,
			// settlement flips this later, outside the commit path
			PaymentVerified: false,
			SecurityMeta:   in.Security,
			Status:         enums.OrderPending,
			PlacedAt:       placedAt,
		}
		if applied != nil {
			order.CouponCode = &applied.Code
		}
		if in.Payment.TrxID != "" {
			order.PaymentTrxID = &in.Payment.TrxID
		}

		if err := s.orders.CreateTx(tx, order); err != nil {
			return err
		}

		if err := s.emitOrderCreated(ctx, tx, order, res, applied, couponDiscount); err != nil {
			return err
		}

		result = &PlaceOrderResult{
			OrderID:        order.ID,
			Pricing:        res,
			CouponDiscount: couponDiscount,
			FinalTotal:     finalTotal,
		}
		return nil
	})
	return result, err
}

func (s *Service) applyCoupon(ctx context.Context, tx *gorm.DB, code, email string, res *pricing.Result) (*coupon.Coupon, decimal.Decimal, error) {
	c, err := s.coupons.LockByCodeTx(tx, code)
	if err != nil {
		return nil, decimal.Zero, err
	}

	user := coupon.UserContext{Email: strings.TrimSpace(email)}
	if s.profiles != nil {
		user, err = s.profiles.UserContext(ctx, email)
		if err != nil {
			return nil, decimal.Zero, err
		}
	}

	if err := coupon.Validate(c, user, res, s.now()); err != nil {
		return nil, decimal.Zero, err
	}
	discount, err := coupon.Discount(c, res)
	if err != nil {
		return nil, decimal.Zero, err
	}

	claimed, err := s.coupons.IncrementUsageTx(tx, c.ID)
	if err != nil {
		return nil, decimal.Zero, err
	}
	if !claimed {
		return nil, decimal.Zero, pkgerrors.New(pkgerrors.CodeCouponInvalid, "coupon usage limit reached")
	}
	return c, discount, nil
}

func (s *Service) emitOrderCreated(ctx context.Context, tx *gorm.DB, order *Order, res *pricing.Result, applied *coupon.Coupon, couponDiscount decimal.Decimal) error {
	lines := make([]payloads.OrderLine, 0, len(res.Lines))
	for _, line := range res.Lines {
		lines = append(lines, payloads.OrderLine{
			ProductID:  line.ProductID,
			Name:       line.Name,
			Quantity:   line.Quantity,
			UnitPrice:  line.UnitPrice,
			GrossTotal: line.Subtotal,
			Discount:   line.DiscountAmount,
			Tax:        line.TaxAmount,
			FinalPrice: line.Total,
		})
	}

	event := payloads.OrderCreatedEvent{
		OrderID:        order.ID,
		CustomerEmail:  order.CustomerEmail,
		CustomerName:   order.CustomerName,
		Lines:          lines,
		Subtotal:       order.Subtotal,
		TotalDiscount:  order.TotalDiscount,
		TotalTax:       order.TotalTax,
		CouponDiscount: couponDiscount,
		FinalTotal:     order.FinalTotal,
		PaymentMethod:  order.PaymentMethod,
		PlacedAt:       order.PlacedAt,
	}
	if applied != nil {
		event.CouponCode = applied.Code
	}

	err := s.events.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Data:          event,
		Version:       1,
		OccurredAt:    order.PlacedAt,
	})
	if err != nil {
		return err
	}

	if applied == nil {
		return nil
	}
	return s.events.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventCouponRedeemed,
		AggregateType: enums.AggregateCoupon,
		AggregateID:   applied.ID.String(),
		Data: payloads.CouponRedeemedEvent{
			CouponCode:    applied.Code,
			OrderID:       order.ID,
			CustomerEmail: order.CustomerEmail,
			Discount:      couponDiscount,
			RedeemedAt:    order.PlacedAt,
		},
		Version:    1,
		OccurredAt: order.PlacedAt,
	})
}

// parkOrder hands the order to the failover sink. If parking also fails
// the order has nowhere to go and the caller gets a hard failure.
func (s *Service) parkOrder(ctx context.Context, in PlaceOrderInput, start time.Time, cause error) (*PlaceOrderResult, error) {
	if s.failover == nil {
		s.metrics.IncRejected("store_exhausted")
		s.metrics.ObserveDuration("rejected", s.now().Sub(start))
		return nil, pkgerrors.Wrap(pkgerrors.CodeStoreExhausted, cause, "primary store exhausted and no failover sink configured")
	}

	estimate := s.priceEstimate(ctx, in)

	receipt, parkErr := s.failover.Park(ctx, failover.ParkRequest{
		Payload:       in.RawPayload,
		CustomerEmail: in.Customer.Email,
		CustomerName:  in.Customer.Name,
		FinalTotal:    estimate,
	})
	if parkErr != nil {
		s.metrics.IncRejected("store_exhausted")
		s.metrics.ObserveDuration("rejected", s.now().Sub(start))
		if s.logg != nil {
			logCtx := s.logg.WithField(ctx, "primary_error", cause.Error())
			s.logg.Error(logCtx, "order lost both primary and failover stores", parkErr)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeStoreExhausted, parkErr, "order could not be persisted anywhere")
	}

	s.metrics.IncFailedOver()
	s.metrics.ObserveDuration("failed_over", s.now().Sub(start))
	if s.logg != nil {
		logCtx := s.logg.WithOrderID(ctx, receipt.OrderID)
		logCtx = s.logg.WithField(logCtx, "object_path", receipt.ObjectPath)
		s.logg.Warn(logCtx, "order parked pending reconciliation")
	}

	return &PlaceOrderResult{
		OrderID:    receipt.OrderID,
		FailedOver: true,
		FinalTotal: estimate,
	}, nil
}

// priceEstimate re-prices the cart with plain reads for the failover
// record. Reads may still work while writes are refused; when they do not,
// the parked payload itself remains the source of truth.
func (s *Service) priceEstimate(ctx context.Context, in PlaceOrderInput) decimal.Decimal {
	ids := make([]string, 0, len(in.Items))
	for _, item := range in.Items {
		ids = append(ids, item.ProductID)
	}
	products, err := s.products.FindByIDs(ctx, ids)
	if err != nil {
		return decimal.Zero
	}
	res, err := pricing.Price(in.Items, activeSnapshot(products), pricing.Options{
		MissingProduct: pricing.MissingZeroPlaceholder,
		MaxQtyPerItem:  s.cfg.MaxQtyPerItem,
	})
	if err != nil {
		return decimal.Zero
	}
	return res.Summary.FinalTotal
}

func (s *Service) maxRetries() int {
	if s.cfg.MaxConflictRetries > 0 {
		return s.cfg.MaxConflictRetries
	}
	return 3
}

func (s *Service) retryBackoff() time.Duration {
	if s.cfg.RetryBackoff > 0 {
		return s.cfg.RetryBackoff
	}
	return 25 * time.Millisecond
}

func (s *Service) maxQty() int {
	if s.cfg.MaxQtyPerItem > 0 {
		return s.cfg.MaxQtyPerItem
	}
	return pricing.DefaultMaxQtyPerItem
}

func validateInput(in PlaceOrderInput) error {
	if len(in.Items) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "at least one item is required")
	}
	for _, item := range in.Items {
		if strings.TrimSpace(item.ProductID) == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "product id is required on every item")
		}
		if item.Quantity <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "item quantity must be positive")
		}
	}
	if !in.Payment.Method.Valid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unsupported payment method")
	}
	return nil
}

// activeSnapshot builds the pricing catalog from active rows only.
// Inactive products price as missing, which the commit path rejects.
func activeSnapshot(products []catalog.Product) map[string]pricing.Product {
	active := make([]catalog.Product, 0, len(products))
	for _, p := range products {
		if p.IsActive {
			active = append(active, p)
		}
	}
	return catalog.SnapshotMap(active)
}

// desiredQty mirrors the pricing engine's floor and ceiling clamps without
// the stock clamp, so a stock-driven reduction is detectable.
func desiredQty(requested, maxQty int) int {
	if requested < 1 {
		requested = 1
	}
	if requested > maxQty {
		return maxQty
	}
	return requested
}
