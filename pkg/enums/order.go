package enums

// OrderStatus tracks the lifecycle of a committed order.
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderConfirmed OrderStatus = "confirmed"
	OrderShipped   OrderStatus = "shipped"
	OrderDelivered OrderStatus = "delivered"
	OrderCancelled OrderStatus = "cancelled"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderConfirmed, OrderShipped, OrderDelivered, OrderCancelled:
		return true
	}
	return false
}

// PaymentMethod is the buyer's declared payment instrument. The
// transaction core records it verbatim; settlement happens elsewhere.
type PaymentMethod string

const (
	PaymentCOD   PaymentMethod = "cod"
	PaymentOther PaymentMethod = "other"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCOD, PaymentOther:
		return true
	}
	return false
}

// PaymentStatus mirrors the settlement state reported by the payment
// surface.
type PaymentStatus string

const (
	PaymentUnpaid PaymentStatus = "unpaid"
	PaymentPaid   PaymentStatus = "paid"
	PaymentFailed PaymentStatus = "failed"
)
