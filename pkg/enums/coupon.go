package enums

// CouponType identifies how a coupon's benefit is computed.
type CouponType string

const (
	CouponPercentage   CouponType = "PERCENTAGE"
	CouponFlat         CouponType = "FLAT"
	CouponFreeShipping CouponType = "FREE_SHIPPING"
)

func (t CouponType) Valid() bool {
	switch t {
	case CouponPercentage, CouponFlat, CouponFreeShipping:
		return true
	}
	return false
}
