package enums

// ProductDiscountType tags the structured per-product discount descriptor.
// Older catalog records carry flat/percent legacy fields instead.
type ProductDiscountType string

const (
	ProductDiscountNone    ProductDiscountType = ""
	ProductDiscountPercent ProductDiscountType = "PERCENT"
	ProductDiscountFixed   ProductDiscountType = "FIXED"
)

// Valid reports whether the value is one of the known structured kinds.
func (t ProductDiscountType) Valid() bool {
	switch t {
	case ProductDiscountNone, ProductDiscountPercent, ProductDiscountFixed:
		return true
	}
	return false
}
