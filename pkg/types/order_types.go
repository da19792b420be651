package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// OrderLine is one priced line persisted inside an order record.
type OrderLine struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Category  string          `json:"category,omitempty"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	Discount  decimal.Decimal `json:"discount"`
	Tax       decimal.Decimal `json:"tax"`
	Total     decimal.Decimal `json:"total"`
}

// OrderLines is the itemized breakdown marshaled as JSONB.
type OrderLines []OrderLine

// Value serializes the lines to JSON.
func (o OrderLines) Value() (driver.Value, error) {
	if o == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(o)
}

// Scan decodes JSONB into the line slice.
func (o *OrderLines) Scan(value interface{}) error {
	if value == nil {
		*o = nil
		return nil
	}
	raw, err := asJSON(value)
	if err != nil {
		return err
	}
	var decoded OrderLines
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return err
	}
	*o = decoded
	return nil
}

// ShippingAddress stores the customer contact block inside a JSONB column.
type ShippingAddress struct {
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

// Value serializes the address to JSON.
func (s ShippingAddress) Value() (driver.Value, error) {
	return json.Marshal(s)
}

// Scan decodes JSONB into the address struct.
func (s *ShippingAddress) Scan(value interface{}) error {
	if value == nil {
		*s = ShippingAddress{}
		return nil
	}
	raw, err := asJSON(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, s)
}

// SecurityMeta records where an order was placed from.
type SecurityMeta struct {
	IP        string `json:"ip"`
	UserAgent string `json:"user_agent"`
}

// Value serializes the metadata to JSON.
func (s SecurityMeta) Value() (driver.Value, error) {
	return json.Marshal(s)
}

// Scan decodes JSONB into the metadata struct.
func (s *SecurityMeta) Scan(value interface{}) error {
	if value == nil {
		*s = SecurityMeta{}
		return nil
	}
	raw, err := asJSON(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, s)
}

func asJSON(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	default:
		return nil, fmt.Errorf("unsupported scan type %T", value)
	}
}
