package enums

import "fmt"

// PaymentMethod identifies how a buyer pays for an order.
type PaymentMethod string

const (
	PaymentMethodMercadoPago PaymentMethod = "mp"
	PaymentMethodCash        PaymentMethod = "cash"
	PaymentMethodTransfer    PaymentMethod = "transfer"
)

var validPaymentMethods = []PaymentMethod{
	PaymentMethodMercadoPago,
	PaymentMethodCash,
	PaymentMethodTransfer,
}

// String implements fmt.Stringer.
func (p PaymentMethod) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentMethod.
func (p PaymentMethod) IsValid() bool {
	for _, candidate := range validPaymentMethods {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePaymentMethod converts raw input into a PaymentMethod.
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	for _, candidate := range validPaymentMethods {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment method %q", value)
}
