package enums

import "fmt"

// PaymentMethod describes how a shopper intends to settle an order.
type PaymentMethod string

const (
	PaymentMethodCOD             PaymentMethod = "COD"
	PaymentMethodCreditCard      PaymentMethod = "CREDIT_CARD"
	PaymentMethodDebitCard       PaymentMethod = "DEBIT_CARD"
	PaymentMethodTransferBanking PaymentMethod = "TRANSFER_BANKING"
)

var validPaymentMethods = []PaymentMethod{
	PaymentMethodCOD,
	PaymentMethodCreditCard,
	PaymentMethodDebitCard,
	PaymentMethodTransferBanking,
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

// RequiresGateway reports whether the method settles through the external
// payment page. Cash on delivery settles offline and never redirects.
func (p PaymentMethod) RequiresGateway() bool {
	return p.IsValid() && p != PaymentMethodCOD
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
