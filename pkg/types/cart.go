package types

import (
	"regexp"

	"github.com/TruongSon421/storefront-checkout/pkg/enums"
)

// ItemKey is the identity of a cart line: one product in one color variant.
type ItemKey struct {
	ProductID string `json:"productId"`
	Color     string `json:"color"`
}

// CartItem is a single line of a shopping cart.
type CartItem struct {
	ProductID   string  `json:"productId"`
	Color       string  `json:"color"`
	Quantity    int     `json:"quantity"`
	ProductName string  `json:"productName,omitempty"`
	Price       float64 `json:"price,omitempty"`
	Type        string  `json:"type,omitempty"`
}

// Key returns the identity key for the item.
func (i CartItem) Key() ItemKey {
	return ItemKey{ProductID: i.ProductID, Color: i.Color}
}

// ShippingInfo carries the delivery destination for a checkout.
// Phone must be 9 to 11 digits; the address chain must be fully resolved.
type ShippingInfo struct {
	RecipientName string `json:"recipientName" validate:"required"`
	Phone         string `json:"phone" validate:"required,shipping_phone"`
	Province      string `json:"province" validate:"required"`
	District      string `json:"district" validate:"required"`
	Ward          string `json:"ward" validate:"required"`
	Street        string `json:"street" validate:"required"`
}

var shippingPhoneRE = regexp.MustCompile(`^[0-9]{9,11}$`)

// ValidShippingPhone reports whether the value is an acceptable delivery
// phone number: digits only, 9 to 11 of them.
func ValidShippingPhone(phone string) bool {
	return shippingPhoneRE.MatchString(phone)
}

// Transaction is a checkout submission awaiting (or holding) its payment outcome.
type Transaction struct {
	TransactionID string             `json:"transactionId"`
	OrderID       string             `json:"orderId,omitempty"`
	Status        enums.PaymentState `json:"status"`
}
