package gateway

import "strings"

// wireColorSentinel is what the cart service stores for products without a
// color variant. Locally those items carry an empty color. The mapping must
// be applied in both directions at this boundary or the (productId, color)
// identity key stops being unique.
const wireColorSentinel = "default"

// ToWireColor converts a display color to the value sent on the wire.
func ToWireColor(color string) string {
	if strings.TrimSpace(color) == "" {
		return wireColorSentinel
	}
	return color
}

// FromWireColor converts a wire color back to its display value.
func FromWireColor(color string) string {
	if color == wireColorSentinel {
		return ""
	}
	return color
}
