package enums

import "fmt"

// RefundRouteType selects how a COD refund is paid out.
type RefundRouteType string

const (
	RefundRouteUPI  RefundRouteType = "upi"
	RefundRouteBank RefundRouteType = "bank"
)

var validRefundRouteTypes = []RefundRouteType{
	RefundRouteUPI,
	RefundRouteBank,
}

// String implements fmt.Stringer.
func (r RefundRouteType) String() string {
	return string(r)
}

// IsValid reports whether the value is a known RefundRouteType.
func (r RefundRouteType) IsValid() bool {
	for _, candidate := range validRefundRouteTypes {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseRefundRouteType converts raw input into a RefundRouteType.
func ParseRefundRouteType(value string) (RefundRouteType, error) {
	for _, candidate := range validRefundRouteTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid refund route type %q", value)
}
