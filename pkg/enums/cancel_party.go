package enums

import "fmt"

// CancelParty records who cancelled an order.
type CancelParty string

const (
	CancelPartyUser  CancelParty = "user"
	CancelPartyAdmin CancelParty = "admin"
)

var validCancelParties = []CancelParty{
	CancelPartyUser,
	CancelPartyAdmin,
}

// String implements fmt.Stringer.
func (c CancelParty) String() string {
	return string(c)
}

// IsValid reports whether the value is a known CancelParty.
func (c CancelParty) IsValid() bool {
	for _, candidate := range validCancelParties {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCancelParty converts raw input into a CancelParty.
func ParseCancelParty(value string) (CancelParty, error) {
	for _, candidate := range validCancelParties {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid cancel party %q", value)
}
