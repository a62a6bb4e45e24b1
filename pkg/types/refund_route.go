package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pratikdungano/vastrahub-backend/pkg/enums"
)

// RefundRoute is the payout destination for a COD refund, stored as jsonb.
// Exactly one variant is populated depending on Type: a UPI VPA, or a bank
// account with IFSC. Gateway-paid orders carry no route; the refund is
// reversed through the gateway.
type RefundRoute struct {
	Type enums.RefundRouteType `json:"type"`

	UPIID string `json:"upi_id,omitempty"`

	AccountHolder string `json:"account_holder,omitempty"`
	AccountNumber string `json:"account_number,omitempty"`
	IFSC          string `json:"ifsc,omitempty"`
}

// Validate checks that the populated variant matches Type.
func (r RefundRoute) Validate() error {
	switch r.Type {
	case enums.RefundRouteUPI:
		if strings.TrimSpace(r.UPIID) == "" {
			return fmt.Errorf("refund route: missing upi_id")
		}
	case enums.RefundRouteBank:
		if strings.TrimSpace(r.AccountHolder) == "" {
			return fmt.Errorf("refund route: missing account_holder")
		}
		if strings.TrimSpace(r.AccountNumber) == "" {
			return fmt.Errorf("refund route: missing account_number")
		}
		if strings.TrimSpace(r.IFSC) == "" {
			return fmt.Errorf("refund route: missing ifsc")
		}
	default:
		return fmt.Errorf("refund route: invalid type %q", r.Type)
	}
	return nil
}

// Value marshals the route into jsonb.
func (r RefundRoute) Value() (driver.Value, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	raw, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("refund route: marshal %w", err)
	}
	return string(raw), nil
}

// Scan decodes the jsonb column.
func (r *RefundRoute) Scan(value interface{}) error {
	if value == nil {
		*r = RefundRoute{}
		return nil
	}

	raw, ok := toString(value)
	if !ok {
		return fmt.Errorf("refund route: unsupported scan type %T", value)
	}
	if err := json.Unmarshal([]byte(raw), r); err != nil {
		return fmt.Errorf("refund route: unmarshal %w", err)
	}
	return nil
}

// StringList is a jsonb-backed string slice, used for return photo URLs.
type StringList []string

// Value marshals the list into jsonb.
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		l = StringList{}
	}
	raw, err := json.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("string list: marshal %w", err)
	}
	return string(raw), nil
}

// Scan decodes the jsonb column.
func (l *StringList) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}

	raw, ok := toString(value)
	if !ok {
		return fmt.Errorf("string list: unsupported scan type %T", value)
	}
	if err := json.Unmarshal([]byte(raw), l); err != nil {
		return fmt.Errorf("string list: unmarshal %w", err)
	}
	return nil
}
