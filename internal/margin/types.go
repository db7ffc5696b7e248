package margin

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Side LONG or SHORT. Required margin does not depend on it; it is carried
// into audit records only.
type Side int

const (
	LONG  Side = 1
	SHORT Side = -1
)

func (s Side) String() string {
	switch s {
	case LONG:
		return "long"
	case SHORT:
		return "short"
	default:
		return "unknown"
	}
}

// ParseSide an empty side defaults to LONG
func ParseSide(s string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "long":
		return LONG, nil
	case "short":
		return SHORT, nil
	default:
		return 0, fmt.Errorf("unknown side %q", s)
	}
}

// ========================================================

// Status outcome of a validation that was not rejected at the boundary
type Status string

const (
	StatusOK    Status = "ok"
	StatusError Status = "error"
)

// ========================================================

// Request one margin validation call
type Request struct {
	Asset        string          // case-insensitive symbol
	OrderSize    decimal.Decimal // contracts, may be zero or negative
	Side         Side
	Leverage     int
	MarginClient decimal.Decimal // collateral claimed by the client
}

// Decision validation result. MarginRequired is always at 2 decimal places
// and zero when the computation could not proceed.
type Decision struct {
	Status         Status
	Message        string
	MarginRequired decimal.Decimal
}

func (d Decision) OK() bool {
	return d.Status == StatusOK
}

// ========================================================

const (
	MsgUnsupportedAsset   = "Unsupported asset"
	MsgInvalidLeverage    = "Invalid leverage"
	MsgMalformedRequest   = "Invalid request payload"
	MsgInvalidOrderSize   = "Order size must be greater than zero"
	MsgZeroMarginOrder    = "Order size too small: required margin rounds to zero"
	MsgInsufficientMargin = "Insufficient margin submitted"
)

// RejectionError the request was refused before any decision was made
// (unknown asset, leverage outside the allowed tiers, unparseable or
// out-of-range input).
// Transports map it to their bad-request outcome with Message as the detail.
type RejectionError struct {
	Reason  string // audit reason
	Message string
	Cause   error
}

func (e *RejectionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *RejectionError) Unwrap() error {
	return e.Cause
}
