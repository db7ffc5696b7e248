package margin

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"frizo/margin_engine/internal/asset"
)

// Scale decimal places of every margin figure (cents)
const Scale int32 = 2

// Operand limits. Rescaling a decimal to cents costs 10^|exponent|, so
// request figures outside these are refused before any arithmetic.
const (
	MinExponent        int32 = -18
	MaxExponent        int32 = 18
	MaxCoefficientBits       = 128 // about 38 significant digits
)

var ErrOperandOutOfRange = errors.New("decimal operand out of range")

// CheckOperand reports whether d can take part in a margin calculation.
// Only the exponent and the coefficient bit length are inspected, so the
// check is constant time whatever d holds.
func CheckOperand(d decimal.Decimal) error {
	if exp := d.Exponent(); exp < MinExponent || exp > MaxExponent {
		return fmt.Errorf("%w: exponent %d outside [%d, %d]", ErrOperandOutOfRange, exp, MinExponent, MaxExponent)
	}
	if bits := d.Coefficient().BitLen(); bits > MaxCoefficientBits {
		return fmt.Errorf("%w: coefficient of %d bits", ErrOperandOutOfRange, bits)
	}
	return nil
}

// Computation figures of one required-margin calculation
type Computation struct {
	Notional decimal.Decimal // markPrice * orderSize * contractValue
	Raw      decimal.Decimal // notional / leverage, informational
	Required decimal.Decimal // notional / leverage rounded half-up to Scale
}

// Compute required margin for orderSize contracts of cfg at leverage.
//
// Formula:
//
//	required = round_half_up(markPrice * orderSize * contractValue / leverage, 2)
//
// The division and the rounding are done in one exact step (DivRound), so
// a quotient ending in exactly 5 at the third decimal always rounds up.
func Compute(cfg asset.Config, orderSize decimal.Decimal, leverage int) (Computation, error) {
	if leverage <= 0 {
		return Computation{}, fmt.Errorf("leverage must be greater than zero, got %d", leverage)
	}

	lev := decimal.NewFromInt(int64(leverage))
	notional := cfg.MarkPrice.Mul(orderSize).Mul(cfg.ContractValue)

	return Computation{
		Notional: notional,
		Raw:      notional.Div(lev),
		Required: notional.DivRound(lev, Scale),
	}, nil
}

// RoundCents rounds d to Scale places, half away from zero.
func RoundCents(d decimal.Decimal) decimal.Decimal {
	return d.Round(Scale)
}

// FormatCents renders d with exactly Scale decimals.
func FormatCents(d decimal.Decimal) string {
	return d.StringFixed(Scale)
}
