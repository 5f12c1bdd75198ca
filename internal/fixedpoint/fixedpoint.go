// Package fixedpoint provides the signed fractional number type used for
// fee rates and oracle prices throughout the matching core.
//
// The upstream program this core is modeled on keeps an 80.48-bit Q-format
// fixed point type for this purpose. We use decimal.Decimal instead: it is
// arbitrary-precision base-10 fixed point with the same shape of guarantee
// (exact representation of the rates and prices we construct it from, and
// explicit rounding at conversion time), without a custom bit-packed type.
package fixedpoint

import (
	"github.com/shopspring/decimal"
)

// Rate is a signed fractional quantity: a fee rate (e.g. 0.0004 for 4bps)
// or an oracle price. Rounding at the edges of a Rate always favors the
// market, per the "ceiling on fees owed, floor on rebates granted" rule.
type Rate struct {
	d decimal.Decimal
}

// Zero is the additive identity.
var Zero = Rate{d: decimal.Zero}

// NewRateFromFloat builds a Rate from a float64 literal, e.g. an oracle
// price or a fee rate read from market configuration.
func NewRateFromFloat(v float64) Rate {
	return Rate{d: decimal.NewFromFloat(v)}
}

// NewRateFromString parses a decimal string into a Rate.
func NewRateFromString(s string) (Rate, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Rate{}, err
	}
	return Rate{d: d}, nil
}

// RateFromInt64 builds an integer-valued Rate (used for lot counts and
// native amounts promoted into rate arithmetic).
func RateFromInt64(v int64) Rate {
	return Rate{d: decimal.NewFromInt(v)}
}

func (r Rate) IsZero() bool     { return r.d.IsZero() }
func (r Rate) IsPositive() bool { return r.d.IsPositive() }
func (r Rate) IsNegative() bool { return r.d.IsNegative() }

func (r Rate) Add(other Rate) Rate { return Rate{d: r.d.Add(other.d)} }
func (r Rate) Sub(other Rate) Rate { return Rate{d: r.d.Sub(other.d)} }
func (r Rate) Mul(other Rate) Rate { return Rate{d: r.d.Mul(other.d)} }
func (r Rate) Div(other Rate) Rate { return Rate{d: r.d.DivRound(other.d, 18)} }
func (r Rate) Abs() Rate           { return Rate{d: r.d.Abs()} }
func (r Rate) Neg() Rate           { return Rate{d: r.d.Neg()} }

// CeilToInt64 rounds toward positive infinity. Used whenever a fee is owed
// by a counterparty: the market never under-collects a fraction of a lot.
func (r Rate) CeilToInt64() int64 {
	return r.d.Ceil().IntPart()
}

// FloorToInt64 rounds toward negative infinity. Used whenever a rebate is
// granted: the market never over-pays a fraction of a lot.
func (r Rate) FloorToInt64() int64 {
	return r.d.Floor().IntPart()
}

// TruncateToInt64 truncates toward zero.
func (r Rate) TruncateToInt64() int64 {
	return r.d.Truncate(0).IntPart()
}

func (r Rate) String() string { return r.d.String() }

// CeilQuoteFee returns ceil(|quoteNative * rate|), the native-unit fee
// owed on a quote amount. The sign of rate is ignored; callers check
// IsPositive/IsNegative before calling this.
func CeilQuoteFee(quoteNative int64, rate Rate) uint64 {
	v := RateFromInt64(quoteNative).Mul(rate).Abs().CeilToInt64()
	return uint64(v)
}

// FloorQuoteRebate returns floor(|quoteNative * rate|), the native-unit
// rebate credited on a quote amount. The sign of rate is ignored.
func FloorQuoteRebate(quoteNative int64, rate Rate) uint64 {
	v := RateFromInt64(quoteNative).Mul(rate).Abs().FloorToInt64()
	return uint64(v)
}
