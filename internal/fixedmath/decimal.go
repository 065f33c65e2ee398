package fixedmath

import "github.com/shopspring/decimal"

// ToDecimalString renders a scaled integer as a decimal string at the given
// precision for JSON/msgpack egress. This is strictly an I/O-boundary
// helper — the detector and orderbook hot paths never construct a
// decimal.Decimal, since its arbitrary-precision big.Int backing doesn't
// give the overflow-checked, single-allocation-free arithmetic the hot
// path needs (see DESIGN.md for the full justification).
func ToDecimalString(scaled, scale int64, precision int32) string {
	d := decimal.New(scaled, 0).DivRound(decimal.New(scale, 0), precision+2)
	return d.Truncate(precision).String()
}

// FromDecimalString parses a decimal string (as received from an exchange
// REST/WS payload) into a scale-scaled integer. Used only at ingest
// boundaries, never inside a detector's OnEnrichedTrade.
func FromDecimalString(s string, scale int64) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	scaled := d.Mul(decimal.New(scale, 0))
	return scaled.Round(0).IntPart(), nil
}
