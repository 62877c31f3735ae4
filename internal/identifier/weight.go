package identifier

import (
	"github.com/shopspring/decimal"
)

var ten = decimal.NewFromInt(10)

// WeightFromGrams converts a weight in grams to tenths of a gram. Values with
// more than one fractional digit or outside 0.0-999.9 g are rejected rather
// than rounded.
func WeightFromGrams(grams decimal.Decimal) (int, error) {
	tenths := grams.Mul(ten)
	if !tenths.Equal(tenths.Truncate(0)) {
		return 0, OutOfRange("weight_grams", grams.String())
	}
	if tenths.IsNegative() || tenths.GreaterThan(decimal.NewFromInt(MaxWeightTenths)) {
		return 0, OutOfRange("weight_grams", grams.String())
	}
	return int(tenths.IntPart()), nil
}

// WeightToGrams converts tenths of a gram back to grams.
func WeightToGrams(tenths int) decimal.Decimal {
	return decimal.New(int64(tenths), -1)
}
