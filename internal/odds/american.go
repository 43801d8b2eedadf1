package odds

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// AmericanToProbability converts American odds to implied probability
// +100 → 0.50
// -150 → 0.60
func AmericanToProbability(american int) (float64, error) {
	if american == 0 {
		return 0, fmt.Errorf("invalid American odds: cannot be 0")
	}

	if american > 0 {
		return 100.0 / (float64(american) + 100.0), nil
	}

	abs := float64(-american)
	return abs / (abs + 100.0), nil
}

// ProbabilityToAmerican converts implied probability to American odds
// 0.60 → -150
// 0.40 → +150
func ProbabilityToAmerican(probability float64) (int, error) {
	if probability <= 0 || probability >= 1 {
		return 0, fmt.Errorf("invalid probability: must be between 0 and 1")
	}

	if probability >= 0.5 {
		return -int(math.Round(probability / (1 - probability) * 100)), nil
	}

	return int(math.Round((1 - probability) / probability * 100)), nil
}

// NoVig removes the bookmaker margin from a two-sided market and returns
// the fair probability of each side.
func NoVig(a, b int) (float64, float64, error) {
	pa, err := AmericanToProbability(a)
	if err != nil {
		return 0, 0, err
	}
	pb, err := AmericanToProbability(b)
	if err != nil {
		return 0, 0, err
	}

	total := pa + pb
	return pa / total, pb / total, nil
}

var (
	two  = decimal.NewFromInt(2)
	half = decimal.NewFromFloat(0.5)
)

// RoundToNearestHalf rounds a line to the nearest half point. Ties round up:
// 44.25 → 44.5, -3.25 → -3.
func RoundToNearestHalf(line decimal.Decimal) decimal.Decimal {
	return line.Mul(two).Add(half).Floor().Div(two)
}
