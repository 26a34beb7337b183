package engine

import (
	"github.com/shopspring/decimal"
)

// Allocation is the currency amount assigned to one asset.
type Allocation struct {
	Asset  string          `json:"asset"`
	Weight float64         `json:"weight"`
	Amount decimal.Decimal `json:"amount"`
}

// AllocateCapital splits capital across assets by weight, rounding each amount
// to places decimal digits. The rounding residue goes to the largest weight so
// the amounts always sum to capital exactly.
func AllocateCapital(capital decimal.Decimal, names []string, weights []float64, places int32) ([]Allocation, error) {
	if !capital.IsPositive() {
		return nil, invalidf("capital must be positive, got %s", capital.String())
	}
	if len(names) != len(weights) {
		return nil, invalidf("names and weights differ in length (%d vs %d)", len(names), len(weights))
	}
	if len(weights) == 0 {
		return nil, invalidf("no weights to allocate")
	}
	if places < 0 {
		return nil, invalidf("places must not be negative, got %d", places)
	}

	total := 0.0
	largest := 0
	for i, w := range weights {
		if w < 0 {
			return nil, invalidf("weight %d is negative (%g)", i, w)
		}
		total += w
		if w > weights[largest] {
			largest = i
		}
	}
	if total == 0 {
		return nil, invalidf("weights sum to zero")
	}

	out := make([]Allocation, len(weights))
	assigned := decimal.Zero
	for i, w := range weights {
		amt := capital.Mul(decimal.NewFromFloat(w / total)).Round(places)
		out[i] = Allocation{Asset: names[i], Weight: w, Amount: amt}
		assigned = assigned.Add(amt)
	}
	out[largest].Amount = out[largest].Amount.Add(capital.Sub(assigned))
	return out, nil
}
