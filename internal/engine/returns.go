package engine

import "math"

// SimpleReturns converts a price series into period-over-period returns
// p[t]/p[t-1] - 1.
func SimpleReturns(prices []float64) ([]float64, error) {
	if err := checkPrices(prices); err != nil {
		return nil, err
	}
	ret := make([]float64, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		ret[i-1] = prices[i]/prices[i-1] - 1
	}
	return ret, nil
}

// LogReturns converts a price series into log returns ln(p[t]/p[t-1]).
func LogReturns(prices []float64) ([]float64, error) {
	if err := checkPrices(prices); err != nil {
		return nil, err
	}
	ret := make([]float64, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		ret[i-1] = math.Log(prices[i] / prices[i-1])
	}
	return ret, nil
}

func checkPrices(prices []float64) error {
	if len(prices) < 2 {
		return invalidf("need at least 2 prices, got %d", len(prices))
	}
	for i, p := range prices {
		if p <= 0 || math.IsNaN(p) || math.IsInf(p, 0) {
			return invalidf("price %d must be positive and finite, got %g", i, p)
		}
	}
	return nil
}

// TrimToCommonLength aligns series of different lengths by keeping the most
// recent observations common to all of them. The input is not modified.
func TrimToCommonLength(series [][]float64) [][]float64 {
	if len(series) == 0 {
		return nil
	}
	minLen := len(series[0])
	for _, s := range series[1:] {
		if len(s) < minLen {
			minLen = len(s)
		}
	}
	out := make([][]float64, len(series))
	for i, s := range series {
		out[i] = s[len(s)-minLen:]
	}
	return out
}
