package engine

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// HistoricalRisk describes how a fixed-weight portfolio would have behaved
// over the sample period. VaR and ES are per-period returns (negative = loss).
type HistoricalRisk struct {
	VaR95       float64 `json:"var_95"`
	VaR99       float64 `json:"var_99"`
	ES95        float64 `json:"es_95"`
	ES99        float64 `json:"es_99"`
	WorstPeriod float64 `json:"worst_period"`
	MaxDrawdown float64 `json:"max_drawdown"` // fraction of peak, >= 0
	Periods     int     `json:"periods"`
	LowSample   bool    `json:"low_sample"` // VaR/ES unreliable with < 20 periods
}

// PortfolioSeries returns the per-period return of a fixed-weight portfolio.
func PortfolioSeries(weights []float64, returns [][]float64) ([]float64, error) {
	if err := validateReturnSeries(returns); err != nil {
		return nil, err
	}
	if len(weights) != len(returns) {
		return nil, invalidf("weights length %d does not match %d assets", len(weights), len(returns))
	}
	out := make([]float64, len(returns[0]))
	for i, series := range returns {
		for t, r := range series {
			out[t] += weights[i] * r
		}
	}
	return out, nil
}

// ComputeHistoricalRisk replays weights over the return history.
func ComputeHistoricalRisk(weights []float64, returns [][]float64) (*HistoricalRisk, error) {
	series, err := PortfolioSeries(weights, returns)
	if err != nil {
		return nil, err
	}
	var95, var99, es95, es99 := tailRisk(series)
	return &HistoricalRisk{
		VaR95:       var95,
		VaR99:       var99,
		ES95:        es95,
		ES99:        es99,
		WorstPeriod: worstPeriod(series),
		MaxDrawdown: maxDrawdown(series),
		Periods:     len(series),
		LowSample:   len(series) < 20,
	}, nil
}

// tailRisk reads VaR off the sorted sample and averages everything at or
// below it for ES.
func tailRisk(series []float64) (var95, var99, es95, es99 float64) {
	if len(series) == 0 {
		return
	}
	sorted := make([]float64, len(series))
	copy(sorted, series)
	sort.Float64s(sorted) // ascending: biggest loss first

	n := len(sorted)
	idx95 := min(int(math.Floor(0.05*float64(n))), n-1)
	idx99 := min(int(math.Floor(0.01*float64(n))), n-1)

	var95 = sorted[idx95]
	var99 = sorted[idx99]
	es95 = stat.Mean(sorted[:idx95+1], nil)
	es99 = stat.Mean(sorted[:idx99+1], nil)
	return
}

func worstPeriod(series []float64) float64 {
	if len(series) == 0 {
		return 0
	}
	m := series[0]
	for _, v := range series[1:] {
		m = math.Min(m, v)
	}
	return m
}

// maxDrawdown compounds the returns into a wealth path and reports the
// largest peak-to-trough fall.
func maxDrawdown(series []float64) float64 {
	wealth, peak, worst := 1.0, 1.0, 0.0
	for _, r := range series {
		wealth *= 1 + r
		if wealth > peak {
			peak = wealth
		}
		if dd := (peak - wealth) / peak; dd > worst {
			worst = dd
		}
	}
	return worst
}
