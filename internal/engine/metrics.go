package engine

import (
	"encoding/json"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Unratable is the Sharpe ratio assigned to a zero-volatility portfolio.
// It loses every strict greater-than comparison, so such a trial is never
// selected as the optimum.
var Unratable = math.Inf(-1)

// PortfolioResult is one evaluated allocation.
type PortfolioResult struct {
	Return     float64   `json:"return"`
	Volatility float64   `json:"volatility"`
	Sharpe     float64   `json:"sharpe"` // Unratable when Volatility == 0
	Weights    []float64 `json:"weights"`
}

// Ratable reports whether the Sharpe ratio is a real number.
func (p PortfolioResult) Ratable() bool {
	return !math.IsInf(p.Sharpe, -1)
}

type portfolioResultJSON struct {
	Return     float64   `json:"return"`
	Volatility float64   `json:"volatility"`
	Sharpe     *float64  `json:"sharpe"` // null = unratable
	Weights    []float64 `json:"weights"`
}

// MarshalJSON writes an unratable Sharpe as null.
func (p PortfolioResult) MarshalJSON() ([]byte, error) {
	out := portfolioResultJSON{
		Return:     p.Return,
		Volatility: p.Volatility,
		Weights:    p.Weights,
	}
	if p.Ratable() {
		s := p.Sharpe
		out.Sharpe = &s
	}
	return json.Marshal(out)
}

func (p *PortfolioResult) UnmarshalJSON(data []byte) error {
	var in portfolioResultJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	p.Return = in.Return
	p.Volatility = in.Volatility
	p.Weights = in.Weights
	p.Sharpe = Unratable
	if in.Sharpe != nil {
		p.Sharpe = *in.Sharpe
	}
	return nil
}

// PortfolioReturn returns Σ wᵢ·μᵢ.
func PortfolioReturn(weights, means []float64) (float64, error) {
	if len(weights) != len(means) {
		return 0, invalidf("weights and returns differ in length (%d vs %d)", len(weights), len(means))
	}
	return floats.Dot(weights, means), nil
}

// PortfolioVolatility returns √(wᵀΣw).
func PortfolioVolatility(weights []float64, cov CovarianceMatrix) (float64, error) {
	if err := checkDims(len(weights), cov); err != nil {
		return 0, err
	}
	return portfolioVolatility(weights, cov)
}

func checkDims(n int, cov CovarianceMatrix) error {
	if len(cov) != n {
		return invalidf("weights and covariance dimensions differ (%d vs %dx%d)", n, len(cov), len(cov))
	}
	for i, row := range cov {
		if len(row) != n {
			return invalidf("covariance row %d has %d columns, want %d", i, len(row), n)
		}
	}
	return nil
}

func portfolioVolatility(w []float64, cov CovarianceMatrix) (float64, error) {
	n := len(w)
	v := 0.0
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			v += w[i] * w[j] * cov[i][j]
		}
	}
	if v < 0 || math.IsNaN(v) {
		return 0, fmt.Errorf("%w: portfolio variance %g is negative (covariance matrix not positive semi-definite)", ErrNumericDomain, v)
	}
	return math.Sqrt(v), nil
}

// PortfolioSharpe returns (ret - riskFree) / vol, or Unratable when vol is 0.
func PortfolioSharpe(ret, vol, riskFree float64) float64 {
	if vol > 0 {
		return (ret - riskFree) / vol
	}
	return Unratable
}

// Evaluate computes return, volatility and Sharpe ratio for one weight vector.
// The weights are copied into the result.
func Evaluate(weights, means []float64, cov CovarianceMatrix, riskFree float64) (PortfolioResult, error) {
	if len(weights) != len(means) {
		return PortfolioResult{}, invalidf("weights and returns differ in length (%d vs %d)", len(weights), len(means))
	}
	if err := checkDims(len(weights), cov); err != nil {
		return PortfolioResult{}, err
	}
	return evaluate(weights, means, cov, riskFree)
}

// evaluate skips shape validation; callers have already checked it.
func evaluate(weights, means []float64, cov CovarianceMatrix, riskFree float64) (PortfolioResult, error) {
	ret := floats.Dot(weights, means)
	vol, err := portfolioVolatility(weights, cov)
	if err != nil {
		return PortfolioResult{}, err
	}
	w := make([]float64, len(weights))
	copy(w, weights)
	return PortfolioResult{
		Return:     ret,
		Volatility: vol,
		Sharpe:     PortfolioSharpe(ret, vol, riskFree),
		Weights:    w,
	}, nil
}
