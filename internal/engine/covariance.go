package engine

import "math"

// CovarianceMatrix is an N×N sample covariance matrix indexed by asset.
// The diagonal holds each asset's variance.
type CovarianceMatrix [][]float64

// BuildCovarianceMatrix computes the covariance matrix of N equal-length
// return series. Each pair is computed once and mirrored.
func BuildCovarianceMatrix(series [][]float64) (CovarianceMatrix, error) {
	if err := validateReturnSeries(series); err != nil {
		return nil, err
	}

	n := len(series)
	cov := make(CovarianceMatrix, n)
	for i := range cov {
		cov[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		v, err := Variance(series[i])
		if err != nil {
			return nil, err
		}
		cov[i][i] = v
		for j := i + 1; j < n; j++ {
			c, err := Covariance(series[i], series[j])
			if err != nil {
				return nil, err
			}
			cov[i][j] = c
			cov[j][i] = c
		}
	}
	return cov, nil
}

// validateReturnSeries checks the shape shared by every multi-asset operation:
// at least two assets, each with the same number (>= 2) of finite observations.
func validateReturnSeries(series [][]float64) error {
	if len(series) < 2 {
		return invalidf("need at least 2 assets, got %d", len(series))
	}
	want := len(series[0])
	if want < 2 {
		return invalidf("need at least 2 data points per asset, got %d", want)
	}
	for i, s := range series[1:] {
		if len(s) != want {
			return invalidf("series %d has %d observations, want %d", i+1, len(s), want)
		}
	}
	for i, s := range series {
		for t, v := range s {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return invalidf("series %d observation %d is not finite (%g)", i, t, v)
			}
		}
	}
	return nil
}

// Dim returns N.
func (m CovarianceMatrix) Dim() int {
	return len(m)
}

// IsSymmetric reports whether m is square and m[i][j] == m[j][i] exactly.
func (m CovarianceMatrix) IsSymmetric() bool {
	n := len(m)
	for i := 0; i < n; i++ {
		if len(m[i]) != n {
			return false
		}
		for j := 0; j < i; j++ {
			if m[i][j] != m[j][i] {
				return false
			}
		}
	}
	return true
}

// Correlation derives the correlation matrix. Assets with zero variance get
// zero correlation against everything, including themselves.
func (m CovarianceMatrix) Correlation() [][]float64 {
	n := len(m)
	corr := make([][]float64, n)
	for i := 0; i < n; i++ {
		corr[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			si := math.Sqrt(m[i][i])
			sj := math.Sqrt(m[j][j])
			if si > 0 && sj > 0 {
				corr[i][j] = m[i][j] / (si * sj)
			}
			// Clamp rounding noise to [-1, 1].
			if corr[i][j] > 1 {
				corr[i][j] = 1
			}
			if corr[i][j] < -1 {
				corr[i][j] = -1
			}
		}
	}
	return corr
}
