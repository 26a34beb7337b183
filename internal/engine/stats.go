package engine

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

const (
	// TradingDaysPerYear is the usual annualization factor for daily series.
	TradingDaysPerYear = 252
	// MonthsPerYear is the annualization factor for monthly series.
	MonthsPerYear = 12
)

// Mean returns the arithmetic average of series.
func Mean(series []float64) (float64, error) {
	if len(series) == 0 {
		return 0, invalidf("mean of empty series")
	}
	return stat.Mean(series, nil), nil
}

// Variance returns the sample variance of series (divides by N-1).
func Variance(series []float64) (float64, error) {
	if len(series) < 2 {
		return 0, invalidf("need at least 2 data points for variance, got %d", len(series))
	}
	return stat.Variance(series, nil), nil
}

// Volatility returns the sample standard deviation of series.
func Volatility(series []float64) (float64, error) {
	v, err := Variance(series)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(v), nil
}

// Covariance returns the sample covariance of a and b.
// Covariance(a, b) == Covariance(b, a) and Covariance(a, a) == Variance(a) exactly.
func Covariance(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, invalidf("series lengths differ (%d vs %d)", len(a), len(b))
	}
	if len(a) < 2 {
		return 0, invalidf("need at least 2 data points for covariance, got %d", len(a))
	}
	return stat.Covariance(a, b, nil), nil
}

// Correlation returns the Pearson correlation of a and b. It is undefined
// (and an error) when either series has zero volatility.
func Correlation(a, b []float64) (float64, error) {
	cov, err := Covariance(a, b)
	if err != nil {
		return 0, err
	}
	volA, _ := Volatility(a)
	volB, _ := Volatility(b)
	if volA == 0 || volB == 0 {
		return 0, invalidf("correlation undefined for zero-volatility series")
	}
	return cov / (volA * volB), nil
}

// Beta returns Cov(asset, market) / Var(market).
func Beta(asset, market []float64) (float64, error) {
	if len(asset) != len(market) {
		return 0, invalidf("asset and market returns differ in length (%d vs %d)", len(asset), len(market))
	}
	cov, err := Covariance(asset, market)
	if err != nil {
		return 0, err
	}
	marketVar, _ := Variance(market)
	if marketVar == 0 {
		return 0, invalidf("market variance is zero")
	}
	return cov / marketVar, nil
}

// SharpeRatio returns (ret - riskFree) / vol.
func SharpeRatio(ret, riskFree, vol float64) (float64, error) {
	if vol <= 0 {
		return 0, invalidf("volatility must be positive, got %g", vol)
	}
	return (ret - riskFree) / vol, nil
}

// SeriesSharpeRatio computes the Sharpe ratio of a single return series using
// its mean and sample volatility.
func SeriesSharpeRatio(series []float64, riskFree float64) (float64, error) {
	avg, err := Mean(series)
	if err != nil {
		return 0, err
	}
	vol, err := Volatility(series)
	if err != nil {
		return 0, err
	}
	return SharpeRatio(avg, riskFree, vol)
}

// AnnualizeVolatility scales a per-period volatility by √periodsPerYear.
func AnnualizeVolatility(vol float64, periodsPerYear int) float64 {
	if periodsPerYear <= 0 {
		return vol
	}
	return vol * math.Sqrt(float64(periodsPerYear))
}

func DailyToAnnualVolatility(vol float64) float64 {
	return AnnualizeVolatility(vol, TradingDaysPerYear)
}

func MonthlyToAnnualVolatility(vol float64) float64 {
	return AnnualizeVolatility(vol, MonthsPerYear)
}
