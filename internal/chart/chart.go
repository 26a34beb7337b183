// Package chart renders frontier search results as PNG images.
package chart

import (
	"fmt"
	"math"

	charts "github.com/vicanso/go-charts/v2"

	"frontier-engine/internal/engine"
)

// RenderFrontier draws the efficient-frontier envelope, thinned to at most
// maxPoints, as return (%) against volatility (%).
func RenderFrontier(res *engine.EfficientFrontierResult, maxPoints int) ([]byte, error) {
	if res == nil {
		return nil, fmt.Errorf("no result to draw")
	}
	points := res.Envelope(maxPoints)
	if len(points) < 2 {
		return nil, fmt.Errorf("not enough frontier points to draw (%d)", len(points))
	}

	values := make([]float64, len(points))
	xLabels := make([]string, len(points))
	minVal, maxVal := math.Inf(1), math.Inf(-1)
	for i, p := range points {
		values[i] = p.Return * 100
		xLabels[i] = fmt.Sprintf("%.2f%%", p.Risk*100)
		minVal = math.Min(minVal, values[i])
		maxVal = math.Max(maxVal, values[i])
	}
	padding := (maxVal - minVal) * 0.1
	if padding == 0 {
		padding = math.Max(math.Abs(maxVal)*0.1, 0.01)
	}
	yMin := minVal - padding
	yMax := maxVal + padding

	title := fmt.Sprintf("Efficient frontier (%d trials)", len(res.Trials))
	subtitle := "no ratable portfolio"
	if res.HasOptimum() {
		subtitle = fmt.Sprintf("max Sharpe %.3f at return %.2f%%, volatility %.2f%%",
			res.Optimal.Sharpe, res.Optimal.Return*100, res.Optimal.Volatility*100)
	}

	splitNum := len(xLabels) / 6
	if splitNum < 3 {
		splitNum = 3
	}

	p, err := charts.LineRender(
		[][]float64{values},
		charts.TitleTextOptionFunc(title, subtitle),
		charts.XAxisOptionFunc(charts.XAxisOption{
			Data:        xLabels,
			SplitNumber: splitNum,
			BoundaryGap: charts.FalseFlag(),
		}),
		charts.YAxisOptionFunc(charts.YAxisOption{
			Min:         &yMin,
			Max:         &yMax,
			DivideCount: 5,
		}),
		charts.LegendOptionFunc(charts.LegendOption{Data: []string{"return %"}}),
		charts.ThemeOptionFunc(charts.ThemeLight),
		charts.WidthOptionFunc(1000),
		charts.HeightOptionFunc(600),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to render chart: %w", err)
	}

	buf, err := p.Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to generate chart bytes: %w", err)
	}
	return buf, nil
}

// RenderAllocation draws the weights as a pie chart labelled with percentages.
func RenderAllocation(names []string, weights []float64) ([]byte, error) {
	if len(names) == 0 || len(names) != len(weights) {
		return nil, fmt.Errorf("need one weight per asset, got %d names and %d weights", len(names), len(weights))
	}
	total := 0.0
	for _, w := range weights {
		if w < 0 {
			return nil, fmt.Errorf("negative weight %g", w)
		}
		total += w
	}
	if total == 0 {
		return nil, fmt.Errorf("weights sum to zero")
	}

	labels := make([]string, len(names))
	for i, name := range names {
		labels[i] = fmt.Sprintf("%s (%.1f%%)", name, weights[i]/total*100)
	}

	p, err := charts.PieRender(
		weights,
		charts.TitleTextOptionFunc("Max-Sharpe allocation"),
		charts.LegendOptionFunc(charts.LegendOption{
			Data: labels,
			Top:  charts.PositionTop,
		}),
		charts.ThemeOptionFunc(charts.ThemeLight),
		charts.WidthOptionFunc(800),
		charts.HeightOptionFunc(600),
	)
	if err != nil {
		return nil, err
	}
	return p.Bytes()
}
