package engine

import (
	"math"
	"math/rand/v2"
	"sort"

	"golang.org/x/sync/errgroup"
)

// FrontierRequest describes one Monte Carlo efficient-frontier search.
type FrontierRequest struct {
	Returns      [][]float64 // one return series per asset, equal lengths
	Names        []string    // asset labels, same order as Returns
	Trials       int         // number of random portfolios to evaluate
	RiskFreeRate float64     // per-period rate, same period as Returns
	Seed         uint64      // 0 = entropy-seeded once for the whole run
	Workers      int         // <= 1 runs a single sequential stream
	Sampler      SamplerKind // "" = uniform
	Alpha        float64     // Dirichlet concentration, 0 = 1
}

// EfficientFrontierResult is the full trial population plus the designated
// optimum of one search. It is not modified after it is returned.
type EfficientFrontierResult struct {
	Optimal          PortfolioResult   `json:"optimal"`
	OptimalIndex     int               `json:"optimal_index"` // -1 when no trial was ratable
	MinVariance      PortfolioResult   `json:"min_variance"`
	MinVarianceIndex int               `json:"min_variance_index"`
	Trials           []PortfolioResult `json:"trials"`
	AssetNames       []string          `json:"asset_names"`
	MeanReturns      []float64         `json:"mean_returns"`
	Covariance       CovarianceMatrix  `json:"covariance"`
	Seed             uint64            `json:"seed"` // effective seed, replays the run
	Workers          int               `json:"workers"`
}

// HasOptimum reports whether at least one trial had a ratable Sharpe ratio.
func (r *EfficientFrontierResult) HasOptimum() bool {
	return r.OptimalIndex >= 0
}

// WeightsByName maps asset names to the optimal weights.
func (r *EfficientFrontierResult) WeightsByName() map[string]float64 {
	out := make(map[string]float64, len(r.AssetNames))
	if !r.HasOptimum() {
		return out
	}
	for i, name := range r.AssetNames {
		out[name] = r.Optimal.Weights[i]
	}
	return out
}

// CalculateEfficientFrontier samples req.Trials random long-only portfolios,
// evaluates each against the historical means and covariance matrix, and keeps
// the one with the highest Sharpe ratio. Ties keep the earliest trial.
//
// With Workers > 1 the trials are split into contiguous shards; worker k draws
// from stream k of the seed, so results are reproducible for a fixed
// (Seed, Workers) pair and Workers == 1 matches the sequential run.
func CalculateEfficientFrontier(req FrontierRequest) (*EfficientFrontierResult, error) {
	// Init.
	if err := validateReturnSeries(req.Returns); err != nil {
		return nil, err
	}
	if len(req.Names) != len(req.Returns) {
		return nil, invalidf("number of asset names (%d) must match number of return series (%d)", len(req.Names), len(req.Returns))
	}
	for i, name := range req.Names {
		if name == "" {
			return nil, invalidf("asset %d has an empty name", i)
		}
	}
	if req.Trials <= 0 {
		return nil, invalidf("number of portfolios must be positive, got %d", req.Trials)
	}
	if req.Workers < 0 {
		return nil, invalidf("workers must not be negative, got %d", req.Workers)
	}
	draw, err := req.Sampler.sampler(req.Alpha)
	if err != nil {
		return nil, err
	}
	if req.Alpha < 0 {
		return nil, invalidf("dirichlet alpha must be positive, got %g", req.Alpha)
	}

	n := len(req.Returns)
	means := make([]float64, n)
	for i, series := range req.Returns {
		if means[i], err = Mean(series); err != nil {
			return nil, err
		}
	}
	cov, err := BuildCovarianceMatrix(req.Returns)
	if err != nil {
		return nil, err
	}

	seed := req.Seed
	for seed == 0 {
		seed = rand.Uint64()
	}

	// Sampling.
	trials := make([]PortfolioResult, req.Trials)
	shards := shardTrials(req.Trials, req.Workers)
	run := func(stream int, lo, hi int) error {
		rng := NewRand(seed, uint64(stream))
		for k := lo; k < hi; k++ {
			w, err := draw(n, rng)
			if err != nil {
				return err
			}
			res, err := evaluate(w, means, cov, req.RiskFreeRate)
			if err != nil {
				return err
			}
			trials[k] = res
		}
		return nil
	}

	if len(shards) == 1 {
		if err := run(0, 0, req.Trials); err != nil {
			return nil, err
		}
	} else {
		var g errgroup.Group
		for k, s := range shards {
			k, lo, hi := k, s[0], s[1]
			g.Go(func() error { return run(k, lo, hi) })
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	// Aggregate: trials are already in canonical (worker, trial) order.
	res := &EfficientFrontierResult{
		Trials:      trials,
		AssetNames:  append([]string(nil), req.Names...),
		MeanReturns: means,
		Covariance:  cov,
		Seed:        seed,
		Workers:     len(shards),
	}
	res.OptimalIndex, res.MinVarianceIndex = selectOptimum(trials)
	res.Optimal = PortfolioResult{Sharpe: Unratable}
	if res.OptimalIndex >= 0 {
		res.Optimal = trials[res.OptimalIndex]
	}
	res.MinVariance = trials[res.MinVarianceIndex]
	return res, nil
}

// selectOptimum returns the index of the highest Sharpe ratio and of the lowest
// volatility. Comparisons are strict, so ties keep the earliest trial. opt is
// -1 when no trial is ratable; both are -1 for an empty population.
func selectOptimum(trials []PortfolioResult) (opt, minVar int) {
	if len(trials) == 0 {
		return -1, -1
	}
	opt, minVar = -1, 0
	best := Unratable
	for i, t := range trials {
		if t.Sharpe > best {
			best = t.Sharpe
			opt = i
		}
		if t.Volatility < trials[minVar].Volatility {
			minVar = i
		}
	}
	return opt, minVar
}

// shardTrials splits [0, trials) into at most workers contiguous ranges.
func shardTrials(trials, workers int) [][2]int {
	if workers < 1 {
		workers = 1
	}
	if workers > trials {
		workers = trials
	}
	shards := make([][2]int, 0, workers)
	size := trials / workers
	extra := trials % workers
	lo := 0
	for k := 0; k < workers; k++ {
		hi := lo + size
		if k < extra {
			hi++
		}
		shards = append(shards, [2]int{lo, hi})
		lo = hi
	}
	return shards
}

// FrontierPoint is a point on the simulated efficient frontier.
type FrontierPoint struct {
	Risk   float64 `json:"risk"`
	Return float64 `json:"return"`
	Index  int     `json:"index"` // trial index
}

// Envelope traces the upper-left boundary of the simulated cloud: trials
// sorted by risk, keeping only those that strictly improve on the best
// return seen so far, then thinned to at most points entries.
func (r *EfficientFrontierResult) Envelope(points int) []FrontierPoint {
	if len(r.Trials) == 0 || points < 2 {
		return nil
	}

	order := make([]int, len(r.Trials))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return r.Trials[order[a]].Volatility < r.Trials[order[b]].Volatility
	})

	var clean []FrontierPoint
	maxRet := -math.MaxFloat64
	for _, idx := range order {
		t := r.Trials[idx]
		if t.Return > maxRet {
			clean = append(clean, FrontierPoint{Risk: t.Volatility, Return: t.Return, Index: idx})
			maxRet = t.Return
		}
	}
	if len(clean) == 0 {
		return nil
	}

	// Drop points within 0.1% of the risk range of their predecessor.
	riskRange := clean[len(clean)-1].Risk - clean[0].Risk
	minGap := riskRange * 0.001
	if minGap < 1e-12 {
		minGap = 1e-12
	}
	frontier := []FrontierPoint{clean[0]}
	for _, p := range clean[1:] {
		if p.Risk-frontier[len(frontier)-1].Risk >= minGap {
			frontier = append(frontier, p)
		}
	}

	if len(frontier) > points {
		sampled := make([]FrontierPoint, points)
		for i := 0; i < points; i++ {
			sampled[i] = frontier[i*(len(frontier)-1)/(points-1)]
		}
		frontier = sampled
	}
	return frontier
}
