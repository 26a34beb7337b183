package engine

import (
	"errors"
	"math"
	"reflect"
	"testing"
)

var (
	scenarioA = [][]float64{
		{0.02, -0.01, 0.03, -0.02},
		{0.05, 0.03, -0.02, 0.04},
	}
	scenarioANames = []string{"A", "B"}
)

func scenarioRequest(seed uint64) FrontierRequest {
	return FrontierRequest{
		Returns: scenarioA,
		Names:   scenarioANames,
		Trials:  1000,
		Seed:    seed,
	}
}

func TestCalculateEfficientFrontier_Reproducible(t *testing.T) {
	a, err := CalculateEfficientFrontier(scenarioRequest(42))
	if err != nil {
		t.Fatalf("run 1: %v", err)
	}
	b, err := CalculateEfficientFrontier(scenarioRequest(42))
	if err != nil {
		t.Fatalf("run 2: %v", err)
	}
	if !reflect.DeepEqual(a.Optimal.Weights, b.Optimal.Weights) {
		t.Errorf("optimal weights differ: %v vs %v", a.Optimal.Weights, b.Optimal.Weights)
	}
	if !reflect.DeepEqual(a, b) {
		t.Error("results with the same seed are not identical")
	}
	if a.Seed != 42 {
		t.Errorf("Seed = %d, want 42", a.Seed)
	}
}

func TestCalculateEfficientFrontier_DifferentSeedsDiffer(t *testing.T) {
	a, _ := CalculateEfficientFrontier(scenarioRequest(42))
	b, _ := CalculateEfficientFrontier(scenarioRequest(43))
	if reflect.DeepEqual(a.Trials, b.Trials) {
		t.Error("different seeds produced the same trials")
	}
}

func TestCalculateEfficientFrontier_Population(t *testing.T) {
	res, err := CalculateEfficientFrontier(scenarioRequest(42))
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Trials) != 1000 {
		t.Fatalf("len(Trials) = %d, want 1000", len(res.Trials))
	}
	if !reflect.DeepEqual(res.AssetNames, scenarioANames) {
		t.Errorf("AssetNames = %v, want %v", res.AssetNames, scenarioANames)
	}
	if !res.HasOptimum() {
		t.Fatal("expected an optimum")
	}
	if !reflect.DeepEqual(res.Trials[res.OptimalIndex], res.Optimal) {
		t.Error("Optimal does not match Trials[OptimalIndex]")
	}

	for i, tr := range res.Trials {
		checkSimplex(t, tr.Weights, 2)
		if tr.Sharpe > res.Optimal.Sharpe {
			t.Fatalf("trial %d Sharpe %v beats optimum %v", i, tr.Sharpe, res.Optimal.Sharpe)
		}
		if tr.Sharpe == res.Optimal.Sharpe && i < res.OptimalIndex {
			t.Fatalf("tie at trial %d should have been kept over %d", i, res.OptimalIndex)
		}
		if tr.Volatility < res.MinVariance.Volatility {
			t.Fatalf("trial %d volatility %v below min-variance %v", i, tr.Volatility, res.MinVariance.Volatility)
		}
	}

	// Both assets have mean 0.005 and 0.025; the optimum must tilt to B.
	if res.Optimal.Weights[1] <= res.Optimal.Weights[0] {
		t.Errorf("optimal weights %v should favour asset B", res.Optimal.Weights)
	}
}

func TestCalculateEfficientFrontier_SingleTrial(t *testing.T) {
	req := scenarioRequest(5)
	req.Trials = 1
	res, err := CalculateEfficientFrontier(req)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Trials) != 1 || res.OptimalIndex != 0 {
		t.Fatalf("len = %d, OptimalIndex = %d; want 1 and 0", len(res.Trials), res.OptimalIndex)
	}
	if !reflect.DeepEqual(res.Trials[0], res.Optimal) {
		t.Error("single trial is not the optimum")
	}
}

func TestCalculateEfficientFrontier_ZeroVolatilityNeverOptimal(t *testing.T) {
	res, err := CalculateEfficientFrontier(FrontierRequest{
		Returns: [][]float64{{0.01, 0.01, 0.01}, {0.02, 0.02, 0.02}},
		Names:   []string{"CASH", "BOND"},
		Trials:  20,
		Seed:    1,
	})
	if err != nil {
		t.Fatalf("zero volatility must not fail: %v", err)
	}
	for i, tr := range res.Trials {
		if tr.Ratable() {
			t.Errorf("trial %d Sharpe = %v, want unratable", i, tr.Sharpe)
		}
	}
	if res.HasOptimum() {
		t.Errorf("OptimalIndex = %d, want -1", res.OptimalIndex)
	}
	if len(res.WeightsByName()) != 0 {
		t.Error("WeightsByName should be empty without an optimum")
	}
	if res.Optimal.Ratable() || res.Optimal.Weights != nil {
		t.Errorf("Optimal = %+v, want empty unratable portfolio", res.Optimal)
	}
}

func TestCalculateEfficientFrontier_RiskFreeAboveAllReturns(t *testing.T) {
	req := scenarioRequest(42)
	req.RiskFreeRate = 0.5
	res, err := CalculateEfficientFrontier(req)
	if err != nil {
		t.Fatal(err)
	}
	if !res.HasOptimum() {
		t.Fatal("expected an optimum")
	}
	if res.Optimal.Sharpe >= 0 {
		t.Errorf("Sharpe = %v, want negative", res.Optimal.Sharpe)
	}
	for _, tr := range res.Trials {
		if tr.Sharpe > res.Optimal.Sharpe {
			t.Fatalf("found less-negative Sharpe %v than optimum %v", tr.Sharpe, res.Optimal.Sharpe)
		}
	}
}

func TestCalculateEfficientFrontier_EntropySeedIsReplayable(t *testing.T) {
	a, err := CalculateEfficientFrontier(scenarioRequest(0))
	if err != nil {
		t.Fatal(err)
	}
	if a.Seed == 0 {
		t.Fatal("effective seed not recorded")
	}
	b, err := CalculateEfficientFrontier(scenarioRequest(a.Seed))
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(a.Trials, b.Trials) {
		t.Error("replaying the effective seed produced different trials")
	}
}

func TestCalculateEfficientFrontier_Validation(t *testing.T) {
	base := scenarioRequest(1)
	tests := []struct {
		name   string
		mutate func(r *FrontierRequest)
	}{
		{"one asset", func(r *FrontierRequest) { r.Returns = scenarioA[:1]; r.Names = []string{"A"} }},
		{"names mismatch", func(r *FrontierRequest) { r.Names = []string{"A"} }},
		{"empty name", func(r *FrontierRequest) { r.Names = []string{"A", ""} }},
		{"zero trials", func(r *FrontierRequest) { r.Trials = 0 }},
		{"negative trials", func(r *FrontierRequest) { r.Trials = -5 }},
		{"negative workers", func(r *FrontierRequest) { r.Workers = -1 }},
		{"unknown sampler", func(r *FrontierRequest) { r.Sampler = "sobol" }},
		{"negative alpha", func(r *FrontierRequest) { r.Sampler = SamplerDirichlet; r.Alpha = -1 }},
		{"unequal lengths", func(r *FrontierRequest) {
			r.Returns = [][]float64{{0.1, 0.2, 0.3}, {0.1, 0.2}}
		}},
		{"short series", func(r *FrontierRequest) {
			r.Returns = [][]float64{{0.1}, {0.2}}
		}},
		{"NaN observation", func(r *FrontierRequest) {
			r.Returns = [][]float64{{0.01, math.NaN(), 0.02}, {0.03, 0.01, 0.02}}
		}},
		{"infinite observation", func(r *FrontierRequest) {
			r.Returns = [][]float64{{0.01, 0.02, 0.03}, {0.03, math.Inf(1), 0.02}}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := base
			tt.mutate(&req)
			res, err := CalculateEfficientFrontier(req)
			if !errors.Is(err, ErrInvalidInput) {
				t.Errorf("err = %v, want ErrInvalidInput", err)
			}
			if res != nil {
				t.Error("expected no partial result on failure")
			}
		})
	}
}

func TestCalculateEfficientFrontier_ParallelDeterministic(t *testing.T) {
	req := scenarioRequest(42)
	req.Returns = threeAssets
	req.Names = []string{"X", "Y", "Z"}
	req.Trials = 5000
	req.Workers = 4

	a, err := CalculateEfficientFrontier(req)
	if err != nil {
		t.Fatal(err)
	}
	b, err := CalculateEfficientFrontier(req)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Error("parallel runs with the same seed and workers differ")
	}
	if a.Workers != 4 {
		t.Errorf("Workers = %d, want 4", a.Workers)
	}
	if len(a.Trials) != 5000 {
		t.Errorf("len(Trials) = %d, want 5000", len(a.Trials))
	}
	for i, tr := range a.Trials {
		if tr.Weights == nil {
			t.Fatalf("trial %d was never filled", i)
		}
	}
}

func TestCalculateEfficientFrontier_OneWorkerMatchesSequential(t *testing.T) {
	seq := scenarioRequest(42)
	one := scenarioRequest(42)
	one.Workers = 1
	a, _ := CalculateEfficientFrontier(seq)
	b, _ := CalculateEfficientFrontier(one)
	if !reflect.DeepEqual(a, b) {
		t.Error("Workers=1 differs from the sequential run")
	}
}

func TestCalculateEfficientFrontier_FirstShardMatchesSequential(t *testing.T) {
	seq := scenarioRequest(42)
	par := scenarioRequest(42)
	par.Workers = 2
	a, _ := CalculateEfficientFrontier(seq)
	b, _ := CalculateEfficientFrontier(par)
	// Worker 0 draws from stream 0, the sequential stream.
	if !reflect.DeepEqual(a.Trials[:500], b.Trials[:500]) {
		t.Error("first shard does not replay the sequential stream")
	}
}

func TestCalculateEfficientFrontier_MoreWorkersThanTrials(t *testing.T) {
	req := scenarioRequest(3)
	req.Trials = 3
	req.Workers = 8
	res, err := CalculateEfficientFrontier(req)
	if err != nil {
		t.Fatal(err)
	}
	if res.Workers != 3 || len(res.Trials) != 3 {
		t.Errorf("Workers = %d, trials = %d; want 3 and 3", res.Workers, len(res.Trials))
	}
}

func TestCalculateEfficientFrontier_Dirichlet(t *testing.T) {
	req := scenarioRequest(11)
	req.Sampler = SamplerDirichlet
	res, err := CalculateEfficientFrontier(req)
	if err != nil {
		t.Fatal(err)
	}
	for _, tr := range res.Trials {
		checkSimplex(t, tr.Weights, 2)
	}
}

func TestShardTrials(t *testing.T) {
	tests := []struct {
		trials, workers int
		want            [][2]int
	}{
		{10, 0, [][2]int{{0, 10}}},
		{10, 1, [][2]int{{0, 10}}},
		{10, 3, [][2]int{{0, 4}, {4, 7}, {7, 10}}},
		{2, 5, [][2]int{{0, 1}, {1, 2}}},
	}
	for _, tt := range tests {
		got := shardTrials(tt.trials, tt.workers)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("shardTrials(%d, %d) = %v, want %v", tt.trials, tt.workers, got, tt.want)
		}
	}
}

func TestEnvelope(t *testing.T) {
	res, err := CalculateEfficientFrontier(FrontierRequest{
		Returns: threeAssets,
		Names:   []string{"X", "Y", "Z"},
		Trials:  3000,
		Seed:    9,
	})
	if err != nil {
		t.Fatal(err)
	}
	env := res.Envelope(20)
	if len(env) == 0 || len(env) > 20 {
		t.Fatalf("len(envelope) = %d, want 1..20", len(env))
	}
	for i := 1; i < len(env); i++ {
		if env[i].Risk <= env[i-1].Risk {
			t.Errorf("risk not increasing at %d: %v <= %v", i, env[i].Risk, env[i-1].Risk)
		}
		if env[i].Return <= env[i-1].Return {
			t.Errorf("return not increasing at %d: %v <= %v", i, env[i].Return, env[i-1].Return)
		}
	}
	for _, p := range env {
		tr := res.Trials[p.Index]
		if tr.Volatility != p.Risk || tr.Return != p.Return {
			t.Errorf("point %+v does not match trial %d", p, p.Index)
		}
	}
	if env[0].Risk != res.MinVariance.Volatility {
		t.Errorf("envelope starts at %v, want min-variance %v", env[0].Risk, res.MinVariance.Volatility)
	}
	if res.Envelope(1) != nil {
		t.Error("Envelope(1) should be nil")
	}
}

func TestWeightsByName(t *testing.T) {
	res, err := CalculateEfficientFrontier(scenarioRequest(42))
	if err != nil {
		t.Fatal(err)
	}
	m := res.WeightsByName()
	if len(m) != 2 {
		t.Fatalf("len = %d, want 2", len(m))
	}
	if math.Abs(m["A"]+m["B"]-1) > 1e-9 {
		t.Errorf("weights sum = %v, want 1", m["A"]+m["B"])
	}
}

func TestSelectOptimum(t *testing.T) {
	u := Unratable
	trial := func(sharpe, vol float64) PortfolioResult {
		return PortfolioResult{Sharpe: sharpe, Volatility: vol}
	}
	tests := []struct {
		name       string
		trials     []PortfolioResult
		wantOpt    int
		wantMinVar int
	}{
		{"single", []PortfolioResult{trial(0.5, 0.1)}, 0, 0},
		{"clear winner", []PortfolioResult{trial(0.1, 0.3), trial(0.9, 0.2), trial(0.4, 0.1)}, 1, 2},
		{"sharpe tie keeps earliest", []PortfolioResult{trial(0.2, 0.3), trial(0.7, 0.2), trial(0.7, 0.25), trial(0.7, 0.4)}, 1, 1},
		{"volatility tie keeps earliest", []PortfolioResult{trial(0.2, 0.3), trial(0.1, 0.1), trial(0.3, 0.1)}, 2, 1},
		{"all unratable", []PortfolioResult{trial(u, 0), trial(u, 0), trial(u, 0)}, -1, 0},
		{"unratable mixed with negatives", []PortfolioResult{trial(u, 0), trial(-0.8, 0.2), trial(u, 0), trial(-0.3, 0.3), trial(-0.3, 0.1)}, 3, 0},
		{"negative sharpe beats unratable", []PortfolioResult{trial(u, 0.05), trial(-5, 0.2)}, 1, 0},
		{"empty", nil, -1, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opt, minVar := selectOptimum(tt.trials)
			if opt != tt.wantOpt || minVar != tt.wantMinVar {
				t.Errorf("selectOptimum = (%d, %d), want (%d, %d)", opt, minVar, tt.wantOpt, tt.wantMinVar)
			}
		})
	}
}

func TestSelectOptimum_TieAcrossShardBoundary(t *testing.T) {
	// 10 trials over 3 workers: shards [0,4) [4,7) [7,10).
	shards := shardTrials(10, 3)
	if shards[1][0] != 4 || shards[2][0] != 7 {
		t.Fatalf("unexpected shards %v", shards)
	}
	trials := make([]PortfolioResult, 10)
	for i := range trials {
		trials[i] = PortfolioResult{Sharpe: 0.1, Volatility: 0.5}
	}
	// Equal best at the last trial of shard 0, the first of shard 1 and inside shard 2.
	trials[3].Sharpe = 1.25
	trials[4].Sharpe = 1.25
	trials[8].Sharpe = 1.25
	// Equal lowest volatility at the end of shard 1 and the start of shard 2.
	trials[6].Volatility = 0.05
	trials[7].Volatility = 0.05

	opt, minVar := selectOptimum(trials)
	if opt != 3 {
		t.Errorf("opt = %d, want 3 (last trial of worker 0)", opt)
	}
	if minVar != 6 {
		t.Errorf("minVar = %d, want 6 (last trial of worker 1)", minVar)
	}
}
