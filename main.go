package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"

	"frontier-engine/internal/chart"
	"frontier-engine/internal/config"
	"frontier-engine/internal/dataset"
	"frontier-engine/internal/db"
	"frontier-engine/internal/engine"
	"frontier-engine/internal/logger"
)

var version = "dev"

type options struct {
	data, kind         string
	trials, workers    int
	rf, alpha, capital float64
	seed               uint64
	sampler            string
	chartPath, piePath string
	jsonPath           string
	save               bool
	label              string
	dbPath             string
	history            int
	show, del          string
	clearDays          int
	saveConfig         bool
	quiet              bool
}

func main() {
	var o options
	flag.StringVar(&o.data, "data", "", "CSV file with one column per asset")
	flag.StringVar(&o.kind, "kind", "returns", "what the CSV holds: returns, prices or logprices")
	flag.IntVar(&o.trials, "trials", 0, "number of random portfolios")
	flag.Float64Var(&o.rf, "rf", 0, "risk-free rate per period")
	flag.Uint64Var(&o.seed, "seed", 0, "random seed (0 = fresh entropy)")
	flag.IntVar(&o.workers, "workers", 0, "parallel workers (1 = sequential)")
	flag.StringVar(&o.sampler, "sampler", "", "weight sampler: uniform or dirichlet")
	flag.Float64Var(&o.alpha, "alpha", 0, "Dirichlet concentration")
	flag.Float64Var(&o.capital, "capital", 0, "capital to split across the optimal portfolio")
	flag.StringVar(&o.chartPath, "chart", "", "write the frontier chart PNG here")
	flag.StringVar(&o.piePath, "pie", "", "write the allocation pie PNG here")
	flag.StringVar(&o.jsonPath, "json", "", "write the full result as JSON here (- for stdout)")
	flag.BoolVar(&o.save, "save", false, "store the run in the database")
	flag.StringVar(&o.label, "label", "", "label for a saved run")
	flag.StringVar(&o.dbPath, "db", "", "SQLite database path")
	flag.IntVar(&o.history, "history", 0, "list the last N stored runs")
	flag.StringVar(&o.show, "show", "", "print a stored run")
	flag.StringVar(&o.del, "delete", "", "delete a stored run")
	flag.IntVar(&o.clearDays, "clear", 0, "delete stored runs older than N days")
	flag.BoolVar(&o.saveConfig, "save-config", false, "store the effective settings as defaults")
	flag.BoolVar(&o.quiet, "quiet", false, "only log warnings and errors")
	flag.Parse()

	os.Exit(run(o))
}

func run(o options) int {
	if w := logOutput(o); w != nil {
		logger.SetOutput(w)
	}
	if o.quiet {
		logger.SetLevel("warn")
	}
	logger.Banner(version)

	path := envOrDefault("FRONTIER_DB", config.Default().DBPath)
	if o.dbPath != "" {
		path = o.dbPath
	}
	database, err := db.Open(path)
	if err != nil {
		logger.Error("DB", fmt.Sprintf("Failed to open database: %v", err))
		return 1
	}
	defer database.Close()

	cfg := database.LoadConfig()
	cfg.DBPath = path
	if v := envOrDefault("FRONTIER_WORKERS", ""); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Workers = n
		} else {
			logger.Warn("CONFIG", fmt.Sprintf("Ignoring FRONTIER_WORKERS=%q: %v", v, err))
		}
	}
	applyFlags(cfg, o)
	if err := cfg.Validate(); err != nil {
		logger.Error("CONFIG", err.Error())
		return 2
	}
	if o.saveConfig {
		if err := database.SaveConfig(cfg); err != nil {
			logger.Error("CONFIG", fmt.Sprintf("Save failed: %v", err))
			return 1
		}
		logger.Success("CONFIG", "Saved settings as defaults")
	}

	switch {
	case o.history > 0:
		printHistory(database.GetRuns(o.history))
		return 0
	case o.show != "":
		return showRun(database, o, cfg)
	case o.del != "":
		if err := database.DeleteRun(o.del); err != nil {
			logger.Error("DB", err.Error())
			return 1
		}
		logger.Success("DB", "Deleted run "+o.del)
		return 0
	case o.clearDays > 0:
		n, err := database.ClearRuns(o.clearDays)
		if err != nil {
			logger.Error("DB", err.Error())
			return 1
		}
		logger.Success("DB", fmt.Sprintf("Removed %d runs older than %d days", n, o.clearDays))
		return 0
	}

	if o.data == "" {
		if o.saveConfig {
			return 0
		}
		flag.Usage()
		return 2
	}

	kind, err := dataset.ParseKind(o.kind)
	if err != nil {
		logger.Error("DATA", err.Error())
		return 2
	}
	ds, err := dataset.LoadFile(o.data, kind)
	if err != nil {
		logger.Error("DATA", err.Error())
		return 1
	}
	printAssets(ds, cfg)

	start := time.Now()
	res, err := engine.CalculateEfficientFrontier(cfg.Request(ds.Names, ds.Returns))
	if err != nil {
		logger.Error("ENGINE", err.Error())
		return 1
	}
	elapsed := time.Since(start)
	logger.Success("ENGINE", fmt.Sprintf("Evaluated %s portfolios in %s on %d workers",
		humanize.Comma(int64(len(res.Trials))), elapsed.Round(time.Millisecond), res.Workers))
	printResult(res, cfg)
	if res.HasOptimum() {
		printHistoricalRisk(res.Optimal.Weights, ds.Returns)
	}

	if cfg.Capital > 0 {
		if res.HasOptimum() {
			printAllocation(res, cfg)
		} else {
			logger.Warn("ALLOC", "No ratable portfolio, skipping capital allocation")
		}
	}

	code := 0
	if o.chartPath != "" {
		if buf, err := chart.RenderFrontier(res, cfg.FrontierPoints); err != nil {
			logger.Warn("CHART", err.Error())
		} else if !writeFile(o.chartPath, buf) {
			code = 1
		}
	}
	if o.piePath != "" && res.HasOptimum() {
		if buf, err := chart.RenderAllocation(res.AssetNames, res.Optimal.Weights); err != nil {
			logger.Warn("CHART", err.Error())
		} else if !writeFile(o.piePath, buf) {
			code = 1
		}
	}
	if o.jsonPath != "" {
		buf, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			logger.Error("JSON", err.Error())
			return 1
		}
		if o.jsonPath == "-" {
			os.Stdout.Write(append(buf, '\n'))
		} else if !writeFile(o.jsonPath, buf) {
			code = 1
		}
	}
	if o.save {
		id, err := database.SaveRun(res, db.RunMeta{
			Label:        o.label,
			Sampler:      cfg.Sampler,
			RiskFreeRate: cfg.RiskFreeRate,
			Duration:     elapsed,
		})
		if err != nil {
			logger.Error("DB", fmt.Sprintf("Save failed: %v", err))
			return 1
		}
		logger.Success("DB", "Saved run "+id)
	}
	return code
}

// logOutput moves logging off stdout when stdout carries the JSON result.
func logOutput(o options) io.Writer {
	if o.jsonPath == "-" {
		return os.Stderr
	}
	return nil
}

// applyFlags copies explicitly set flags over the stored config.
func applyFlags(cfg *config.Config, o options) {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "trials":
			cfg.Trials = o.trials
		case "rf":
			cfg.RiskFreeRate = o.rf
		case "seed":
			cfg.Seed = o.seed
		case "workers":
			cfg.Workers = o.workers
		case "sampler":
			cfg.Sampler = o.sampler
		case "alpha":
			cfg.DirichletAlpha = o.alpha
		case "capital":
			cfg.Capital = o.capital
		}
	})
}

func printAssets(ds *dataset.Dataset, cfg *config.Config) {
	logger.Section("Assets")
	for i, name := range ds.Names {
		series := ds.Returns[i]
		mean, _ := engine.Mean(series)
		vol, _ := engine.Volatility(series)
		sharpe := "n/a"
		if s, err := engine.SeriesSharpeRatio(series, cfg.RiskFreeRate); err == nil {
			sharpe = fmt.Sprintf("%.3f", s)
		}
		line := fmt.Sprintf("mean %7.3f%%  vol %7.3f%%  ann. vol %7.2f%%  sharpe %s",
			mean*100, vol*100, engine.AnnualizeVolatility(vol, cfg.PeriodsPerYear)*100, sharpe)
		if i > 0 {
			if beta, err := engine.Beta(series, ds.Returns[0]); err == nil {
				line += fmt.Sprintf("  beta(%s) %.2f", ds.Names[0], beta)
			}
		}
		logger.Stats(name, line)
	}

	logger.Section("Correlation")
	for i, name := range ds.Names {
		cells := make([]string, len(ds.Names))
		for j := range ds.Names {
			c, err := engine.Correlation(ds.Returns[i], ds.Returns[j])
			if err != nil {
				cells[j] = "   n/a"
				continue
			}
			cells[j] = fmt.Sprintf("%+.2f", c)
		}
		logger.Stats(name, strings.Join(cells, " "))
	}
}

func printResult(res *engine.EfficientFrontierResult, cfg *config.Config) {
	logger.Section("Search")
	logger.Stats("Trials", humanize.Comma(int64(len(res.Trials))))
	logger.Stats("Seed", res.Seed)
	logger.Stats("Sampler", cfg.Sampler)

	logger.Section("Max Sharpe")
	if !res.HasOptimum() {
		logger.Warn("ENGINE", "No trial had a positive volatility, no optimum")
	} else {
		printPortfolio(res.OptimalIndex, res.Optimal, res.AssetNames, cfg)
	}
	logger.Section("Min variance")
	printPortfolio(res.MinVarianceIndex, res.MinVariance, res.AssetNames, cfg)

	if pts := res.Envelope(cfg.FrontierPoints); len(pts) > 0 {
		logger.Section("Frontier")
		for _, p := range pts {
			logger.Stats(fmt.Sprintf("risk %.3f%%", p.Risk*100), fmt.Sprintf("return %.3f%%", p.Return*100))
		}
	}
}

func printHistoricalRisk(weights []float64, returns [][]float64) {
	r, err := engine.ComputeHistoricalRisk(weights, returns)
	if err != nil {
		logger.Warn("RISK", err.Error())
		return
	}
	logger.Section("Max Sharpe, historical replay")
	logger.Stats("Periods", r.Periods)
	logger.Stats("VaR 95 / 99", fmt.Sprintf("%.3f%% / %.3f%%", r.VaR95*100, r.VaR99*100))
	logger.Stats("ES 95 / 99", fmt.Sprintf("%.3f%% / %.3f%%", r.ES95*100, r.ES99*100))
	logger.Stats("Worst period", fmt.Sprintf("%.3f%%", r.WorstPeriod*100))
	logger.Stats("Max drawdown", fmt.Sprintf("%.2f%%", r.MaxDrawdown*100))
	if r.LowSample {
		logger.Warn("RISK", "Fewer than 20 periods, tail estimates are rough")
	}
}

func printPortfolio(idx int, p engine.PortfolioResult, names []string, cfg *config.Config) {
	logger.Stats("Trial", idx)
	logger.Stats("Return", fmt.Sprintf("%.4f%%", p.Return*100))
	logger.Stats("Volatility", fmt.Sprintf("%.4f%% (ann. %.2f%%)", p.Volatility*100,
		engine.AnnualizeVolatility(p.Volatility, cfg.PeriodsPerYear)*100))
	logger.Stats("Sharpe", sharpeString(p))
	for i, name := range names {
		if i < len(p.Weights) {
			logger.Stats("  "+name, fmt.Sprintf("%6.2f%%", p.Weights[i]*100))
		}
	}
}

func printAllocation(res *engine.EfficientFrontierResult, cfg *config.Config) {
	allocs, err := engine.AllocateCapital(decimal.NewFromFloat(cfg.Capital), res.AssetNames, res.Optimal.Weights, cfg.CapitalPlaces)
	if err != nil {
		logger.Warn("ALLOC", err.Error())
		return
	}
	logger.Section(fmt.Sprintf("Allocation of %s", humanize.Commaf(cfg.Capital)))
	for _, a := range allocs {
		logger.Stats(a.Asset, humanize.FormatFloat("#,###.##", a.Amount.InexactFloat64()))
	}
}

func printHistory(runs []db.RunRecord) {
	logger.Section(fmt.Sprintf("%d stored runs", len(runs)))
	for _, r := range runs {
		when := r.CreatedAt
		if t, err := time.Parse(time.RFC3339, r.CreatedAt); err == nil {
			when = humanize.Time(t)
		}
		desc := fmt.Sprintf("%-14s %s trials  sharpe %s  [%s]",
			when, humanize.Comma(int64(r.Trials)), sharpeString(r.Optimal), strings.Join(r.Assets, ", "))
		if r.Label != "" {
			desc += "  " + r.Label
		}
		logger.Stats(r.ID, desc)
	}
}

func showRun(database *db.DB, o options, cfg *config.Config) int {
	r := database.GetRun(o.show)
	if r == nil {
		logger.Error("DB", "No run with id "+o.show)
		return 1
	}
	logger.Section("Run " + r.ID)
	logger.Stats("Created", r.CreatedAt)
	if r.Label != "" {
		logger.Stats("Label", r.Label)
	}
	logger.Stats("Assets", strings.Join(r.Assets, ", "))
	logger.Stats("Trials", humanize.Comma(int64(r.Trials)))
	logger.Stats("Workers", r.Workers)
	logger.Stats("Seed", r.Seed)
	logger.Stats("Sampler", r.Sampler)
	logger.Stats("Risk-free", r.RiskFreeRate)
	logger.Stats("Duration", (time.Duration(r.DurationMs) * time.Millisecond).String())

	logger.Section("Max Sharpe")
	if r.OptimalIndex < 0 {
		logger.Warn("DB", "Run has no ratable portfolio")
	} else {
		printPortfolio(r.OptimalIndex, r.Optimal, r.Assets, cfg)
	}

	if o.chartPath == "" {
		return 0
	}
	trials, err := database.GetRunTrials(r.ID)
	if err != nil {
		logger.Error("DB", err.Error())
		return 1
	}
	res := &engine.EfficientFrontierResult{
		Optimal:          r.Optimal,
		OptimalIndex:     r.OptimalIndex,
		MinVarianceIndex: r.MinVarianceIndex,
		Trials:           trials,
		AssetNames:       r.Assets,
		MeanReturns:      r.MeanReturns,
		Seed:             r.Seed,
		Workers:          r.Workers,
	}
	buf, err := chart.RenderFrontier(res, cfg.FrontierPoints)
	if err != nil {
		logger.Warn("CHART", err.Error())
		return 0
	}
	if !writeFile(o.chartPath, buf) {
		return 1
	}
	return 0
}

func sharpeString(p engine.PortfolioResult) string {
	if !p.Ratable() || math.IsNaN(p.Sharpe) {
		return "unratable"
	}
	return fmt.Sprintf("%.4f", p.Sharpe)
}

func writeFile(path string, buf []byte) bool {
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		logger.Error("OUT", fmt.Sprintf("Write %s: %v", path, err))
		return false
	}
	logger.Success("OUT", fmt.Sprintf("Wrote %s (%s)", path, humanize.Bytes(uint64(len(buf)))))
	return true
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}
