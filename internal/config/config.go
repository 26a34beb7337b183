package config

import (
	"fmt"

	"frontier-engine/internal/engine"
)

// Config holds optimizer settings (in-memory representation).
// Persistence is handled by internal/db package.
type Config struct {
	Trials         int     `json:"trials"`
	RiskFreeRate   float64 `json:"risk_free_rate"` // per period, same period as the return series
	Seed           uint64  `json:"seed"`           // 0 = entropy-seeded
	Workers        int     `json:"workers"`        // 1 = sequential
	Sampler        string  `json:"sampler"`        // uniform | dirichlet
	DirichletAlpha float64 `json:"dirichlet_alpha"`

	// Reporting.
	PeriodsPerYear int     `json:"periods_per_year"` // 252 daily, 52 weekly, 12 monthly
	FrontierPoints int     `json:"frontier_points"`
	Capital        float64 `json:"capital"` // 0 = skip allocation
	CapitalPlaces  int32   `json:"capital_places"`

	DBPath string `json:"db_path"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Trials:         10000,
		RiskFreeRate:   0,
		Seed:           0,
		Workers:        1,
		Sampler:        string(engine.SamplerUniform),
		DirichletAlpha: 1,
		PeriodsPerYear: engine.TradingDaysPerYear,
		FrontierPoints: 30,
		Capital:        0,
		CapitalPlaces:  2,
		DBPath:         "frontier.db",
	}
}

// Validate checks settings that would otherwise only fail inside the engine.
func (c *Config) Validate() error {
	if c.Trials <= 0 {
		return fmt.Errorf("trials must be positive, got %d", c.Trials)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", c.Workers)
	}
	if _, err := engine.ParseSamplerKind(c.Sampler); err != nil {
		return err
	}
	if c.DirichletAlpha < 0 {
		return fmt.Errorf("dirichlet alpha must not be negative, got %g", c.DirichletAlpha)
	}
	if c.PeriodsPerYear < 0 {
		return fmt.Errorf("periods per year must not be negative, got %d", c.PeriodsPerYear)
	}
	if c.Capital < 0 {
		return fmt.Errorf("capital must not be negative, got %g", c.Capital)
	}
	if c.CapitalPlaces < 0 {
		return fmt.Errorf("capital places must not be negative, got %d", c.CapitalPlaces)
	}
	return nil
}

// Request builds the engine call for the given dataset.
func (c *Config) Request(names []string, returns [][]float64) engine.FrontierRequest {
	kind, _ := engine.ParseSamplerKind(c.Sampler)
	return engine.FrontierRequest{
		Returns:      returns,
		Names:        names,
		Trials:       c.Trials,
		RiskFreeRate: c.RiskFreeRate,
		Seed:         c.Seed,
		Workers:      c.Workers,
		Sampler:      kind,
		Alpha:        c.DirichletAlpha,
	}
}
