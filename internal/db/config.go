package db

import (
	"fmt"
	"strconv"

	"frontier-engine/internal/config"
)

// LoadConfig reads config from SQLite. If empty, returns defaults.
func (d *DB) LoadConfig() *config.Config {
	cfg := config.Default()

	rows, err := d.sql.Query("SELECT key, value FROM config")
	if err != nil {
		return cfg
	}
	defer rows.Close()

	m := make(map[string]string)
	for rows.Next() {
		var k, v string
		rows.Scan(&k, &v)
		m[k] = v
	}

	if len(m) == 0 {
		return cfg
	}

	if v, ok := m["trials"]; ok {
		cfg.Trials, _ = strconv.Atoi(v)
	}
	if v, ok := m["risk_free_rate"]; ok {
		cfg.RiskFreeRate, _ = strconv.ParseFloat(v, 64)
	}
	if v, ok := m["seed"]; ok {
		cfg.Seed, _ = strconv.ParseUint(v, 10, 64)
	}
	if v, ok := m["workers"]; ok {
		cfg.Workers, _ = strconv.Atoi(v)
	}
	if v, ok := m["sampler"]; ok {
		cfg.Sampler = v
	}
	if v, ok := m["dirichlet_alpha"]; ok {
		cfg.DirichletAlpha, _ = strconv.ParseFloat(v, 64)
	}
	if v, ok := m["periods_per_year"]; ok {
		cfg.PeriodsPerYear, _ = strconv.Atoi(v)
	}
	if v, ok := m["frontier_points"]; ok {
		cfg.FrontierPoints, _ = strconv.Atoi(v)
	}
	if v, ok := m["capital"]; ok {
		cfg.Capital, _ = strconv.ParseFloat(v, 64)
	}
	if v, ok := m["capital_places"]; ok {
		p, _ := strconv.ParseInt(v, 10, 32)
		cfg.CapitalPlaces = int32(p)
	}

	return cfg
}

// SaveConfig writes config to SQLite (upsert all fields).
// DBPath is not stored; it is needed before the database can be opened.
func (d *DB) SaveConfig(cfg *config.Config) error {
	pairs := map[string]string{
		"trials":           strconv.Itoa(cfg.Trials),
		"risk_free_rate":   fmt.Sprintf("%g", cfg.RiskFreeRate),
		"seed":             strconv.FormatUint(cfg.Seed, 10),
		"workers":          strconv.Itoa(cfg.Workers),
		"sampler":          cfg.Sampler,
		"dirichlet_alpha":  fmt.Sprintf("%g", cfg.DirichletAlpha),
		"periods_per_year": strconv.Itoa(cfg.PeriodsPerYear),
		"frontier_points":  strconv.Itoa(cfg.FrontierPoints),
		"capital":          fmt.Sprintf("%g", cfg.Capital),
		"capital_places":   strconv.Itoa(int(cfg.CapitalPlaces)),
	}

	tx, err := d.sql.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare("INSERT OR REPLACE INTO config (key, value) VALUES (?, ?)")
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for k, v := range pairs {
		if _, err := stmt.Exec(k, v); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}
