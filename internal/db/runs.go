package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"frontier-engine/internal/engine"
	"frontier-engine/internal/logger"
)

// RunRecord is a stored frontier search (without its trial population).
type RunRecord struct {
	ID               string                 `json:"id"`
	CreatedAt        string                 `json:"created_at"`
	Label            string                 `json:"label"`
	Assets           []string               `json:"assets"`
	MeanReturns      []float64              `json:"mean_returns"`
	Trials           int                    `json:"trials"`
	Workers          int                    `json:"workers"`
	Seed             uint64                 `json:"seed"`
	RiskFreeRate     float64                `json:"risk_free_rate"`
	Sampler          string                 `json:"sampler"`
	OptimalIndex     int                    `json:"optimal_index"`
	Optimal          engine.PortfolioResult `json:"optimal"`
	MinVarianceIndex int                    `json:"min_variance_index"`
	DurationMs       int64                  `json:"duration_ms"`
}

// RunMeta is the caller-side context of a run that the engine result does not carry.
type RunMeta struct {
	Label        string
	Sampler      string
	RiskFreeRate float64
	Duration     time.Duration
}

// SaveRun stores a run and its full trial population in one transaction and
// returns the new run ID.
func (d *DB) SaveRun(res *engine.EfficientFrontierResult, meta RunMeta) (string, error) {
	if res == nil {
		return "", fmt.Errorf("save run: nil result")
	}
	id := uuid.NewString()
	assetsJSON, _ := json.Marshal(res.AssetNames)
	meansJSON, _ := json.Marshal(res.MeanReturns)
	weightsJSON, _ := json.Marshal(res.Optimal.Weights)
	if res.Optimal.Weights == nil {
		weightsJSON = []byte("[]")
	}

	tx, err := d.sql.Begin()
	if err != nil {
		return "", err
	}
	_, err = tx.Exec(
		`INSERT INTO frontier_runs (id, created_at, label, assets_json, mean_returns_json, trials, workers, seed,
		 risk_free, sampler, optimal_index, opt_return, opt_volatility, opt_sharpe, weights_json, minvar_index, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, time.Now().Format(time.RFC3339), meta.Label, string(assetsJSON), string(meansJSON),
		len(res.Trials), res.Workers, strconv.FormatUint(res.Seed, 10),
		meta.RiskFreeRate, meta.Sampler, res.OptimalIndex,
		res.Optimal.Return, res.Optimal.Volatility, nullSharpe(res.Optimal),
		string(weightsJSON), res.MinVarianceIndex, meta.Duration.Milliseconds(),
	)
	if err != nil {
		tx.Rollback()
		return "", fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.Prepare("INSERT INTO frontier_trials (run_id, idx, ret, volatility, sharpe, weights_json) VALUES (?, ?, ?, ?, ?, ?)")
	if err != nil {
		tx.Rollback()
		return "", err
	}
	defer stmt.Close()

	for i, t := range res.Trials {
		w, _ := json.Marshal(t.Weights)
		if _, err := stmt.Exec(id, i, t.Return, t.Volatility, nullSharpe(t), string(w)); err != nil {
			tx.Rollback()
			return "", fmt.Errorf("insert trial %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}
	logger.Info("DB", fmt.Sprintf("Saved run %s (%d trials)", id, len(res.Trials)))
	return id, nil
}

func nullSharpe(p engine.PortfolioResult) sql.NullFloat64 {
	if !p.Ratable() {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: p.Sharpe, Valid: true}
}

func sharpeFrom(n sql.NullFloat64) float64 {
	if !n.Valid {
		return engine.Unratable
	}
	return n.Float64
}

const runColumns = `id, created_at, label, assets_json, mean_returns_json, trials, workers, seed, risk_free, sampler,
	optimal_index, COALESCE(opt_return, 0), COALESCE(opt_volatility, 0), opt_sharpe, weights_json, minvar_index, duration_ms`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*RunRecord, error) {
	var (
		r                            RunRecord
		assetsJSON, meansJSON, wJSON string
		seed                         string
		sharpe                       sql.NullFloat64
	)
	err := row.Scan(&r.ID, &r.CreatedAt, &r.Label, &assetsJSON, &meansJSON, &r.Trials, &r.Workers, &seed,
		&r.RiskFreeRate, &r.Sampler, &r.OptimalIndex, &r.Optimal.Return, &r.Optimal.Volatility, &sharpe,
		&wJSON, &r.MinVarianceIndex, &r.DurationMs)
	if err != nil {
		return nil, err
	}
	r.Seed, _ = strconv.ParseUint(seed, 10, 64)
	r.Optimal.Sharpe = sharpeFrom(sharpe)
	json.Unmarshal([]byte(assetsJSON), &r.Assets)
	json.Unmarshal([]byte(meansJSON), &r.MeanReturns)
	json.Unmarshal([]byte(wJSON), &r.Optimal.Weights)
	return &r, nil
}

// GetRuns returns the last N runs (newest first).
func (d *DB) GetRuns(limit int) []RunRecord {
	if limit <= 0 {
		limit = 50
	}
	rows, err := d.sql.Query(
		"SELECT "+runColumns+" FROM frontier_runs ORDER BY created_at DESC, rowid DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return []RunRecord{}
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			continue
		}
		records = append(records, *r)
	}
	if records == nil {
		return []RunRecord{}
	}
	return records
}

// GetRun returns a single run, or nil if it does not exist.
func (d *DB) GetRun(id string) *RunRecord {
	r, err := scanRun(d.sql.QueryRow("SELECT "+runColumns+" FROM frontier_runs WHERE id = ?", id))
	if err != nil {
		return nil
	}
	return r
}

// GetRunTrials returns a run's trial population in trial order.
func (d *DB) GetRunTrials(id string) ([]engine.PortfolioResult, error) {
	rows, err := d.sql.Query(
		"SELECT ret, volatility, sharpe, weights_json FROM frontier_trials WHERE run_id = ? ORDER BY idx",
		id,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trials []engine.PortfolioResult
	for rows.Next() {
		var (
			t      engine.PortfolioResult
			sharpe sql.NullFloat64
			wJSON  string
		)
		if err := rows.Scan(&t.Return, &t.Volatility, &sharpe, &wJSON); err != nil {
			return nil, err
		}
		t.Sharpe = sharpeFrom(sharpe)
		if err := json.Unmarshal([]byte(wJSON), &t.Weights); err != nil {
			return nil, fmt.Errorf("decode weights: %w", err)
		}
		trials = append(trials, t)
	}
	return trials, rows.Err()
}

// DeleteRun deletes a run and its trials.
func (d *DB) DeleteRun(id string) error {
	tx, err := d.sql.Begin()
	if err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM frontier_trials WHERE run_id = ?", id); err != nil {
		tx.Rollback()
		return fmt.Errorf("delete trials: %w", err)
	}
	res, err := tx.Exec("DELETE FROM frontier_runs WHERE id = ?", id)
	if err != nil {
		tx.Rollback()
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		tx.Rollback()
		return fmt.Errorf("run %s not found", id)
	}
	return tx.Commit()
}

// ClearRuns deletes all runs older than the given number of days.
func (d *DB) ClearRuns(olderThanDays int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -olderThanDays).Format(time.RFC3339)

	tx, err := d.sql.Begin()
	if err != nil {
		return 0, err
	}
	if _, err := tx.Exec(
		"DELETE FROM frontier_trials WHERE run_id IN (SELECT id FROM frontier_runs WHERE created_at < ?)",
		cutoff,
	); err != nil {
		tx.Rollback()
		return 0, err
	}
	result, err := tx.Exec("DELETE FROM frontier_runs WHERE created_at < ?", cutoff)
	if err != nil {
		tx.Rollback()
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	count, _ := result.RowsAffected()
	return count, nil
}
