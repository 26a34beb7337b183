// Package dataset loads per-asset return series from CSV files.
//
// The first row names the assets. An optional leading "date" (or "time",
// "timestamp", "period") column is ignored. Every other cell must be a number.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"frontier-engine/internal/engine"
	"frontier-engine/internal/logger"
)

// Kind says what the numeric columns hold.
type Kind string

const (
	KindReturns   Kind = "returns"   // used as-is
	KindPrices    Kind = "prices"    // converted to simple returns
	KindLogPrices Kind = "logprices" // converted to log returns
)

// ParseKind accepts returns, prices or logprices ("" means returns).
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case "":
		return KindReturns, nil
	case KindReturns, KindPrices, KindLogPrices:
		return k, nil
	}
	return "", fmt.Errorf("unknown data kind %q (want returns, prices or logprices)", s)
}

// Dataset is a set of aligned return series ready for the engine.
type Dataset struct {
	Names        []string
	Returns      [][]float64
	Observations int
}

// LoadFile opens path and parses it with Load.
func LoadFile(path string, kind Kind) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	ds, err := Load(f, kind)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	logger.Success("DATA", fmt.Sprintf("Loaded %d assets x %d observations from %s", len(ds.Names), ds.Observations, path))
	return ds, nil
}

// Load parses CSV columns into per-asset series.
func Load(r io.Reader, kind Kind) (*Dataset, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("empty dataset")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	first := 0
	if len(header) > 0 && isDateColumn(header[0]) {
		first = 1
	}
	names := make([]string, 0, len(header)-first)
	for i, h := range header[first:] {
		h = strings.TrimSpace(h)
		if h == "" {
			return nil, fmt.Errorf("column %d has an empty name", i+first+1)
		}
		names = append(names, h)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no asset columns in header")
	}

	columns := make([][]float64, len(names))
	line := 1
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		for j := range names {
			cell := strings.TrimSpace(rec[first+j])
			if cell == "" {
				return nil, fmt.Errorf("line %d, column %q: empty value", line, names[j])
			}
			v, err := strconv.ParseFloat(strings.TrimSuffix(cell, "%"), 64)
			if err != nil {
				return nil, fmt.Errorf("line %d, column %q: %w", line, names[j], err)
			}
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("line %d, column %q: value %q is not finite", line, names[j], cell)
			}
			if strings.HasSuffix(cell, "%") {
				v /= 100
			}
			columns[j] = append(columns[j], v)
		}
	}

	returns := columns
	switch kind {
	case KindPrices, KindLogPrices:
		returns = make([][]float64, len(columns))
		for j, prices := range columns {
			var err error
			if kind == KindPrices {
				returns[j], err = engine.SimpleReturns(prices)
			} else {
				returns[j], err = engine.LogReturns(prices)
			}
			if err != nil {
				return nil, fmt.Errorf("column %q: %w", names[j], err)
			}
		}
	case KindReturns, "":
	default:
		return nil, fmt.Errorf("unknown data kind %q", kind)
	}

	obs := 0
	if len(returns) > 0 {
		obs = len(returns[0])
	}
	return &Dataset{Names: names, Returns: returns, Observations: obs}, nil
}

func isDateColumn(h string) bool {
	switch strings.ToLower(strings.TrimSpace(h)) {
	case "date", "time", "timestamp", "period", "day", "month":
		return true
	}
	return false
}
