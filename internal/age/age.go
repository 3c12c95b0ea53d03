// Package age samples initial ages from an empirical distribution.
package age

import (
	"encoding/csv"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"strconv"
	"strings"

	"github.com/skovsen/tbspread"
)

// DefaultColumn holds the resident count of each age row.
const DefaultColumn = "sum"

// Distribution is the share of residents per age in years. The row index
// is the age. The zero value is uninitialized and cannot be sampled.
type Distribution struct {
	weights []float64
	total   float64
}

var _ tbspread.AgeSampler = (*Distribution)(nil)

// LoadCSV reads a distribution file with one row per age starting at 0.
func LoadCSV(path, column string) (*Distribution, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening population file: %v", tbspread.ErrConfiguration, err)
	}
	defer f.Close()
	return ReadCSV(f, column)
}

// ReadCSV parses a distribution with a header row; column selects the count column.
func ReadCSV(r io.Reader, column string) (*Distribution, error) {
	if column == "" {
		column = DefaultColumn
	}
	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: reading population csv: %v", tbspread.ErrConfiguration, err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("%w: population csv has no rows", tbspread.ErrConfiguration)
	}

	col := -1
	for i, name := range records[0] {
		if strings.TrimSpace(name) == column {
			col = i
			break
		}
	}
	if col < 0 {
		return nil, fmt.Errorf("%w: population csv has no %q column", tbspread.ErrConfiguration, column)
	}

	counts := make([]float64, 0, len(records)-1)
	for line, rec := range records[1:] {
		if col >= len(rec) {
			return nil, fmt.Errorf("%w: population csv row %d is short", tbspread.ErrConfiguration, line+2)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(rec[col]), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: population csv row %d: %v", tbspread.ErrConfiguration, line+2, err)
		}
		counts = append(counts, v)
	}
	return New(counts)
}

// New builds a distribution from resident counts indexed by age.
func New(counts []float64) (*Distribution, error) {
	d := &Distribution{weights: make([]float64, len(counts))}
	for i, c := range counts {
		if c < 0 {
			return nil, fmt.Errorf("%w: negative count for age %d", tbspread.ErrConfiguration, i)
		}
		d.weights[i] = c
		d.total += c
	}
	if d.total <= 0 {
		return nil, fmt.Errorf("%w: population distribution is empty", tbspread.ErrConfiguration)
	}
	return d, nil
}

// SampleInitialAge draws an age in years.
func (d *Distribution) SampleInitialAge(rng *rand.Rand) (int, error) {
	if d == nil || d.total <= 0 {
		return 0, fmt.Errorf("%w: age distribution not initialized", tbspread.ErrConfiguration)
	}
	r := rng.Float64() * d.total
	for age, w := range d.weights {
		if r < w {
			return age, nil
		}
		r -= w
	}
	for age := len(d.weights) - 1; age >= 0; age-- {
		if d.weights[age] > 0 {
			return age, nil
		}
	}
	return 0, nil
}

// BracketFor maps an age in years to its bracket.
func (d *Distribution) BracketFor(years float64) tbspread.AgeGroup {
	return tbspread.AgeGroupFor(years)
}
