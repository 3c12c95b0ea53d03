// Package report writes simulation outcomes: trajectories, charts,
// agent snapshots and per-region sector summaries.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/skovsen/tbspread"
)

// Series collects the samples of a run in tick order.
type Series struct {
	Samples []tbspread.Sample
}

// Add appends one sample. It matches the model observer signature.
func (s *Series) Add(sm tbspread.Sample) {
	s.Samples = append(s.Samples, sm)
}

// Len returns the number of samples.
func (s *Series) Len() int { return len(s.Samples) }

// Column returns the counts of one condition over time.
func (s *Series) Column(c tbspread.Condition) []float64 {
	out := make([]float64, len(s.Samples))
	for i, sm := range s.Samples {
		out[i] = float64(sm.Counts.Get(c))
	}
	return out
}

// Ticks returns the tick of every sample.
func (s *Series) Ticks() []float64 {
	out := make([]float64, len(s.Samples))
	for i, sm := range s.Samples {
		out[i] = float64(sm.Tick)
	}
	return out
}

// WriteCSV writes a header and one row per sample.
func WriteCSV(w io.Writer, samples []tbspread.Sample) error {
	cw := csv.NewWriter(w)
	header := []string{"tick"}
	for _, c := range tbspread.Conditions() {
		header = append(header, c.String())
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}
	row := make([]string, len(header))
	for _, sm := range samples {
		row[0] = strconv.Itoa(sm.Tick)
		for i, c := range tbspread.Conditions() {
			row[i+1] = strconv.Itoa(sm.Counts.Get(c))
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing csv row for tick %d: %w", sm.Tick, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
