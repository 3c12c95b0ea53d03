package report

import (
	"errors"
	"fmt"
	"io"

	"github.com/skovsen/tbspread"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// ErrTooFewSamples is returned when a chart would have no extent.
var ErrTooFewSamples = errors.New("at least two samples are required")

// Palette maps each condition to its chart color.
var Palette = map[tbspread.Condition]string{
	tbspread.Sustainable:           "00AA00",
	tbspread.PrimaryInfectious:     "880000",
	tbspread.PostPrimaryInfectious: "e0dd00",
	tbspread.Dead:                  "000000",
	tbspread.Recovered:             "ffc0cb",
	tbspread.Latent:                "2deda0",
}

// RenderChart draws the counts of every condition over time as a PNG.
func RenderChart(w io.Writer, samples []tbspread.Sample) error {
	if len(samples) < 2 {
		return ErrTooFewSamples
	}
	s := Series{Samples: samples}
	ticks := s.Ticks()
	if ticks[len(ticks)-1] <= ticks[0] {
		return ErrTooFewSamples
	}

	yMax := 1.0
	for _, sm := range samples {
		if t := float64(sm.Counts.Total()); t > yMax {
			yMax = t
		}
	}

	var series []chart.Series
	for _, c := range tbspread.Conditions() {
		series = append(series, chart.ContinuousSeries{
			Name:    c.String(),
			XValues: ticks,
			YValues: s.Column(c),
			Style: chart.Style{
				StrokeColor: drawing.ColorFromHex(Palette[c]),
				StrokeWidth: 2.0,
			},
		})
	}

	graph := chart.Chart{
		Title:  "Tuberculosis Spread",
		Width:  1024,
		Height: 512,
		XAxis: chart.XAxis{
			Name:  "Tick",
			Range: &chart.ContinuousRange{Min: ticks[0], Max: ticks[len(ticks)-1]},
			ValueFormatter: func(v interface{}) string {
				return fmt.Sprintf("%d", int(v.(float64)))
			},
		},
		YAxis: chart.YAxis{
			Name:  "Agents",
			Range: &chart.ContinuousRange{Min: 0, Max: yMax},
			ValueFormatter: func(v interface{}) string {
				return fmt.Sprintf("%d", int(v.(float64)))
			},
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	if err := graph.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("rendering chart: %w", err)
	}
	return nil
}
