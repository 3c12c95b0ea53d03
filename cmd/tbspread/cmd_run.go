package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/paulmach/orb/maptile"
	"github.com/skovsen/tbspread"
	"github.com/skovsen/tbspread/internal/config"
	"github.com/skovsen/tbspread/internal/report"
	"github.com/skovsen/tbspread/internal/store"
	"github.com/spf13/cobra"
)

// runResult is the summary printed after a run.
type runResult struct {
	RunID   string            `json:"run_id,omitempty"`
	Ticks   int               `json:"ticks"`
	Agents  int               `json:"agents"`
	Counts  map[string]int    `json:"counts"`
	Sectors []report.Sector   `json:"sectors,omitempty"`
	Files   map[string]string `json:"files,omitempty"`
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a simulation",
		Long: `Load the configured regions, routines and age distribution, place the
population and advance it tick by tick.

Examples:
  tbspread run --config sim.yaml                 # Run with settings from sim.yaml
  tbspread run --config sim.yaml --ticks 720     # Run 30 days
  tbspread run --config sim.yaml --db runs.db    # Record the trajectory`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if cmd.Flags().Changed("ticks") {
				cfg.Simulation.Ticks, _ = cmd.Flags().GetInt("ticks")
			}
			if cmd.Flags().Changed("seed") {
				cfg.Simulation.Seed, _ = cmd.Flags().GetUint64("seed")
			}
			if cmd.Flags().Changed("stop-when-clear") {
				cfg.Simulation.StopWhenClear, _ = cmd.Flags().GetBool("stop-when-clear")
			}
			if cmd.Flags().Changed("out") {
				cfg.Output, _ = cmd.Flags().GetString("out")
			}
			if cmd.Flags().Changed("db") {
				cfg.Store.Path, _ = cmd.Flags().GetString("db")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			log := newLogger(cfg)
			var series report.Series
			sim, err := buildSimulation(ctx, cfg, log, tbspread.WithObserver(series.Add))
			if err != nil {
				return err
			}
			m := sim.model

			var (
				db    *store.SQLiteStore
				runID string
			)
			if cfg.Store.Path != "" {
				db, err = store.Open(cfg.Store.Path)
				if err != nil {
					return err
				}
				defer db.Close()
				runID, err = db.BeginRun(ctx, cfg.Simulation.Seed, cfg.Disease, m.Len())
				if err != nil {
					return err
				}
				log.Info("recording run", "run", runID, "db", cfg.Store.Path)
			}

			// Run in day-long chunks so the store is flushed and an interrupt
			// is honored between days.
			chunk := cfg.Disease.StepsPerDay
			done, flushed := 0, 0
			for done < cfg.Simulation.Ticks && ctx.Err() == nil {
				n := min(chunk, cfg.Simulation.Ticks-done)
				ran := m.Run(n)
				done += ran
				if db != nil {
					if err := db.RecordBatch(context.WithoutCancel(ctx), runID, series.Samples[flushed:]); err != nil {
						return err
					}
					flushed = series.Len()
				}
				if ran < n {
					break
				}
			}
			if ctx.Err() != nil {
				log.Warn("run interrupted", "tick", m.Tick())
			}
			if db != nil {
				if err := db.FinishRun(context.WithoutCancel(ctx), runID, done); err != nil {
					return err
				}
			}

			states := m.Snapshot()
			res := runResult{
				RunID:   runID,
				Ticks:   done,
				Agents:  m.Len(),
				Counts:  countsMap(m.CountsByCondition()),
				Sectors: report.Sectors(sim.index, states, sim.outlines(), sim.catalog.Regions()),
			}
			var cells []report.Cell
			if zoom, _ := cmd.Flags().GetUint32("tile-zoom"); zoom > 0 && cfg.Simulation.Metric == config.MetricGeodesic {
				cells, err = sim.tiles(states, maptile.Zoom(zoom))
				if err != nil {
					return err
				}
			}
			res.Files, err = writeOutputs(cfg.Output, series.Samples, states, cells)
			if err != nil {
				return err
			}
			return printRunResult(cmd, res)
		},
	}

	cmd.Flags().Int("ticks", 0, "Number of ticks to run (overrides config)")
	cmd.Flags().Uint64("seed", 0, "Random seed (overrides config)")
	cmd.Flags().Bool("stop-when-clear", false, "Stop once no agent is infectious")
	cmd.Flags().String("out", "", "Output directory for csv, chart and snapshot")
	cmd.Flags().String("db", "", "SQLite file to record the trajectory in")
	cmd.Flags().Uint32("tile-zoom", 17, "Map tile zoom of tiles.geojson, 0 to skip (geodesic metric only)")

	return cmd
}

func countsMap(c tbspread.Counts) map[string]int {
	out := make(map[string]int)
	for _, cond := range tbspread.Conditions() {
		out[cond.String()] = c.Get(cond)
	}
	return out
}

// writeOutputs writes trajectory.csv, trajectory.png, agents.geojson and
// tiles.geojson to dir. An empty dir writes nothing.
func writeOutputs(dir string, samples []tbspread.Sample, states []tbspread.State, cells []report.Cell) (map[string]string, error) {
	if dir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	files := make(map[string]string)

	write := func(name string, fn func(f *os.File) error) error {
		path := filepath.Join(dir, name)
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", name, err)
		}
		if err := fn(f); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		files[name] = path
		return nil
	}

	if err := write("trajectory.csv", func(f *os.File) error { return report.WriteCSV(f, samples) }); err != nil {
		return nil, err
	}
	if err := write("agents.geojson", func(f *os.File) error { return report.WriteSnapshot(f, states) }); err != nil {
		return nil, err
	}
	if len(cells) > 0 {
		if err := write("tiles.geojson", func(f *os.File) error { return report.WriteTiles(f, cells) }); err != nil {
			return nil, err
		}
	}
	if len(samples) >= 2 {
		if err := write("trajectory.png", func(f *os.File) error { return report.RenderChart(f, samples) }); err != nil {
			return nil, err
		}
	}
	return files, nil
}

func printRunResult(cmd *cobra.Command, res runResult) error {
	out := cmd.OutOrStdout()
	jsonOut, _ := cmd.Flags().GetBool("json")
	if jsonOut {
		return json.NewEncoder(out).Encode(res)
	}

	if res.RunID != "" {
		fmt.Fprintf(out, "Run %s\n", res.RunID)
	}
	fmt.Fprintf(out, "Ticks: %d  Agents: %d\n\n", res.Ticks, res.Agents)
	for _, c := range tbspread.Conditions() {
		fmt.Fprintf(out, "  %-22s %d\n", c.String()+":", res.Counts[c.String()])
	}
	if len(res.Sectors) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Sectors:")
		for _, s := range res.Sectors {
			fmt.Fprintf(out, "  %-20s %-5s green=%d red=%d dead=%d\n", s.Name, s.Color, s.Green, s.Red, s.Dead)
		}
	}
	for _, name := range []string{"trajectory.csv", "trajectory.png", "agents.geojson", "tiles.geojson"} {
		if path, ok := res.Files[name]; ok {
			fmt.Fprintf(out, "Wrote %s\n", path)
		}
	}
	return nil
}
