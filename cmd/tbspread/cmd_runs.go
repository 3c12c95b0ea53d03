package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/skovsen/tbspread/internal/report"
	"github.com/skovsen/tbspread/internal/store"
	"github.com/spf13/cobra"
)

// openStore opens --db, or the configured store when the flag is empty.
func openStore(cmd *cobra.Command) (*store.SQLiteStore, error) {
	path, _ := cmd.Flags().GetString("db")
	if path == "" {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		path = cfg.Store.Path
	}
	if path == "" {
		return nil, fmt.Errorf("no store configured: pass --db or set store.path")
	}
	return store.Open(path)
}

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			runs, err := db.Runs(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				return json.NewEncoder(out).Encode(map[string]interface{}{
					"runs":  runs,
					"count": len(runs),
				})
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded.")
				return nil
			}
			for _, r := range runs {
				status := "running"
				if r.FinishedAt != nil {
					status = "finished"
				}
				fmt.Fprintf(out, "%s  seed=%d agents=%d ticks=%d %s %s\n",
					r.ID, r.Seed, r.Agents, r.Ticks, status, r.StartedAt.Format("2006-01-02 15:04:05"))
			}
			return nil
		},
	}
	cmd.Flags().String("db", "", "SQLite file holding recorded runs")
	return cmd
}

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <run-id>",
		Short: "Export a recorded trajectory as CSV and PNG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			if _, err := db.GetRun(cmd.Context(), args[0]); err != nil {
				return err
			}
			samples, err := db.Trajectory(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			dir, _ := cmd.Flags().GetString("out")
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}

			csvPath := filepath.Join(dir, args[0]+".csv")
			f, err := os.Create(csvPath)
			if err != nil {
				return err
			}
			if err := report.WriteCSV(f, samples); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d ticks)\n", csvPath, len(samples))

			if len(samples) < 2 {
				return nil
			}
			pngPath := filepath.Join(dir, args[0]+".png")
			f, err = os.Create(pngPath)
			if err != nil {
				return err
			}
			if err := report.RenderChart(f, samples); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", pngPath)
			return nil
		},
	}
	cmd.Flags().String("db", "", "SQLite file holding recorded runs")
	cmd.Flags().String("out", ".", "Output directory")
	return cmd
}
