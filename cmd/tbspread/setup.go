package main

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	"github.com/skovsen/tbspread"
	"github.com/skovsen/tbspread/internal/age"
	"github.com/skovsen/tbspread/internal/config"
	"github.com/skovsen/tbspread/internal/logging"
	"github.com/skovsen/tbspread/internal/places"
	"github.com/skovsen/tbspread/internal/report"
	"github.com/skovsen/tbspread/internal/routine"
	"github.com/skovsen/tbspread/internal/space"
	"github.com/spf13/cobra"
)

// simulation bundles a populated model with the collaborators the
// commands read from after the run.
type simulation struct {
	model   *tbspread.Model
	index   *space.Index
	catalog *places.Catalog
}

// loadConfig reads --config when given, the default locations otherwise,
// and applies --log-level.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	var (
		cfg *config.Config
		err error
	)
	if path != "" {
		cfg, err = config.LoadFromFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.Logging.Level = lvl
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	return logging.NewLogger(cfg.Logging.Level, os.Stderr)
}

// buildSimulation loads every input and places the initial population.
// Any error here is fatal and happens before the first tick.
func buildSimulation(ctx context.Context, cfg *config.Config, log *slog.Logger, opts ...tbspread.Option) (*simulation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.ValidateData(); err != nil {
		return nil, err
	}

	tags, err := places.LoadTags(cfg.Data.Tags)
	if err != nil {
		return nil, err
	}
	catalog, err := places.Load(ctx, cfg.Data.Regions, tags)
	if err != nil {
		return nil, fmt.Errorf("loading regions: %w", err)
	}
	for _, name := range catalog.Regions() {
		log.Info("region loaded", "region", name, "homes", len(catalog.Homes(name)), "tags", catalog.Tags(name))
	}

	routines, err := routine.Load(cfg.Data.Routines)
	if err != nil {
		return nil, err
	}
	ages, err := age.LoadCSV(cfg.Data.Population, cfg.Data.PopulationColumn)
	if err != nil {
		return nil, err
	}

	index := newIndex(cfg.Simulation.Metric, catalog, cfg.Disease.ExposureDistance)

	opts = append([]tbspread.Option{
		tbspread.WithSeed(cfg.Simulation.Seed),
		tbspread.WithLogger(log),
	}, opts...)
	if cfg.Simulation.StopWhenClear {
		opts = append(opts, tbspread.WithStopWhenClear())
	}

	m, err := tbspread.New(cfg.Disease, tbspread.Deps{
		Index:    index,
		Routines: routine.NewProvider(routines, catalog, log),
		Ages:     ages,
		Places:   catalog,
	}, opts...)
	if err != nil {
		return nil, err
	}
	if err := m.Populate(); err != nil {
		return nil, err
	}
	return &simulation{model: m, index: index, catalog: catalog}, nil
}

// outlines returns the boundary of every region that has one.
func (s *simulation) outlines() map[string]orb.Geometry {
	out := make(map[string]orb.Geometry)
	for _, name := range s.catalog.Regions() {
		if r, ok := s.catalog.Region(name); ok && r.Boundary != nil {
			out[name] = r.Boundary
		}
	}
	return out
}

// tiles summarizes states per map tile over every region outline.
func (s *simulation) tiles(states []tbspread.State, zoom maptile.Zoom) ([]report.Cell, error) {
	var cells []report.Cell
	outlines := s.outlines()
	for _, name := range s.catalog.Regions() {
		g, ok := outlines[name]
		if !ok {
			continue
		}
		c, err := report.Tiles(g, states, zoom)
		if err != nil {
			return nil, fmt.Errorf("tiling region %s: %w", name, err)
		}
		cells = append(cells, c...)
	}
	return cells, nil
}

// newIndex builds the spatial index for metric. Geodesic indexes cover the
// whole globe. Planar coordinates have no natural extent, so the index covers
// the catalog padded by pad.
func newIndex(metric string, catalog *places.Catalog, pad float64) *space.Index {
	if metric != config.MetricPlanar {
		return space.New(space.WithMetric(space.Geodesic{}))
	}
	bound := catalog.Bound().Pad(math.Max(pad, 1))
	return space.New(space.WithMetric(space.Planar{}), space.WithBound(bound))
}
