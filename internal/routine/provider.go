// Package routine turns routine files into per-household schedules.
package routine

import (
	"errors"
	"log/slog"
	"math/rand/v2"

	"github.com/paulmach/orb"
	"github.com/skovsen/tbspread"
	"github.com/skovsen/tbspread/internal/logging"
)

// Places is the part of the place catalog routines draw from.
type Places interface {
	Regions() []string
	RandomPoint(rng *rand.Rand, region, tag string) (orb.Point, error)
}

// Provider generates household routines. It implements tbspread.RoutineProvider.
type Provider struct {
	cfg    *Config
	places Places
	log    *slog.Logger
}

var _ tbspread.RoutineProvider = (*Provider)(nil)

// NewProvider creates a provider. A nil logger discards output.
func NewProvider(cfg *Config, places Places, log *slog.Logger) *Provider {
	if log == nil {
		log = logging.Discard()
	}
	return &Provider{cfg: cfg, places: places, log: log}
}

// Generate resolves every configured place for a household at home in
// region and picks one schedule per age group and day type. Places that
// cannot be resolved are logged and left out.
func (p *Provider) Generate(rng *rand.Rand, home orb.Point, region string) (tbspread.Routine, error) {
	r := &Routine{
		places:    make(map[string][]orb.Point, len(p.cfg.Places)),
		schedules: make(map[tbspread.AgeGroup]map[tbspread.DayType]Schedule),
		missing:   make(map[tbspread.AgeGroup]bool),
		log:       p.log,
	}

	for _, name := range p.cfg.PlaceNames() {
		points, err := p.resolve(rng, p.cfg.Places[name], home, region)
		if err != nil {
			if !errors.Is(err, tbspread.ErrLookupMiss) {
				return nil, err
			}
			p.log.Warn("place not resolved", "place", name, "region", region, "error", err)
			continue
		}
		r.places[name] = points
	}

	for _, group := range tbspread.AgeGroups() {
		days, ok := p.cfg.Schedules[group]
		if !ok {
			continue
		}
		r.schedules[group] = make(map[tbspread.DayType]Schedule, len(days))
		for _, day := range []tbspread.DayType{tbspread.Weekday, tbspread.Weekend} {
			candidates, ok := days[day]
			if !ok || len(candidates) == 0 {
				continue
			}
			r.schedules[group][day] = candidates[rng.IntN(len(candidates))]
		}
	}
	return r, nil
}

func (p *Provider) resolve(rng *rand.Rand, spec PlaceSpec, home orb.Point, region string) ([]orb.Point, error) {
	if spec.Type == TypeHome {
		return []orb.Point{home}, nil
	}
	amount := 1
	if spec.Type == TypeMultiple {
		amount = spec.Amount
	}
	points := make([]orb.Point, 0, amount)
	for i := 0; i < amount; i++ {
		scope := region
		if spec.Scope == ScopeGlobal {
			regions := p.places.Regions()
			if len(regions) == 0 {
				return nil, tbspread.ErrLookupMiss
			}
			scope = regions[rng.IntN(len(regions))]
		}
		pt, err := p.places.RandomPoint(rng, scope, spec.Tag)
		if err != nil {
			return nil, err
		}
		points = append(points, pt)
	}
	return points, nil
}

// Routine is a household's resolved places and schedules.
type Routine struct {
	places    map[string][]orb.Point
	schedules map[tbspread.AgeGroup]map[tbspread.DayType]Schedule
	missing   map[tbspread.AgeGroup]bool
	log       *slog.Logger
}

// LocationFor returns where to be at hour. Misses leave the agent in place.
func (r *Routine) LocationFor(rng *rand.Rand, group tbspread.AgeGroup, day tbspread.DayType, hour int) (orb.Point, bool) {
	days, ok := r.schedules[group]
	if !ok {
		// Warned once per group; the miss repeats every tick.
		if !r.missing[group] {
			r.missing[group] = true
			r.log.Warn("missing routines", "age_group", group, "day_type", day)
		}
		return orb.Point{}, false
	}
	schedule := days[day]
	if schedule == nil {
		return orb.Point{}, false
	}
	choice, ok := schedule[hour]
	if !ok || len(choice) == 0 {
		r.log.Debug("no routine entry for hour", "age_group", group, "day_type", day, "hour", hour)
		return orb.Point{}, false
	}

	name := choice[0]
	if len(choice) > 1 {
		name = choice[rng.IntN(len(choice))]
	}
	points, ok := r.places[name]
	if !ok || len(points) == 0 {
		r.log.Warn("invalid place", "place", name, "age_group", group, "hour", hour)
		return orb.Point{}, false
	}
	if len(points) == 1 {
		return points[0], true
	}
	return points[rng.IntN(len(points))], true
}
