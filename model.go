package tbspread

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sort"

	"github.com/paulmach/orb"
	"github.com/skovsen/tbspread/internal/logging"
)

// Deps are the collaborators a Model consumes.
type Deps struct {
	Index    SpatialIndex
	Routines RoutineProvider
	Ages     AgeSampler
	Places   PlaceCatalog
}

// Option configures a Model.
type Option func(*Model)

// WithSeed seeds the model's random generator.
func WithSeed(seed uint64) Option {
	return func(m *Model) { m.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)) }
}

// WithRand makes the model draw from rng. Only the model may use it afterwards.
func WithRand(rng *rand.Rand) Option {
	return func(m *Model) { m.rng = rng }
}

// WithLogger sets the logger. A nil logger discards output.
func WithLogger(l *slog.Logger) Option {
	return func(m *Model) { m.log = l }
}

// WithStopWhenClear makes Run halt once no agent is infectious.
func WithStopWhenClear() Option {
	return func(m *Model) { m.stopWhenClear = true }
}

// WithObserver registers fn to receive the aggregated counts of every tick.
func WithObserver(fn func(Sample)) Option {
	return func(m *Model) { m.observers = append(m.observers, fn) }
}

// Model owns the clock, the ordered population and the birth schedule.
// It is not safe for concurrent use.
type Model struct {
	p    Params
	deps Deps
	rng  *rand.Rand
	log  *slog.Logger

	agents  []*Agent
	tick    int
	pending map[int]int
	last    Counts

	stopWhenClear bool
	observers     []func(Sample)
}

// New creates an empty model. Call Populate to place the initial population.
func New(p Params, deps Deps, opts ...Option) (*Model, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if deps.Index == nil {
		return nil, fmt.Errorf("%w: spatial index is required", ErrConfiguration)
	}
	if deps.Ages == nil {
		deps.Ages = bracketSampler{}
	}
	m := &Model{
		p:       p,
		deps:    deps,
		pending: make(map[int]int),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.rng == nil {
		WithSeed(0)(m)
	}
	if m.log == nil {
		m.log = logging.Discard()
	}
	return m, nil
}

// Params returns the model's parameters.
func (m *Model) Params() Params { return m.p }

// Tick returns the number of completed ticks.
func (m *Model) Tick() int { return m.tick }

// Len returns the number of agents ever created, dead included.
func (m *Model) Len() int { return len(m.agents) }

// Agent returns the agent with the given id.
func (m *Model) Agent(id int) *Agent { return m.agents[id] }

// Snapshot copies the state of every agent in insertion order.
func (m *Model) Snapshot() []State {
	out := make([]State, len(m.agents))
	for i, a := range m.agents {
		out[i] = a.state()
	}
	return out
}

// CountsByCondition counts the current population per condition.
func (m *Model) CountsByCondition() Counts {
	var c Counts
	for _, a := range m.agents {
		c[a.condition]++
	}
	return c
}

// LastCounts returns the counts aggregated after the last stepping pass,
// before that tick's newborns were added.
func (m *Model) LastCounts() Counts { return m.last }

// PendingBirths returns the scheduled birth ticks, ascending, one entry per birth.
func (m *Model) PendingBirths() []int {
	var out []int
	for tick, n := range m.pending {
		for i := 0; i < n; i++ {
			out = append(out, tick)
		}
	}
	sort.Ints(out)
	return out
}

// Step advances the model by one tick.
func (m *Model) Step() {
	m.tick++

	// Agents appended during the pass are not visited until the next tick.
	n := len(m.agents)
	for i := 0; i < n; i++ {
		m.agents[i].step(m)
	}

	m.last = m.CountsByCondition()
	if m.tick%m.p.YearSteps() == 0 {
		m.scheduleBirths()
	}
	m.deliverBirths()

	m.log.Debug("tick", "tick", m.tick, "alive", m.last.Alive(), "infectious", m.last.Infectious())
	for _, fn := range m.observers {
		fn(Sample{Tick: m.tick, Counts: m.last})
	}
}

// Run steps the model n times, or until no agent is infectious when
// WithStopWhenClear is set. It returns the number of ticks executed.
func (m *Model) Run(n int) int {
	for i := 0; i < n; i++ {
		m.Step()
		if m.stopWhenClear && m.last.Infectious() == 0 {
			m.log.Info("no infectious agents left, stopping", "tick", m.tick)
			return i + 1
		}
	}
	return n
}

func (m *Model) now() int             { return m.tick }
func (m *Model) params() *Params      { return &m.p }
func (m *Model) rand() *rand.Rand     { return m.rng }
func (m *Model) logger() *slog.Logger { return m.log }

func (m *Model) contact(id int) Contact {
	a := m.agents[id]
	return Contact{Condition: a.condition, Rate: a.rate}
}

func (m *Model) expose(id int, p float64) { m.agents[id].expose(m, p) }

func (m *Model) bracketFor(years float64) AgeGroup {
	return m.deps.Ages.BracketFor(years)
}

func (m *Model) move(id int, p orb.Point) bool {
	if err := m.deps.Index.Move(id, p); err != nil {
		m.log.Warn("index move failed", "agent", id, "error", err)
		return false
	}
	return true
}

func (m *Model) neighbors(id int, radius float64) []int {
	return m.deps.Index.NeighborsWithin(id, radius, true)
}
