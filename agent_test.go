package tbspread

import (
	"log/slog"
	"math/rand/v2"
	"testing"

	"github.com/paulmach/orb"
	"github.com/skovsen/tbspread/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeWorld is a world with fixed neighborhoods.
type fakeWorld struct {
	tick    int
	p       Params
	rng     *rand.Rand
	agents  map[int]*Agent
	near    map[int][]int
	moves   map[int]orb.Point
	blocked map[int]bool
}

func newFakeWorld(p Params) *fakeWorld {
	return &fakeWorld{
		p:       p,
		rng:     rand.New(rand.NewPCG(1, 1)),
		agents:  make(map[int]*Agent),
		near:    make(map[int][]int),
		moves:   make(map[int]orb.Point),
		blocked: make(map[int]bool),
	}
}

func (w *fakeWorld) add(a *Agent) *Agent {
	w.agents[a.ID] = a
	return a
}

func (w *fakeWorld) now() int                          { return w.tick }
func (w *fakeWorld) params() *Params                   { return &w.p }
func (w *fakeWorld) rand() *rand.Rand                  { return w.rng }
func (w *fakeWorld) logger() *slog.Logger              { return logging.Discard() }
func (w *fakeWorld) bracketFor(years float64) AgeGroup { return AgeGroupFor(years) }
func (w *fakeWorld) neighbors(id int, _ float64) []int { return w.near[id] }

func (w *fakeWorld) move(id int, p orb.Point) bool {
	if w.blocked[id] {
		return false
	}
	w.moves[id] = p
	return true
}

func (w *fakeWorld) contact(id int) Contact {
	a := w.agents[id]
	return Contact{Condition: a.condition, Rate: a.rate}
}

func (w *fakeWorld) expose(id int, prob float64) { w.agents[id].expose(w, prob) }

// recordingRoutine sends the agent to a fixed point and remembers the query.
type recordingRoutine struct {
	to   orb.Point
	day  DayType
	hour int
}

func (r *recordingRoutine) LocationFor(_ *rand.Rand, _ AgeGroup, day DayType, hour int) (orb.Point, bool) {
	r.day, r.hour = day, hour
	return r.to, true
}

func adult(p Params, id int) *Agent {
	return &Agent{ID: id, ageSteps: 30 * p.YearSteps(), ageGroup: Adult}
}

func TestAgent_NaturalDeath(t *testing.T) {
	w := newFakeWorld(DefaultParams())
	a := w.add(&Agent{ID: 0, ageSteps: w.p.LifespanSteps() - 1, ageGroup: Elderly})

	w.tick = 1
	a.step(w)
	assert.Equal(t, Dead, a.Condition())
}

func TestAgent_NaturalDeathOverridesTransition(t *testing.T) {
	w := newFakeWorld(DefaultParams())
	a := w.add(&Agent{ID: 0, condition: Latent, ageSteps: w.p.LifespanSteps() - 1})
	a.latentRecovery = ArmedAt(0)

	w.tick = 1
	a.step(w)
	assert.Equal(t, Dead, a.Condition())
}

func TestAgent_DeadIsTerminal(t *testing.T) {
	w := newFakeWorld(DefaultParams())
	a := w.add(adult(w.p, 0))
	a.condition = Dead
	a.routine = &recordingRoutine{to: orb.Point{1, 1}}
	age := a.AgeSteps()

	for w.tick = 1; w.tick < 100; w.tick++ {
		a.step(w)
	}
	assert.Equal(t, Dead, a.Condition())
	assert.Equal(t, age, a.AgeSteps())
	assert.Empty(t, w.moves)
}

func TestAgent_LatentRecovery(t *testing.T) {
	w := newFakeWorld(DefaultParams())
	a := w.add(adult(w.p, 0))
	a.condition = Latent
	w.tick = 100
	a.latentRecovery = ArmedAt(w.tick + 1)

	a.step(w)
	assert.Equal(t, Latent, a.Condition())

	w.tick++
	a.step(w)
	assert.Equal(t, Sustainable, a.Condition())
}

func TestAgent_LatentProgression(t *testing.T) {
	w := newFakeWorld(DefaultParams())
	a := w.add(adult(w.p, 0))
	a.condition = Latent
	a.latentProgression = ArmedAt(5)

	w.tick = 5
	a.step(w)
	assert.Equal(t, PostPrimaryInfectious, a.Condition())
}

func TestAgent_LatentRecoveryWinsOverProgression(t *testing.T) {
	w := newFakeWorld(DefaultParams())
	a := w.add(adult(w.p, 0))
	a.condition = Latent
	a.latentRecovery = ArmedAt(5)
	a.latentProgression = ArmedAt(5)

	w.tick = 5
	a.step(w)
	assert.Equal(t, Sustainable, a.Condition())
}

func TestAgent_Reinfection(t *testing.T) {
	w := newFakeWorld(DefaultParams())
	a := w.add(adult(w.p, 0))
	a.condition = Recovered
	a.reinfection = ArmedAt(7)

	w.tick = 6
	a.step(w)
	assert.Equal(t, Recovered, a.Condition())

	w.tick = 7
	a.step(w)
	assert.Equal(t, PostPrimaryInfectious, a.Condition())
	assert.False(t, a.reinfection.Armed())
}

func TestAgent_InfectiousWithoutNeighbors(t *testing.T) {
	w := newFakeWorld(DefaultParams())
	a := w.add(adult(w.p, 0))
	a.condition = PrimaryInfectious
	a.rate, a.maxRate = 0.5, 0.5

	w.tick = 5
	a.step(w)
	assert.Equal(t, PrimaryInfectious, a.Condition())
	assert.Equal(t, 1, a.stepsInfected)
}

func TestAgent_RecomputesRateOnDayBoundary(t *testing.T) {
	w := newFakeWorld(DefaultParams())
	a := w.add(adult(w.p, 0))
	a.condition = PrimaryInfectious
	a.dayOffset = 60

	w.tick = 23
	a.step(w)
	assert.Zero(t, a.ContagiousRate())

	w.tick = 24
	a.step(w)
	assert.InDelta(t, 1, a.ContagiousRate(), 1e-12)
	assert.InDelta(t, 1, a.maxRate, 1e-12)
}

func TestAgent_EpisodeEndsInRecovery(t *testing.T) {
	p := DefaultParams()
	p.TuberculosisRecoveryChance, p.MortalityChance = 1, 0
	p.RepeatedInfectionChance = 1
	w := newFakeWorld(p)
	a := w.add(adult(p, 0))
	a.condition = PostPrimaryInfectious
	a.stepsInfected, a.rate, a.maxRate = 100, 0.01, 0.8

	w.tick = 5
	a.step(w)
	require.Equal(t, Recovered, a.Condition())
	assert.Zero(t, a.stepsInfected)
	assert.Zero(t, a.ContagiousRate())
	assert.Zero(t, a.maxRate)

	at, armed := a.reinfection.At()
	require.True(t, armed)
	assert.GreaterOrEqual(t, at, 5)
	assert.LessOrEqual(t, at, p.LifespanSteps())
}

func TestAgent_EpisodeEndsInDeath(t *testing.T) {
	p := DefaultParams()
	p.TuberculosisRecoveryChance, p.MortalityChance = 0, 1
	w := newFakeWorld(p)
	a := w.add(adult(p, 0))
	a.condition = PrimaryInfectious
	a.rate, a.maxRate = 0.001, 0.5

	w.tick = 5
	a.step(w)
	assert.Equal(t, Dead, a.Condition())
}

func TestAgent_RisingRateKeepsEpisode(t *testing.T) {
	w := newFakeWorld(DefaultParams())
	a := w.add(adult(w.p, 0))
	a.condition = PrimaryInfectious
	a.rate, a.maxRate = 0.001, 0.001

	w.tick = 5
	a.step(w)
	assert.Equal(t, PrimaryInfectious, a.Condition())
}

func TestAgent_ExposesSustainableNeighbors(t *testing.T) {
	p := DefaultParams()
	p.IRConstant = 360
	p.LatentChance, p.PrimaryChance = 1, 0
	p.LatentRecoveryChance = 1
	w := newFakeWorld(p)

	src := w.add(adult(p, 0))
	src.condition = PrimaryInfectious
	src.rate, src.maxRate = 0.5, 0.5
	healthy := w.add(adult(p, 1))
	recovered := w.add(adult(p, 2))
	recovered.condition = Recovered
	w.near[0] = []int{0, 1, 2}

	w.tick = 100
	src.step(w)

	assert.Equal(t, PrimaryInfectious, src.Condition())
	assert.Equal(t, Recovered, recovered.Condition())
	require.Equal(t, Latent, healthy.Condition())

	at, armed := healthy.latentRecovery.At()
	require.True(t, armed)
	assert.GreaterOrEqual(t, at, 100+42*p.StepsPerDay)
	assert.LessOrEqual(t, at, 100+56*p.StepsPerDay)
}

func TestAgent_ExposureToPrimary(t *testing.T) {
	p := DefaultParams()
	p.LatentChance, p.PrimaryChance = 0, 1
	w := newFakeWorld(p)
	a := w.add(adult(p, 0))

	a.expose(w, 1)
	assert.Equal(t, PrimaryInfectious, a.Condition())
	assert.False(t, a.latentRecovery.Armed())
	assert.False(t, a.latentProgression.Armed())
}

func TestAgent_ZeroProbabilityExposure(t *testing.T) {
	w := newFakeWorld(DefaultParams())
	a := w.add(adult(w.p, 0))
	for i := 0; i < 100; i++ {
		a.expose(w, 0)
	}
	assert.Equal(t, Sustainable, a.Condition())
}

func TestAgent_ExposeIgnoresNonSustainable(t *testing.T) {
	p := DefaultParams()
	p.LatentChance, p.PrimaryChance = 0, 1
	w := newFakeWorld(p)
	a := w.add(adult(p, 0))
	a.condition = Recovered

	a.expose(w, 1)
	assert.Equal(t, Recovered, a.Condition())
}

func TestAgent_FollowsRoutine(t *testing.T) {
	p := DefaultParams()
	w := newFakeWorld(p)
	r := &recordingRoutine{to: orb.Point{10.2, 56.15}}
	a := w.add(adult(p, 3))
	a.routine = r

	w.tick = 2*p.StepsPerDay + 9
	a.step(w)
	assert.Equal(t, Weekday, r.day)
	assert.Equal(t, 9, r.hour)
	assert.Equal(t, orb.Point{10.2, 56.15}, a.Position())
	assert.Equal(t, orb.Point{10.2, 56.15}, w.moves[3])

	w.tick = 5*p.StepsPerDay + 1
	a.step(w)
	assert.Equal(t, Weekend, r.day)
	assert.Equal(t, 1, r.hour)

	w.tick = 7 * p.StepsPerDay
	a.step(w)
	assert.Equal(t, Weekday, r.day)
	assert.Equal(t, 0, r.hour)
}

func TestAgent_StaysWhenMoveRejected(t *testing.T) {
	p := DefaultParams()
	w := newFakeWorld(p)
	a := w.add(adult(p, 3))
	a.position = orb.Point{1, 1}
	a.routine = &recordingRoutine{to: orb.Point{500, 0}}
	w.blocked[3] = true

	w.tick = 9
	a.step(w)
	assert.Equal(t, orb.Point{1, 1}, a.Position())
	assert.Empty(t, w.moves)
}

func TestAgent_AgeGroupUpdatesOnBirthday(t *testing.T) {
	p := DefaultParams()
	w := newFakeWorld(p)
	a := w.add(&Agent{ID: 0, ageSteps: 17*p.YearSteps() + p.YearSteps() - 1, ageGroup: Kid})

	w.tick = 1
	a.step(w)
	assert.Equal(t, 18*p.YearSteps(), a.AgeSteps())
	assert.Equal(t, Teenager, a.AgeGroup())
}
