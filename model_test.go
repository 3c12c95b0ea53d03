package tbspread

import (
	"math/rand/v2"
	"testing"

	"github.com/paulmach/orb"
	"github.com/skovsen/tbspread/internal/space"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePlaces struct {
	order []string
	homes map[string][]Home
}

func (f *fakePlaces) Regions() []string { return f.order }

func (f *fakePlaces) Homes(region string) []Home { return f.homes[region] }

func (f *fakePlaces) RandomHomeLocation(rng *rand.Rand, region string) (orb.Point, error) {
	homes := f.homes[region]
	if len(homes) == 0 {
		return orb.Point{}, ErrLookupMiss
	}
	return homes[rng.IntN(len(homes))].Point, nil
}

type fakeRoutines struct {
	generated int
	routine   Routine
}

func (f *fakeRoutines) Generate(*rand.Rand, orb.Point, string) (Routine, error) {
	f.generated++
	if f.routine != nil {
		return f.routine, nil
	}
	return staticRoutine{}, nil
}

// fixedAge samples the same age in years every time.
type fixedAge int

func (a fixedAge) SampleInitialAge(*rand.Rand) (int, error) { return int(a), nil }

func (fixedAge) BracketFor(years float64) AgeGroup { return AgeGroupFor(years) }

func testDeps() Deps {
	return Deps{
		Index:    space.New(space.WithMetric(space.Planar{})),
		Routines: &fakeRoutines{},
		Ages:     fixedAge(30),
		Places: &fakePlaces{
			order: []string{"north"},
			homes: map[string][]Home{"north": {
				{Point: orb.Point{0, 0}, Kind: "apartments"},
				{Point: orb.Point{50, 50}, Kind: "house"},
			}},
		},
	}
}

func newTestModel(t *testing.T, p Params, opts ...Option) *Model {
	t.Helper()
	m, err := New(p, testDeps(), opts...)
	require.NoError(t, err)
	return m
}

func TestNew_Validates(t *testing.T) {
	p := DefaultParams()
	p.StepsPerDay = 0
	_, err := New(p, testDeps())
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = New(DefaultParams(), Deps{})
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestPopulate(t *testing.T) {
	p := DefaultParams()
	p.InfectedPercentage = 0
	p.HousingOccupancy = map[string]int{"apartments": 3}
	deps := testDeps()
	m, err := New(p, deps, WithSeed(1))
	require.NoError(t, err)

	require.NoError(t, m.Populate())
	require.Equal(t, 4, m.Len())
	assert.Equal(t, 2, deps.Routines.(*fakeRoutines).generated)

	for i := 0; i < m.Len(); i++ {
		a := m.Agent(i)
		assert.Equal(t, i, a.ID)
		assert.Equal(t, "north", a.Region)
		assert.Equal(t, 30*p.YearSteps(), a.AgeSteps())
		assert.Equal(t, Adult, a.AgeGroup())
		assert.Equal(t, Sustainable, a.Condition())
	}
	assert.Equal(t, orb.Point{0, 0}, m.Agent(2).Position())
	assert.Equal(t, orb.Point{50, 50}, m.Agent(3).Position())
}

func TestPopulate_InfectedPercentage(t *testing.T) {
	p := DefaultParams()
	p.InfectedPercentage = 100
	m := newTestModel(t, p)
	require.NoError(t, m.Populate())
	assert.Equal(t, m.Len(), m.CountsByCondition().Infectious())
	assert.Equal(t, m.Len(), m.LastCounts().Get(PrimaryInfectious))

	p.InfectedPercentage = 0
	m = newTestModel(t, p)
	require.NoError(t, m.Populate())
	assert.Zero(t, m.CountsByCondition().Infectious())
}

func TestPopulate_RequiresCollaborators(t *testing.T) {
	m, err := New(DefaultParams(), Deps{Index: space.New()})
	require.NoError(t, err)
	assert.ErrorIs(t, m.Populate(), ErrConfiguration)

	deps := testDeps()
	deps.Ages = nil
	m, err = New(DefaultParams(), deps)
	require.NoError(t, err)
	assert.ErrorIs(t, m.Populate(), ErrConfiguration)
}

func TestModel_CountsByCondition(t *testing.T) {
	m := newTestModel(t, DefaultParams())
	require.NoError(t, m.Populate())
	require.NoError(t, m.Infect(0, PostPrimaryInfectious))

	c := m.CountsByCondition()
	assert.Equal(t, m.Len(), c.Total())
	assert.Equal(t, 1, c.Get(PostPrimaryInfectious))
	assert.Equal(t, c, m.CountsByCondition())
}

func TestModel_Infect(t *testing.T) {
	m := newTestModel(t, DefaultParams())
	require.NoError(t, m.Populate())

	assert.Error(t, m.Infect(0, Latent))
	require.NoError(t, m.Infect(0, PrimaryInfectious))
	assert.Equal(t, PrimaryInfectious, m.Agent(0).Condition())

	m.Agent(1).condition = Dead
	assert.Error(t, m.Infect(1, PrimaryInfectious))
}

func TestModel_StepNotifiesObservers(t *testing.T) {
	var got []Sample
	m := newTestModel(t, DefaultParams(), WithObserver(func(s Sample) { got = append(got, s) }))
	require.NoError(t, m.Populate())

	m.Step()
	m.Step()
	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].Tick)
	assert.Equal(t, 2, got[1].Tick)
	assert.Equal(t, m.Len(), got[1].Counts.Total())
	assert.Equal(t, 2, m.Tick())
}

func TestModel_TransmissionAtDayBoundary(t *testing.T) {
	p := DefaultParams()
	p.IRConstant = 360
	p.LatentChance, p.PrimaryChance = 1, 0
	p.LatentRecoveryChance = 0
	p.PostPrimaryLatentChance = Range{}
	m := newTestModel(t, p)

	_, err := m.AddAgent("north", orb.Point{1, 1}, nil, 30*p.YearSteps())
	require.NoError(t, err)
	_, err = m.AddAgent("north", orb.Point{1, 1}, nil, 30*p.YearSteps())
	require.NoError(t, err)
	require.NoError(t, m.Infect(0, PrimaryInfectious))

	// The rate is first computed at the end of the first day.
	m.Run(p.StepsPerDay - 1)
	assert.Equal(t, Sustainable, m.Agent(1).Condition())

	m.Step()
	assert.Equal(t, Latent, m.Agent(1).Condition())
	assert.Equal(t, 1, m.LastCounts().Get(Latent))
}

func TestModel_ExposedAgentStepsInSameTick(t *testing.T) {
	p := DefaultParams()
	p.IRConstant = 360
	p.LatentChance, p.PrimaryChance = 0, 1

	m := newTestModel(t, p)
	for i := 0; i < 2; i++ {
		_, err := m.AddAgent("north", orb.Point{1, 1}, nil, 30*p.YearSteps())
		require.NoError(t, err)
	}
	require.NoError(t, m.Infect(0, PrimaryInfectious))
	m.Run(p.StepsPerDay)

	// Agent 1 comes after its source and is stepped as infectious right away.
	require.Equal(t, PrimaryInfectious, m.Agent(1).Condition())
	assert.Equal(t, 1, m.Agent(1).stepsInfected)
	assert.Greater(t, m.Agent(1).ContagiousRate(), 0.0)
}

func TestModel_ExposedAgentBeforeSourceWaits(t *testing.T) {
	p := DefaultParams()
	p.IRConstant = 360
	p.LatentChance, p.PrimaryChance = 0, 1

	m := newTestModel(t, p)
	for i := 0; i < 2; i++ {
		_, err := m.AddAgent("north", orb.Point{1, 1}, nil, 30*p.YearSteps())
		require.NoError(t, err)
	}
	require.NoError(t, m.Infect(1, PrimaryInfectious))
	m.Run(p.StepsPerDay)

	require.Equal(t, PrimaryInfectious, m.Agent(0).Condition())
	assert.Zero(t, m.Agent(0).stepsInfected)
}

func TestModel_DistantAgentsAreSafe(t *testing.T) {
	p := DefaultParams()
	p.IRConstant = 360
	p.LatentChance, p.PrimaryChance = 0, 1

	m := newTestModel(t, p)
	_, err := m.AddAgent("north", orb.Point{0, 0}, nil, 30*p.YearSteps())
	require.NoError(t, err)
	_, err = m.AddAgent("north", orb.Point{0, p.ExposureDistance + 1}, nil, 30*p.YearSteps())
	require.NoError(t, err)
	require.NoError(t, m.Infect(0, PrimaryInfectious))

	m.Run(3 * p.StepsPerDay)
	assert.Equal(t, Sustainable, m.Agent(1).Condition())
}

func TestModel_NewbornsJoinAfterThePass(t *testing.T) {
	m := newTestModel(t, DefaultParams())
	require.NoError(t, m.Populate())
	n := m.Len()

	m.pending[1] = 2
	m.Step()

	require.Equal(t, n+2, m.Len())
	assert.Equal(t, n, m.LastCounts().Total())
	assert.Equal(t, n+2, m.CountsByCondition().Total())
	for _, a := range m.agents[n:] {
		assert.Equal(t, Newborn, a.AgeGroup())
		assert.Zero(t, a.AgeSteps())
		assert.Equal(t, Sustainable, a.Condition())
	}
	assert.Empty(t, m.PendingBirths())

	m.Step()
	assert.Equal(t, 1, m.Agent(n).AgeSteps())
}

func TestModel_BirthSchedule(t *testing.T) {
	p := DefaultParams()
	p.StepsPerDay = 1
	year := p.YearSteps()
	m := newTestModel(t, p, WithSeed(9))

	for i := 0; i < 1000; i++ {
		_, err := m.AddAgent("north", orb.Point{float64(i % 40), float64(i / 40)}, nil, 30*year)
		require.NoError(t, err)
	}

	m.Run(year)
	pending := m.PendingBirths()
	delivered := m.Len() - 1000
	assert.Equal(t, 9, len(pending)+delivered)
	for _, at := range pending {
		assert.GreaterOrEqual(t, at, year)
		assert.LessOrEqual(t, at, 2*year-1)
	}

	m.Run(year - 1)
	assert.Empty(t, m.PendingBirths())
	assert.Equal(t, 1009, m.Len())
}

func TestModel_StopWhenClear(t *testing.T) {
	p := DefaultParams()
	p.InfectedPercentage = 0
	m := newTestModel(t, p, WithStopWhenClear())
	require.NoError(t, m.Populate())
	assert.Equal(t, 1, m.Run(10))
	assert.Equal(t, 1, m.Tick())

	m = newTestModel(t, p)
	require.NoError(t, m.Populate())
	assert.Equal(t, 10, m.Run(10))
}

func TestModel_Deterministic(t *testing.T) {
	run := func() ([]State, []Sample) {
		p := DefaultParams()
		p.InfectedPercentage = 50
		p.IRConstant = 36
		p.HousingOccupancy = map[string]int{"apartments": 6, "house": 4}
		var samples []Sample
		m := newTestModel(t, p, WithSeed(3232211), WithObserver(func(s Sample) { samples = append(samples, s) }))
		require.NoError(t, m.Populate())
		m.Run(5 * p.StepsPerDay)
		return m.Snapshot(), samples
	}

	s1, c1 := run()
	s2, c2 := run()
	assert.Equal(t, s1, s2)
	assert.Equal(t, c1, c2)
}

func TestModel_MoveKeepsIndexInSync(t *testing.T) {
	tests := []struct {
		name string
		to   orb.Point
		want func(home orb.Point) orb.Point
	}{
		{"inside bound", orb.Point{20, 20}, func(orb.Point) orb.Point { return orb.Point{20, 20} }},
		{"outside bound", orb.Point{500, 0}, func(home orb.Point) orb.Point { return home }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams()
			p.InfectedPercentage = 0
			index := space.New(space.WithMetric(space.Planar{}),
				space.WithBound(orb.Bound{Max: orb.Point{100, 100}}))
			deps := testDeps()
			deps.Index = index
			deps.Routines = &fakeRoutines{routine: &recordingRoutine{to: tt.to}}
			m, err := New(p, deps, WithSeed(1))
			require.NoError(t, err)
			require.NoError(t, m.Populate())

			homes := make([]orb.Point, m.Len())
			for i := range homes {
				homes[i] = m.Agent(i).Position()
			}
			m.Step()

			for i := 0; i < m.Len(); i++ {
				at, ok := index.Position(i)
				require.True(t, ok)
				assert.Equal(t, tt.want(homes[i]), m.Agent(i).Position())
				assert.Equal(t, at, m.Agent(i).Position())
			}
		})
	}
}
