package routine

import (
	"bytes"
	"fmt"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/paulmach/orb"
	"github.com/skovsen/tbspread"
	"github.com/skovsen/tbspread/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRoutines = `
places:
  home: {tag: home, type: home}
  school: {tag: school, type: single, scope: local}
  work: {tag: work, type: single, scope: global}
  shop: {tag: shop, type: multiple, scope: local, amount: 2}
  pool: {tag: pool, type: single, scope: local}

routines:
  adult:
    weekday:
      - {0: home, 8: work, 17: [shop, home], 20: pool}
    weekend:
      - ~
  kid:
    weekday:
      - {8: school}
`

type fakePlaces struct {
	points map[string]map[string]orb.Point
}

func (f *fakePlaces) Regions() []string { return []string{"a", "b"} }

func (f *fakePlaces) RandomPoint(_ *rand.Rand, region, tag string) (orb.Point, error) {
	p, ok := f.points[region][tag]
	if !ok {
		return orb.Point{}, fmt.Errorf("%w: no %q places in %s", tbspread.ErrLookupMiss, tag, region)
	}
	return p, nil
}

func testPlaces() *fakePlaces {
	return &fakePlaces{points: map[string]map[string]orb.Point{
		"a": {"school": {1, 0}, "work": {10, 0}, "shop": {5, 5}},
		"b": {"work": {20, 0}},
	}}
}

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(testRoutines))
	require.NoError(t, err)

	assert.Equal(t, []string{"home", "pool", "school", "shop", "work"}, cfg.PlaceNames())
	assert.Equal(t, PlaceSpec{Tag: "shop", Type: TypeMultiple, Scope: ScopeLocal, Amount: 2}, cfg.Places["shop"])

	weekday := cfg.Schedules[tbspread.Adult][tbspread.Weekday]
	require.Len(t, weekday, 1)
	assert.Equal(t, Choice{"home"}, weekday[0][0])
	assert.Equal(t, Choice{"shop", "home"}, weekday[0][17])

	weekend := cfg.Schedules[tbspread.Adult][tbspread.Weekend]
	require.Len(t, weekend, 1)
	assert.Nil(t, weekend[0])

	_, ok := cfg.Schedules[tbspread.Elderly]
	assert.False(t, ok)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"not yaml", "places: [\n"},
		{"no places", "routines: {adult: {weekday: [~]}}"},
		{"no routines", "places: {home: {tag: home, type: home}}"},
		{"key differs from tag", "places: {house: {tag: home, type: home}}\nroutines: {}"},
		{"bad type", "places: {home: {tag: home, type: castle}}\nroutines: {}"},
		{"bad scope", "places: {work: {tag: work, type: single, scope: galaxy}}\nroutines: {}"},
		{"no amount", "places: {shop: {tag: shop, type: multiple, scope: local}}\nroutines: {}"},
		{"unknown age group", "places: {home: {tag: home, type: home}}\nroutines: {toddler: {weekday: [~]}}"},
		{"unknown day type", "places: {home: {tag: home, type: home}}\nroutines: {adult: {holiday: [~]}}"},
		{"bad choice", "places: {home: {tag: home, type: home}}\nroutines: {adult: {weekday: [{8: {a: b}}]}}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.ErrorIs(t, err, tbspread.ErrConfiguration)
		})
	}
}

func TestProvider_Generate(t *testing.T) {
	cfg, err := Parse([]byte(testRoutines))
	require.NoError(t, err)

	var buf bytes.Buffer
	prov := NewProvider(cfg, testPlaces(), logging.NewLogger("debug", &buf))
	rng := rand.New(rand.NewPCG(5, 5))
	home := orb.Point{3, 3}

	r, err := prov.Generate(rng, home, "a")
	require.NoError(t, err)
	routine := r.(*Routine)

	assert.Equal(t, []orb.Point{home}, routine.places["home"])
	assert.Equal(t, []orb.Point{{1, 0}}, routine.places["school"])
	assert.Equal(t, []orb.Point{{5, 5}, {5, 5}}, routine.places["shop"])
	require.Len(t, routine.places["work"], 1)
	assert.Contains(t, []orb.Point{{10, 0}, {20, 0}}, routine.places["work"][0])
	assert.NotContains(t, routine.places, "pool")
	assert.Contains(t, buf.String(), "place not resolved")

	p, ok := r.LocationFor(rng, tbspread.Adult, tbspread.Weekday, 0)
	require.True(t, ok)
	assert.Equal(t, home, p)

	p, ok = r.LocationFor(rng, tbspread.Adult, tbspread.Weekday, 17)
	require.True(t, ok)
	assert.Contains(t, []orb.Point{home, {5, 5}}, p)

	p, ok = r.LocationFor(rng, tbspread.Kid, tbspread.Weekday, 8)
	require.True(t, ok)
	assert.Equal(t, orb.Point{1, 0}, p)
}

func TestRoutine_Misses(t *testing.T) {
	cfg, err := Parse([]byte(testRoutines))
	require.NoError(t, err)

	var buf bytes.Buffer
	r, err := NewProvider(cfg, testPlaces(), logging.NewLogger("debug", &buf)).
		Generate(rand.New(rand.NewPCG(1, 1)), orb.Point{3, 3}, "a")
	require.NoError(t, err)
	rng := rand.New(rand.NewPCG(2, 2))

	// No entry for the hour.
	_, ok := r.LocationFor(rng, tbspread.Adult, tbspread.Weekday, 3)
	assert.False(t, ok)

	// Nil schedule: stay put all day.
	_, ok = r.LocationFor(rng, tbspread.Adult, tbspread.Weekend, 8)
	assert.False(t, ok)

	// Kids have no weekend schedule.
	_, ok = r.LocationFor(rng, tbspread.Kid, tbspread.Weekend, 8)
	assert.False(t, ok)

	// Place that could not be resolved.
	_, ok = r.LocationFor(rng, tbspread.Adult, tbspread.Weekday, 20)
	assert.False(t, ok)
	assert.Contains(t, buf.String(), "invalid place")

	// Missing age group is warned about once.
	for i := 0; i < 3; i++ {
		_, ok = r.LocationFor(rng, tbspread.Elderly, tbspread.Weekday, 8)
		assert.False(t, ok)
	}
	assert.Equal(t, 1, strings.Count(buf.String(), "missing routines"))
}

func TestProvider_GenerateFailsOnOtherErrors(t *testing.T) {
	cfg, err := Parse([]byte(testRoutines))
	require.NoError(t, err)

	prov := NewProvider(cfg, brokenPlaces{}, nil)
	_, err = prov.Generate(rand.New(rand.NewPCG(1, 1)), orb.Point{}, "a")
	assert.EqualError(t, err, "disk on fire")
}

type brokenPlaces struct{}

func (brokenPlaces) Regions() []string { return []string{"a"} }

func (brokenPlaces) RandomPoint(*rand.Rand, string, string) (orb.Point, error) {
	return orb.Point{}, fmt.Errorf("disk on fire")
}
