package tbspread

import (
	"fmt"
	"math/rand/v2"

	"github.com/paulmach/orb"
)

// SpatialIndex answers proximity queries over agent ids. Positions are
// owned by the index; the model reports every move through Move.
type SpatialIndex interface {
	Insert(id int, p orb.Point) error
	Move(id int, p orb.Point) error
	// NeighborsWithin returns the ids within radius of id, ascending.
	NeighborsWithin(id int, radius float64, includeSelf bool) []int
}

// Routine is one household's schedule.
type Routine interface {
	// LocationFor returns where an agent of the given group should be at
	// hour on a day of the given type. ok is false for "no location change".
	LocationFor(rng *rand.Rand, group AgeGroup, day DayType, hour int) (p orb.Point, ok bool)
}

// RoutineProvider builds a Routine for a household living at home in region.
type RoutineProvider interface {
	Generate(rng *rand.Rand, home orb.Point, region string) (Routine, error)
}

// AgeSampler draws initial ages and maps ages to brackets.
type AgeSampler interface {
	SampleInitialAge(rng *rand.Rand) (int, error)
	BracketFor(years float64) AgeGroup
}

// Home is a residential building from the place catalog.
type Home struct {
	Point orb.Point
	Kind  string
}

// PlaceCatalog provides the homes agents live in.
type PlaceCatalog interface {
	Regions() []string
	Homes(region string) []Home
	RandomHomeLocation(rng *rand.Rand, region string) (orb.Point, error)
}

// staticRoutine never moves the agent.
type staticRoutine struct{}

func (staticRoutine) LocationFor(*rand.Rand, AgeGroup, DayType, int) (orb.Point, bool) {
	return orb.Point{}, false
}

// bracketSampler is the AgeSampler used when none is supplied. It cannot
// draw ages, so populating a model without a real sampler fails.
type bracketSampler struct{}

func (bracketSampler) SampleInitialAge(*rand.Rand) (int, error) {
	return 0, fmt.Errorf("%w: age distribution not initialized", ErrConfiguration)
}

func (bracketSampler) BracketFor(years float64) AgeGroup { return AgeGroupFor(years) }
