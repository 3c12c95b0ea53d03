// Package tbspread simulates tuberculosis spreading through a spatially
// situated population in hourly ticks.
package tbspread

import (
	"context"
	"log/slog"
	"math/rand/v2"

	"github.com/paulmach/orb"
	"github.com/skovsen/tbspread/internal/logging"
)

// world is what an agent may see and touch while it steps. Siblings are
// reached by id only; agents never hold pointers to each other.
type world interface {
	now() int
	params() *Params
	rand() *rand.Rand
	logger() *slog.Logger
	bracketFor(years float64) AgeGroup
	// move reports whether the index accepted p.
	move(id int, p orb.Point) bool
	neighbors(id int, radius float64) []int
	contact(id int) Contact
	expose(id int, prob float64)
}

// An Agent is one individual of the population.
type Agent struct {
	ID     int
	Region string

	condition Condition
	position  orb.Point
	routine   Routine

	ageSteps int
	ageGroup AgeGroup

	stepsInfected int
	rate          float64
	maxRate       float64
	dayOffset     int

	latentRecovery    Event
	latentProgression Event
	reinfection       Event
}

// Condition returns the agent's current health state.
func (a *Agent) Condition() Condition { return a.condition }

// Position returns where the agent is.
func (a *Agent) Position() orb.Point { return a.position }

// AgeGroup returns the agent's current bracket.
func (a *Agent) AgeGroup() AgeGroup { return a.ageGroup }

// AgeSteps returns the agent's age in ticks.
func (a *Agent) AgeSteps() int { return a.ageSteps }

// ContagiousRate returns the transmissibility computed at the last day boundary.
func (a *Agent) ContagiousRate() float64 { return a.rate }

// State is a read-only copy of an agent for rendering and collection.
type State struct {
	ID        int
	Region    string
	Condition Condition
	Position  orb.Point
	AgeGroup  AgeGroup
}

func (a *Agent) state() State {
	return State{
		ID:        a.ID,
		Region:    a.Region,
		Condition: a.condition,
		Position:  a.position,
		AgeGroup:  a.ageGroup,
	}
}

func (a *Agent) step(w world) {
	if a.condition == Dead {
		return
	}
	p := w.params()
	before := a.condition

	a.ageSteps++
	if a.ageSteps%p.YearSteps() == 0 {
		a.ageGroup = w.bracketFor(float64(a.ageSteps / p.YearSteps()))
	}
	a.followRoutine(w)

	switch a.condition {
	case PrimaryInfectious, PostPrimaryInfectious:
		a.stepInfectious(w)
	case Latent:
		a.stepLatent(w)
	case Recovered:
		a.stepRecovered(w)
	case Sustainable:
	}

	if a.ageSteps >= p.LifespanSteps() && a.condition != Dead {
		a.condition = Dead
	}
	if a.condition != before {
		w.logger().Log(context.Background(), logging.LevelTrace, "condition changed",
			"agent", a.ID, "tick", w.now(), "from", before, "to", a.condition)
	}
}

func (a *Agent) followRoutine(w world) {
	if a.routine == nil {
		return
	}
	p := w.params()
	tick := w.now()

	day := Weekday
	if tick%(7*p.StepsPerDay) >= 5*p.StepsPerDay {
		day = Weekend
	}
	hour := tick % p.StepsPerDay

	if loc, ok := a.routine.LocationFor(w.rand(), a.ageGroup, day, hour); ok && w.move(a.ID, loc) {
		a.position = loc
	}
}

func (a *Agent) stepInfectious(w world) {
	p := w.params()
	a.stepsInfected++
	if w.now()%p.StepsPerDay == 0 {
		a.rate = ContagiousRate(p, a.stepsInfected, a.dayOffset)
	}
	if a.rate > a.maxRate {
		a.maxRate = a.rate
	}

	// Falling and below the healthy threshold: the episode ends.
	if a.maxRate > a.rate && a.rate < p.HealthyContagiousRate {
		a.resolveEpisode(w)
		return
	}

	ids := w.neighbors(a.ID, p.ExposureDistance)
	contacts := make([]Contact, len(ids))
	for i, id := range ids {
		contacts[i] = w.contact(id)
	}
	prob, err := InfectionProbability(p, contacts)
	if err != nil {
		w.logger().Debug("transmission skipped", "agent", a.ID, "tick", w.now(), "error", err)
		return
	}
	for i, id := range ids {
		if contacts[i].Condition == Sustainable {
			w.expose(id, prob)
		}
	}
}

func (a *Agent) resolveEpisode(w world) {
	p := w.params()
	rng := w.rand()
	weights := []float64{p.TuberculosisRecoveryChance, p.MortalityChance}
	if pickWeighted(rng, weights) == 1 {
		a.condition = Dead
		return
	}

	a.condition = Recovered
	a.stepsInfected = 0
	a.rate = 0
	a.maxRate = 0
	a.reinfection = Event{}
	if rng.Float64() < p.RepeatedInfectionChance {
		a.reinfection = ArmedAt(uniformInt(rng, w.now(), p.LifespanSteps()))
	}
}

func (a *Agent) stepLatent(w world) {
	tick := w.now()
	switch {
	case a.latentRecovery.Due(tick):
		a.condition = Sustainable
	case a.latentProgression.Due(tick):
		a.condition = PostPrimaryInfectious
	}
}

func (a *Agent) stepRecovered(w world) {
	if a.reinfection.Due(w.now()) {
		a.condition = PostPrimaryInfectious
		a.reinfection = Event{}
	}
}

// expose resolves the condition of a Sustainable agent after contact with
// infection probability prob.
func (a *Agent) expose(w world, prob float64) {
	if a.condition != Sustainable {
		return
	}
	p := w.params()
	rng := w.rand()
	weights := ExposureWeights(p, prob)
	a.condition = exposureOutcomes[pickWeighted(rng, weights[:])]
	if a.condition == Sustainable {
		return
	}
	w.logger().Log(context.Background(), logging.LevelTrace, "agent infected",
		"agent", a.ID, "tick", w.now(), "condition", a.condition, "probability", prob)
	if a.condition == Latent {
		a.armLatentEvents(w)
	}
}

func (a *Agent) armLatentEvents(w world) {
	p := w.params()
	rng := w.rand()
	tick := w.now()

	progression := (1 - p.LatentRecoveryChance) *
		uniformFloat(rng, p.PostPrimaryLatentChance.Lo, p.PostPrimaryLatentChance.Hi)

	a.latentRecovery = Event{}
	if rng.Float64() < p.LatentRecoveryChance {
		days := uniformInt(rng, int(p.LatentRecoveryDays.Lo), int(p.LatentRecoveryDays.Hi))
		a.latentRecovery = ArmedAt(tick + days*p.StepsPerDay)
	}
	a.latentProgression = Event{}
	if rng.Float64() < progression {
		a.latentProgression = ArmedAt(uniformInt(rng, tick, p.LifespanSteps()))
	}
}
