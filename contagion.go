package tbspread

import (
	"math"
	"math/rand/v2"
)

// ContagiousRate is the disease-course function evaluated once per
// simulated day while an agent is infectious. dayOffset is the agent's
// individual progression offset, fixed at creation.
func ContagiousRate(p *Params, stepsInfected, dayOffset int) float64 {
	incubation := float64(p.IncubationDays)
	d := float64(dayOffset)
	if stepsInfected <= p.IncubationDays {
		v := 1 - (incubation-d)/p.ConstantA
		if v < 0 || math.IsNaN(v) {
			v = 0
		}
		return math.Max(0, math.Sqrt(v))
	}
	return math.Exp(-math.Pow(math.Abs(d-incubation)/p.ConstantB, 3))
}

// Contact is what a transmitting agent observes about one neighbor.
type Contact struct {
	Condition Condition
	Rate      float64
}

// InfectionProbability is the per-contact infection chance over a
// neighborhood. It returns ErrNoNeighbors for an empty set.
func InfectionProbability(p *Params, contacts []Contact) (float64, error) {
	if len(contacts) == 0 {
		return 0, ErrNoNeighbors
	}
	var infectious int
	var sumRate float64
	for _, c := range contacts {
		if c.Condition.Infectious() {
			infectious++
			sumRate += c.Rate
		}
	}
	share := float64(infectious) / float64(len(contacts))
	return p.TimeSpentMinutes * (p.IRConstant / 360) * share * sumRate, nil
}

// exposureOutcomes are the conditions a Sustainable agent can end in after contact.
var exposureOutcomes = [...]Condition{Sustainable, Latent, PrimaryInfectious}

// ExposureWeights returns the weights of exposureOutcomes for infection
// probability prob, clamped to be non-negative.
func ExposureWeights(p *Params, prob float64) [3]float64 {
	latent := prob * p.LatentChance
	primary := prob * p.PrimaryChance
	return [3]float64{
		math.Max(0, 1-latent-primary),
		math.Max(0, latent),
		math.Max(0, primary),
	}
}

// pickWeighted draws an index proportionally to weights. It always consumes
// exactly one draw. With no positive weight it returns 0.
func pickWeighted(rng *rand.Rand, weights []float64) int {
	var total float64
	for _, w := range weights {
		total += w
	}
	r := rng.Float64() * total
	if total <= 0 {
		return 0
	}
	for i, w := range weights {
		if r < w {
			return i
		}
		r -= w
	}
	for i := len(weights) - 1; i >= 0; i-- {
		if weights[i] > 0 {
			return i
		}
	}
	return 0
}

// uniformInt draws an integer from [lo, hi]. hi below lo yields lo.
func uniformInt(rng *rand.Rand, lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + rng.IntN(hi-lo+1)
}

// uniformFloat draws from [lo, hi).
func uniformFloat(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}
