package tbspread

import (
	"fmt"
	"strings"
)

// Condition is the health state of an Agent.
type Condition int

// The conditions an agent can be in. Dead is terminal.
const (
	Sustainable Condition = iota
	Latent
	PrimaryInfectious
	PostPrimaryInfectious
	Recovered
	Dead

	numConditions
)

// Conditions lists every condition in reporting order.
func Conditions() []Condition {
	return []Condition{Sustainable, Latent, PrimaryInfectious, PostPrimaryInfectious, Recovered, Dead}
}

func (c Condition) String() string {
	switch c {
	case Sustainable:
		return "Sustainable"
	case Latent:
		return "Latent"
	case PrimaryInfectious:
		return "PrimaryInfectious"
	case PostPrimaryInfectious:
		return "PostPrimaryInfectious"
	case Recovered:
		return "Recovered"
	case Dead:
		return "Dead"
	default:
		return fmt.Sprintf("Condition(%d)", int(c))
	}
}

// Valid reports whether c is one of the six defined conditions.
func (c Condition) Valid() bool {
	return c >= Sustainable && c < numConditions
}

// Infectious reports whether an agent in condition c spreads the disease.
func (c Condition) Infectious() bool {
	return c == PrimaryInfectious || c == PostPrimaryInfectious
}

// ParseCondition is the inverse of Condition.String, case-insensitive.
func ParseCondition(s string) (Condition, error) {
	for _, c := range Conditions() {
		if strings.EqualFold(c.String(), s) {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown condition %q", s)
}

// AgeGroup is the discrete age bracket used to pick routines.
type AgeGroup int

// Age brackets, youngest first.
const (
	Newborn AgeGroup = iota + 1
	Preschooler
	Kid
	Teenager
	Adult
	Elderly
)

// AgeGroups lists every bracket youngest first.
func AgeGroups() []AgeGroup {
	return []AgeGroup{Newborn, Preschooler, Kid, Teenager, Adult, Elderly}
}

func (g AgeGroup) String() string {
	switch g {
	case Newborn:
		return "newborn"
	case Preschooler:
		return "preschooler"
	case Kid:
		return "kid"
	case Teenager:
		return "teenager"
	case Adult:
		return "adult"
	case Elderly:
		return "elderly"
	default:
		return fmt.Sprintf("AgeGroup(%d)", int(g))
	}
}

// ParseAgeGroup maps a routine-file key such as "adult" to its AgeGroup.
func ParseAgeGroup(s string) (AgeGroup, error) {
	for _, g := range AgeGroups() {
		if strings.EqualFold(g.String(), s) {
			return g, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown age group %q", ErrConfiguration, s)
}

// ageCuts are the inclusive upper bounds, in years, of each bracket but the last.
var ageCuts = [...]float64{2, 5, 17, 21, 64}

// AgeGroupFor returns the bracket for an age in years.
func AgeGroupFor(years float64) AgeGroup {
	for i, cut := range ageCuts {
		if years <= cut {
			return AgeGroups()[i]
		}
	}
	return Elderly
}

// DayType distinguishes working days from the weekend.
type DayType int

const (
	Weekday DayType = iota
	Weekend
)

func (d DayType) String() string {
	if d == Weekend {
		return "weekend"
	}
	return "weekday"
}

// ParseDayType maps "weekday"/"weekend" to a DayType.
func ParseDayType(s string) (DayType, error) {
	switch strings.ToLower(s) {
	case "weekday":
		return Weekday, nil
	case "weekend":
		return Weekend, nil
	}
	return 0, fmt.Errorf("%w: unknown day type %q", ErrConfiguration, s)
}

// Counts holds the number of agents per condition, indexed by Condition.
type Counts [numConditions]int

// Get returns the count for c.
func (c Counts) Get(cond Condition) int {
	if !cond.Valid() {
		return 0
	}
	return c[cond]
}

// Total is the number of agents counted, dead included.
func (c Counts) Total() int {
	n := 0
	for _, v := range c {
		n += v
	}
	return n
}

// Alive is the number of agents not Dead.
func (c Counts) Alive() int {
	return c.Total() - c[Dead]
}

// Infectious is the number of agents in either infectious condition.
func (c Counts) Infectious() int {
	return c[PrimaryInfectious] + c[PostPrimaryInfectious]
}

// Map returns the counts keyed by condition.
func (c Counts) Map() map[Condition]int {
	m := make(map[Condition]int, numConditions)
	for _, cond := range Conditions() {
		m[cond] = c[cond]
	}
	return m
}

// Sample is the aggregated counts observed at the end of one tick.
type Sample struct {
	Tick   int
	Counts Counts
}
