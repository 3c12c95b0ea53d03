package tbspread

import (
	"fmt"

	"github.com/paulmach/orb"
)

// Populate places the initial population: every home from the place
// catalog receives its occupancy of residents sharing one routine.
// A share of InfectedPercentage percent starts PrimaryInfectious.
func (m *Model) Populate() error {
	if m.deps.Places == nil || m.deps.Routines == nil {
		return fmt.Errorf("%w: place catalog and routine provider are required", ErrConfiguration)
	}

	for _, region := range m.deps.Places.Regions() {
		for _, home := range m.deps.Places.Homes(region) {
			routine, err := m.deps.Routines.Generate(m.rng, home.Point, region)
			if err != nil {
				return fmt.Errorf("generating routine in %s: %w", region, err)
			}
			for i := 0; i < m.p.Occupancy(home.Kind); i++ {
				years, err := m.deps.Ages.SampleInitialAge(m.rng)
				if err != nil {
					return fmt.Errorf("sampling initial age: %w", err)
				}
				a, err := m.AddAgent(region, home.Point, routine, years*m.p.YearSteps())
				if err != nil {
					return err
				}
				if uniformFloat(m.rng, 0, 100) < m.p.InfectedPercentage {
					a.condition = PrimaryInfectious
				}
			}
		}
	}

	m.last = m.CountsByCondition()
	m.log.Info("population placed", "agents", len(m.agents), "infectious", m.last.Infectious())
	return nil
}

// AddAgent appends a Sustainable agent aged ageSteps at p. A nil routine
// never moves the agent.
func (m *Model) AddAgent(region string, p orb.Point, routine Routine, ageSteps int) (*Agent, error) {
	if routine == nil {
		routine = staticRoutine{}
	}
	a := &Agent{
		ID:        len(m.agents),
		Region:    region,
		condition: Sustainable,
		position:  p,
		routine:   routine,
		ageSteps:  ageSteps,
		ageGroup:  m.deps.Ages.BracketFor(float64(ageSteps / m.p.YearSteps())),
		dayOffset: uniformInt(m.rng, 0, m.p.LifespanYears),
	}
	if err := m.deps.Index.Insert(a.ID, p); err != nil {
		return nil, fmt.Errorf("indexing agent %d: %w", a.ID, err)
	}
	m.agents = append(m.agents, a)
	return a, nil
}

// Infect puts an agent into an infectious condition, as the initial seeding does.
func (m *Model) Infect(id int, c Condition) error {
	if !c.Infectious() {
		return fmt.Errorf("%s is not an infectious condition", c)
	}
	a := m.agents[id]
	if a.condition == Dead {
		return fmt.Errorf("agent %d is dead", id)
	}
	a.condition = c
	return nil
}

// scheduleBirths draws this year's birth ticks from the living population.
func (m *Model) scheduleBirths() int {
	year := m.p.YearSteps()
	alive := m.CountsByCondition().Alive()
	births := int(float64(alive) / 1000 * m.p.BirthCoefficient)
	for i := 0; i < births; i++ {
		m.pending[uniformInt(m.rng, m.tick, m.tick+year-1)]++
	}
	m.log.Info("newborns scheduled", "tick", m.tick, "alive", alive, "births", births)
	return births
}

func (m *Model) deliverBirths() {
	n, ok := m.pending[m.tick]
	if !ok {
		return
	}
	delete(m.pending, m.tick)
	m.log.Info("adding newborns", "tick", m.tick, "count", n, "agents", len(m.agents))
	for i := 0; i < n; i++ {
		if err := m.addNewborn(); err != nil {
			m.log.Error("newborn not placed", "tick", m.tick, "error", err)
		}
	}
}

func (m *Model) addNewborn() error {
	if m.deps.Places == nil || m.deps.Routines == nil {
		return fmt.Errorf("%w: place catalog and routine provider are required", ErrConfiguration)
	}
	regions := m.deps.Places.Regions()
	if len(regions) == 0 {
		return fmt.Errorf("%w: no regions loaded", ErrConfiguration)
	}
	region := regions[m.rng.IntN(len(regions))]
	home, err := m.deps.Places.RandomHomeLocation(m.rng, region)
	if err != nil {
		return err
	}
	routine, err := m.deps.Routines.Generate(m.rng, home, region)
	if err != nil {
		return err
	}
	a, err := m.AddAgent(region, home, routine, 0)
	if err != nil {
		return err
	}
	a.ageGroup = Newborn
	return nil
}
