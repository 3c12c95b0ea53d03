package tbspread

import "fmt"

// Range is an inclusive [Lo, Hi] interval.
type Range struct {
	Lo float64 `json:"lo" yaml:"lo"`
	Hi float64 `json:"hi" yaml:"hi"`
}

// Params are the disease and population constants of a run.
type Params struct {
	StepsPerDay      int     `json:"steps_per_day" yaml:"steps_per_day"`
	LifespanYears    int     `json:"lifespan_years" yaml:"lifespan_years"`
	BirthCoefficient float64 `json:"birth_coefficient" yaml:"birth_coefficient"`

	// InfectedPercentage is the share, in percent, of the initial population
	// seeded as PrimaryInfectious.
	InfectedPercentage float64 `json:"infected_percentage" yaml:"infected_percentage"`

	// ExposureDistance is the transmission radius in index units
	// (meters for the geodesic index).
	ExposureDistance float64 `json:"exposure_distance" yaml:"exposure_distance"`

	HealthyContagiousRate      float64 `json:"healthy_contagious_rate" yaml:"healthy_contagious_rate"`
	LatentChance               float64 `json:"latent_chance" yaml:"latent_chance"`
	PrimaryChance              float64 `json:"primary_chance" yaml:"primary_chance"`
	LatentRecoveryChance       float64 `json:"latent_recovery_chance" yaml:"latent_recovery_chance"`
	TuberculosisRecoveryChance float64 `json:"tuberculosis_recovery_chance" yaml:"tuberculosis_recovery_chance"`
	MortalityChance            float64 `json:"mortality_chance" yaml:"mortality_chance"`
	PostPrimaryLatentChance    Range   `json:"post_primary_latent_chance" yaml:"post_primary_latent_chance"`
	RepeatedInfectionChance    float64 `json:"repeated_infection_chance" yaml:"repeated_infection_chance"`
	LatentRecoveryDays         Range   `json:"latent_recovery_days" yaml:"latent_recovery_days"`

	IncubationDays   int     `json:"incubation_days" yaml:"incubation_days"`
	IRConstant       float64 `json:"ir_constant" yaml:"ir_constant"`
	ConstantA        float64 `json:"constant_a" yaml:"constant_a"`
	ConstantB        float64 `json:"constant_b" yaml:"constant_b"`
	TimeSpentMinutes float64 `json:"time_spent_minutes" yaml:"time_spent_minutes"`

	// HousingOccupancy maps a home building kind to the number of residents
	// placed there at initialization. Kinds not listed get one resident.
	HousingOccupancy map[string]int `json:"housing_occupancy,omitempty" yaml:"housing_occupancy,omitempty"`
}

// DefaultParams returns the calibrated tuberculosis constants with one-hour ticks.
func DefaultParams() Params {
	return Params{
		StepsPerDay:                24,
		LifespanYears:              96,
		BirthCoefficient:           9.2,
		InfectedPercentage:         0.044,
		ExposureDistance:           12,
		HealthyContagiousRate:      0.017,
		LatentChance:               0.9,
		PrimaryChance:              0.1,
		LatentRecoveryChance:       0.1,
		TuberculosisRecoveryChance: 0.896,
		MortalityChance:            0.104,
		PostPrimaryLatentChance:    Range{Lo: 0.05, Hi: 0.15},
		RepeatedInfectionChance:    0.14,
		LatentRecoveryDays:         Range{Lo: 42, Hi: 56},
		IncubationDays:             60,
		IRConstant:                 0.0024,
		ConstantA:                  90,
		ConstantB:                  50,
		TimeSpentMinutes:           60,
	}
}

// YearSteps is the number of ticks in one simulated year.
func (p *Params) YearSteps() int { return 365 * p.StepsPerDay }

// LifespanSteps is the age, in ticks, at which an agent dies naturally.
func (p *Params) LifespanSteps() int { return p.LifespanYears * p.YearSteps() }

// Occupancy returns how many residents a home of the given kind holds.
func (p *Params) Occupancy(kind string) int {
	if n, ok := p.HousingOccupancy[kind]; ok && n > 0 {
		return n
	}
	return 1
}

// Validate rejects parameter sets the model cannot run with.
func (p *Params) Validate() error {
	if p.StepsPerDay <= 0 {
		return fmt.Errorf("%w: steps_per_day must be positive, got %d", ErrConfiguration, p.StepsPerDay)
	}
	if p.LifespanYears <= 0 {
		return fmt.Errorf("%w: lifespan_years must be positive, got %d", ErrConfiguration, p.LifespanYears)
	}
	if p.ExposureDistance < 0 {
		return fmt.Errorf("%w: exposure_distance must be non-negative, got %f", ErrConfiguration, p.ExposureDistance)
	}
	if p.ConstantA == 0 || p.ConstantB == 0 {
		return fmt.Errorf("%w: constant_a and constant_b must be non-zero", ErrConfiguration)
	}
	if p.PostPrimaryLatentChance.Lo > p.PostPrimaryLatentChance.Hi {
		return fmt.Errorf("%w: post_primary_latent_chance lo > hi", ErrConfiguration)
	}
	if p.LatentRecoveryDays.Lo > p.LatentRecoveryDays.Hi {
		return fmt.Errorf("%w: latent_recovery_days lo > hi", ErrConfiguration)
	}
	for _, c := range []struct {
		name string
		v    float64
	}{
		{"latent_chance", p.LatentChance},
		{"primary_chance", p.PrimaryChance},
		{"latent_recovery_chance", p.LatentRecoveryChance},
		{"tuberculosis_recovery_chance", p.TuberculosisRecoveryChance},
		{"mortality_chance", p.MortalityChance},
		{"repeated_infection_chance", p.RepeatedInfectionChance},
	} {
		if c.v < 0 || c.v > 1 {
			return fmt.Errorf("%w: %s must be between 0 and 1, got %f", ErrConfiguration, c.name, c.v)
		}
	}
	return nil
}
