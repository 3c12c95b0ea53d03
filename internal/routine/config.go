package routine

import (
	"fmt"
	"os"
	"sort"

	"github.com/skovsen/tbspread"
	"gopkg.in/yaml.v3"
)

// Place types.
const (
	TypeHome     = "home"
	TypeSingle   = "single"
	TypeMultiple = "multiple"
)

// Place scopes.
const (
	ScopeLocal  = "local"
	ScopeGlobal = "global"
)

// PlaceSpec describes how a household resolves a named place.
type PlaceSpec struct {
	Tag    string `yaml:"tag"`
	Type   string `yaml:"type"`
	Scope  string `yaml:"scope"`
	Amount int    `yaml:"amount"`
}

// Choice is one or more place names; a list means pick one at random.
type Choice []string

// UnmarshalYAML accepts a scalar or a sequence of scalars.
func (c *Choice) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		*c = Choice{value.Value}
		return nil
	case yaml.SequenceNode:
		var names []string
		if err := value.Decode(&names); err != nil {
			return err
		}
		*c = names
		return nil
	}
	return fmt.Errorf("line %d: place must be a name or a list of names", value.Line)
}

// Schedule maps an hour of the day to where to be. A nil Schedule means
// the agent keeps its position all day.
type Schedule map[int]Choice

type file struct {
	Places   map[string]PlaceSpec             `yaml:"places"`
	Routines map[string]map[string][]Schedule `yaml:"routines"`
}

// Config is a validated routine file.
type Config struct {
	Places    map[string]PlaceSpec
	Schedules map[tbspread.AgeGroup]map[tbspread.DayType][]Schedule
}

// Load reads and validates a routine file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading routines file: %w", err)
	}
	return Parse(data)
}

// Parse validates routine YAML.
func Parse(data []byte) (*Config, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: parsing routines: %v", tbspread.ErrConfiguration, err)
	}
	if f.Places == nil {
		return nil, fmt.Errorf("%w: routines file has no places", tbspread.ErrConfiguration)
	}
	if f.Routines == nil {
		return nil, fmt.Errorf("%w: routines file has no routines", tbspread.ErrConfiguration)
	}

	for name, p := range f.Places {
		if err := p.validate(name); err != nil {
			return nil, err
		}
	}

	cfg := &Config{
		Places:    f.Places,
		Schedules: make(map[tbspread.AgeGroup]map[tbspread.DayType][]Schedule),
	}
	for ageKey, days := range f.Routines {
		group, err := tbspread.ParseAgeGroup(ageKey)
		if err != nil {
			return nil, err
		}
		cfg.Schedules[group] = make(map[tbspread.DayType][]Schedule)
		for dayKey, schedules := range days {
			day, err := tbspread.ParseDayType(dayKey)
			if err != nil {
				return nil, err
			}
			cfg.Schedules[group][day] = schedules
		}
	}
	return cfg, nil
}

// PlaceNames returns the configured place names, sorted.
func (c *Config) PlaceNames() []string {
	names := make([]string, 0, len(c.Places))
	for name := range c.Places {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (p PlaceSpec) validate(name string) error {
	if p.Tag == "" {
		return fmt.Errorf("%w: place %q has no tag", tbspread.ErrConfiguration, name)
	}
	if name != p.Tag {
		return fmt.Errorf("%w: place key %q must equal its tag %q", tbspread.ErrConfiguration, name, p.Tag)
	}
	switch p.Type {
	case TypeHome:
		return nil
	case TypeSingle, TypeMultiple:
	default:
		return fmt.Errorf("%w: place %q has invalid type %q (valid: home, single, multiple)", tbspread.ErrConfiguration, name, p.Type)
	}
	if p.Scope != ScopeLocal && p.Scope != ScopeGlobal {
		return fmt.Errorf("%w: place %q has invalid scope %q (valid: local, global)", tbspread.ErrConfiguration, name, p.Scope)
	}
	if p.Type == TypeMultiple && p.Amount < 1 {
		return fmt.Errorf("%w: place %q needs amount of at least 1, got %d", tbspread.ErrConfiguration, name, p.Amount)
	}
	return nil
}
