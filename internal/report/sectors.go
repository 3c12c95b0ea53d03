package report

import (
	"github.com/paulmach/orb"
	"github.com/skovsen/tbspread"
)

// Sector colors.
const (
	Green = "Green"
	Red   = "Red"
	Black = "Black"
)

// Intersector finds the agents inside a geometry.
type Intersector interface {
	Intersecting(g orb.Geometry) []int
}

// Sector summarizes the agents inside one region outline.
type Sector struct {
	Name  string
	Green int // Sustainable, Latent or Recovered
	Red   int // infectious
	Dead  int
	Color string
}

// Total is the number of agents inside the sector.
func (s Sector) Total() int { return s.Green + s.Red + s.Dead }

// Hotspot classifies a group of conditions. The sector is Black when it
// holds only dead agents or none, otherwise the majority of Green and Red,
// Green on a tie.
func Hotspot(name string, conds []tbspread.Condition) Sector {
	s := Sector{Name: name}
	for _, c := range conds {
		switch c {
		case tbspread.Sustainable, tbspread.Latent, tbspread.Recovered:
			s.Green++
		case tbspread.Dead:
			s.Dead++
		default:
			s.Red++
		}
	}
	switch {
	case s.Total() == s.Dead:
		s.Color = Black
	case s.Red > s.Green:
		s.Color = Red
	default:
		s.Color = Green
	}
	return s
}

// Sectors summarizes the agents of states found inside each outline.
// Regions without an outline are skipped.
func Sectors(idx Intersector, states []tbspread.State, outlines map[string]orb.Geometry, order []string) []Sector {
	var out []Sector
	for _, name := range order {
		g, ok := outlines[name]
		if !ok || g == nil {
			continue
		}
		ids := idx.Intersecting(g)
		conds := make([]tbspread.Condition, 0, len(ids))
		for _, id := range ids {
			if id >= 0 && id < len(states) {
				conds = append(conds, states[id].Condition)
			}
		}
		out = append(out, Hotspot(name, conds))
	}
	return out
}
