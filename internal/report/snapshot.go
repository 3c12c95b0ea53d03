package report

import (
	"fmt"
	"io"

	"github.com/paulmach/orb/geojson"
	"github.com/skovsen/tbspread"
)

// Snapshot converts agent states into a GeoJSON feature collection, one
// point feature per agent.
func Snapshot(states []tbspread.State) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, st := range states {
		f := geojson.NewFeature(st.Position)
		f.ID = st.ID
		f.Properties["id"] = st.ID
		f.Properties["region"] = st.Region
		f.Properties["condition"] = st.Condition.String()
		f.Properties["age_group"] = st.AgeGroup.String()
		f.Properties["color"] = "#" + Palette[st.Condition]
		fc.Append(f)
	}
	return fc
}

// WriteSnapshot writes Snapshot(states) as GeoJSON.
func WriteSnapshot(w io.Writer, states []tbspread.State) error {
	raw, err := Snapshot(states).MarshalJSON()
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	if _, err := w.Write(raw); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	return nil
}
