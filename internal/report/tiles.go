package report

import (
	"fmt"
	"io"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/maptile"
	"github.com/paulmach/orb/maptile/tilecover"
	"github.com/skovsen/tbspread"
)

// Cell is the hotspot summary of one map tile.
type Cell struct {
	Tile maptile.Tile
	Sector
}

// Tiles covers outline with map tiles at zoom and classifies the agents
// standing in each covered tile. Tiles without agents are Black.
// Positions must be lon/lat.
func Tiles(outline orb.Geometry, states []tbspread.State, zoom maptile.Zoom) ([]Cell, error) {
	set, err := tilecover.Geometry(outline, zoom)
	if err != nil {
		return nil, fmt.Errorf("covering outline: %w", err)
	}

	byTile := make(map[maptile.Tile][]tbspread.Condition, len(set))
	for t := range set {
		byTile[t] = nil
	}
	for _, st := range states {
		t := maptile.At(st.Position, zoom)
		if _, ok := byTile[t]; ok {
			byTile[t] = append(byTile[t], st.Condition)
		}
	}

	tiles := make([]maptile.Tile, 0, len(byTile))
	for t := range byTile {
		tiles = append(tiles, t)
	}
	sortTiles(tiles)

	cells := make([]Cell, len(tiles))
	for i, t := range tiles {
		name := fmt.Sprintf("%d/%d/%d", t.Z, t.X, t.Y)
		cells[i] = Cell{Tile: t, Sector: Hotspot(name, byTile[t])}
	}
	return cells, nil
}

// sortTiles orders tiles by x, then y.
func sortTiles(t []maptile.Tile) {
	sort.Slice(t, func(i, j int) bool {
		if t[i].X != t[j].X {
			return t[i].X < t[j].X
		}
		return t[i].Y < t[j].Y
	})
}

// TileFeatures renders cells as tile polygons colored by hotspot.
func TileFeatures(cells []Cell) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, c := range cells {
		f := geojson.NewFeature(c.Tile.Bound().ToPolygon())
		f.Properties["tile"] = c.Name
		f.Properties["green"] = c.Green
		f.Properties["red"] = c.Red
		f.Properties["dead"] = c.Dead
		f.Properties["color"] = c.Color
		fc.Append(f)
	}
	return fc
}

// WriteTiles writes TileFeatures(cells) as GeoJSON.
func WriteTiles(w io.Writer, cells []Cell) error {
	raw, err := TileFeatures(cells).MarshalJSON()
	if err != nil {
		return fmt.Errorf("encoding tiles: %w", err)
	}
	_, err = w.Write(raw)
	return err
}
