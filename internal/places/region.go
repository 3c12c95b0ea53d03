package places

import (
	"encoding/json"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

// BoundaryKey marks the feature holding the region outline.
const BoundaryKey = "boundary"

// Place is a feature reduced to its representative point.
type Place struct {
	Point orb.Point
	Kind  string
}

// Region is one area of the catalog.
type Region struct {
	Name     string
	Boundary orb.Geometry
	Places   map[string][]Place
}

// Area returns the centroid and area of the region outline.
func (r *Region) Area() (centre orb.Point, area float64) {
	if r.Boundary == nil {
		return orb.Point{}, 0
	}
	return planar.CentroidArea(r.Boundary)
}

// decodeFeatures accepts a FeatureCollection, a single Feature or a bare geometry.
func decodeFeatures(data []byte) ([]*geojson.Feature, error) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("decoding geojson: %w", err)
	}

	switch probe.Type {
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return nil, fmt.Errorf("decoding feature collection: %w", err)
		}
		return fc.Features, nil
	case "Feature":
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return nil, fmt.Errorf("decoding feature: %w", err)
		}
		return []*geojson.Feature{f}, nil
	}

	g, err := geojson.UnmarshalGeometry(data)
	if err != nil {
		return nil, fmt.Errorf("decoding geometry: %w", err)
	}
	f := geojson.NewFeature(g.Geometry())
	f.Properties[BoundaryKey] = "region"
	return []*geojson.Feature{f}, nil
}

// representativePoint reduces a geometry to one point inside or on it.
func representativePoint(g orb.Geometry) (orb.Point, bool) {
	switch g := g.(type) {
	case nil:
		return orb.Point{}, false
	case orb.Point:
		return g, true
	case orb.MultiPoint:
		if len(g) == 0 {
			return orb.Point{}, false
		}
		return g[0], true
	}

	centroid, _ := planar.CentroidArea(g)
	switch poly := g.(type) {
	case orb.Polygon:
		if len(poly) > 0 && len(poly[0]) > 0 && !planar.PolygonContains(poly, centroid) {
			return poly[0][0], true
		}
	case orb.MultiPolygon:
		if len(poly) > 0 && len(poly[0]) > 0 && len(poly[0][0]) > 0 && !planar.MultiPolygonContains(poly, centroid) {
			return poly[0][0][0], true
		}
	}
	return centroid, true
}

// newRegion classifies features into places with tags.
func newRegion(name string, features []*geojson.Feature, tags Tags) *Region {
	r := &Region{Name: name, Places: make(map[string][]Place)}
	for _, f := range features {
		if f == nil || f.Geometry == nil {
			continue
		}
		if _, ok := f.Properties[BoundaryKey]; ok && isPolygonal(f.Geometry) {
			r.Boundary = f.Geometry
			continue
		}
		p, ok := representativePoint(f.Geometry)
		if !ok {
			continue
		}
		for tag, kind := range tags.match(f.Properties) {
			r.Places[tag] = append(r.Places[tag], Place{Point: p, Kind: kind})
		}
	}
	return r
}

func isPolygonal(g orb.Geometry) bool {
	switch g.(type) {
	case orb.Polygon, orb.MultiPolygon:
		return true
	}
	return false
}
