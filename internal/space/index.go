// Package space indexes agent positions for proximity queries.
package space

import (
	"errors"
	"fmt"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/quadtree"
)

// ErrUnknownID is returned when moving an id that was never inserted.
var ErrUnknownID = errors.New("unknown id")

// World covers every longitude/latitude pair.
var World = orb.Bound{Min: orb.Point{-180, -90}, Max: orb.Point{180, 90}}

// Metric measures distances between points and builds search bounds.
type Metric interface {
	Distance(a, b orb.Point) float64
	BoundAround(p orb.Point, radius float64) orb.Bound
}

// Geodesic measures in meters over lon/lat points.
type Geodesic struct{}

func (Geodesic) Distance(a, b orb.Point) float64 { return geo.Distance(a, b) }

func (Geodesic) BoundAround(p orb.Point, radius float64) orb.Bound {
	return geo.NewBoundAroundPoint(p, radius)
}

// Planar measures in coordinate units.
type Planar struct{}

func (Planar) Distance(a, b orb.Point) float64 { return planar.Distance(a, b) }

func (Planar) BoundAround(p orb.Point, radius float64) orb.Bound {
	return orb.Bound{Min: p, Max: p}.Pad(radius)
}

// entry is an id stored in the quadtree.
type entry struct {
	id int
	p  orb.Point
}

func (e *entry) Point() orb.Point { return e.p }

// Index is a quadtree of agent positions keyed by dense integer ids.
// It is not safe for concurrent use.
type Index struct {
	bound   orb.Bound
	metric  Metric
	tree    *quadtree.Quadtree
	entries []*entry
	buf     []orb.Pointer
}

// Option configures an Index.
type Option func(*Index)

// WithBound limits the indexed area. Points outside it cannot be inserted.
func WithBound(b orb.Bound) Option {
	return func(i *Index) { i.bound = b }
}

// WithMetric replaces the default geodesic metric.
func WithMetric(m Metric) Option {
	return func(i *Index) { i.metric = m }
}

// New creates an empty index covering World with the geodesic metric.
func New(opts ...Option) *Index {
	i := &Index{bound: World, metric: Geodesic{}}
	for _, opt := range opts {
		opt(i)
	}
	i.tree = quadtree.New(i.bound)
	return i
}

// Len returns the number of indexed ids.
func (i *Index) Len() int { return len(i.entries) }

// Position returns where id is.
func (i *Index) Position(id int) (orb.Point, bool) {
	e, ok := i.lookup(id)
	if !ok {
		return orb.Point{}, false
	}
	return e.p, true
}

// Insert adds id at p. Ids are expected to be dense and increasing.
func (i *Index) Insert(id int, p orb.Point) error {
	if id < 0 {
		return fmt.Errorf("insert %d: %w", id, ErrUnknownID)
	}
	if id < len(i.entries) && i.entries[id] != nil {
		return i.Move(id, p)
	}
	e := &entry{id: id, p: p}
	if err := i.tree.Add(e); err != nil {
		return fmt.Errorf("insert %d at %v: %w", id, p, err)
	}
	for len(i.entries) <= id {
		i.entries = append(i.entries, nil)
	}
	i.entries[id] = e
	return nil
}

// Move relocates id to p. On failure id stays where it was.
func (i *Index) Move(id int, p orb.Point) error {
	e, ok := i.lookup(id)
	if !ok {
		return fmt.Errorf("move %d: %w", id, ErrUnknownID)
	}
	if e.p.Equal(p) {
		return nil
	}
	if !i.bound.Contains(p) {
		return fmt.Errorf("move %d to %v: %w", id, p, quadtree.ErrPointOutsideOfBounds)
	}
	i.tree.Remove(e, func(o orb.Pointer) bool { return o.(*entry).id == id })
	e.p = p
	return i.tree.Add(e)
}

// NeighborsWithin returns the ids within radius of id, inclusive, ascending.
func (i *Index) NeighborsWithin(id int, radius float64, includeSelf bool) []int {
	e, ok := i.lookup(id)
	if !ok {
		return nil
	}
	return i.within(e.p, radius, id, includeSelf)
}

func (i *Index) within(p orb.Point, radius float64, self int, includeSelf bool) []int {
	i.buf = i.tree.InBound(i.buf[:0], i.metric.BoundAround(p, radius))
	var ids []int
	for _, ptr := range i.buf {
		o := ptr.(*entry)
		if o.id == self && !includeSelf {
			continue
		}
		if o.id == self || i.metric.Distance(p, o.p) <= radius {
			ids = append(ids, o.id)
		}
	}
	sort.Ints(ids)
	return ids
}

// Intersecting returns the ids whose position lies inside g, ascending.
// Only polygonal geometries and bounds contain points.
func (i *Index) Intersecting(g orb.Geometry) []int {
	if g == nil {
		return nil
	}
	i.buf = i.tree.InBound(i.buf[:0], g.Bound())
	var ids []int
	for _, ptr := range i.buf {
		o := ptr.(*entry)
		if contains(g, o.p) {
			ids = append(ids, o.id)
		}
	}
	sort.Ints(ids)
	return ids
}

func contains(g orb.Geometry, p orb.Point) bool {
	switch g := g.(type) {
	case orb.Polygon:
		return planar.PolygonContains(g, p)
	case orb.MultiPolygon:
		return planar.MultiPolygonContains(g, p)
	case orb.Ring:
		return planar.RingContains(g, p)
	case orb.Bound:
		return g.Contains(p)
	}
	return false
}

func (i *Index) lookup(id int) (*entry, bool) {
	if id < 0 || id >= len(i.entries) || i.entries[id] == nil {
		return nil, false
	}
	return i.entries[id], true
}
