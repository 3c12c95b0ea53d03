// Package places loads the buildings and amenities agents live in and visit.
package places

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"sort"

	"github.com/paulmach/orb"
	"github.com/skovsen/tbspread"
	"golang.org/x/sync/errgroup"
)

// HomeTag is the place tag of residential buildings.
const HomeTag = "home"

// Source names a region and the GeoJSON file describing it.
type Source struct {
	Name string `json:"name" yaml:"name"`
	Path string `json:"path" yaml:"path"`
}

// Catalog holds every loaded region. It is read-only after Load.
type Catalog struct {
	order   []string
	regions map[string]*Region
}

var _ tbspread.PlaceCatalog = (*Catalog)(nil)

// Load reads every source concurrently and classifies its features with tags.
// Regions keep the order of sources.
func Load(ctx context.Context, sources []Source, tags Tags) (*Catalog, error) {
	if len(sources) == 0 {
		return nil, fmt.Errorf("%w: no regions configured", tbspread.ErrConfiguration)
	}
	if err := tags.Validate(); err != nil {
		return nil, err
	}

	regions := make([]*Region, len(sources))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, src := range sources {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := os.ReadFile(src.Path)
			if err != nil {
				return fmt.Errorf("reading region %s: %w", src.Name, err)
			}
			features, err := decodeFeatures(data)
			if err != nil {
				return fmt.Errorf("region %s: %w", src.Name, err)
			}
			regions[i] = newRegion(src.Name, features, tags)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return New(regions...)
}

// New builds a catalog from already classified regions.
func New(regions ...*Region) (*Catalog, error) {
	c := &Catalog{regions: make(map[string]*Region, len(regions))}
	for _, r := range regions {
		if _, dup := c.regions[r.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate region %q", tbspread.ErrConfiguration, r.Name)
		}
		c.regions[r.Name] = r
		c.order = append(c.order, r.Name)
	}
	return c, nil
}

// Regions returns the region names in load order.
func (c *Catalog) Regions() []string {
	return append([]string(nil), c.order...)
}

// Region returns a loaded region by name.
func (c *Catalog) Region(name string) (*Region, bool) {
	r, ok := c.regions[name]
	return r, ok
}

// Tags returns the place tags present in region, sorted.
func (c *Catalog) Tags(region string) []string {
	r, ok := c.regions[region]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(r.Places))
	for tag := range r.Places {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

// Homes returns the residential buildings of region.
func (c *Catalog) Homes(region string) []tbspread.Home {
	r, ok := c.regions[region]
	if !ok {
		return nil
	}
	homes := make([]tbspread.Home, len(r.Places[HomeTag]))
	for i, p := range r.Places[HomeTag] {
		homes[i] = tbspread.Home{Point: p.Point, Kind: p.Kind}
	}
	return homes
}

// RandomHomeLocation picks a home of region uniformly.
func (c *Catalog) RandomHomeLocation(rng *rand.Rand, region string) (orb.Point, error) {
	return c.RandomPoint(rng, region, HomeTag)
}

// RandomPoint picks a place with tag in region uniformly.
func (c *Catalog) RandomPoint(rng *rand.Rand, region, tag string) (orb.Point, error) {
	r, ok := c.regions[region]
	if !ok {
		return orb.Point{}, fmt.Errorf("%w: region %q", tbspread.ErrLookupMiss, region)
	}
	places := r.Places[tag]
	if len(places) == 0 {
		return orb.Point{}, fmt.Errorf("%w: no %q places in %s", tbspread.ErrLookupMiss, tag, region)
	}
	return places[rng.IntN(len(places))].Point, nil
}

// Bound covers every place and boundary of the catalog.
func (c *Catalog) Bound() orb.Bound {
	var b orb.Bound
	first := true
	extend := func(o orb.Bound) {
		if first {
			b, first = o, false
			return
		}
		b = b.Union(o)
	}
	for _, name := range c.order {
		r := c.regions[name]
		if r.Boundary != nil {
			extend(r.Boundary.Bound())
		}
		for _, places := range r.Places {
			for _, p := range places {
				extend(p.Point.Bound())
			}
		}
	}
	return b
}
