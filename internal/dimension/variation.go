package dimension

import (
	"sort"

	"github.com/RoaringBitmap/roaring"
)

// VariantType classifies how one point relates to another in the
// variation graph.
type VariantType string

const (
	VariantTypeSame           VariantType = "same"
	VariantTypeGeneralization VariantType = "generalization"
	VariantTypeSpecialization VariantType = "specialization"
	VariantTypePeer           VariantType = "peer"
)

// WeightedPoint is a point together with its normalized weight difference
// to some reference point.
type WeightedPoint struct {
	Point  DimensionSpacePoint
	Weight int
}

// VariationGraph is the fallback DAG over the allowed dimension subspace.
//
// Point Q generalizes point P when, in every dimension, Q's value is P's
// value or one of its generalizations, and Q != P. Along any generalization
// the total depth strictly decreases, so every fallback chain ends at a root.
//
// All sets are precomputed as bitmaps over the points' indexes; points are
// indexed in hash order. The graph is read-only once built.
type VariationGraph struct {
	source   *Source
	points   []DimensionSpacePoint
	index    map[string]uint32
	weights  []int
	base     int
	generals []*roaring.Bitmap
	specials []*roaring.Bitmap
	primary  []int // index of the primary generalization, -1 for roots
}

// NewVariationGraph precomputes generalizations and specializations for
// every point in the source's allowed subspace.
func NewVariationGraph(source *Source) *VariationGraph {
	subspace := source.AllowedSubspace()
	points := subspace.Points()

	g := &VariationGraph{
		source:   source,
		points:   points,
		index:    make(map[string]uint32, len(points)),
		weights:  make([]int, len(points)),
		generals: make([]*roaring.Bitmap, len(points)),
		specials: make([]*roaring.Bitmap, len(points)),
		primary:  make([]int, len(points)),
	}

	base := 0
	for _, d := range source.dimensions {
		base = max(base, d.MaxDepth()+1)
	}
	g.base = base

	for i, p := range points {
		g.index[p.Hash()] = uint32(i)
		g.weights[i] = g.normalizedWeight(p)
		g.generals[i] = roaring.New()
		g.specials[i] = roaring.New()
		g.primary[i] = -1
	}

	for i, special := range points {
		for j, general := range points {
			if i == j || !g.generalizes(general, special) {
				continue
			}
			g.generals[i].Add(uint32(j))
			g.specials[j].Add(uint32(i))
		}
	}

	// The primary generalization is the direct (one step in one dimension)
	// generalization with the lowest weight difference; ties go to the
	// lower index, which is hash order.
	for i, special := range points {
		lowest := -1
		for _, j := range g.generals[i].ToArray() {
			if !g.isDirectGeneralization(points[j], special) {
				continue
			}
			diff := g.weights[i] - g.weights[j]
			if lowest == -1 || diff < lowest {
				lowest = diff
				g.primary[i] = int(j)
			}
		}
	}

	return g
}

// normalizedWeight folds per-dimension depths into one comparable number.
// Higher-priority dimensions contribute higher digits.
func (g *VariationGraph) normalizedWeight(p DimensionSpacePoint) int {
	weight := 0
	for _, d := range g.source.dimensions {
		value, _ := d.Value(p.Coordinate(d.Name))
		depth := 0
		if value != nil {
			depth = value.Depth
		}
		weight = weight*g.base + depth
	}
	return weight
}

func (g *VariationGraph) generalizes(general, special DimensionSpacePoint) bool {
	for _, d := range g.source.dimensions {
		if !d.IsAncestorOrSelf(general.Coordinate(d.Name), special.Coordinate(d.Name)) {
			return false
		}
	}
	return true
}

func (g *VariationGraph) isDirectGeneralization(general, special DimensionSpacePoint) bool {
	differing := 0
	for _, d := range g.source.dimensions {
		sv := special.Coordinate(d.Name)
		gv := general.Coordinate(d.Name)
		if sv == gv {
			continue
		}
		differing++
		value, ok := d.Value(sv)
		if !ok || value.Generalization != gv {
			return false
		}
	}
	return differing == 1
}

func (g *VariationGraph) indexOf(p DimensionSpacePoint) (uint32, bool) {
	i, ok := g.index[p.Hash()]
	return i, ok
}

func (g *VariationGraph) toSet(bm *roaring.Bitmap) DimensionSpacePointSet {
	points := make([]DimensionSpacePoint, 0, bm.GetCardinality())
	it := bm.Iterator()
	for it.HasNext() {
		points = append(points, g.points[it.Next()])
	}
	return NewDimensionSpacePointSet(points...)
}

// Source returns the dimension source the graph was built from.
func (g *VariationGraph) Source() *Source {
	return g.source
}

// DimensionSpacePoints returns the allowed subspace.
func (g *VariationGraph) DimensionSpacePoints() DimensionSpacePointSet {
	return NewDimensionSpacePointSet(g.points...)
}

// Contains reports whether p lies in the allowed subspace.
func (g *VariationGraph) Contains(p DimensionSpacePoint) bool {
	_, ok := g.indexOf(p)
	return ok
}

// IndexedGeneralizations returns all (transitive) generalizations of p.
func (g *VariationGraph) IndexedGeneralizations(p DimensionSpacePoint) DimensionSpacePointSet {
	i, ok := g.indexOf(p)
	if !ok {
		return DimensionSpacePointSet{}
	}
	return g.toSet(g.generals[i])
}

// IndexedSpecializations returns all (transitive) specializations of p.
func (g *VariationGraph) IndexedSpecializations(p DimensionSpacePoint) DimensionSpacePointSet {
	i, ok := g.indexOf(p)
	if !ok {
		return DimensionSpacePointSet{}
	}
	return g.toSet(g.specials[i])
}

// SpecializationSet returns origin's specializations, optionally including
// origin itself, minus anything in excluded.
//
// Returns a *PointNotFoundError if origin is outside the allowed subspace.
func (g *VariationGraph) SpecializationSet(origin DimensionSpacePoint, includeOrigin bool, excluded DimensionSpacePointSet) (DimensionSpacePointSet, error) {
	i, ok := g.indexOf(origin)
	if !ok {
		return DimensionSpacePointSet{}, &PointNotFoundError{Point: origin}
	}
	bm := g.specials[i].Clone()
	if includeOrigin {
		bm.Add(i)
	}
	for _, h := range excluded.Hashes() {
		if j, ok := g.index[h]; ok {
			bm.Remove(j)
		}
	}
	return g.toSet(bm), nil
}

// PrimaryGeneralization returns the closest direct generalization of p, or
// false if p is a root.
func (g *VariationGraph) PrimaryGeneralization(p DimensionSpacePoint) (DimensionSpacePoint, bool) {
	i, ok := g.indexOf(p)
	if !ok || g.primary[i] < 0 {
		return DimensionSpacePoint{}, false
	}
	return g.points[g.primary[i]], true
}

// RootGeneralizations returns every point that has no generalization.
func (g *VariationGraph) RootGeneralizations() DimensionSpacePointSet {
	var roots []DimensionSpacePoint
	for i, p := range g.points {
		if g.generals[i].IsEmpty() {
			roots = append(roots, p)
		}
	}
	return NewDimensionSpacePointSet(roots...)
}

// WeightedGeneralizations returns p's generalizations ordered from closest
// to farthest.
func (g *VariationGraph) WeightedGeneralizations(p DimensionSpacePoint) []WeightedPoint {
	i, ok := g.indexOf(p)
	if !ok {
		return nil
	}
	return g.weighted(i, g.generals[i])
}

// WeightedSpecializations returns p's specializations ordered from closest
// to farthest.
func (g *VariationGraph) WeightedSpecializations(p DimensionSpacePoint) []WeightedPoint {
	i, ok := g.indexOf(p)
	if !ok {
		return nil
	}
	return g.weighted(i, g.specials[i])
}

func (g *VariationGraph) weighted(i uint32, bm *roaring.Bitmap) []WeightedPoint {
	indexes := bm.ToArray()
	out := make([]WeightedPoint, len(indexes))
	for k, j := range indexes {
		diff := g.weights[i] - g.weights[j]
		if diff < 0 {
			diff = -diff
		}
		out[k] = WeightedPoint{Point: g.points[j], Weight: diff}
	}
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].Weight < out[b].Weight
	})
	return out
}

// VariantType tells what subject is relative to object: the same point, one
// of object's generalizations, one of its specializations, or a peer.
func (g *VariationGraph) VariantType(subject, object DimensionSpacePoint) VariantType {
	if subject.Equal(object) {
		return VariantTypeSame
	}
	si, sok := g.indexOf(subject)
	oi, ook := g.indexOf(object)
	if sok && ook {
		if g.generals[oi].Contains(si) {
			return VariantTypeGeneralization
		}
		if g.specials[oi].Contains(si) {
			return VariantTypeSpecialization
		}
	}
	return VariantTypePeer
}
