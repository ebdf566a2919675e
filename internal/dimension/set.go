package dimension

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// DimensionSpacePointSet is an immutable set of points keyed by hash.
// The zero value is the empty set.
type DimensionSpacePointSet struct {
	points map[string]DimensionSpacePoint
}

// NewDimensionSpacePointSet creates a set from points. Duplicates collapse.
func NewDimensionSpacePointSet(points ...DimensionSpacePoint) DimensionSpacePointSet {
	set := DimensionSpacePointSet{points: make(map[string]DimensionSpacePoint, len(points))}
	for _, p := range points {
		set.points[p.Hash()] = p
	}
	return set
}

// Len returns the number of points.
func (s DimensionSpacePointSet) Len() int {
	return len(s.points)
}

// IsEmpty reports whether the set has no points.
func (s DimensionSpacePointSet) IsEmpty() bool {
	return len(s.points) == 0
}

// Contains reports whether p is in the set.
func (s DimensionSpacePointSet) Contains(p DimensionSpacePoint) bool {
	_, ok := s.points[p.Hash()]
	return ok
}

// ContainsHash reports whether a point with the given hash is in the set.
func (s DimensionSpacePointSet) ContainsHash(hash string) bool {
	_, ok := s.points[hash]
	return ok
}

// Points returns the points sorted by hash for deterministic iteration.
func (s DimensionSpacePointSet) Points() []DimensionSpacePoint {
	hashes := s.Hashes()
	points := make([]DimensionSpacePoint, len(hashes))
	for i, h := range hashes {
		points[i] = s.points[h]
	}
	return points
}

// Hashes returns the point hashes in sorted order.
func (s DimensionSpacePointSet) Hashes() []string {
	hashes := make([]string, 0, len(s.points))
	for h := range s.points {
		hashes = append(hashes, h)
	}
	sort.Strings(hashes)
	return hashes
}

// Add returns a new set with p added.
func (s DimensionSpacePointSet) Add(p DimensionSpacePoint) DimensionSpacePointSet {
	result := s.clone()
	result.points[p.Hash()] = p
	return result
}

// Union returns the points in s or other.
func (s DimensionSpacePointSet) Union(other DimensionSpacePointSet) DimensionSpacePointSet {
	result := s.clone()
	for h, p := range other.points {
		result.points[h] = p
	}
	return result
}

// Intersect returns the points in both s and other.
func (s DimensionSpacePointSet) Intersect(other DimensionSpacePointSet) DimensionSpacePointSet {
	result := DimensionSpacePointSet{points: make(map[string]DimensionSpacePoint)}
	for h, p := range s.points {
		if _, ok := other.points[h]; ok {
			result.points[h] = p
		}
	}
	return result
}

// Difference returns the points in s but not in other.
func (s DimensionSpacePointSet) Difference(other DimensionSpacePointSet) DimensionSpacePointSet {
	result := DimensionSpacePointSet{points: make(map[string]DimensionSpacePoint)}
	for h, p := range s.points {
		if _, ok := other.points[h]; !ok {
			result.points[h] = p
		}
	}
	return result
}

// Equal reports whether both sets contain the same points.
func (s DimensionSpacePointSet) Equal(other DimensionSpacePointSet) bool {
	if len(s.points) != len(other.points) {
		return false
	}
	for h := range s.points {
		if _, ok := other.points[h]; !ok {
			return false
		}
	}
	return true
}

// String lists the points' canonical JSON, sorted.
func (s DimensionSpacePointSet) String() string {
	parts := make([]string, 0, len(s.points))
	for _, p := range s.points {
		parts = append(parts, p.String())
	}
	sort.Strings(parts)
	return "[" + strings.Join(parts, ",") + "]"
}

// MarshalJSON encodes the set as an array of coordinate objects sorted by hash.
func (s DimensionSpacePointSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Points())
}

// UnmarshalJSON decodes an array of coordinate objects.
func (s *DimensionSpacePointSet) UnmarshalJSON(data []byte) error {
	var points []DimensionSpacePoint
	if err := json.Unmarshal(data, &points); err != nil {
		return fmt.Errorf("decode dimension space point set: %w", err)
	}
	*s = NewDimensionSpacePointSet(points...)
	return nil
}

func (s DimensionSpacePointSet) clone() DimensionSpacePointSet {
	result := DimensionSpacePointSet{points: make(map[string]DimensionSpacePoint, len(s.points))}
	for h, p := range s.points {
		result.points[h] = p
	}
	return result
}

// OriginSet is a set of origin points.
type OriginSet struct {
	DimensionSpacePointSet
}

// NewOriginSet creates a set of origins.
func NewOriginSet(origins ...OriginDimensionSpacePoint) OriginSet {
	points := make([]DimensionSpacePoint, len(origins))
	for i, o := range origins {
		points[i] = o.ToDimensionSpacePoint()
	}
	return OriginSet{NewDimensionSpacePointSet(points...)}
}

// Origins returns the origins sorted by hash.
func (s OriginSet) Origins() []OriginDimensionSpacePoint {
	points := s.Points()
	origins := make([]OriginDimensionSpacePoint, len(points))
	for i, p := range points {
		origins[i] = OriginFromPoint(p)
	}
	return origins
}

// ContainsOrigin reports whether the origin is in the set.
func (s OriginSet) ContainsOrigin(o OriginDimensionSpacePoint) bool {
	return s.Contains(o.ToDimensionSpacePoint())
}

// ToPointSet returns the origins as plain points.
func (s OriginSet) ToPointSet() DimensionSpacePointSet {
	return s.DimensionSpacePointSet
}
