package dimension

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/contentgraph/internal/ir"
)

// DimensionSpacePoint is a coordinate tuple: dimension name -> value.
//
// Points are immutable. The hash is computed once at construction from the
// canonical JSON of the coordinates and serves as the relational key in the
// projection tables.
type DimensionSpacePoint struct {
	coordinates map[string]string
	hash        string
}

// NewDimensionSpacePoint creates a point from coordinates. The map is copied.
func NewDimensionSpacePoint(coordinates map[string]string) DimensionSpacePoint {
	copied := make(map[string]string, len(coordinates))
	for k, v := range coordinates {
		copied[k] = v
	}
	return DimensionSpacePoint{
		coordinates: copied,
		hash:        ir.DimensionSpacePointHash(copied),
	}
}

// EmptyPoint is the only point of a dimensionless content repository.
func EmptyPoint() DimensionSpacePoint {
	return NewDimensionSpacePoint(nil)
}

// Hash returns the stable identity hash of the point.
func (p DimensionSpacePoint) Hash() string {
	if p.hash == "" {
		return ir.DimensionSpacePointHash(p.coordinates)
	}
	return p.hash
}

// Coordinates returns a copy of the coordinates.
func (p DimensionSpacePoint) Coordinates() map[string]string {
	copied := make(map[string]string, len(p.coordinates))
	for k, v := range p.coordinates {
		copied[k] = v
	}
	return copied
}

// Coordinate returns the value of one dimension, or "" if absent.
func (p DimensionSpacePoint) Coordinate(dimension string) string {
	return p.coordinates[dimension]
}

// Equal reports whether both points have identical coordinates.
func (p DimensionSpacePoint) Equal(other DimensionSpacePoint) bool {
	return p.Hash() == other.Hash()
}

// Vary returns a copy of p with one coordinate replaced.
func (p DimensionSpacePoint) Vary(dimension, value string) DimensionSpacePoint {
	coordinates := p.Coordinates()
	coordinates[dimension] = value
	return NewDimensionSpacePoint(coordinates)
}

// String returns the canonical JSON of the coordinates.
func (p DimensionSpacePoint) String() string {
	data, err := ir.MarshalCanonical(p.coordinatesOrEmpty())
	if err != nil {
		return fmt.Sprintf("%v", p.coordinates)
	}
	return string(data)
}

func (p DimensionSpacePoint) coordinatesOrEmpty() map[string]string {
	if p.coordinates == nil {
		return map[string]string{}
	}
	return p.coordinates
}

// MarshalJSON encodes the point as its coordinate object.
func (p DimensionSpacePoint) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.coordinatesOrEmpty())
}

// UnmarshalJSON decodes a coordinate object.
func (p *DimensionSpacePoint) UnmarshalJSON(data []byte) error {
	var coordinates map[string]string
	if err := json.Unmarshal(data, &coordinates); err != nil {
		return fmt.Errorf("decode dimension space point: %w", err)
	}
	*p = NewDimensionSpacePoint(coordinates)
	return nil
}

// ParseDimensionSpacePoint decodes a point from its JSON form.
func ParseDimensionSpacePoint(data string) (DimensionSpacePoint, error) {
	var p DimensionSpacePoint
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return DimensionSpacePoint{}, err
	}
	return p, nil
}

// OriginDimensionSpacePoint is the point at which a node's values are authored.
// It has the shape of a DimensionSpacePoint but is kept distinct so origins
// and covered points cannot be mixed up silently.
type OriginDimensionSpacePoint struct {
	DimensionSpacePoint
}

// NewOriginDimensionSpacePoint creates an origin from coordinates.
func NewOriginDimensionSpacePoint(coordinates map[string]string) OriginDimensionSpacePoint {
	return OriginDimensionSpacePoint{NewDimensionSpacePoint(coordinates)}
}

// OriginFromPoint marks a point as an origin.
func OriginFromPoint(p DimensionSpacePoint) OriginDimensionSpacePoint {
	return OriginDimensionSpacePoint{p}
}

// ToDimensionSpacePoint returns the underlying point.
func (o OriginDimensionSpacePoint) ToDimensionSpacePoint() DimensionSpacePoint {
	return o.DimensionSpacePoint
}

// Equal reports whether both origins have identical coordinates.
func (o OriginDimensionSpacePoint) Equal(other OriginDimensionSpacePoint) bool {
	return o.Hash() == other.Hash()
}
