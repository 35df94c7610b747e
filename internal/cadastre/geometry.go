package cadastre

import (
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"github.com/twpayne/go-geom/xy"
)

// StorageSRID is the CRS of stored boundaries, Slovenian D96/TM.
const StorageSRID = 3794

// EncodeBoundary converts a parcel boundary to EWKB bytes for storage.
// Returns nil, nil for a nil boundary.
func EncodeBoundary(p *geom.Polygon, srid int) ([]byte, error) {
	if p == nil {
		return nil, nil
	}
	data, err := ewkb.Marshal(p.SetSRID(srid), ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "cadastre: encode boundary")
	}
	return data, nil
}

// DecodeBoundary parses EWKB bytes into a polygon. Registry exports carry
// plain polygons only; anything else is a loader bug upstream.
func DecodeBoundary(data []byte) (*geom.Polygon, error) {
	if len(data) == 0 {
		return nil, nil
	}
	g, err := ewkb.Unmarshal(data)
	if err != nil {
		return nil, eris.Wrap(err, "cadastre: decode boundary")
	}
	poly, ok := g.(*geom.Polygon)
	if !ok {
		return nil, eris.Errorf("cadastre: boundary is %T, want polygon", g)
	}
	return poly, nil
}

// coverEps absorbs floating-point jitter when deciding whether a point sits
// exactly on a boundary (storage CRS units are meters).
const coverEps = 1e-9

// PolygonCoversPoint reports whether the point lies inside the polygon or on
// its boundary. Points inside a hole are not covered; points on a hole's
// ring are.
func PolygonCoversPoint(poly *geom.Polygon, c geom.Coord) bool {
	if poly == nil || poly.NumLinearRings() == 0 {
		return false
	}
	if BoundaryDistance(poly, c) <= coverEps {
		return true
	}
	layout := poly.Layout()
	if !xy.IsPointInRing(layout, c, poly.LinearRing(0).FlatCoords()) {
		return false
	}
	for i := 1; i < poly.NumLinearRings(); i++ {
		if xy.IsPointInRing(layout, c, poly.LinearRing(i).FlatCoords()) {
			return false
		}
	}
	return true
}

// BoundaryDistance returns the distance from the point to the nearest ring
// of the polygon. Zero means the point is on the boundary; interior points
// still report their distance to the ring, so callers that need PostGIS-style
// ST_Distance semantics must check containment first.
func BoundaryDistance(poly *geom.Polygon, c geom.Coord) float64 {
	if poly == nil || poly.NumLinearRings() == 0 {
		return math.Inf(1)
	}
	layout := poly.Layout()
	min := math.Inf(1)
	for i := 0; i < poly.NumLinearRings(); i++ {
		d := xy.DistanceFromPointToLineString(layout, c, poly.LinearRing(i).FlatCoords())
		if d < min {
			min = d
		}
	}
	return min
}

// DistanceToParcel mirrors ST_Distance for a parcel boundary: zero when the
// point is covered, boundary distance otherwise.
func DistanceToParcel(poly *geom.Polygon, c geom.Coord) float64 {
	if PolygonCoversPoint(poly, c) {
		return 0
	}
	return BoundaryDistance(poly, c)
}
