// Package assemble merges the listing and spatial paths into one response
// shape: a ranked, truncated match list plus a WGS84 GeoJSON collection of
// the returned parcel boundaries, styled by confidence so callers can render
// results without recomputing anything.
package assemble

import (
	"fmt"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/gurs-tools/kataster-cli/internal/cadastre"
	"github.com/gurs-tools/kataster-cli/internal/match"
	"github.com/gurs-tools/kataster-cli/internal/spatial"
)

// Confidence bands for rendering hints.
const (
	colorHigh   = "#22c55e"
	colorMedium = "#eab308"
	colorLow    = "#ef4444"

	opacityExact       = 0.7
	opacityApproximate = 0.5
)

// ParcelSummary is the parcel subset exposed in responses.
type ParcelSummary struct {
	ID               int64   `json:"id"`
	ParcelNumber     string  `json:"parcel_number"`
	MunicipalityCode string  `json:"municipality_code"`
	MunicipalityName string  `json:"municipality_name"`
	AreaM2           float64 `json:"area_m2"`
}

// BuildingSummary is the building subset exposed in responses.
type BuildingSummary struct {
	ID               int64    `json:"id"`
	ConstructionYear *int     `json:"construction_year,omitempty"`
	NetFloorAreaM2   *float64 `json:"net_floor_area_m2,omitempty"`
	Address          string   `json:"address,omitempty"`
}

// Match is one ranked entry of a response.
type Match struct {
	Parcel         ParcelSummary      `json:"parcel"`
	Building       *BuildingSummary   `json:"building,omitempty"`
	Confidence     float64            `json:"confidence"`
	Score          float64            `json:"score"`
	ScoreBreakdown map[string]float64 `json:"score_breakdown,omitempty"`
	Approximate    bool               `json:"approximate,omitempty"`
	DistanceM      float64            `json:"distance_m,omitempty"`
}

// Response is the shared output of both query paths. Success is false when
// the match list is empty, which is a valid outcome, not an error.
type Response struct {
	Success  bool                       `json:"success"`
	Message  string                     `json:"message"`
	Matches  []Match                    `json:"matches"`
	Geometry *geojson.FeatureCollection `json:"geometry_collection,omitempty"`
	Count    int                        `json:"count"`
}

// Assembler builds responses, truncating to a configured maximum.
type Assembler struct {
	maxResults int
}

// New returns an Assembler. maxResults < 1 means no truncation.
func New(maxResults int) *Assembler {
	return &Assembler{maxResults: maxResults}
}

// FromMatches assembles the listing-path response from an already ranked
// candidate list.
func (a *Assembler) FromMatches(cands []match.MatchCandidate) *Response {
	if a.maxResults > 0 && len(cands) > a.maxResults {
		cands = cands[:a.maxResults]
	}
	if len(cands) == 0 {
		return &Response{Message: "no parcels matched the listing", Matches: []Match{}}
	}

	resp := &Response{
		Success: true,
		Message: fmt.Sprintf("found %d probable parcel match(es)", len(cands)),
		Matches: make([]Match, 0, len(cands)),
	}
	fc := &geojson.FeatureCollection{}
	for rank, mc := range cands {
		m := Match{
			Parcel:         summarizeParcel(mc.Parcel),
			Confidence:     mc.Confidence,
			Score:          mc.Score,
			ScoreBreakdown: mc.Scores,
			Approximate:    mc.Approximate,
		}
		if mc.Building != nil {
			m.Building = summarizeBuilding(*mc.Building)
		}
		resp.Matches = append(resp.Matches, m)
		addBoundaryFeature(fc, rank+1, mc.Parcel, mc.Confidence, mc.Approximate)
	}
	resp.Count = len(resp.Matches)
	if len(fc.Features) > 0 {
		resp.Geometry = fc
	}
	return resp
}

// FromResolution assembles the spatial-path response. A nil resolution is
// the "no parcel within search radius" outcome.
func (a *Assembler) FromResolution(res *spatial.Resolution) *Response {
	if res == nil {
		return &Response{Message: "no parcel found at or near the given point", Matches: []Match{}}
	}

	m := Match{
		Parcel:      summarizeParcel(res.Parcel),
		Confidence:  res.Confidence,
		Approximate: res.Approximate,
		DistanceM:   res.DistanceM,
	}
	if len(res.Buildings) > 0 {
		m.Building = summarizeBuilding(res.Buildings[0])
	}

	msg := fmt.Sprintf("point resolved to parcel %s (%s)", res.Parcel.ParcelNumber, res.Parcel.MunicipalityCode)
	if res.Approximate {
		msg = fmt.Sprintf("point near parcel %s (%s), resolved approximately", res.Parcel.ParcelNumber, res.Parcel.MunicipalityCode)
	}

	resp := &Response{
		Success: true,
		Message: msg,
		Matches: []Match{m},
		Count:   1,
	}
	fc := &geojson.FeatureCollection{}
	addBoundaryFeature(fc, 1, res.Parcel, res.Confidence, res.Approximate)
	if len(fc.Features) > 0 {
		resp.Geometry = fc
	}
	return resp
}

func summarizeParcel(p cadastre.Parcel) ParcelSummary {
	return ParcelSummary{
		ID:               p.ID,
		ParcelNumber:     p.ParcelNumber,
		MunicipalityCode: p.MunicipalityCode,
		MunicipalityName: p.MunicipalityName,
		AreaM2:           p.AreaM2,
	}
}

func summarizeBuilding(b cadastre.Building) *BuildingSummary {
	return &BuildingSummary{
		ID:               b.ID,
		ConstructionYear: b.ConstructionYear,
		NetFloorAreaM2:   b.NetFloorAreaM2,
		Address:          b.FullAddress(),
	}
}

func addBoundaryFeature(fc *geojson.FeatureCollection, rank int, p cadastre.Parcel, confidence float64, approximate bool) {
	if p.Boundary == nil {
		return
	}
	opacity := opacityExact
	if approximate || confidence < 90 {
		opacity = opacityApproximate
	}
	fc.Features = append(fc.Features, &geojson.Feature{
		ID:       fmt.Sprintf("parcel-%d", p.ID),
		Geometry: boundaryToWGS84(p.Boundary),
		Properties: map[string]interface{}{
			"rank":          rank,
			"parcel_number": p.ParcelNumber,
			"municipality":  p.MunicipalityCode,
			"confidence":    confidence,
			"approximate":   approximate,
			"color":         ConfidenceColor(confidence),
			"fill_opacity":  opacity,
		},
	})
}

// ConfidenceColor maps a confidence to its rendering color band.
func ConfidenceColor(confidence float64) string {
	switch {
	case confidence >= 90:
		return colorHigh
	case confidence >= 70:
		return colorMedium
	default:
		return colorLow
	}
}

// boundaryToWGS84 reprojects a stored boundary from the national grid to
// WGS84 for GeoJSON output.
func boundaryToWGS84(p *geom.Polygon) *geom.Polygon {
	flat := append([]float64(nil), p.FlatCoords()...)
	stride := p.Stride()
	for i := 0; i+1 < len(flat); i += stride {
		lon, lat := spatial.ToWGS84(flat[i], flat[i+1])
		flat[i], flat[i+1] = lon, lat
	}
	out := geom.NewPolygonFlat(p.Layout(), flat, append([]int(nil), p.Ends()...))
	return out.SetSRID(4326)
}
