package geo

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
)

// SRID is the spatial reference of all stored geometries (WGS84).
const SRID = 4326

// NewMultiLine builds a MultiLineString with SRID 4326 from lng/lat chains.
// Chains with fewer than 2 coordinates are skipped.
func NewMultiLine(chains [][]geom.Coord) (*geom.MultiLineString, error) {
	mls := geom.NewMultiLineString(geom.XY)
	for _, c := range chains {
		if len(c) < 2 {
			continue
		}
		ls, err := geom.NewLineString(geom.XY).SetCoords(c)
		if err != nil {
			return nil, eris.Wrap(err, "geo: build line string")
		}
		if err := mls.Push(ls); err != nil {
			return nil, eris.Wrap(err, "geo: push line string")
		}
	}
	return mls.SetSRID(SRID), nil
}

// EncodeEWKB marshals g as little-endian EWKB.
func EncodeEWKB(g geom.T) ([]byte, error) {
	data, err := ewkb.Marshal(g, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "geo: encode EWKB")
	}
	return data, nil
}

// DecodeMultiLine parses EWKB into a MultiLineString. A plain LineString is
// promoted to a single-member MultiLineString.
func DecodeMultiLine(data []byte) (*geom.MultiLineString, error) {
	g, err := ewkb.Unmarshal(data)
	if err != nil {
		return nil, eris.Wrap(err, "geo: decode EWKB")
	}
	switch v := g.(type) {
	case *geom.MultiLineString:
		return v, nil
	case *geom.LineString:
		mls := geom.NewMultiLineString(geom.XY).SetSRID(v.SRID())
		if err := mls.Push(v); err != nil {
			return nil, eris.Wrap(err, "geo: promote line string")
		}
		return mls, nil
	default:
		return nil, eris.Errorf("geo: unsupported geometry %T", g)
	}
}

// Longest returns the longest member line, or nil for an empty geometry.
func Longest(mls *geom.MultiLineString) *geom.LineString {
	var best *geom.LineString
	var bestLen float64
	for i := 0; i < mls.NumLineStrings(); i++ {
		ls := mls.LineString(i)
		if l := LineLengthKM(ls); best == nil || l > bestLen {
			best, bestLen = ls, l
		}
	}
	return best
}
