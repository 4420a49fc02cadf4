package geo

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// BBox is a WGS84 bounding box in degrees.
type BBox struct {
	MinLng float64 `json:"min_lng"`
	MinLat float64 `json:"min_lat"`
	MaxLng float64 `json:"max_lng"`
	MaxLat float64 `json:"max_lat"`
}

// ParseBBox parses "minLng,minLat,maxLng,maxLat" (west,south,east,north).
func ParseBBox(s string) (BBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return BBox{}, eris.Errorf("geo: bbox %q must have 4 comma-separated values", s)
	}
	var vals [4]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return BBox{}, eris.Wrapf(err, "geo: parse bbox value %q", p)
		}
		vals[i] = v
	}
	b := BBox{MinLng: vals[0], MinLat: vals[1], MaxLng: vals[2], MaxLat: vals[3]}
	if err := b.Validate(); err != nil {
		return BBox{}, err
	}
	return b, nil
}

// Validate checks coordinate ranges and ordering.
func (b BBox) Validate() error {
	var errs []string
	if b.MinLng < -180 || b.MaxLng > 180 {
		errs = append(errs, "longitude must be within [-180, 180]")
	}
	if b.MinLat < -90 || b.MaxLat > 90 {
		errs = append(errs, "latitude must be within [-90, 90]")
	}
	if b.MinLng >= b.MaxLng {
		errs = append(errs, "min_lng must be < max_lng")
	}
	if b.MinLat >= b.MaxLat {
		errs = append(errs, "min_lat must be < max_lat")
	}
	if len(errs) > 0 {
		return eris.Errorf("geo: invalid bbox: %s", strings.Join(errs, "; "))
	}
	return nil
}

// String formats the box as "minLng,minLat,maxLng,maxLat".
func (b BBox) String() string {
	return fmt.Sprintf("%s,%s,%s,%s", ftoa(b.MinLng), ftoa(b.MinLat), ftoa(b.MaxLng), ftoa(b.MaxLat))
}

func ftoa(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Contains reports whether the point lies inside the box, edges included.
func (b BBox) Contains(lat, lng float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lng >= b.MinLng && lng <= b.MaxLng
}

// Intersects reports whether the boxes share any point, edges included.
func (b BBox) Intersects(o BBox) bool {
	return b.MinLng <= o.MaxLng && o.MinLng <= b.MaxLng &&
		b.MinLat <= o.MaxLat && o.MinLat <= b.MaxLat
}

// Union returns the smallest box covering both.
func (b BBox) Union(o BBox) BBox {
	return BBox{
		MinLng: math.Min(b.MinLng, o.MinLng),
		MinLat: math.Min(b.MinLat, o.MinLat),
		MaxLng: math.Max(b.MaxLng, o.MaxLng),
		MaxLat: math.Max(b.MaxLat, o.MaxLat),
	}
}

// Center returns the midpoint of the box.
func (b BBox) Center() (lat, lng float64) {
	return (b.MinLat + b.MaxLat) / 2, (b.MinLng + b.MaxLng) / 2
}

// Overpass formats the box as Overpass QL expects it: south,west,north,east.
func (b BBox) Overpass() string {
	return fmt.Sprintf("%s,%s,%s,%s", ftoa(b.MinLat), ftoa(b.MinLng), ftoa(b.MaxLat), ftoa(b.MaxLng))
}

// BBoxOf returns the bounds of a geometry.
func BBoxOf(g geom.T) BBox {
	bounds := g.Bounds()
	if bounds.IsEmpty() {
		return BBox{}
	}
	return BBox{
		MinLng: bounds.Min(0),
		MinLat: bounds.Min(1),
		MaxLng: bounds.Max(0),
		MaxLat: bounds.Max(1),
	}
}

// Tiles splits b into cells of sizeDeg degrees, row-major from south-west.
// Cells on the north and east edges are clipped to b. A non-positive size
// returns b itself.
func Tiles(b BBox, sizeDeg float64) []BBox {
	if sizeDeg <= 0 {
		return []BBox{b}
	}
	rows := cellCount(b.MaxLat-b.MinLat, sizeDeg)
	cols := cellCount(b.MaxLng-b.MinLng, sizeDeg)
	tiles := make([]BBox, 0, rows*cols)
	for r := 0; r < rows; r++ {
		south := b.MinLat + float64(r)*sizeDeg
		north := math.Min(south+sizeDeg, b.MaxLat)
		for c := 0; c < cols; c++ {
			west := b.MinLng + float64(c)*sizeDeg
			east := math.Min(west+sizeDeg, b.MaxLng)
			tiles = append(tiles, BBox{MinLng: west, MinLat: south, MaxLng: east, MaxLat: north})
		}
	}
	return tiles
}

// cellCount is how many size steps cover span. A quotient within float noise
// of a whole number counts as exact, so no sliver cell is added at the edge.
func cellCount(span, size float64) int {
	n := span / size
	if whole := math.Round(n); math.Abs(n-whole) < 1e-9 {
		return int(whole)
	}
	return int(math.Ceil(n))
}
