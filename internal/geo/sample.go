package geo

import (
	"github.com/twpayne/go-geom"
)

// Point is a lat/lng pair.
type Point struct {
	Lat float64 `json:"latitude"`
	Lng float64 `json:"longitude"`
}

// Sample returns points spaced everyMeters apart along a lng/lat line. Both
// endpoints are always included. When max > 1 and more points would be
// produced, the result is evenly down-sampled to max points.
func Sample(ls *geom.LineString, everyMeters float64, max int) []Point {
	if ls == nil || ls.NumCoords() == 0 {
		return nil
	}
	n := ls.NumCoords()
	first := ls.Coord(0)
	out := []Point{{Lat: first.Y(), Lng: first.X()}}
	if n == 1 {
		return out
	}

	if everyMeters > 0 {
		step := everyMeters / 1000
		next := step
		var walked float64
		for i := 1; i < n; i++ {
			a, b := ls.Coord(i-1), ls.Coord(i)
			seg := Haversine(a.Y(), a.X(), b.Y(), b.X())
			for seg > 0 && next <= walked+seg {
				f := (next - walked) / seg
				out = append(out, Point{
					Lat: a.Y() + f*(b.Y()-a.Y()),
					Lng: a.X() + f*(b.X()-a.X()),
				})
				next += step
			}
			walked += seg
		}
	}

	last := ls.Coord(n - 1)
	end := Point{Lat: last.Y(), Lng: last.X()}
	if out[len(out)-1] != end {
		out = append(out, end)
	}

	if max > 1 && len(out) > max {
		out = downsample(out, max)
	}
	return out
}

func downsample(pts []Point, max int) []Point {
	res := make([]Point, max)
	last := len(pts) - 1
	for i := 0; i < max; i++ {
		res[i] = pts[i*last/(max-1)]
	}
	return res
}
