package geo

import (
	"math"

	"github.com/twpayne/go-geom"
)

const earthRadiusKM = 6371.0

// Haversine returns the great-circle distance in kilometers between two points.
func Haversine(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return earthRadiusKM * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}

// LineLengthKM returns the length of a lng/lat line string in kilometers.
func LineLengthKM(ls *geom.LineString) float64 {
	if ls == nil {
		return 0
	}
	var total float64
	n := ls.NumCoords()
	for i := 1; i < n; i++ {
		a, b := ls.Coord(i-1), ls.Coord(i)
		total += Haversine(a.Y(), a.X(), b.Y(), b.X())
	}
	return total
}

// MultiLineLengthKM returns the summed length of all lines in kilometers.
func MultiLineLengthKM(mls *geom.MultiLineString) float64 {
	if mls == nil {
		return 0
	}
	var total float64
	for i := 0; i < mls.NumLineStrings(); i++ {
		total += LineLengthKM(mls.LineString(i))
	}
	return total
}
