package geo

import "math"

// TileBBox returns the lng/lat bounds of slippy-map tile z/x/y.
func TileBBox(z, x, y int) BBox {
	n := math.Exp2(float64(z))
	return BBox{
		MinLng: float64(x)/n*360 - 180,
		MaxLng: float64(x+1)/n*360 - 180,
		MinLat: tileLat(float64(y+1), n),
		MaxLat: tileLat(float64(y), n),
	}
}

func tileLat(y, n float64) float64 {
	return math.Atan(math.Sinh(math.Pi*(1-2*y/n))) * 180 / math.Pi
}
