package model

import "math"

const earthRadiusKm = 6371

// Hill-function parameters of the distance kernel, in km.
const (
	kernelA = 10.751
	kernelB = 5.384
)

// Location is a point in degrees.
type Location struct {
	Lat float64
	Lon float64
}

// Distance returns the great-circle distance in km between a and b.
func Distance(a, b Location) float64 {
	if a == b {
		return 0
	}
	lat1 := math.Pi * a.Lat / 180
	lat2 := math.Pi * b.Lat / 180
	theta := math.Pi * (a.Lon - b.Lon) / 180
	d := 1 - (math.Sin(lat1)*math.Sin(lat2) + math.Cos(lat1)*math.Cos(lat2)*math.Cos(theta))
	if d < 0 {
		d = 0
	}
	return math.Sqrt(2*d) * earthRadiusKm
}

// Kernel is the distance decay 1/(1+(d/a)^b).
func Kernel(d float64) float64 {
	return 1 / (1 + math.Pow(d/kernelA, kernelB))
}
