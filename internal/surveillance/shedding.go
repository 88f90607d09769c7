// Package surveillance models wastewater monitoring of a running simulation:
// viral RNA shed by infected individuals is pooled per sewershed, sampled on
// a weekly cadence and compared with the clinically detected cases.
package surveillance

import (
	"math"

	"gonum.org/v1/gonum/integrate"
)

// Shedding is the RNA shedding curve of one infected individual. Days count
// from the time of infection.
type Shedding struct {
	StartDay             float64
	PeakDay              float64
	Sigma                float64
	DurationDays         float64
	PeakRate             float64 // copies per person and day
	AsymptomaticFraction float64 // of the symptomatic rate
}

// Params configure the sewer network, sampling and the infection estimate.
type Params struct {
	WardsPerSewershed    int
	SamplesPerWeek       float64
	CollectionEfficiency float64
	Dilution             float64
	LitresPerPerson      float64 // daily wastewater flow

	Shedding Shedding

	DetectionLimit float64 // copies per litre
	NoiseFraction  float64 // half-width of the uniform measurement error
	MinInfections  int     // below this estimate no detection ratio is reported

	// SymptomaticShare weights the mean shedding of a case used to turn a
	// concentration back into a number of infections.
	SymptomaticShare float64
}

// DefaultParams returns ten wards per sewershed sampled three times a week.
func DefaultParams() Params {
	return Params{
		WardsPerSewershed:    10,
		SamplesPerWeek:       3,
		CollectionEfficiency: 0.85,
		Dilution:             1,
		LitresPerPerson:      175,
		Shedding: Shedding{
			StartDay:             1,
			PeakDay:              6,
			Sigma:                3,
			DurationDays:         30,
			PeakRate:             1e9,
			AsymptomaticFraction: 0.6,
		},
		DetectionLimit:   1000,
		NoiseFraction:    0.15,
		MinInfections:    5,
		SymptomaticShare: 0.67,
	}
}

// Rate is the daily shedding days after infection.
func (s Shedding) Rate(days float64, symptomatic bool) float64 {
	if days < s.StartDay || days > s.DurationDays || s.Sigma <= 0 {
		return 0
	}
	z := (days - s.PeakDay) / s.Sigma
	rate := s.PeakRate * math.Exp(-0.5*z*z)
	if !symptomatic {
		rate *= s.AsymptomaticFraction
	}
	return rate
}

// MeanRate is the daily shedding of a case averaged over its shedding window,
// with symptomatic cases making up share of all cases.
func (s Shedding) MeanRate(share float64) float64 {
	width := s.DurationDays - s.StartDay
	if width <= 0 {
		return 0
	}
	const n = 301
	x := make([]float64, n)
	f := make([]float64, n)
	for i := range x {
		x[i] = s.StartDay + width*float64(i)/(n-1)
		f[i] = s.Rate(x[i], true)
	}
	mean := integrate.Trapezoidal(x, f) / width
	return mean * (share + (1-share)*s.AsymptomaticFraction)
}
