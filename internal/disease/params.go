package disease

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"episim/internal/model"
)

// Params are the per-run disease constants. Means are in days.
type Params struct {
	StepsPerDay int

	IncubationMean       float64
	AsymptomaticMean     float64
	SymptomaticMean      float64
	HospitalRegularMean  float64
	HospitalCriticalMean float64

	SymptomaticFraction float64
	CaseDetectionRatio  float64
}

// DefaultParams returns the calibrated COVID-19 defaults.
func DefaultParams() Params {
	return Params{
		StepsPerDay:          4,
		IncubationMean:       4.58,
		AsymptomaticMean:     0.5,
		SymptomaticMean:      5,
		HospitalRegularMean:  8,
		HospitalCriticalMean: 8,
		SymptomaticFraction:  0.67,
		CaseDetectionRatio:   0.8,
	}
}

const (
	incubationShape     = 2
	infectiousnessShape = 0.25
	infectiousnessScale = 4
	severityProbability = 0.5
)

// DrawTraits draws the intrinsic infectiousness and severity of ind.
func DrawTraits(ind *model.Individual, rng *rand.Rand) {
	ind.Infectiousness = gamma(infectiousnessShape, infectiousnessScale, rng)
	ind.Severity = distuv.Bernoulli{P: severityProbability, Src: rng}.Rand()
}

// DrawDurations draws the individual disease durations of ind, in timesteps.
func DrawDurations(ind *model.Individual, p Params, rng *rand.Rand) {
	spd := float64(p.StepsPerDay)
	ind.IncubationPeriod = gamma(incubationShape, p.IncubationMean*spd/incubationShape, rng)
	ind.AsymptomaticPeriod = gamma(1, p.AsymptomaticMean*spd, rng)
	ind.SymptomaticPeriod = gamma(1, p.SymptomaticMean*spd, rng)
	ind.HospitalRegularPeriod = p.HospitalRegularMean * spd
	ind.HospitalCriticalPeriod = p.HospitalCriticalMean * spd
}

// gamma draws from a shape/scale gamma; distuv takes a rate.
func gamma(shape, scale float64, rng *rand.Rand) float64 {
	if scale <= 0 {
		return 0
	}
	return distuv.Gamma{Alpha: shape, Beta: 1 / scale, Src: rng}.Rand()
}
