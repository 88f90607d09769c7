package disease

import (
	"math"
	"math/rand/v2"

	"episim/internal/model"
)

// Band probabilities of moving to hospital, to critical care and to death.
type bandRates struct {
	hospitalise float64
	critical    float64
	death       float64
}

var transitionTable = [model.NumAgeBands]bandRates{
	{0.001, 0.05, 0.4},
	{0.003, 0.05, 0.4},
	{0.012, 0.05, 0.5},
	{0.032, 0.05, 0.5},
	{0.049, 0.063, 0.5},
	{0.102, 0.122, 0.5},
	{0.166, 0.274, 0.5},
	{0.243, 0.432, 0.5},
	{0.273, 0.709, 0.5},
}

// Transition describes what Progress did to one individual.
type Transition struct {
	From     model.State
	To       model.State
	Detected bool // newly detected on this transition
}

// Changed reports whether the state moved.
func (t Transition) Changed() bool { return t.From != t.To }

// Progress applies the rule for the individual's current state at timestep
// now. At most one transition happens per call.
func Progress(ind *model.Individual, now int, p Params, rng *rand.Rand) Transition {
	tr := Transition{From: ind.State, To: ind.State}
	elapsed := float64(now) - ind.TimeOfInfection
	rates := transitionTable[ind.AgeBand]

	inc := ind.IncubationPeriod
	asym := inc + ind.AsymptomaticPeriod
	symp := asym + ind.SymptomaticPeriod
	hosp := symp + ind.HospitalRegularPeriod
	crit := hosp + ind.HospitalCriticalPeriod

	switch ind.State {
	case model.Susceptible:
		if rng.Float64() < 1-math.Exp(-ind.Lambda/float64(p.StepsPerDay)) {
			Expose(ind, float64(now))
			tr.To = model.Exposed
		}

	case model.Exposed:
		if elapsed >= inc {
			ind.State = model.PreSymptomatic
			ind.Infective = true
			tr.To = model.PreSymptomatic
		}

	case model.PreSymptomatic:
		if elapsed >= asym {
			if rng.Float64() < p.SymptomaticFraction {
				ind.State = model.Symptomatic
				ind.Infective = true
				ind.SymptomOnset = float64(now)
				if rng.Float64() < p.CaseDetectionRatio {
					ind.Detected = true
					tr.Detected = true
				}
			} else {
				toRecovered(ind)
			}
			tr.To = ind.State
		}

	case model.Symptomatic:
		if elapsed >= symp {
			if rng.Float64() < rates.hospitalise {
				ind.State = model.Hospitalised
				ind.Infective = false
				if !ind.Detected {
					ind.Detected = true
					tr.Detected = true
				}
			} else {
				toRecovered(ind)
			}
			tr.To = ind.State
		}

	case model.Hospitalised:
		if elapsed >= hosp {
			if rng.Float64() < rates.critical {
				ind.State = model.Critical
				ind.Infective = false
			} else {
				toRecovered(ind)
			}
			tr.To = ind.State
		}

	case model.Critical:
		if elapsed >= crit {
			if rng.Float64() < rates.death {
				ind.State = model.Dead
				ind.Infective = false
			} else {
				toRecovered(ind)
			}
			tr.To = ind.State
		}
	}
	return tr
}

// Expose moves a susceptible individual to exposed at time t.
func Expose(ind *model.Individual, t float64) {
	ind.State = model.Exposed
	ind.TimeOfInfection = t
	ind.Infective = false
}

func toRecovered(ind *model.Individual) {
	ind.State = model.Recovered
	ind.Infective = false
}

// KappaT is the stage multiplier of infectiousness at timestep now.
func KappaT(ind *model.Individual, now int) float64 {
	if !ind.Infective {
		return 0
	}
	elapsed := float64(now) - ind.TimeOfInfection
	asym := ind.IncubationPeriod + ind.AsymptomaticPeriod
	switch {
	case elapsed < ind.IncubationPeriod || elapsed > asym+ind.SymptomaticPeriod:
		return 0
	case elapsed < asym:
		return 1
	default:
		return 1.5
	}
}

// Psi is the absenteeism factor: 0 in the first day of infectiousness,
// then 0.1 for school-goers and 0.5 for everybody else.
func Psi(ind *model.Individual, now, stepsPerDay int) float64 {
	if !ind.Infective {
		return 0
	}
	if float64(now)-(ind.TimeOfInfection+ind.IncubationPeriod) < float64(stepsPerDay) {
		return 0
	}
	if ind.WorkplaceType == model.School {
		return 0.1
	}
	return 0.5
}

// Outgoing returns the per-layer hazard ind emits with its current kappa.
func Outgoing(ind *model.Individual) model.Hazard {
	if !ind.Infective {
		return model.Hazard{}
	}
	base := ind.KappaT * ind.Infectiousness
	s := ind.Severity
	absent := 1 + s*(2*ind.PsiT-1)
	return model.Hazard{
		model.LayerHome:      base * (1 + s) * ind.Kappa[model.LayerHome],
		model.LayerWork:      base * absent * ind.Kappa[model.LayerWork],
		model.LayerCommunity: base * ind.KernelDist * (1 + s) * ind.Kappa[model.LayerCommunity],
		model.LayerTransit:   base * ind.DistHomeWork * absent * ind.Kappa[model.LayerTransit],
	}
}
