package intervention

import (
	"go.uber.org/zap"

	"episim/internal/model"
)

// Kappa sets of the individual measures, in home, work, community, transit order.
var (
	caseIsolationKappa  = model.Kappa{0.75, 0, 0.1, 0}
	homeQuarantineKappa = model.Kappa{2, 0, 0.25, 0}
	elderlyKappa        = model.Kappa{1.25, 0, 0.25, 0}
)

const (
	caseIsolationDays  = 7
	homeQuarantineDays = 14
	oddEvenFactor      = 0.5
	lockdownOfficeWork = 0.25
)

// Engine writes per-individual kappa values for the policy in force.
type Engine struct {
	stepsPerDay int
	log         *zap.Logger
	current     string
}

// NewEngine returns an engine for the given clock resolution.
func NewEngine(stepsPerDay int, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{stepsPerDay: stepsPerDay, log: log}
}

// Apply resets every kappa and quarantine flag and then applies p, which
// became active at timestep since, for timestep now. Incoming kappa equals
// outgoing kappa.
func (e *Engine) Apply(city *model.City, p Policy, since, now int) {
	reset(city)

	resolved := e.resolve(p, since, now)
	if name := resolved.String(); name != e.current {
		e.log.Debug("intervention phase changed",
			zap.String("from", e.current),
			zap.String("to", name),
			zap.Int("timestep", now))
		e.current = name
	}

	switch v := resolved.(type) {
	case NoIntervention:
	case Lockdown:
		e.lockdown(city)
	case Measures:
		e.measures(city, v, now)
	}

	for i := range city.Individuals {
		ind := &city.Individuals[i]
		ind.KappaIncoming = ind.Kappa
	}
}

// resolve unwraps phased policies down to the one phase in force.
func (e *Engine) resolve(p Policy, since, now int) Policy {
	ph, ok := p.(Phased)
	if !ok {
		return p
	}
	start := since
	for _, phase := range ph.Phases {
		end := start + phase.Days*e.stepsPerDay
		if now < end {
			return e.resolve(phase.Policy, start, now)
		}
		start = end
	}
	return e.resolve(ph.Then, start, now)
}

func reset(city *model.City) {
	for i := range city.Individuals {
		city.Individuals[i].Kappa = model.FullKappa()
		city.Individuals[i].Quarantined = false
	}
	for h := range city.Households {
		city.Households[h].Quarantined = false
	}
	for w := range city.Workplaces {
		city.Workplaces[w].Quarantined = false
	}
	for c := range city.Communities {
		city.Communities[c].Quarantined = false
	}
}

func (e *Engine) lockdown(city *model.City) {
	for i := range city.Individuals {
		ind := &city.Individuals[i]
		work := lockdownOfficeWork
		if ind.WorkplaceType == model.School {
			work = 0
		}
		if ind.Compliant {
			ind.Kappa = model.Kappa{2, work, 0.25, 0}
		} else {
			ind.Kappa = model.Kappa{1.25, work, 1, 0}
		}
	}
}

// measures layers the targeted interventions; later layers win.
func (e *Engine) measures(city *model.City, m Measures, now int) {
	for i := range city.Individuals {
		ind := &city.Individuals[i]
		if m.SchoolsClosed && ind.WorkplaceType == model.School {
			ind.Kappa[model.LayerWork] = 0
			ind.Kappa[model.LayerTransit] = 0
		}
		if m.OddEvenOffices && ind.WorkplaceType == model.Office {
			ind.Kappa[model.LayerWork] = oddEvenFactor
			ind.Kappa[model.LayerTransit] = oddEvenFactor
		}
		if m.ElderlyDistancing && ind.Age >= model.ElderlyAge {
			ind.Kappa = elderlyKappa
		}
	}

	if m.HomeQuarantine {
		for h := range city.Households {
			home := &city.Households[h]
			if !home.Compliant || !e.anyIsolating(city, home.Members, now, homeQuarantineDays) {
				continue
			}
			home.Quarantined = true
			for _, i := range home.Members {
				city.Individuals[i].Kappa = homeQuarantineKappa
				city.Individuals[i].Quarantined = true
			}
		}
	}

	if m.CaseIsolation {
		for i := range city.Individuals {
			ind := &city.Individuals[i]
			if ind.Compliant && e.isolating(ind, now, caseIsolationDays) {
				ind.Kappa = caseIsolationKappa
				ind.Quarantined = true
			}
		}
	}
}

// isolating reports whether ind is a detected case between 1 and 1+days
// days past symptom onset.
func (e *Engine) isolating(ind *model.Individual, now, days int) bool {
	if !ind.Detected {
		return false
	}
	spd := float64(e.stepsPerDay)
	since := float64(now) - ind.SymptomOnset
	return since >= spd && since <= float64(1+days)*spd
}

func (e *Engine) anyIsolating(city *model.City, members []int, now, days int) bool {
	for _, i := range members {
		if e.isolating(&city.Individuals[i], now, days) {
			return true
		}
	}
	return false
}
