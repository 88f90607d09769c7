// Package seeding introduces the initial and ongoing infections of a run.
package seeding

import (
	"fmt"
	"math"
	"math/rand/v2"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat/distuv"

	"episim/internal/disease"
	"episim/internal/model"
	"episim/internal/population"
)

// Mode selects one seeding strategy per run.
type Mode string

const (
	Wardwise       Mode = "wardwise"
	Dataset        Mode = "dataset"
	InfectionRates Mode = "infection_rates"
	ExpRate        Mode = "exp_rate"
)

// Modes lists the valid modes.
func Modes() []Mode { return []Mode{Wardwise, Dataset, InfectionRates, ExpRate} }

// Options configure the seeder. Only the fields of the selected mode are read.
type Options struct {
	Mode Mode

	// wardwise
	InitFrac      float64
	UniformWards  bool
	WardFractions []population.WardFraction // by sorted ward position

	// dataset
	People []population.PersonRecord

	// infection_rates
	Curve         []float64 // seeds per day
	ScalingFactor float64

	// exp_rate
	StartDay     float64
	DurationDays float64
	DoublingDays float64
	RateScale    float64
}

// DefaultOptions returns wardwise seeding with the calibrated constants of
// the other modes filled in.
func DefaultOptions() Options {
	return Options{
		Mode:          Wardwise,
		InitFrac:      0.001,
		UniformWards:  true,
		ScalingFactor: 1.5,
		StartDay:      0,
		DurationDays:  22,
		DoublingDays:  4.18,
		RateScale:     1,
	}
}

// Seeder applies one seeding mode to a city.
type Seeder struct {
	opts        Options
	stepsPerDay int
	rng         *rand.Rand
	log         *zap.Logger
}

// New validates opts for its mode.
func New(opts Options, stepsPerDay int, rng *rand.Rand, log *zap.Logger) (*Seeder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	switch opts.Mode {
	case Wardwise:
		if opts.InitFrac < 0 || opts.InitFrac > 1 {
			return nil, fmt.Errorf("seeding: init fraction %v outside [0,1]", opts.InitFrac)
		}
	case Dataset:
	case InfectionRates:
		if opts.ScalingFactor < 0 {
			return nil, fmt.Errorf("seeding: negative scaling factor %v", opts.ScalingFactor)
		}
	case ExpRate:
		if opts.DoublingDays <= 0 {
			return nil, fmt.Errorf("seeding: doubling time must be positive, got %v", opts.DoublingDays)
		}
	default:
		return nil, fmt.Errorf("seeding: unknown mode %q", opts.Mode)
	}
	return &Seeder{opts: opts, stepsPerDay: stepsPerDay, rng: rng, log: log}, nil
}

// Initial seeds the city before the first timestep and returns the number
// of individuals seeded.
func (s *Seeder) Initial(city *model.City) (int, error) {
	switch s.opts.Mode {
	case Wardwise:
		return s.wardwise(city), nil
	case Dataset:
		return s.dataset(city)
	}
	return 0, nil
}

// Step seeds the infections due at timestep now.
func (s *Seeder) Step(city *model.City, now int) int {
	var mean float64
	switch s.opts.Mode {
	case InfectionRates:
		day := now / s.stepsPerDay
		if day >= len(s.opts.Curve) {
			return 0
		}
		mean = s.opts.Curve[day] / float64(s.stepsPerDay) * s.opts.ScalingFactor
	case ExpRate:
		spd := float64(s.stepsPerDay)
		t := float64(now) - s.opts.StartDay*spd
		if t < 0 || t >= s.opts.DurationDays*spd {
			return 0
		}
		mean = s.opts.RateScale * math.Pow(2, t/(s.opts.DoublingDays*spd))
	default:
		return 0
	}
	if mean <= 0 {
		return 0
	}
	want := int(distuv.Poisson{Lambda: mean, Src: s.rng}.Rand())
	return s.expose(city, want, now)
}

// expose rejection-samples uniformly random individuals until want
// susceptibles are exposed at time now, or none remain.
func (s *Seeder) expose(city *model.City, want, now int) int {
	if want == 0 {
		return 0
	}
	avail := city.StateCounts()[model.Susceptible]
	if want > avail {
		s.log.Warn("not enough susceptibles left to seed",
			zap.Int("requested", want),
			zap.Int("available", avail),
			zap.Int("timestep", now))
		want = avail
	}
	n := len(city.Individuals)
	for seeded := 0; seeded < want; {
		ind := &city.Individuals[s.rng.IntN(n)]
		if ind.State != model.Susceptible {
			continue
		}
		disease.Expose(ind, float64(now))
		seeded++
	}
	return want
}

func (s *Seeder) wardwise(city *model.City) int {
	prob := make([]float64, len(city.Communities))
	for c := range prob {
		prob[c] = s.opts.InitFrac
		if s.opts.UniformWards || c >= len(s.opts.WardFractions) {
			continue
		}
		f := s.opts.WardFractions[c]
		if f.Population > 0 {
			prob[c] = s.opts.InitFrac * f.Quarantined / f.Population
		} else {
			prob[c] = 0
		}
	}

	seeded := 0
	for i := range city.Individuals {
		ind := &city.Individuals[i]
		if ind.State != model.Susceptible || s.rng.Float64() >= prob[ind.Community] {
			continue
		}
		disease.Expose(ind, -ind.IncubationPeriod*s.rng.Float64())
		seeded++
	}
	return seeded
}

func (s *Seeder) dataset(city *model.City) (int, error) {
	if len(s.opts.People) != len(city.Individuals) {
		return 0, fmt.Errorf("seeding: dataset has %d records for %d individuals", len(s.opts.People), len(city.Individuals))
	}
	spd := float64(s.stepsPerDay)
	seeded := 0
	for i, rec := range s.opts.People {
		if rec.SeedState == nil {
			continue
		}
		state := model.State(*rec.SeedState)
		if state < 0 || int(state) >= model.NumStates {
			return 0, fmt.Errorf("seeding: record %d: infection_status %d out of range", i, *rec.SeedState)
		}
		if state == model.Susceptible {
			continue
		}
		ind := &city.Individuals[i]
		ind.State = state
		ind.TimeOfInfection = 0
		if state == model.Exposed && rec.SeedTime != nil {
			ind.TimeOfInfection = *rec.SeedTime*spd - ind.IncubationPeriod
		}
		ind.Infective = state == model.PreSymptomatic || state == model.Symptomatic
		seeded++
	}
	return seeded, nil
}
