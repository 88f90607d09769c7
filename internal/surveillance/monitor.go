package surveillance

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat/distuv"

	"episim/internal/model"
	"episim/internal/sim"
)

// Sample is one wastewater measurement together with the clinical picture
// of its sewershed on the same day.
type Sample struct {
	Day        int
	Sewershed  int
	Population int

	Concentration float64 // copies per litre
	Normalised    float64 // concentration per 100,000 people
	Load          float64 // copies shed that day
	BelowLimit    bool

	Detected     int
	Hospitalised int
	Deaths       int

	CumulativeDetected     int
	CumulativeHospitalised int
	CumulativeDeaths       int

	Estimated      int // infections implied by the concentration
	Active         int // infections present in the simulation
	DetectionRatio float64
	UnderReporting float64
}

// Sink receives the samples of each simulated day.
type Sink interface {
	WriteSamples(samples []Sample) error
}

// Monitor is a sim.Observer that samples the wastewater of every sewershed.
// It reads the city between timesteps and never modifies it.
type Monitor struct {
	city        *model.City
	stepsPerDay int
	params      Params
	interval    int // days between samples
	perCase     float64
	noise       *distuv.Uniform
	log         *zap.Logger
	sinks       []Sink

	sheds  []Sewershed
	shedOf []int

	prevState    []model.State
	prevDetected []bool

	active         []int
	activeDetected []int
	samples        int
}

// NewMonitor partitions city into sewersheds. rng drives the measurement
// error and may be nil when p.NoiseFraction is zero.
func NewMonitor(city *model.City, stepsPerDay int, p Params, rng *rand.Rand, log *zap.Logger, sinks ...Sink) (*Monitor, error) {
	switch {
	case city == nil:
		return nil, errors.New("surveillance: nil city")
	case stepsPerDay <= 0:
		return nil, fmt.Errorf("surveillance: steps per day must be positive, got %d", stepsPerDay)
	case p.WardsPerSewershed <= 0:
		return nil, fmt.Errorf("surveillance: wards per sewershed must be positive, got %d", p.WardsPerSewershed)
	case p.SamplesPerWeek <= 0:
		return nil, fmt.Errorf("surveillance: samples per week must be positive, got %g", p.SamplesPerWeek)
	case p.LitresPerPerson <= 0 || p.Dilution <= 0:
		return nil, errors.New("surveillance: flow and dilution must be positive")
	case p.NoiseFraction > 0 && rng == nil:
		return nil, errors.New("surveillance: measurement noise needs a random source")
	}
	if log == nil {
		log = zap.NewNop()
	}

	m := &Monitor{
		city:         city,
		stepsPerDay:  stepsPerDay,
		params:       p,
		interval:     max(1, int(7/p.SamplesPerWeek)),
		perCase:      p.Shedding.MeanRate(p.SymptomaticShare),
		log:          log,
		sinks:        sinks,
		prevState:    make([]model.State, len(city.Individuals)),
		prevDetected: make([]bool, len(city.Individuals)),
	}
	if p.NoiseFraction > 0 {
		m.noise = &distuv.Uniform{Min: -p.NoiseFraction, Max: p.NoiseFraction, Src: rng}
	}
	m.sheds, m.shedOf = Partition(city, p.WardsPerSewershed, p.LitresPerPerson)
	m.active = make([]int, len(m.sheds))
	m.activeDetected = make([]int, len(m.sheds))

	for i := range city.Individuals {
		m.prevState[i] = city.Individuals[i].State
		m.prevDetected[i] = city.Individuals[i].Detected
	}
	for _, s := range m.sheds {
		log.Info("sewershed ready",
			zap.String("sewershed", s.Name),
			zap.Int("population", s.Population),
			zap.Int("wards", len(s.Wards)),
			zap.Float64("flow_litres", s.FlowLitres))
	}
	return m, nil
}

// Sewersheds returns the catchments with their cumulative counters.
func (m *Monitor) Sewersheds() []Sewershed {
	return m.sheds
}

// Observe implements sim.Observer. Clinical events are collected every
// timestep; samples are taken at the end of each day.
func (m *Monitor) Observe(res sim.StepResult) error {
	m.collectEvents()
	if !res.DayComplete {
		return nil
	}
	m.collectLoad(res.Timestep)

	var out []Sample
	for i := range m.sheds {
		s := &m.sheds[i]
		s.cumDetected += s.detected
		s.cumHospitalised += s.hospitalised
		s.cumDeaths += s.deaths
		if s.due(res.Day, m.interval) {
			s.sampled, s.lastSample = true, res.Day
			out = append(out, m.sample(res.Day, i))
		}
		s.resetDaily()
	}
	if len(out) == 0 {
		return nil
	}
	m.samples += len(out)
	for _, sample := range out {
		m.log.Debug("wastewater sample",
			zap.Int("day", sample.Day),
			zap.Int("sewershed", sample.Sewershed),
			zap.Float64("concentration", sample.Concentration),
			zap.Int("estimated", sample.Estimated),
			zap.Int("active", sample.Active))
	}
	for _, sink := range m.sinks {
		if err := sink.WriteSamples(out); err != nil {
			return fmt.Errorf("write wastewater samples of day %d: %w", res.Day, err)
		}
	}
	return nil
}

// collectEvents counts the detections, admissions and deaths since the
// previous timestep.
func (m *Monitor) collectEvents() {
	for i := range m.city.Individuals {
		ind := &m.city.Individuals[i]
		s := &m.sheds[m.shedOf[ind.Community]]
		prev := m.prevState[i]
		if ind.Detected && !m.prevDetected[i] {
			s.detected++
		}
		if ind.State == model.Hospitalised && prev != model.Hospitalised {
			s.hospitalised++
		}
		if ind.State == model.Dead && prev != model.Dead {
			s.deaths++
		}
		m.prevState[i] = ind.State
		m.prevDetected[i] = ind.Detected
	}
}

// collectLoad sums the shedding of every infected individual at timestep now.
func (m *Monitor) collectLoad(now int) {
	clear(m.active)
	clear(m.activeDetected)
	spd := float64(m.stepsPerDay)
	for i := range m.city.Individuals {
		ind := &m.city.Individuals[i]
		if !shedding(ind.State) {
			continue
		}
		s := m.shedOf[ind.Community]
		days := (float64(now) - ind.TimeOfInfection) / spd
		m.sheds[s].load += m.params.Shedding.Rate(days, symptomatic(ind.State))
		m.active[s]++
		if ind.Detected {
			m.activeDetected[s]++
		}
	}
}

func (m *Monitor) sample(day, i int) Sample {
	s := &m.sheds[i]
	p := m.params
	out := Sample{
		Day:                    day,
		Sewershed:              s.ID,
		Population:             s.Population,
		Load:                   s.load,
		Detected:               s.detected,
		Hospitalised:           s.hospitalised,
		Deaths:                 s.deaths,
		CumulativeDetected:     s.cumDetected,
		CumulativeHospitalised: s.cumHospitalised,
		CumulativeDeaths:       s.cumDeaths,
		Active:                 m.active[i],
	}
	if s.FlowLitres > 0 {
		out.Concentration = s.load * p.CollectionEfficiency / (s.FlowLitres * p.Dilution)
	}
	if m.noise != nil {
		out.Concentration = max(0, out.Concentration*(1+m.noise.Rand()))
	}
	if s.Population > 0 {
		out.Normalised = out.Concentration * 1e5 / float64(s.Population)
	}
	out.BelowLimit = out.Concentration < p.DetectionLimit

	if !out.BelowLimit && m.perCase > 0 && p.CollectionEfficiency > 0 {
		out.Estimated = int(out.Concentration * s.FlowLitres * p.Dilution / (p.CollectionEfficiency * m.perCase))
	}
	if out.Estimated > 0 && out.Estimated >= p.MinInfections {
		out.DetectionRatio = float64(m.activeDetected[i]) / float64(out.Estimated)
		if out.DetectionRatio > 0.01 {
			out.UnderReporting = 1 / out.DetectionRatio
		}
	}
	return out
}

// Close implements sim.Observer.
func (m *Monitor) Close(s sim.Summary) error {
	m.log.Info("wastewater surveillance finished",
		zap.Int("sewersheds", len(m.sheds)),
		zap.Int("samples", m.samples),
		zap.Int("days", s.Days))
	return nil
}

// shedding reports whether individuals in state st carry the virus.
func shedding(st model.State) bool {
	return st != model.Susceptible && st != model.Recovered && st != model.Dead
}

func symptomatic(st model.State) bool {
	return st == model.Symptomatic || st == model.Hospitalised || st == model.Critical
}
