package surveillance

import (
	"context"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat/distuv"

	"episim/internal/disease"
	"episim/internal/mixing"
	"episim/internal/model"
	"episim/internal/population"
	"episim/internal/seeding"
	"episim/internal/sim"
)

const spd = 4

// testCity has perWard susceptible individuals in each of wards wards,
// numbered from 1.
func testCity(wards, perWard int) *model.City {
	city := &model.City{Communities: make([]model.Community, wards)}
	for w := range city.Communities {
		city.Communities[w].Ward = w + 1
		for k := 0; k < perWard; k++ {
			city.Individuals = append(city.Individuals, model.Individual{
				ID:        len(city.Individuals),
				Community: w,
				State:     model.Susceptible,
			})
		}
	}
	return city
}

// exact samples every day without measurement error.
func exact() Params {
	p := DefaultParams()
	p.SamplesPerWeek = 7
	p.NoiseFraction = 0
	return p
}

type sink struct {
	samples []Sample
}

func (s *sink) WriteSamples(samples []Sample) error {
	s.samples = append(s.samples, samples...)
	return nil
}

func (s *sink) onDay(day int) []Sample {
	var out []Sample
	for _, x := range s.samples {
		if x.Day == day {
			out = append(out, x)
		}
	}
	return out
}

// endOfDay observes the last timestep of day.
func endOfDay(t *testing.T, m *Monitor, day int) {
	t.Helper()
	require.NoError(t, m.Observe(sim.StepResult{Timestep: day*spd + spd - 1, Day: day, DayComplete: true}))
}

func TestSheddingRate(t *testing.T) {
	s := DefaultParams().Shedding
	assert.Equal(t, 1e9, s.Rate(6, true))
	assert.InDelta(t, 0.6e9, s.Rate(6, false), 1)
	assert.Zero(t, s.Rate(0.5, true), "before shedding starts")
	assert.Zero(t, s.Rate(31, true), "after shedding ends")
	assert.InDelta(t, s.Rate(3, true), s.Rate(9, true), 1e-3)
	assert.InDelta(t, 1e9*math.Exp(-0.5), s.Rate(9, true), 1)
}

func TestMeanRate(t *testing.T) {
	s := DefaultParams().Shedding
	n := distuv.UnitNormal
	area := s.PeakRate * s.Sigma * math.Sqrt(2*math.Pi) *
		(n.CDF((s.DurationDays-s.PeakDay)/s.Sigma) - n.CDF((s.StartDay-s.PeakDay)/s.Sigma))
	want := area / (s.DurationDays - s.StartDay)

	assert.InEpsilon(t, want, s.MeanRate(1), 1e-3)
	assert.InEpsilon(t, 0.8*want, s.MeanRate(0.5), 1e-3)
	assert.Zero(t, Shedding{StartDay: 5, DurationDays: 5}.MeanRate(1))
}

func TestPartition(t *testing.T) {
	city := testCity(25, 4)
	sheds, shedOf := Partition(city, 10, 175)
	require.Len(t, sheds, 3)
	assert.Len(t, sheds[0].Wards, 10)
	assert.Len(t, sheds[2].Wards, 5)
	assert.Equal(t, []int{21, 22, 23, 24, 25}, sheds[2].Wards)
	assert.Equal(t, 40, sheds[1].Population)
	assert.Equal(t, 20*175.0, sheds[2].FlowLitres)
	assert.Equal(t, 2, shedOf[24])
	assert.Equal(t, "sewershed_0", sheds[0].Name)
}

func TestNewMonitorRejects(t *testing.T) {
	city := testCity(1, 1)
	_, err := NewMonitor(nil, spd, exact(), nil, nil)
	assert.Error(t, err)
	_, err = NewMonitor(city, 0, exact(), nil, nil)
	assert.Error(t, err)

	p := exact()
	p.WardsPerSewershed = 0
	_, err = NewMonitor(city, spd, p, nil, nil)
	assert.Error(t, err)

	_, err = NewMonitor(city, spd, DefaultParams(), nil, nil)
	assert.Error(t, err, "noise without a random source")
}

func TestMonitorCountsClinicalEvents(t *testing.T) {
	city := testCity(2, 50)
	p := exact()
	p.WardsPerSewershed = 1
	out := &sink{}
	m, err := NewMonitor(city, spd, p, nil, nil, out)
	require.NoError(t, err)

	require.NoError(t, m.Observe(sim.StepResult{Timestep: 0}))
	city.Individuals[0].State = model.Hospitalised
	city.Individuals[0].Detected = true
	city.Individuals[1].State = model.Dead
	city.Individuals[60].State = model.Symptomatic
	city.Individuals[60].Detected = true
	require.NoError(t, m.Observe(sim.StepResult{Timestep: 1}))
	require.NoError(t, m.Observe(sim.StepResult{Timestep: 2}))
	endOfDay(t, m, 0)

	day0 := out.onDay(0)
	require.Len(t, day0, 2)
	assert.Equal(t, 1, day0[0].Detected)
	assert.Equal(t, 1, day0[0].Hospitalised)
	assert.Equal(t, 1, day0[0].Deaths)
	assert.Equal(t, 1, day0[1].Detected)
	assert.Zero(t, day0[1].Deaths)

	city.Individuals[0].State = model.Critical
	endOfDay(t, m, 1)
	day1 := out.onDay(1)
	require.Len(t, day1, 2)
	assert.Zero(t, day1[0].Detected, "events are counted once")
	assert.Zero(t, day1[0].Hospitalised)
	assert.Equal(t, 1, day1[0].CumulativeDetected)
	assert.Equal(t, 1, day1[0].CumulativeHospitalised)
	assert.Equal(t, 1, day1[0].CumulativeDeaths)
	assert.Equal(t, 1, m.Sewersheds()[1].cumDetected)
}

func TestMonitorEstimatesInfections(t *testing.T) {
	city := testCity(1, 100)
	p := exact()
	out := &sink{}
	m, err := NewMonitor(city, spd, p, nil, nil, out)
	require.NoError(t, err)

	endOfDay(t, m, 0)
	empty := out.onDay(0)[0]
	assert.True(t, empty.BelowLimit)
	assert.Zero(t, empty.Concentration)
	assert.Zero(t, empty.Estimated)
	assert.Zero(t, empty.DetectionRatio)

	// Ten cases at their shedding peak at the end of day 1, half of them
	// detected.
	now := 1*spd + spd - 1
	for i := 0; i < 10; i++ {
		ind := &city.Individuals[i]
		ind.State = model.Symptomatic
		ind.TimeOfInfection = float64(now) - p.Shedding.PeakDay*spd
		ind.Detected = i%2 == 0
	}
	endOfDay(t, m, 1)
	s := out.onDay(1)[0]

	flow := 100 * p.LitresPerPerson
	assert.InDelta(t, 10*p.Shedding.PeakRate, s.Load, 1)
	assert.InEpsilon(t, 10*p.Shedding.PeakRate*p.CollectionEfficiency/flow, s.Concentration, 1e-9)
	assert.InEpsilon(t, s.Concentration*1e3, s.Normalised, 1e-9)
	assert.False(t, s.BelowLimit)
	assert.Equal(t, 10, s.Active)
	assert.InDelta(t, 10*p.Shedding.PeakRate/m.perCase, float64(s.Estimated), 1)
	assert.Greater(t, s.Estimated, 10, "peak shedders look like more average cases")
	assert.InEpsilon(t, 5/float64(s.Estimated), s.DetectionRatio, 1e-9)
	assert.InEpsilon(t, float64(s.Estimated)/5, s.UnderReporting, 1e-9)
}

func TestMonitorSamplingCadence(t *testing.T) {
	city := testCity(3, 10)
	p := exact()
	p.SamplesPerWeek = 3
	out := &sink{}
	m, err := NewMonitor(city, spd, p, nil, nil, out)
	require.NoError(t, err)

	for day := 0; day < 7; day++ {
		endOfDay(t, m, day)
	}
	var days []int
	for _, s := range out.samples {
		days = append(days, s.Day)
	}
	assert.Equal(t, []int{0, 2, 4, 6}, days)
}

func TestMonitorNoiseStaysInBand(t *testing.T) {
	city := testCity(1, 100)
	city.Individuals[0].State = model.Symptomatic
	city.Individuals[0].TimeOfInfection = -6 * spd

	p := exact()
	p.NoiseFraction = 0.15
	out := &sink{}
	m, err := NewMonitor(city, spd, p, rand.New(rand.NewPCG(1, 2)), nil, out)
	require.NoError(t, err)

	for day := 0; day < 30; day++ {
		endOfDay(t, m, day)
	}
	require.Len(t, out.samples, 30)
	distinct := map[float64]bool{}
	for _, s := range out.samples {
		truth := p.Shedding.Rate(float64(s.Day)+0.75+6, true) * p.CollectionEfficiency / (100 * p.LitresPerPerson)
		assert.GreaterOrEqual(t, s.Concentration, 0.85*truth-1e-9, "day %d", s.Day)
		assert.LessOrEqual(t, s.Concentration, 1.15*truth+1e-9, "day %d", s.Day)
		distinct[s.Concentration] = true
	}
	assert.Greater(t, len(distinct), 20)
}

type dayStates struct {
	states map[int][model.NumStates]int
}

func (d *dayStates) Observe(res sim.StepResult) error {
	if res.DayComplete {
		d.states[res.Day] = res.States
	}
	return nil
}

func (d *dayStates) Close(sim.Summary) error { return nil }

func TestMonitorFollowsARealRun(t *testing.T) {
	rng := rand.New(rand.NewPCG(31, 32))
	spec := population.DefaultSyntheticSpec()
	spec.People = 400
	src, err := population.Synthetic(spec, rng)
	require.NoError(t, err)
	city, err := population.Build(src, population.DefaultParams(), rng)
	require.NoError(t, err)

	opts := seeding.DefaultOptions()
	opts.InitFrac = 0.05
	seeder, err := seeding.New(opts, spd, rng, nil)
	require.NoError(t, err)
	run, err := sim.New(city, sim.Options{
		Days:    20,
		Disease: disease.DefaultParams(),
		Betas:   mixing.Betas{Home: 0.67, Office: 0.5, School: 1, Community: 0.15},
		Seeder:  seeder,
	}, rng, nil)
	require.NoError(t, err)

	p := exact()
	p.WardsPerSewershed = 2
	out := &sink{}
	m, err := NewMonitor(city, spd, p, nil, nil, out)
	require.NoError(t, err)
	require.Len(t, m.Sewersheds(), 2)

	truth := &dayStates{states: map[int][model.NumStates]int{}}
	sum, err := run.Run(context.Background(), truth, m)
	require.NoError(t, err)
	require.Len(t, out.samples, 20*2)

	for day, st := range truth.states {
		want := st[model.Exposed] + st[model.PreSymptomatic] + st[model.Symptomatic] +
			st[model.Hospitalised] + st[model.Critical]
		got, pop := 0, 0
		for _, s := range out.onDay(day) {
			got += s.Active
			pop += s.Population
		}
		assert.Equal(t, want, got, "day %d", day)
		assert.Equal(t, 400, pop)
	}

	detected, deaths := 0, 0
	for _, s := range m.Sewersheds() {
		detected += s.cumDetected
		deaths += s.cumDeaths
	}
	assert.Equal(t, sum.Detected, detected)
	assert.Equal(t, sum.States[model.Dead], deaths)
}
