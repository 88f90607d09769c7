// Package metrics exposes run progress as Prometheus metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"episim/internal/disease"
	"episim/internal/model"
	"episim/internal/sim"
	"episim/internal/surveillance"
)

const (
	namespace = "episim"
	subsystem = "sim"
)

// Recorder is a sim.Observer that mirrors every timestep into its own
// registry.
type Recorder struct {
	individuals *prometheus.GaugeVec
	transitions *prometheus.CounterVec
	wards       *prometheus.GaugeVec
	policy      *prometheus.GaugeVec
	attribution *prometheus.GaugeVec
	timestep    prometheus.Gauge
	seeded      prometheus.Counter
	stepSeconds prometheus.Histogram
	completed   prometheus.Gauge

	concentration  *prometheus.GaugeVec
	detectionRatio *prometheus.GaugeVec

	now      func() time.Time
	last     time.Time
	day      int
	prev     disease.Counts
	policyOn string
}

// NewRecorder registers the run metrics with reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		individuals: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "individuals",
			Help:      "Individuals per disease state",
		}, []string{"state"}),
		transitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "transitions_total",
			Help:      "Disease transitions and detections since the start of the run",
		}, []string{"transition"}),
		wards: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "ward_infected",
			Help:      "Currently infected individuals per ward",
		}, []string{"ward"}),
		policy: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "policy_active",
			Help:      "1 for the intervention policy in force",
		}, []string{"policy"}),
		attribution: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "infection_share",
			Help:      "Mean share of each contact layer in the exposure behind new infections",
		}, []string{"layer"}),
		timestep: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "timestep",
			Help:      "Last simulated timestep",
		}),
		seeded: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "seeded_total",
			Help:      "Individuals seeded after the initial seeding",
		}),
		stepSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "step_seconds",
			Help:      "Wall time between consecutive timesteps",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}),
		completed: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "completed",
			Help:      "1 once the run has simulated every timestep",
		}),
		concentration: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "wastewater",
			Name:      "concentration_copies_per_litre",
			Help:      "Last sampled RNA concentration per sewershed",
		}, []string{"sewershed"}),
		detectionRatio: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "wastewater",
			Name:      "detection_ratio",
			Help:      "Detected active cases over the infections implied by the last sample",
		}, []string{"sewershed"}),
		now: time.Now,
		day: -1,
	}
}

// Observe implements sim.Observer.
func (r *Recorder) Observe(res sim.StepResult) error {
	t := r.now()
	if !r.last.IsZero() {
		r.stepSeconds.Observe(t.Sub(r.last).Seconds())
	}
	r.last = t

	for s, n := range res.States {
		r.individuals.WithLabelValues(model.State(s).String()).Set(float64(n))
	}

	// Daily counters restart with every day.
	if res.Day != r.day {
		r.prev = disease.Counts{}
		r.day = res.Day
	}
	cur, prev := res.Daily.Values(), r.prev.Values()
	for i, name := range disease.CountNames {
		if d := cur[i] - prev[i]; d > 0 {
			r.transitions.WithLabelValues(name).Add(float64(d))
		}
	}
	r.prev = res.Daily

	for _, c := range res.Communities {
		r.wards.WithLabelValues(strconv.Itoa(c.Ward)).Set(float64(c.Infected))
	}
	for l, share := range res.Attribution {
		r.attribution.WithLabelValues(model.Layer(l).String()).Set(share)
	}
	if res.Policy != r.policyOn {
		if r.policyOn != "" {
			r.policy.WithLabelValues(r.policyOn).Set(0)
		}
		r.policy.WithLabelValues(res.Policy).Set(1)
		r.policyOn = res.Policy
	}

	r.timestep.Set(float64(res.Timestep))
	r.seeded.Add(float64(res.Seeded))
	return nil
}

// WriteSamples implements surveillance.Sink.
func (r *Recorder) WriteSamples(samples []surveillance.Sample) error {
	for _, s := range samples {
		shed := strconv.Itoa(s.Sewershed)
		r.concentration.WithLabelValues(shed).Set(s.Concentration)
		r.detectionRatio.WithLabelValues(shed).Set(s.DetectionRatio)
	}
	return nil
}

// Close implements sim.Observer.
func (r *Recorder) Close(s sim.Summary) error {
	if s.Completed {
		r.completed.Set(1)
	}
	return nil
}
