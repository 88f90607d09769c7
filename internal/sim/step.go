package sim

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"episim/internal/disease"
	"episim/internal/model"
)

// ErrFinished is returned by Step once every timestep has been simulated.
var ErrFinished = errors.New("sim: run finished")

// CommunityStats is the per-ward snapshot of one timestep.
type CommunityStats struct {
	Ward         int
	Infected     int
	Affected     int // ever left susceptible
	Hospitalised int
	Critical     int
	Dead         int
}

// StepResult is everything observers see about one timestep.
type StepResult struct {
	RunID       string
	Timestep    int
	Day         int
	Time        float64 // timestep in days
	DayComplete bool
	Policy      string

	States      [model.NumStates]int
	Daily       disease.Counts
	Cumulative  disease.Counts
	Affected    int
	Detected    int
	Seeded      int // seeded during this timestep
	Attribution model.Hazard

	Communities []CommunityStats
}

// Infected counts P, Sy, H and C.
func (r StepResult) Infected() int {
	n := 0
	for s, count := range r.States {
		if model.State(s).Infected() {
			n += count
		}
	}
	return n
}

// Step advances the run by one timestep. Phases run in order: seeding,
// disease progression, interventions, venue aggregation, incoming exposure
// and statistics. A cancelled ctx is only honoured before the first phase;
// once started, a timestep always completes.
func (c *Context) Step(ctx context.Context) (StepResult, error) {
	if c.Done() {
		return StepResult{}, ErrFinished
	}
	if err := ctx.Err(); err != nil {
		return StepResult{}, fmt.Errorf("timestep %d: %w", c.Now, err)
	}
	now := c.Now
	spd := c.StepsPerDay()
	city := c.City

	if now%spd == 0 {
		c.Daily = disease.Counts{}
	}

	seeded := 0
	if c.opts.Seeder != nil {
		seeded = c.opts.Seeder.Step(city, now)
		c.Seeded += seeded
	}

	for i := range city.Individuals {
		ind := &city.Individuals[i]
		tr := disease.Progress(ind, now, c.opts.Disease, c.rng)
		c.Daily.Record(tr)
		if tr.Changed() {
			switch tr.To {
			case model.Exposed:
				c.Attribution.Record(ind.Incoming)
			case model.Symptomatic:
				c.Affected++
			}
		}
		if tr.Detected {
			c.Detected++
		}
		ind.KappaT = disease.KappaT(ind, now)
		ind.PsiT = disease.Psi(ind, now, spd)
	}

	active := c.opts.Schedule.At(now)
	if active.Name != c.policy {
		c.log.Info("policy in force",
			zap.String("policy", active.Name),
			zap.Int("timestep", now),
			zap.Int("day", now/spd))
		c.policy = active.Name
	}
	c.interventions.Apply(city, active.Policy, active.Since, now)

	for i := range city.Individuals {
		city.Individuals[i].Outgoing = disease.Outgoing(&city.Individuals[i])
	}
	if err := c.transmission.Aggregate(context.WithoutCancel(ctx)); err != nil {
		return StepResult{}, fmt.Errorf("timestep %d: %w", now, err)
	}
	c.transmission.Incoming()

	dayComplete := now%spd == spd-1
	if dayComplete {
		c.Cumulative.Add(c.Daily)
	}

	res := StepResult{
		RunID:       c.RunID.String(),
		Timestep:    now,
		Day:         now / spd,
		Time:        float64(now) / float64(spd),
		DayComplete: dayComplete,
		Policy:      active.Name,
		States:      city.StateCounts(),
		Daily:       c.Daily,
		Cumulative:  c.Cumulative,
		Affected:    c.Affected,
		Detected:    c.Detected,
		Seeded:      seeded,
		Attribution: c.Attribution.Mean,
		Communities: c.communityStats(),
	}
	c.Now++
	return res, nil
}

func (c *Context) communityStats() []CommunityStats {
	out := make([]CommunityStats, len(c.City.Communities))
	for k, com := range c.City.Communities {
		s := CommunityStats{Ward: com.Ward}
		for _, i := range com.Members {
			state := c.City.Individuals[i].State
			if state.Infected() {
				s.Infected++
			}
			if state != model.Susceptible {
				s.Affected++
			}
			switch state {
			case model.Hospitalised:
				s.Hospitalised++
			case model.Critical:
				s.Critical++
			case model.Dead:
				s.Dead++
			}
		}
		out[k] = s
	}
	return out
}
