// Package sim owns the state of one simulation run and advances it one
// timestep at a time.
package sim

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"episim/internal/disease"
	"episim/internal/intervention"
	"episim/internal/mixing"
	"episim/internal/model"
	"episim/internal/seeding"
	"episim/internal/transmission"
)

// Options wire the components of a run.
type Options struct {
	Days      int
	Disease   disease.Params
	Betas     mixing.Betas
	Schedule  *intervention.Schedule // nil means no intervention
	Seeder    *seeding.Seeder        // nil means no seeding
	AgeMixing transmission.AgeMixing
	RunID     uuid.UUID // zero value draws a fresh id
}

// Context is the explicit state of one run.
type Context struct {
	RunID uuid.UUID
	City  *model.City
	Now   int // next timestep to simulate

	Daily       disease.Counts
	Cumulative  disease.Counts
	Affected    int
	Detected    int
	Seeded      int
	Attribution disease.Attribution

	opts          Options
	rng           *rand.Rand
	log           *zap.Logger
	interventions *intervention.Engine
	transmission  *transmission.Engine
	policy        string
}

// New prepares city for a run: venue scales are computed and the initial
// seeding is applied.
func New(city *model.City, opts Options, rng *rand.Rand, log *zap.Logger) (*Context, error) {
	if city == nil {
		return nil, errors.New("sim: nil city")
	}
	if opts.Days <= 0 {
		return nil, fmt.Errorf("sim: days must be positive, got %d", opts.Days)
	}
	if opts.Disease.StepsPerDay <= 0 {
		return nil, fmt.Errorf("sim: steps per day must be positive, got %d", opts.Disease.StepsPerDay)
	}
	if rng == nil {
		return nil, errors.New("sim: nil random source")
	}
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Schedule == nil {
		s, err := intervention.NewSchedule(0, opts.Disease.StepsPerDay, nil)
		if err != nil {
			return nil, err
		}
		opts.Schedule = s
	}
	if opts.RunID == uuid.Nil {
		opts.RunID = uuid.New()
	}

	log = log.With(zap.String("run_id", opts.RunID.String()))

	c := &Context{
		RunID:         opts.RunID,
		City:          city,
		opts:          opts,
		rng:           rng,
		log:           log,
		interventions: intervention.NewEngine(opts.Disease.StepsPerDay, log),
		transmission:  transmission.New(city, opts.AgeMixing),
	}

	mixing.ComputeScales(city, opts.Betas)
	for i := range city.Individuals {
		city.Individuals[i].Kappa = model.FullKappa()
		city.Individuals[i].KappaIncoming = model.FullKappa()
	}

	if opts.Seeder != nil {
		n, err := opts.Seeder.Initial(city)
		if err != nil {
			return nil, fmt.Errorf("sim: initial seeding: %w", err)
		}
		c.Seeded = n
		c.log.Info("initial seeding", zap.Int("seeded", n))
	}
	return c, nil
}

// StepsPerDay of the run clock.
func (c *Context) StepsPerDay() int { return c.opts.Disease.StepsPerDay }

// TotalSteps is the number of timesteps Run simulates.
func (c *Context) TotalSteps() int { return c.opts.Days * c.opts.Disease.StepsPerDay }

// Done reports whether every timestep has been simulated.
func (c *Context) Done() bool { return c.Now >= c.TotalSteps() }
