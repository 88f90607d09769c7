package sim

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"episim/internal/disease"
	"episim/internal/model"
)

// Observer receives every step of a run and the final summary.
type Observer interface {
	Observe(StepResult) error
	Close(Summary) error
}

// Summary describes a finished or interrupted run.
type Summary struct {
	RunID      string
	Timesteps  int
	Days       int
	Completed  bool
	States     [model.NumStates]int
	Cumulative disease.Counts
	Affected   int
	Detected   int
	Seeded     int
}

// Summary of the run so far.
func (c *Context) Summary() Summary {
	return Summary{
		RunID:      c.RunID.String(),
		Timesteps:  c.Now,
		Days:       c.Now / c.StepsPerDay(),
		Completed:  c.Done(),
		States:     c.City.StateCounts(),
		Cumulative: c.Cumulative,
		Affected:   c.Affected,
		Detected:   c.Detected,
		Seeded:     c.Seeded,
	}
}

// Run steps until the configured number of days is simulated, ctx is
// cancelled or an observer fails. Observers are always closed with the
// final summary.
func (c *Context) Run(ctx context.Context, observers ...Observer) (Summary, error) {
	err := c.loop(ctx, observers)

	sum := c.Summary()
	for _, o := range observers {
		if cerr := o.Close(sum); cerr != nil {
			err = errors.Join(err, fmt.Errorf("close observer: %w", cerr))
		}
	}
	c.log.Info("run finished",
		zap.Int("timesteps", sum.Timesteps),
		zap.Bool("completed", sum.Completed),
		zap.Int("affected", sum.Affected),
		zap.Int("dead", sum.States[model.Dead]),
		zap.Error(err))
	return sum, err
}

func (c *Context) loop(ctx context.Context, observers []Observer) error {
	for !c.Done() {
		if err := ctx.Err(); err != nil {
			return err
		}
		res, err := c.Step(ctx)
		if err != nil {
			return err
		}
		if res.DayComplete {
			c.log.Info("day complete",
				zap.Int("day", res.Day),
				zap.Int("infected", res.Infected()),
				zap.Int("new_exposed", res.Daily.Exposed),
				zap.String("policy", res.Policy))
		}
		for _, o := range observers {
			if err := o.Observe(res); err != nil {
				return fmt.Errorf("observe timestep %d: %w", res.Timestep, err)
			}
		}
	}
	return nil
}
