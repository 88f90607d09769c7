package main

import (
	"fmt"
	"io"

	"episim/internal/model"
	"episim/internal/sim"
)

// statsPrinter writes one comma separated line per simulated day.
type statsPrinter struct {
	w      io.Writer
	header bool
}

func newStatsPrinter(w io.Writer) *statsPrinter {
	return &statsPrinter{w: w}
}

func (p *statsPrinter) Observe(res sim.StepResult) error {
	if !p.header {
		p.header = true
		if _, err := fmt.Fprintf(p.w, "Day, Susceptible, Exposed, PreSymptomatic, Symptomatic, Recovered, Hospitalised, Critical, Dead, InfectedFrac, Affected, Detected, Policy\n"); err != nil {
			return err
		}
	}
	if !res.DayComplete {
		return nil
	}

	total := 0
	for _, n := range res.States {
		total += n
	}
	infFrac := 0.0
	if total > 0 {
		infFrac = float64(res.Infected()) / float64(total)
	}

	s := res.States
	_, err := fmt.Fprintf(p.w,
		"%d, %d, %d, %d, %d, %d, %d, %d, %d, %.4f, %d, %d, %s\n",
		res.Day+1,
		s[model.Susceptible],
		s[model.Exposed],
		s[model.PreSymptomatic],
		s[model.Symptomatic],
		s[model.Recovered],
		s[model.Hospitalised],
		s[model.Critical],
		s[model.Dead],
		infFrac,
		res.Affected,
		res.Detected,
		res.Policy,
	)
	return err
}

func (p *statsPrinter) Close(s sim.Summary) error {
	_, err := fmt.Fprintf(p.w, "# run %s: %d days, %d affected, %d dead\n",
		s.RunID, s.Days, s.Affected, s.States[model.Dead])
	return err
}
