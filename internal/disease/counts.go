package disease

import "episim/internal/model"

// Counts are the eight transition counters kept per day and cumulatively.
type Counts struct {
	Exposed        int
	PreSymptomatic int
	Symptomatic    int
	Detected       int
	Hospitalised   int
	Critical       int
	Recovered      int
	Deaths         int
}

// CountNames labels the values returned by Counts.Values, in order.
var CountNames = [8]string{
	"exposed", "presymptomatic", "symptomatic", "detected",
	"hospitalised", "critical", "recovered", "deaths",
}

// Values lists the counters in CountNames order.
func (c Counts) Values() [8]int {
	return [8]int{
		c.Exposed, c.PreSymptomatic, c.Symptomatic, c.Detected,
		c.Hospitalised, c.Critical, c.Recovered, c.Deaths,
	}
}

// Record increments the counters touched by tr.
func (c *Counts) Record(tr Transition) {
	if tr.Detected {
		c.Detected++
	}
	if !tr.Changed() {
		return
	}
	switch tr.To {
	case model.Exposed:
		c.Exposed++
	case model.PreSymptomatic:
		c.PreSymptomatic++
	case model.Symptomatic:
		c.Symptomatic++
	case model.Hospitalised:
		c.Hospitalised++
	case model.Critical:
		c.Critical++
	case model.Recovered:
		c.Recovered++
	case model.Dead:
		c.Deaths++
	}
}

// Add accumulates o into c.
func (c *Counts) Add(o Counts) {
	c.Exposed += o.Exposed
	c.PreSymptomatic += o.PreSymptomatic
	c.Symptomatic += o.Symptomatic
	c.Detected += o.Detected
	c.Hospitalised += o.Hospitalised
	c.Critical += o.Critical
	c.Recovered += o.Recovered
	c.Deaths += o.Deaths
}

// Attribution is the running mean, over all infections so far, of the share
// of each layer in the exposure that caused them.
type Attribution struct {
	Mean model.Hazard
	N    int
}

// Record adds one infection with the given incoming exposure. Zero totals
// are skipped.
func (a *Attribution) Record(in model.Hazard) {
	total := in.Sum()
	if total <= 0 {
		return
	}
	n := float64(a.N)
	for l := range a.Mean {
		a.Mean[l] = (a.Mean[l]*n + in[l]/total) / (n + 1)
	}
	a.N++
}
