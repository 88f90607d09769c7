// Package transmission computes venue hazards and the exposure every
// individual receives from them.
package transmission

import (
	"context"

	"golang.org/x/sync/errgroup"

	"episim/internal/mixing"
	"episim/internal/model"
)

// AgeMixing holds the low-rank matrices per venue class. A nil class uses
// uniform mixing.
type AgeMixing struct {
	Household *mixing.LowRank
	Office    *mixing.LowRank
	School    *mixing.LowRank
}

// Engine aggregates outgoing hazard per venue and distributes it back.
type Engine struct {
	city   *model.City
	mixing AgeMixing

	kernel    [][]float64 // K(d) between ward centres
	kernelSum []float64
}

// New precomputes the inter-ward kernel of city.
func New(city *model.City, mix AgeMixing) *Engine {
	n := len(city.Communities)
	e := &Engine{
		city:      city,
		mixing:    mix,
		kernel:    make([][]float64, n),
		kernelSum: make([]float64, n),
	}
	for a := 0; a < n; a++ {
		e.kernel[a] = make([]float64, n)
		for b := 0; b < n; b++ {
			k := model.Kernel(city.WardDistance[a][b])
			e.kernel[a][b] = k
			e.kernelSum[a] += k
		}
	}
	return e
}

// Aggregate recomputes the hazard of every venue from the individuals'
// outgoing hazard. Venue classes run concurrently; each venue writes only
// its own fields.
func (e *Engine) Aggregate(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		e.households()
		return nil
	})
	g.Go(func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		e.workplaces()
		return nil
	})
	g.Go(func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		e.communities()
		return nil
	})
	g.Go(func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		e.transit()
		return nil
	})
	return g.Wait()
}

// venueLambda is the per-age-group hazard of one household or workplace.
func (e *Engine) venueLambda(members []int, layer model.Layer, scale float64, m *mixing.LowRank) model.AgeVector {
	people := e.city.Individuals
	if m == nil {
		sum := 0.0
		for _, i := range members {
			sum += people[i].Outgoing[layer]
		}
		return model.Fill(scale * sum)
	}
	var byAge model.AgeVector
	for _, i := range members {
		byAge[people[i].AgeGroup] += people[i].Outgoing[layer]
	}
	return m.Apply(byAge, scale)
}

func (e *Engine) households() {
	for h := range e.city.Households {
		home := &e.city.Households[h]
		home.Lambda = e.venueLambda(home.Members, model.LayerHome, home.Scale, e.mixing.Household)
	}
}

func (e *Engine) workplaces() {
	for w := range e.city.Workplaces {
		wp := &e.city.Workplaces[w]
		m := e.mixing.Office
		if wp.Kind == model.School {
			m = e.mixing.School
		}
		wp.Lambda = e.venueLambda(wp.Members, model.LayerWork, wp.Scale, m)
	}
}

func (e *Engine) communities() {
	comms := e.city.Communities
	for c := range comms {
		sum := 0.0
		for _, i := range comms[c].Members {
			sum += e.city.Individuals[i].Outgoing[model.LayerCommunity]
		}
		comms[c].LambdaLocal = comms[c].Scale * sum
	}
	for a := range comms {
		if e.kernelSum[a] == 0 {
			comms[a].LambdaGlobal = 0
			continue
		}
		num := 0.0
		for b := range comms {
			num += e.kernel[a][b] * comms[b].LambdaLocal
		}
		comms[a].LambdaGlobal = num / e.kernelSum[a]
	}
}

func (e *Engine) transit() {
	for t := range e.city.Transit {
		tr := &e.city.Transit[t]
		sum := 0.0
		for _, i := range tr.Members {
			sum += e.city.Individuals[i].Outgoing[model.LayerTransit]
		}
		tr.Lambda = tr.Scale * sum
	}
}

// Incoming sets every individual's per-layer exposure and its total.
func (e *Engine) Incoming() {
	city := e.city
	for i := range city.Individuals {
		ind := &city.Individuals[i]
		k := ind.KappaIncoming
		var in model.Hazard

		in[model.LayerHome] = k[model.LayerHome] * city.Households[ind.Household].Lambda[ind.AgeGroup]
		if w, ok := ind.Workplace.Get(); ok {
			in[model.LayerWork] = k[model.LayerWork] * city.Workplaces[w].Lambda[ind.AgeGroup]
		}
		in[model.LayerCommunity] = k[model.LayerCommunity] * ind.Zeta * ind.KernelDist *
			city.Communities[ind.Community].LambdaGlobal
		if t, ok := ind.Transit.Get(); ok {
			in[model.LayerTransit] = k[model.LayerTransit] * ind.DistHomeWork * city.Transit[t].Lambda
		}

		ind.Incoming = in
		ind.Lambda = in.Sum()
	}
}
