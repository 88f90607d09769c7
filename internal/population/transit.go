package population

import (
	"math/rand/v2"

	"episim/internal/model"
)

// AssignTransit puts each worker or student into a uniformly chosen transit
// group with probability fraction. Riders get their home to work distance as
// dist_hw; everybody else keeps 1.
func AssignTransit(city *model.City, fraction float64, rng *rand.Rand) {
	groups := len(city.Transit)
	if groups == 0 {
		return
	}
	for g := range city.Transit {
		city.Transit[g].Members = city.Transit[g].Members[:0]
	}
	for i := range city.Individuals {
		ind := &city.Individuals[i]
		ind.Transit = model.None
		ind.DistHomeWork = 1

		w, ok := ind.Workplace.Get()
		if !ok || rng.Float64() >= fraction {
			continue
		}
		g := rng.IntN(groups)
		ind.Transit = model.Some(g)
		ind.DistHomeWork = model.Distance(ind.Loc, city.Workplaces[w].Loc)
		city.Transit[g].Members = append(city.Transit[g].Members, i)
	}
}
