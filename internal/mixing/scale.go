package mixing

import (
	"math"

	"episim/internal/model"
)

// Alpha is the sub-linear crowding exponent on household size.
const Alpha = 0.8

// Betas are the per-layer contact-rate parameters.
type Betas struct {
	Home      float64
	Office    float64
	School    float64
	Community float64
	Transit   float64
}

// ComputeScales sets the normalisation scale of every venue in the city.
// Empty venues and zero weight sums get a scale of 0.
func ComputeScales(city *model.City, b Betas) {
	for h := range city.Households {
		home := &city.Households[h]
		home.Scale = HouseholdScale(b.Home, home.Q, len(home.Members))
	}

	for w := range city.Workplaces {
		wp := &city.Workplaces[w]
		beta := b.Office
		if wp.Kind == model.School {
			beta = b.School
		}
		wp.Scale = WorkplaceScale(beta, len(wp.Members))
	}

	for c := range city.Communities {
		com := &city.Communities[c]
		sum := 0.0
		for _, i := range com.Members {
			sum += city.Individuals[i].KernelDist
		}
		com.Scale = ratio(b.Community, sum)
	}

	for t := range city.Transit {
		tr := &city.Transit[t]
		sum := 0.0
		for _, i := range tr.Members {
			sum += city.Individuals[i].DistHomeWork
		}
		tr.Scale = ratio(b.Transit, sum)
	}
}

// HouseholdScale is beta*q/n^Alpha, or 0 for an empty household.
func HouseholdScale(beta, q float64, n int) float64 {
	if n == 0 {
		return 0
	}
	return beta * q / math.Pow(float64(n), Alpha)
}

// WorkplaceScale is beta/n, or 0 for an empty workplace.
func WorkplaceScale(beta float64, n int) float64 {
	if n == 0 {
		return 0
	}
	return beta / float64(n)
}

func ratio(beta, sum float64) float64 {
	if sum == 0 {
		return 0
	}
	return beta / sum
}
