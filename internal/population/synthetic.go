package population

import (
	"fmt"
	"math/rand/v2"
)

// SyntheticSpec sizes a randomly generated city.
type SyntheticSpec struct {
	People        int
	HouseholdSize int // mean members per household
	Offices       int
	Schools       int
	Wards         int
	Lat, Lon      float64 // south-west corner of the city box
	Span          float64 // side of the box in degrees
	WorkFraction  float64 // share of working-age people with an office
}

// DefaultSyntheticSpec is a small Bengaluru-sized box with 1,000 people.
func DefaultSyntheticSpec() SyntheticSpec {
	return SyntheticSpec{
		People:        1000,
		HouseholdSize: 4,
		Offices:       20,
		Schools:       5,
		Wards:         4,
		Lat:           12.85,
		Lon:           77.5,
		Span:          0.2,
		WorkFraction:  0.7,
	}
}

// Synthetic generates the sources of a random city. Every person gets a
// random position near their household, a random age in 0..90 and a ward
// from the nearest quadrant of the box.
func Synthetic(spec SyntheticSpec, rng *rand.Rand) (*Sources, error) {
	if spec.People <= 0 || spec.HouseholdSize <= 0 || spec.Wards <= 0 {
		return nil, fmt.Errorf("synthetic city needs positive people, household size and wards: %+v", spec)
	}
	if spec.Offices < 0 || spec.Schools < 0 {
		return nil, fmt.Errorf("synthetic city needs non-negative offices and schools: %+v", spec)
	}

	place := func() Place {
		return Place{
			Lat: spec.Lat + rng.Float64()*spec.Span,
			Lon: spec.Lon + rng.Float64()*spec.Span,
		}
	}

	numHomes := (spec.People + spec.HouseholdSize - 1) / spec.HouseholdSize
	src := &Sources{
		People:        make([]PersonRecord, spec.People),
		Households:    make([]Place, numHomes),
		Offices:       make([]Place, spec.Offices),
		Schools:       make([]Place, spec.Schools),
		Wards:         make([]Ward, spec.Wards),
		WardFractions: make([]WardFraction, spec.Wards),
	}
	for h := range src.Households {
		src.Households[h] = place()
	}
	for w := range src.Offices {
		src.Offices[w] = place()
	}
	for s := range src.Schools {
		src.Schools[s] = place()
	}

	// Ward centres sit on a horizontal strip of equal-width cells.
	cell := spec.Span / float64(spec.Wards)
	for w := range src.Wards {
		src.Wards[w] = Ward{
			Ward: w + 1,
			Lat:  spec.Lat + spec.Span/2,
			Lon:  spec.Lon + (float64(w)+0.5)*cell,
		}
	}

	wardCount := make([]int, spec.Wards)
	for i := range src.People {
		h := rng.IntN(numHomes)
		if i < numHomes {
			h = i // no empty households
		}
		home := src.Households[h]
		age := rng.IntN(91)

		rec := PersonRecord{
			Age:       age,
			Lat:       home.Lat,
			Lon:       home.Lon,
			Household: ptr(h),
		}
		ward := int((home.Lon - spec.Lon) / cell)
		if ward >= spec.Wards {
			ward = spec.Wards - 1
		}
		rec.Ward = ward + 1
		wardCount[ward]++

		switch {
		case age >= 5 && age < 18 && spec.Schools > 0:
			rec.WorkplaceType = 2
			rec.School = ptr(rng.IntN(spec.Schools))
		case age >= 18 && age < 65 && spec.Offices > 0 && rng.Float64() < spec.WorkFraction:
			rec.WorkplaceType = 1
			rec.Workplace = ptr(rng.IntN(spec.Offices))
		}
		src.People[i] = rec
	}

	for w := range src.WardFractions {
		frac := float64(wardCount[w]) / float64(spec.People)
		src.WardFractions[w] = WardFraction{Population: frac, Quarantined: frac}
	}
	return src, nil
}

func ptr[T any](v T) *T { return &v }
