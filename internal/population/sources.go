package population

import "episim/internal/mixing"

// PersonRecord is one row of the individuals dataset.
type PersonRecord struct {
	Age           int      `json:"age"`
	Lat           float64  `json:"lat"`
	Lon           float64  `json:"lon"`
	Household     *int     `json:"household"`
	WorkplaceType int      `json:"workplaceType"`
	Workplace     *int     `json:"workplace"`
	School        *int     `json:"school"`
	Ward          int      `json:"wardNo"` // 1-based
	SeedState     *int     `json:"infection_status,omitempty"`
	SeedTime      *float64 `json:"time_of_infection,omitempty"` // days
}

// Place is a venue location.
type Place struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Ward is a community centre.
type Ward struct {
	Ward int     `json:"wardNo"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

// WardFraction holds the per-ward population and quarantined fractions.
type WardFraction struct {
	Population  float64
	Quarantined float64
}

// Sources is everything the registry needs to build a city.
type Sources struct {
	People        []PersonRecord
	Households    []Place
	Offices       []Place
	Schools       []Place
	Wards         []Ward
	WardDistances [][]float64 // indexed by sorted ward position
	WardFractions []WardFraction

	SeedCurve []float64 // optional, seeds per day
	Mixing    mixing.Matrices
}
