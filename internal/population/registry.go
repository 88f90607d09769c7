// Package population builds the linked city of individuals and venues.
package population

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"

	"episim/internal/disease"
	"episim/internal/model"
)

// ErrInvalidRecord is wrapped by every input-data error of Build.
var ErrInvalidRecord = errors.New("population: invalid record")

// Params are the construction-time parameters of a city.
type Params struct {
	Disease         disease.Params
	Compliance      float64 // per-household probability
	TransitFraction float64 // share of workers and students using transit
	TransitGroups   int
}

// DefaultParams returns the defaults of a calibration run.
func DefaultParams() Params {
	return Params{
		Disease:         disease.DefaultParams(),
		Compliance:      0.9,
		TransitFraction: 0.5,
		TransitGroups:   1,
	}
}

func invalid(kind string, i int, field, format string, args ...any) error {
	return fmt.Errorf("%w: %s %d: %s: %s", ErrInvalidRecord, kind, i, field, fmt.Sprintf(format, args...))
}

// Build links the records of src into a city. It returns an error naming the
// offending record and field for any dangling reference; no partially linked
// city is returned.
func Build(src *Sources, p Params, rng *rand.Rand) (*model.City, error) {
	if len(src.Wards) == 0 {
		return nil, fmt.Errorf("%w: no wards", ErrInvalidRecord)
	}
	if p.TransitGroups < 1 {
		return nil, fmt.Errorf("population: transit groups must be positive, got %d", p.TransitGroups)
	}

	wards := make([]Ward, len(src.Wards))
	copy(wards, src.Wards)
	sort.SliceStable(wards, func(a, b int) bool { return wards[a].Ward < wards[b].Ward })
	wardIndex := make(map[int]int, len(wards))
	for i, w := range wards {
		if _, dup := wardIndex[w.Ward]; dup {
			return nil, invalid("ward", i, "wardNo", "duplicate ward %d", w.Ward)
		}
		wardIndex[w.Ward] = i
	}

	city := &model.City{
		Individuals: make([]model.Individual, len(src.People)),
		Households:  make([]model.Household, len(src.Households)),
		Workplaces:  make([]model.Workplace, 0, len(src.Schools)+len(src.Offices)),
		Communities: make([]model.Community, len(wards)),
		Transit:     make([]model.TransitGroup, p.TransitGroups),
	}

	compliance := distuv.Bernoulli{P: p.Compliance, Src: rng}
	for h, place := range src.Households {
		city.Households[h] = model.Household{
			Loc:       model.Location{Lat: place.Lat, Lon: place.Lon},
			Q:         1,
			Compliant: compliance.Rand() == 1,
		}
	}
	for _, place := range src.Schools {
		city.Workplaces = append(city.Workplaces, model.Workplace{
			Loc:  model.Location{Lat: place.Lat, Lon: place.Lon},
			Kind: model.School,
		})
	}
	for _, place := range src.Offices {
		city.Workplaces = append(city.Workplaces, model.Workplace{
			Loc:  model.Location{Lat: place.Lat, Lon: place.Lon},
			Kind: model.Office,
		})
	}
	for c, w := range wards {
		city.Communities[c] = model.Community{
			Ward: w.Ward,
			Loc:  model.Location{Lat: w.Lat, Lon: w.Lon},
		}
	}

	dist, err := wardDistances(src.WardDistances, city.Communities)
	if err != nil {
		return nil, err
	}
	city.WardDistance = dist

	for i, rec := range src.People {
		ind, err := individual(i, rec, city, wardIndex, len(src.Schools))
		if err != nil {
			return nil, err
		}
		disease.DrawTraits(&ind, rng)
		disease.DrawDurations(&ind, p.Disease, rng)
		city.Individuals[i] = ind
	}

	link(city)
	AssignTransit(city, p.TransitFraction, rng)
	return city, nil
}

// individual converts record i and checks its references.
func individual(i int, rec PersonRecord, city *model.City, wardIndex map[int]int, numSchools int) (model.Individual, error) {
	if rec.Age < 0 {
		return model.Individual{}, invalid("individual", i, "age", "negative age %d", rec.Age)
	}
	if rec.Household == nil {
		return model.Individual{}, invalid("individual", i, "household", "missing")
	}
	if h := *rec.Household; h < 0 || h >= len(city.Households) {
		return model.Individual{}, invalid("individual", i, "household", "index %d out of range [0,%d)", h, len(city.Households))
	}
	community, ok := wardIndex[rec.Ward]
	if !ok {
		return model.Individual{}, invalid("individual", i, "wardNo", "unknown ward %d", rec.Ward)
	}

	ind := model.Individual{
		ID:            i,
		Age:           rec.Age,
		AgeGroup:      model.AgeGroup(rec.Age),
		AgeBand:       model.AgeBand(rec.Age),
		Loc:           model.Location{Lat: rec.Lat, Lon: rec.Lon},
		Zeta:          model.Zeta(rec.Age),
		Household:     *rec.Household,
		Community:     community,
		WorkplaceType: model.WorkplaceType(rec.WorkplaceType),
		DistHomeWork:  1,
		State:         model.Susceptible,
		Kappa:         model.FullKappa(),
		KappaIncoming: model.FullKappa(),
	}

	switch ind.WorkplaceType {
	case model.Office:
		if rec.Workplace != nil {
			w := *rec.Workplace
			if w < 0 || numSchools+w >= len(city.Workplaces) {
				return model.Individual{}, invalid("individual", i, "workplace", "office %d out of range [0,%d)", w, len(city.Workplaces)-numSchools)
			}
			ind.Workplace = model.Some(numSchools + w)
		}
	case model.School:
		if rec.School != nil {
			s := *rec.School
			if s < 0 || s >= numSchools {
				return model.Individual{}, invalid("individual", i, "school", "school %d out of range [0,%d)", s, numSchools)
			}
			ind.Workplace = model.Some(s)
		}
	case model.Home:
	default:
		return model.Individual{}, invalid("individual", i, "workplaceType", "unknown type %d", rec.WorkplaceType)
	}
	if !ind.Workplace.Valid() {
		ind.WorkplaceType = model.Home
	}

	ind.KernelDist = model.Kernel(model.Distance(ind.Loc, city.Communities[community].Loc))
	return ind, nil
}

// link fills venue member lists and copies household compliance to members.
func link(city *model.City) {
	for i := range city.Individuals {
		ind := &city.Individuals[i]
		home := &city.Households[ind.Household]
		home.Members = append(home.Members, i)
		ind.Compliant = home.Compliant
		if w, ok := ind.Workplace.Get(); ok {
			city.Workplaces[w].Members = append(city.Workplaces[w].Members, i)
		}
		city.Communities[ind.Community].Members = append(city.Communities[ind.Community].Members, i)
	}
}

// wardDistances validates the inter-ward matrix, or derives it from the ward
// centres when none is given.
func wardDistances(in [][]float64, communities []model.Community) ([][]float64, error) {
	n := len(communities)
	if in == nil {
		out := make([][]float64, n)
		for a := range out {
			out[a] = make([]float64, n)
			for b := range out[a] {
				out[a][b] = model.Distance(communities[a].Loc, communities[b].Loc)
			}
		}
		return out, nil
	}
	if len(in) != n {
		return nil, fmt.Errorf("%w: ward distance matrix has %d rows for %d wards", ErrInvalidRecord, len(in), n)
	}
	for a, row := range in {
		if len(row) != n {
			return nil, invalid("ward distance row", a, "columns", "%d columns for %d wards", len(row), n)
		}
	}
	return in, nil
}
