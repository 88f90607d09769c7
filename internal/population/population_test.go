package population

import (
	"errors"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"episim/internal/model"
)

func newRNG() *rand.Rand { return rand.New(rand.NewPCG(1, 2)) }

func tinySources() *Sources {
	return &Sources{
		People: []PersonRecord{
			{Age: 40, Lat: 12.9, Lon: 77.6, Household: ptr(0), WorkplaceType: 1, Workplace: ptr(0), Ward: 2},
			{Age: 9, Lat: 12.9, Lon: 77.6, Household: ptr(0), WorkplaceType: 2, School: ptr(0), Ward: 2},
			{Age: 81, Lat: 12.95, Lon: 77.55, Household: ptr(1), Ward: 1},
			{Age: 30, Lat: 12.95, Lon: 77.55, Household: ptr(1), WorkplaceType: 1, Ward: 1},
		},
		Households: []Place{{12.9, 77.6}, {12.95, 77.55}},
		Offices:    []Place{{12.97, 77.59}},
		Schools:    []Place{{12.91, 77.61}},
		Wards: []Ward{
			{Ward: 2, Lat: 12.9, Lon: 77.6},
			{Ward: 1, Lat: 12.95, Lon: 77.55},
		},
	}
}

func TestBuildLinksEverything(t *testing.T) {
	p := DefaultParams()
	p.TransitFraction = 1
	city, err := Build(tinySources(), p, newRNG())
	require.NoError(t, err)

	require.Len(t, city.Communities, 2)
	assert.Equal(t, 1, city.Communities[0].Ward, "sorted by ward number")
	assert.Equal(t, []int{2, 3}, city.Communities[0].Members)
	assert.Equal(t, []int{0, 1}, city.Communities[1].Members)

	require.Len(t, city.Workplaces, 2)
	assert.Equal(t, model.School, city.Workplaces[0].Kind, "schools first")
	assert.Equal(t, model.Office, city.Workplaces[1].Kind)

	office := city.Individuals[0]
	w, ok := office.Workplace.Get()
	require.True(t, ok)
	assert.Equal(t, 1, w)

	school := city.Individuals[1]
	w, ok = school.Workplace.Get()
	require.True(t, ok)
	assert.Equal(t, 0, w)
	assert.Equal(t, 1, school.AgeGroup)
	assert.Equal(t, 0, school.AgeBand)

	elder := city.Individuals[2]
	assert.Equal(t, model.Home, elder.WorkplaceType)
	assert.False(t, elder.Transit.Valid())
	assert.Equal(t, 1.0, elder.DistHomeWork)
	assert.Equal(t, 15, elder.AgeGroup)
	assert.Equal(t, 8, elder.AgeBand)

	// office type without a workplace id becomes home type
	noJob := city.Individuals[3]
	assert.Equal(t, model.Home, noJob.WorkplaceType)
	assert.False(t, noJob.Workplace.Valid())
	assert.False(t, noJob.Transit.Valid())

	assert.True(t, office.Transit.Valid())
	assert.InDelta(t, model.Distance(office.Loc, city.Workplaces[1].Loc), office.DistHomeWork, 1e-12)
	assert.Equal(t, []int{0, 1}, city.Transit[0].Members)

	assert.Equal(t, []int{0, 1}, city.Households[0].Members)
	for _, ind := range city.Individuals {
		assert.Equal(t, city.Households[ind.Household].Compliant, ind.Compliant)
		assert.Equal(t, 1.0, city.Households[ind.Household].Q)
		assert.Greater(t, ind.IncubationPeriod, 0.0)
		assert.Equal(t, model.Susceptible, ind.State)
	}
	assert.Equal(t, 1.0, office.KernelDist, "lives at the ward centre")

	require.Len(t, city.WardDistance, 2)
	assert.Equal(t, 0.0, city.WardDistance[0][0])
	assert.Greater(t, city.WardDistance[0][1], 0.0)
}

func TestBuildRejectsBadRecords(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Sources)
		field  string
	}{
		{"missing household", func(s *Sources) { s.People[1].Household = nil }, "household"},
		{"household range", func(s *Sources) { s.People[1].Household = ptr(7) }, "household"},
		{"unknown ward", func(s *Sources) { s.People[2].Ward = 9 }, "wardNo"},
		{"office range", func(s *Sources) { s.People[0].Workplace = ptr(3) }, "workplace"},
		{"school range", func(s *Sources) { s.People[1].School = ptr(-1) }, "school"},
		{"negative age", func(s *Sources) { s.People[3].Age = -2 }, "age"},
		{"distance shape", func(s *Sources) { s.WardDistances = [][]float64{{0, 1}} }, "ward distance"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := tinySources()
			tt.mutate(src)
			city, err := Build(src, DefaultParams(), newRNG())
			require.Error(t, err)
			assert.Nil(t, city)
			assert.True(t, errors.Is(err, ErrInvalidRecord))
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestSyntheticBuilds(t *testing.T) {
	spec := DefaultSyntheticSpec()
	src, err := Synthetic(spec, newRNG())
	require.NoError(t, err)
	require.Len(t, src.People, spec.People)

	city, err := Build(src, DefaultParams(), newRNG())
	require.NoError(t, err)

	members := 0
	for _, h := range city.Households {
		assert.NotEmpty(t, h.Members)
		members += len(h.Members)
	}
	assert.Equal(t, spec.People, members)

	riders := 0
	for _, ind := range city.Individuals {
		if !ind.Workplace.Valid() {
			assert.Equal(t, model.Home, ind.WorkplaceType)
			assert.False(t, ind.Transit.Valid())
		}
		if ind.Transit.Valid() {
			riders++
		}
	}
	assert.Greater(t, riders, 0)

	fracs := 0.0
	for _, f := range src.WardFractions {
		fracs += f.Population
	}
	assert.InDelta(t, 1, fracs, 1e-9)

	_, err = Synthetic(SyntheticSpec{}, newRNG())
	assert.Error(t, err)
}

func writeFile(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600))
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, IndividualsFile, `[
		{"age": 30, "lat": 12.9, "lon": 77.6, "household": 0, "workplaceType": 1, "workplace": 0, "school": null, "wardNo": 1},
		{"age": 7, "lat": 12.9, "lon": 77.6, "household": 0, "workplaceType": 2, "workplace": null, "school": 0, "wardNo": 2,
		 "infection_status": 1, "time_of_infection": 0.5}
	]`)
	writeFile(t, dir, HousesFile, `[{"lat": 12.9, "lon": 77.6}]`)
	writeFile(t, dir, WorkplacesFile, `[{"lat": 12.95, "lon": 77.6}]`)
	writeFile(t, dir, SchoolsFile, `[{"lat": 12.92, "lon": 77.61}]`)
	writeFile(t, dir, CommonAreaFile, `[{"wardNo": 2, "lat": 12.9, "lon": 77.7}, {"wardNo": 1, "lat": 12.9, "lon": 77.6}]`)
	writeFile(t, dir, WardDistanceFile, `[{"1": 0, "2": 10.5}, {"1": 10.5, "2": 0}]`)
	writeFile(t, dir, FractionPopFile, `[{"fracPopulation": 0.5}, {"fracPopulation": 0.5}]`)
	writeFile(t, dir, QuarantinedFile, `[{"fracQuarantined": 0.25}, {"fracQuarantined": 0.75}]`)
	writeFile(t, dir, InfectionSeedFile, `{"seed_fit": {"0": 1, "2": 3, "1": 2, "10": 4}}`)

	src, err := LoadDir(dir)
	require.NoError(t, err)
	require.Len(t, src.People, 2)
	assert.Nil(t, src.People[0].School)
	require.NotNil(t, src.People[1].SeedState)
	assert.Equal(t, 1, *src.People[1].SeedState)
	assert.Equal(t, [][]float64{{0, 10.5}, {10.5, 0}}, src.WardDistances)
	assert.Equal(t, WardFraction{Population: 0.5, Quarantined: 0.75}, src.WardFractions[1])
	assert.Equal(t, []float64{1, 2, 3, 4}, src.SeedCurve)
	assert.Nil(t, src.Mixing.Household)

	city, err := Build(src, DefaultParams(), newRNG())
	require.NoError(t, err)
	assert.Equal(t, 0, city.Individuals[0].Community)
	assert.Equal(t, 1, city.Individuals[1].Community)
}

func TestLoadDirMixingTransposed(t *testing.T) {
	dir := t.TempDir()
	for _, f := range []string{HousesFile, WorkplacesFile, SchoolsFile, IndividualsFile} {
		writeFile(t, dir, f, `[]`)
	}
	writeFile(t, dir, CommonAreaFile, `[{"wardNo": 1, "lat": 0, "lon": 0}]`)
	writeFile(t, dir, WardDistanceFile, `[{"1": 0}]`)
	writeFile(t, dir, FractionPopFile, `[{"fracPopulation": 1}]`)
	writeFile(t, dir, "Sigma_household.json", `[[2, 0], [0, 3]]`)
	writeFile(t, dir, "U_household.json", `[[1, 2], [3, 4]]`)
	writeFile(t, dir, "Vtranspose_household.json", `[[5, 6], [7, 8]]`)

	src, err := LoadDir(dir)
	require.NoError(t, err)
	require.NotNil(t, src.Mixing.Household)
	assert.Equal(t, []float64{2, 3}, src.Mixing.Household.Sigma)
	assert.Equal(t, [][]float64{{1, 3}, {2, 4}}, src.Mixing.Household.U)
	assert.Equal(t, [][]float64{{5, 7}, {6, 8}}, src.Mixing.Household.VT)
	assert.Nil(t, src.Mixing.School)
	assert.Nil(t, src.SeedCurve)
}

func TestLoadDirMissingFile(t *testing.T) {
	_, err := LoadDir(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), IndividualsFile)
}
