package population

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"episim/internal/mixing"
)

// Dataset file names inside a city directory.
const (
	IndividualsFile   = "individuals.json"
	HousesFile        = "houses.json"
	WorkplacesFile    = "workplaces.json"
	SchoolsFile       = "schools.json"
	CommonAreaFile    = "commonArea.json"
	WardDistanceFile  = "wardCentreDistance.json"
	FractionPopFile   = "fractionPopulation.json"
	QuarantinedFile   = "quarantinedPopulation.json"
	InfectionSeedFile = "infection_seeds.json"
)

// LoadDir reads a city dataset directory. Seed curve and mixing matrices are
// optional; every other file is required.
func LoadDir(dir string) (*Sources, error) {
	src := &Sources{}

	required := []struct {
		name string
		into any
	}{
		{IndividualsFile, &src.People},
		{HousesFile, &src.Households},
		{WorkplacesFile, &src.Offices},
		{SchoolsFile, &src.Schools},
		{CommonAreaFile, &src.Wards},
	}
	for _, f := range required {
		if err := readJSON(filepath.Join(dir, f.name), f.into); err != nil {
			return nil, err
		}
	}

	dist, err := loadWardDistances(filepath.Join(dir, WardDistanceFile), len(src.Wards))
	if err != nil {
		return nil, err
	}
	src.WardDistances = dist

	fractions, err := loadWardFractions(dir)
	if err != nil {
		return nil, err
	}
	src.WardFractions = fractions

	curve, err := loadSeedCurve(filepath.Join(dir, InfectionSeedFile))
	if err != nil {
		return nil, err
	}
	src.SeedCurve = curve

	for _, class := range []struct {
		suffix string
		into   **mixing.Raw
	}{
		{"household", &src.Mixing.Household},
		{"workplace", &src.Mixing.Office},
		{"school", &src.Mixing.School},
	} {
		raw, err := loadMixing(dir, class.suffix)
		if err != nil {
			return nil, err
		}
		*class.into = raw
	}
	return src, nil
}

func readJSON(path string, into any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	if err := json.Unmarshal(data, into); err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return nil
}

// readOptional is readJSON that reports false for a missing file.
func readOptional(path string, into any) (bool, error) {
	err := readJSON(path, into)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return err == nil, err
}

// loadWardDistances reads rows keyed by 1-based ward number, as "1".."n".
func loadWardDistances(path string, n int) ([][]float64, error) {
	var rows []map[string]float64
	if err := readJSON(path, &rows); err != nil {
		return nil, err
	}
	if len(rows) != n {
		return nil, fmt.Errorf("%w: %s has %d rows for %d wards", ErrInvalidRecord, WardDistanceFile, len(rows), n)
	}
	out := make([][]float64, n)
	for a := range out {
		out[a] = make([]float64, n)
	}
	for a := 0; a < n; a++ {
		for b := a + 1; b < n; b++ {
			d, ok := rows[a][strconv.Itoa(b+1)]
			if !ok {
				return nil, invalid("ward distance row", a, strconv.Itoa(b+1), "missing")
			}
			out[a][b] = d
			out[b][a] = d
		}
	}
	return out, nil
}

func loadWardFractions(dir string) ([]WardFraction, error) {
	var pop []struct {
		Frac float64 `json:"fracPopulation"`
	}
	if err := readJSON(filepath.Join(dir, FractionPopFile), &pop); err != nil {
		return nil, err
	}
	var quarantined []struct {
		Frac float64 `json:"fracQuarantined"`
	}
	ok, err := readOptional(filepath.Join(dir, QuarantinedFile), &quarantined)
	if err != nil {
		return nil, err
	}
	if ok && len(quarantined) != len(pop) {
		return nil, fmt.Errorf("%w: %s has %d wards, %s has %d", ErrInvalidRecord, QuarantinedFile, len(quarantined), FractionPopFile, len(pop))
	}

	out := make([]WardFraction, len(pop))
	for w := range pop {
		out[w].Population = pop[w].Frac
		if ok {
			out[w].Quarantined = quarantined[w].Frac
		}
	}
	return out, nil
}

// loadSeedCurve reads {"seed_fit": {"0": n, "1": n, ...}} ordered by day.
func loadSeedCurve(path string) ([]float64, error) {
	var doc struct {
		SeedFit map[string]float64 `json:"seed_fit"`
	}
	ok, err := readOptional(path, &doc)
	if err != nil || !ok {
		return nil, err
	}
	days := make([]int, 0, len(doc.SeedFit))
	byDay := make(map[int]float64, len(doc.SeedFit))
	for k, v := range doc.SeedFit {
		d, err := strconv.Atoi(k)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: day key %q", ErrInvalidRecord, InfectionSeedFile, k)
		}
		days = append(days, d)
		byDay[d] = v
	}
	sort.Ints(days)
	out := make([]float64, len(days))
	for i, d := range days {
		out[i] = byDay[d]
	}
	return out, nil
}

// loadMixing reads Sigma_, U_ and Vtranspose_ files of one venue class.
// Sigma is stored as a diagonal matrix; U and Vᵀ are stored transposed.
func loadMixing(dir, suffix string) (*mixing.Raw, error) {
	var sigma, u, vt [][]float64
	ok, err := readOptional(filepath.Join(dir, "Sigma_"+suffix+".json"), &sigma)
	if err != nil || !ok {
		return nil, err
	}
	if err := readJSON(filepath.Join(dir, "U_"+suffix+".json"), &u); err != nil {
		return nil, err
	}
	if err := readJSON(filepath.Join(dir, "Vtranspose_"+suffix+".json"), &vt); err != nil {
		return nil, err
	}

	raw := &mixing.Raw{Sigma: make([]float64, len(sigma))}
	for i, row := range sigma {
		if i >= len(row) {
			return nil, fmt.Errorf("%w: Sigma_%s.json row %d", mixing.ErrShape, suffix, i)
		}
		raw.Sigma[i] = row[i]
	}
	if raw.U, err = transpose(u); err != nil {
		return nil, fmt.Errorf("U_%s.json: %w", suffix, err)
	}
	if raw.VT, err = transpose(vt); err != nil {
		return nil, fmt.Errorf("Vtranspose_%s.json: %w", suffix, err)
	}
	return raw, nil
}

func transpose(m [][]float64) ([][]float64, error) {
	if len(m) == 0 {
		return nil, nil
	}
	cols := len(m[0])
	out := make([][]float64, cols)
	for c := range out {
		out[c] = make([]float64, len(m))
	}
	for r, row := range m {
		if len(row) != cols {
			return nil, fmt.Errorf("%w: ragged row %d", mixing.ErrShape, r)
		}
		for c, v := range row {
			out[c][r] = v
		}
	}
	return out, nil
}
