package main

import (
	"fmt"
	"math/rand/v2"

	"go.uber.org/zap"

	"episim/internal/config"
	"episim/internal/mixing"
	"episim/internal/population"
	"episim/internal/seeding"
	"episim/internal/sim"
	"episim/internal/transmission"
)

// newRNG derives the single random stream of a run from its seed.
func newRNG(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// surveillanceRNG is the stream of the wastewater measurement error, kept apart
// so sampling never changes the course of a run.
func surveillanceRNG(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed^0x5851f42d4c957f2d, seed))
}

// loadSources reads the data directory, or generates a synthetic city when
// none is configured.
func loadSources(cfg config.Run, rng *rand.Rand) (*population.Sources, error) {
	if cfg.DataDir != "" {
		return population.LoadDir(cfg.DataDir)
	}
	return population.Synthetic(cfg.SyntheticSpec(), rng)
}

// ageMixing truncates the matrices found in src. Classes without matrices
// mix uniformly.
func ageMixing(cfg config.Run, src *population.Sources, log *zap.Logger) (transmission.AgeMixing, error) {
	var out transmission.AgeMixing
	if !cfg.AgeMixing.Enabled {
		return out, nil
	}
	classes := []struct {
		name string
		raw  *mixing.Raw
		rank int
		into **mixing.LowRank
	}{
		{"household", src.Mixing.Household, cfg.AgeMixing.HouseholdRank, &out.Household},
		{"workplace", src.Mixing.Office, cfg.AgeMixing.OfficeRank, &out.Office},
		{"school", src.Mixing.School, cfg.AgeMixing.SchoolRank, &out.School},
	}
	for _, c := range classes {
		if c.raw == nil {
			log.Warn("no mixing matrices, mixing uniformly", zap.String("class", c.name))
			continue
		}
		m, err := mixing.NewLowRank(*c.raw, c.rank)
		if err != nil {
			return out, fmt.Errorf("%s mixing: %w", c.name, err)
		}
		*c.into = m
	}
	return out, nil
}

// setup builds the city and the run context described by cfg. cfg must be
// valid.
func setup(cfg config.Run, log *zap.Logger) (*sim.Context, error) {
	rng := newRNG(cfg.Seed)

	src, err := loadSources(cfg, rng)
	if err != nil {
		return nil, err
	}
	params, err := cfg.PopulationParams()
	if err != nil {
		return nil, err
	}
	city, err := population.Build(src, params, rng)
	if err != nil {
		return nil, err
	}
	log.Info("city built",
		zap.Int("individuals", len(city.Individuals)),
		zap.Int("households", len(city.Households)),
		zap.Int("workplaces", len(city.Workplaces)),
		zap.Int("communities", len(city.Communities)))

	seeder, err := seeding.New(cfg.SeedingOptions(src), cfg.StepsPerDay, rng, log)
	if err != nil {
		return nil, err
	}
	schedule, err := cfg.Schedule()
	if err != nil {
		return nil, err
	}
	mix, err := ageMixing(cfg, src, log)
	if err != nil {
		return nil, err
	}

	run, err := sim.New(city, sim.Options{
		Days:      cfg.Days,
		Disease:   cfg.DiseaseParams(),
		Betas:     cfg.MixingBetas(),
		Schedule:  schedule,
		Seeder:    seeder,
		AgeMixing: mix,
	}, rng, log)
	if err != nil {
		return nil, err
	}
	return run, nil
}
