// Package config holds the immutable run configuration and its validation.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"episim/internal/disease"
	"episim/internal/intervention"
	"episim/internal/mixing"
	"episim/internal/population"
	"episim/internal/seeding"
	"episim/internal/surveillance"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("config: invalid")

// Run is the complete configuration of one simulation run.
type Run struct {
	// City selects a preset of contact rates and intervention offset.
	City    string `yaml:"city" validate:"omitempty,city"`
	DataDir string `yaml:"data_dir"`

	Synthetic SyntheticConfig `yaml:"synthetic"`

	Days        int    `yaml:"days" validate:"gt=0"`
	StepsPerDay int    `yaml:"steps_per_day" validate:"gt=0"`
	Seed        uint64 `yaml:"seed"`

	Disease      DiseaseConfig      `yaml:"disease"`
	Betas        BetaConfig         `yaml:"betas"`
	Transit      TransitConfig      `yaml:"transit"`
	AgeMixing    AgeMixingConfig    `yaml:"age_mixing"`
	Intervention InterventionConfig `yaml:"intervention"`
	Seeding      SeedingConfig      `yaml:"seeding"`
	Surveillance SurveillanceConfig `yaml:"surveillance"`
	Output       OutputConfig       `yaml:"output"`
	Log          LogConfig          `yaml:"log"`
}

// SyntheticConfig sizes the generated city used when no data directory is set.
type SyntheticConfig struct {
	People        int `yaml:"people" validate:"gt=0"`
	HouseholdSize int `yaml:"household_size" validate:"gt=0"`
	Offices       int `yaml:"offices" validate:"gte=0"`
	Schools       int `yaml:"schools" validate:"gte=0"`
	Wards         int `yaml:"wards" validate:"gt=0"`
}

// DiseaseConfig holds the disease constants; durations are in days.
type DiseaseConfig struct {
	IncubationMean       float64 `yaml:"incubation_mean" validate:"gt=0"`
	AsymptomaticMean     float64 `yaml:"asymptomatic_mean" validate:"gte=0"`
	SymptomaticMean      float64 `yaml:"symptomatic_mean" validate:"gte=0"`
	HospitalRegularMean  float64 `yaml:"hospital_regular_mean" validate:"gte=0"`
	HospitalCriticalMean float64 `yaml:"hospital_critical_mean" validate:"gte=0"`
	SymptomaticFraction  float64 `yaml:"symptomatic_fraction" validate:"gte=0,lte=1"`
	CaseDetectionRatio   float64 `yaml:"case_detection_ratio" validate:"gte=0,lte=1"`
}

// BetaConfig holds the per-layer contact rates.
type BetaConfig struct {
	Home      float64 `yaml:"home" validate:"gte=0"`
	Office    float64 `yaml:"office" validate:"gte=0"`
	School    float64 `yaml:"school" validate:"gte=0"`
	Community float64 `yaml:"community" validate:"gte=0"`
	Transit   float64 `yaml:"transit" validate:"gte=0"`
}

// TransitConfig controls public-transport uptake.
type TransitConfig struct {
	Fraction float64 `yaml:"fraction" validate:"gte=0,lte=1"`
	Groups   int     `yaml:"groups" validate:"gt=0"`
}

// AgeMixingConfig switches low-rank age mixing on and sets its ranks.
type AgeMixingConfig struct {
	Enabled       bool `yaml:"enabled"`
	HouseholdRank int  `yaml:"household_rank" validate:"min=1,max=16"`
	OfficeRank    int  `yaml:"office_rank" validate:"min=1,max=16"`
	SchoolRank    int  `yaml:"school_rank" validate:"min=1,max=16"`
}

// InterventionConfig selects a policy, or a sequence of policies, and when
// it starts.
type InterventionConfig struct {
	Policy                  string          `yaml:"policy" validate:"policy"`
	OffsetDays              int             `yaml:"offset_days" validate:"gte=0"`
	Compliance              *float64        `yaml:"compliance,omitempty" validate:"omitempty,gte=0,lte=1"`
	CalibrationLockdownDays int             `yaml:"calibration_lockdown_days" validate:"gt=0"`
	Schedule                []ScheduleEntry `yaml:"schedule,omitempty" validate:"dive"`
}

// ScheduleEntry is one step of a custom policy sequence.
type ScheduleEntry struct {
	Policy string `yaml:"policy" validate:"policy"`
	Days   int    `yaml:"days" validate:"gt=0"`
}

// SeedingConfig selects the seeding mode and its parameters.
type SeedingConfig struct {
	Mode          string  `yaml:"mode" validate:"seedmode"`
	InitFrac      float64 `yaml:"init_frac" validate:"gte=0,lte=1"`
	UniformWards  bool    `yaml:"uniform_wards"`
	ScalingFactor float64 `yaml:"scaling_factor" validate:"gte=0"`
	StartDay      float64 `yaml:"start_day" validate:"gte=0"`
	DurationDays  float64 `yaml:"duration_days" validate:"gte=0"`
	DoublingDays  float64 `yaml:"doubling_days" validate:"gt=0"`
	RateScale     float64 `yaml:"rate_scale" validate:"gte=0"`
}

// SurveillanceConfig switches wastewater sampling on and describes the sewer
// network.
type SurveillanceConfig struct {
	Enabled              bool    `yaml:"enabled"`
	WardsPerSewershed    int     `yaml:"wards_per_sewershed" validate:"gt=0"`
	SamplesPerWeek       float64 `yaml:"samples_per_week" validate:"gt=0,lte=7"`
	CollectionEfficiency float64 `yaml:"collection_efficiency" validate:"gt=0,lte=1"`
	Dilution             float64 `yaml:"dilution" validate:"gt=0"`
	LitresPerPerson      float64 `yaml:"litres_per_person" validate:"gt=0"`
	DetectionLimit       float64 `yaml:"detection_limit" validate:"gte=0"`
	NoiseFraction        float64 `yaml:"noise_fraction" validate:"gte=0,lt=1"`
	MinInfections        int     `yaml:"min_infections" validate:"gte=0"`

	Shedding SheddingConfig `yaml:"shedding"`
}

// SheddingConfig is the per-person RNA shedding curve; times are days since
// infection.
type SheddingConfig struct {
	StartDay             float64 `yaml:"start_day" validate:"gte=0"`
	PeakDay              float64 `yaml:"peak_day" validate:"gte=0"`
	Sigma                float64 `yaml:"sigma" validate:"gt=0"`
	DurationDays         float64 `yaml:"duration_days" validate:"gtfield=StartDay"`
	PeakRate             float64 `yaml:"peak_rate" validate:"gt=0"`
	AsymptomaticFraction float64 `yaml:"asymptomatic_fraction" validate:"gte=0,lte=1"`
}

// OutputConfig names optional report files.
type OutputConfig struct {
	XLSX   string `yaml:"xlsx"`
	SQLite string `yaml:"sqlite"`
}

// LogConfig selects the zap level and encoder.
type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=json console"`
}

var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("policy", func(fl validator.FieldLevel) bool {
		return slices.Contains(intervention.Names(), fl.Field().String())
	})
	_ = validate.RegisterValidation("seedmode", func(fl validator.FieldLevel) bool {
		return slices.Contains(seeding.Modes(), seeding.Mode(fl.Field().String()))
	})
	_ = validate.RegisterValidation("city", func(fl validator.FieldLevel) bool {
		_, ok := presets[fl.Field().String()]
		return ok
	})
}

// Default returns the calibrated defaults: 120 days of a 1,000 person
// synthetic city with no intervention.
func Default() Run {
	d := disease.DefaultParams()
	s := seeding.DefaultOptions()
	w := surveillance.DefaultParams()
	return Run{
		Synthetic: SyntheticConfig{
			People:        1000,
			HouseholdSize: 4,
			Offices:       20,
			Schools:       5,
			Wards:         4,
		},
		Days:        120,
		StepsPerDay: d.StepsPerDay,
		Seed:        1,
		Disease: DiseaseConfig{
			IncubationMean:       d.IncubationMean,
			AsymptomaticMean:     d.AsymptomaticMean,
			SymptomaticMean:      d.SymptomaticMean,
			HospitalRegularMean:  d.HospitalRegularMean,
			HospitalCriticalMean: d.HospitalCriticalMean,
			SymptomaticFraction:  d.SymptomaticFraction,
			CaseDetectionRatio:   d.CaseDetectionRatio,
		},
		Betas: BetaConfig{Home: 0.67, Office: 0.5, School: 1, Community: 0.15, Transit: 0},
		Transit: TransitConfig{
			Fraction: 0.5,
			Groups:   1,
		},
		AgeMixing: AgeMixingConfig{
			HouseholdRank: 16,
			OfficeRank:    16,
			SchoolRank:    16,
		},
		Intervention: InterventionConfig{
			Policy:                  intervention.None,
			OffsetDays:              24,
			CalibrationLockdownDays: intervention.DefaultCalibrationLockdownDays,
		},
		Seeding: SeedingConfig{
			Mode:          string(s.Mode),
			InitFrac:      s.InitFrac,
			UniformWards:  s.UniformWards,
			ScalingFactor: s.ScalingFactor,
			StartDay:      s.StartDay,
			DurationDays:  s.DurationDays,
			DoublingDays:  s.DoublingDays,
			RateScale:     s.RateScale,
		},
		Surveillance: SurveillanceConfig{
			WardsPerSewershed:    w.WardsPerSewershed,
			SamplesPerWeek:       w.SamplesPerWeek,
			CollectionEfficiency: w.CollectionEfficiency,
			Dilution:             w.Dilution,
			LitresPerPerson:      w.LitresPerPerson,
			DetectionLimit:       w.DetectionLimit,
			NoiseFraction:        w.NoiseFraction,
			MinInfections:        w.MinInfections,
			Shedding:             SheddingConfig(w.Shedding),
		},
		Log: LogConfig{Level: "info", Format: "console"},
	}
}

// Load reads a yaml file over the defaults. A city preset named in the file
// is applied before the file's own betas, so explicit values win.
func Load(path string) (Run, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Run{}, fmt.Errorf("read config: %w", err)
	}
	var probe struct {
		City string `yaml:"city"`
	}
	if err := yaml.Unmarshal(data, &probe); err != nil {
		return Run{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg := Default()
	if probe.City != "" {
		if err := cfg.ApplyCity(probe.City); err != nil {
			return Run{}, err
		}
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Run{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks field constraints and cross-field rules.
func (r Run) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if r.Seeding.Mode == string(seeding.InfectionRates) && r.DataDir == "" {
		return fmt.Errorf("%w: seeding mode %s needs a data directory with %s", ErrInvalidConfig, r.Seeding.Mode, population.InfectionSeedFile)
	}
	if r.Seeding.Mode == string(seeding.Dataset) && r.DataDir == "" {
		return fmt.Errorf("%w: seeding mode %s needs a data directory", ErrInvalidConfig, r.Seeding.Mode)
	}
	if r.AgeMixing.Enabled && r.DataDir == "" {
		return fmt.Errorf("%w: age mixing needs a data directory with mixing matrices", ErrInvalidConfig)
	}
	return nil
}

// DiseaseParams converts the disease section.
func (r Run) DiseaseParams() disease.Params {
	return disease.Params{
		StepsPerDay:          r.StepsPerDay,
		IncubationMean:       r.Disease.IncubationMean,
		AsymptomaticMean:     r.Disease.AsymptomaticMean,
		SymptomaticMean:      r.Disease.SymptomaticMean,
		HospitalRegularMean:  r.Disease.HospitalRegularMean,
		HospitalCriticalMean: r.Disease.HospitalCriticalMean,
		SymptomaticFraction:  r.Disease.SymptomaticFraction,
		CaseDetectionRatio:   r.Disease.CaseDetectionRatio,
	}
}

// SurveillanceParams converts the surveillance section. The symptomatic share
// of cases follows the disease section.
func (r Run) SurveillanceParams() surveillance.Params {
	w := r.Surveillance
	return surveillance.Params{
		WardsPerSewershed:    w.WardsPerSewershed,
		SamplesPerWeek:       w.SamplesPerWeek,
		CollectionEfficiency: w.CollectionEfficiency,
		Dilution:             w.Dilution,
		LitresPerPerson:      w.LitresPerPerson,
		Shedding:             surveillance.Shedding(w.Shedding),
		DetectionLimit:       w.DetectionLimit,
		NoiseFraction:        w.NoiseFraction,
		MinInfections:        w.MinInfections,
		SymptomaticShare:     r.Disease.SymptomaticFraction,
	}
}

// MixingBetas converts the beta section.
func (r Run) MixingBetas() mixing.Betas {
	return mixing.Betas(r.Betas)
}

// Compliance is the configured compliance or the default of the policy in
// force first.
func (r Run) Compliance() (float64, error) {
	if r.Intervention.Compliance != nil {
		return *r.Intervention.Compliance, nil
	}
	name := r.Intervention.Policy
	if len(r.Intervention.Schedule) > 0 {
		name = r.Intervention.Schedule[0].Policy
	}
	return intervention.Compliance(name)
}

// PopulationParams converts the construction-time parameters.
func (r Run) PopulationParams() (population.Params, error) {
	c, err := r.Compliance()
	if err != nil {
		return population.Params{}, err
	}
	return population.Params{
		Disease:         r.DiseaseParams(),
		Compliance:      c,
		TransitFraction: r.Transit.Fraction,
		TransitGroups:   r.Transit.Groups,
	}, nil
}

// SyntheticSpec converts the synthetic city section.
func (r Run) SyntheticSpec() population.SyntheticSpec {
	spec := population.DefaultSyntheticSpec()
	spec.People = r.Synthetic.People
	spec.HouseholdSize = r.Synthetic.HouseholdSize
	spec.Offices = r.Synthetic.Offices
	spec.Schools = r.Synthetic.Schools
	spec.Wards = r.Synthetic.Wards
	return spec
}

// SeedingOptions converts the seeding section; src supplies the data the
// dataset-driven modes need.
func (r Run) SeedingOptions(src *population.Sources) seeding.Options {
	s := r.Seeding
	opts := seeding.Options{
		Mode:          seeding.Mode(s.Mode),
		InitFrac:      s.InitFrac,
		UniformWards:  s.UniformWards,
		ScalingFactor: s.ScalingFactor,
		StartDay:      s.StartDay,
		DurationDays:  s.DurationDays,
		DoublingDays:  s.DoublingDays,
		RateScale:     s.RateScale,
	}
	if src != nil {
		opts.WardFractions = src.WardFractions
		opts.People = src.People
		opts.Curve = src.SeedCurve
	}
	return opts
}

// PolicyLabel names the configured policy, or the policies of a schedule
// joined by "+".
func (r Run) PolicyLabel() string {
	if len(r.Intervention.Schedule) == 0 {
		return r.Intervention.Policy
	}
	names := make([]string, len(r.Intervention.Schedule))
	for i, e := range r.Intervention.Schedule {
		names[i] = e.Policy
	}
	return strings.Join(names, "+")
}

// Schedule resolves the intervention section into a schedule.
func (r Run) Schedule() (*intervention.Schedule, error) {
	iv := r.Intervention
	var entries []intervention.Entry
	if len(iv.Schedule) == 0 {
		p, err := intervention.Lookup(iv.Policy, iv.CalibrationLockdownDays)
		if err != nil {
			return nil, err
		}
		entries = []intervention.Entry{{Name: iv.Policy, Policy: p}}
	}
	for _, e := range iv.Schedule {
		p, err := intervention.Lookup(e.Policy, iv.CalibrationLockdownDays)
		if err != nil {
			return nil, err
		}
		entries = append(entries, intervention.Entry{Name: e.Policy, Policy: p, Days: e.Days})
	}
	return intervention.NewSchedule(iv.OffsetDays, r.StepsPerDay, entries)
}
