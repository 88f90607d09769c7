package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"episim/internal/config"
	"episim/internal/logging"
	"episim/internal/metrics"
	"episim/internal/report"
	"episim/internal/sim"
	"episim/internal/surveillance"
)

// runFlags override values of the configuration file.
type runFlags struct {
	config      string
	city        string
	dataDir     string
	people      int
	days        int
	seed        uint64
	policy      string
	seedMode    string
	ageMixing   bool
	xlsx        string
	sqlite      string
	logLevel    string
	logFormat   string
	metricsAddr string
	wastewater  bool
}

func (f *runFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVarP(&f.config, "config", "c", "", "yaml run configuration")
	fs.StringVar(&f.city, "city", "", "city preset for contact rates and intervention offset")
	fs.StringVar(&f.dataDir, "data-dir", "", "city dataset directory (default: synthetic city)")
	fs.IntVar(&f.people, "people", 0, "size of the synthetic city")
	fs.IntVar(&f.days, "days", 0, "days to simulate")
	fs.Uint64Var(&f.seed, "seed", 0, "random seed")
	fs.StringVar(&f.policy, "policy", "", "intervention policy, see 'episim policies'")
	fs.StringVar(&f.seedMode, "seeding", "", "seeding mode: wardwise, dataset, infection_rates or exp_rate")
	fs.BoolVar(&f.ageMixing, "age-mixing", false, "use the low-rank age mixing matrices of the dataset")
	fs.StringVar(&f.xlsx, "xlsx", "", "write daily results to this workbook")
	fs.StringVar(&f.sqlite, "sqlite", "", "append timestep results to this database")
	fs.StringVar(&f.logLevel, "log-level", "", "debug, info, warn or error")
	fs.StringVar(&f.logFormat, "log-format", "", "console or json")
	fs.StringVar(&f.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running")
	fs.BoolVar(&f.wastewater, "wastewater", false, "sample the wastewater of every sewershed")
}

// resolve loads the configuration and applies the flags set on cmd.
func (f *runFlags) resolve(cmd *cobra.Command) (config.Run, error) {
	cfg := config.Default()
	if f.config != "" {
		var err error
		if cfg, err = config.Load(f.config); err != nil {
			return cfg, err
		}
	}
	changed := cmd.Flags().Changed
	if changed("city") {
		if err := cfg.ApplyCity(f.city); err != nil {
			return cfg, err
		}
	}
	if changed("data-dir") {
		cfg.DataDir = f.dataDir
	}
	if changed("people") {
		cfg.Synthetic.People = f.people
	}
	if changed("days") {
		cfg.Days = f.days
	}
	if changed("seed") {
		cfg.Seed = f.seed
	}
	if changed("policy") {
		cfg.Intervention.Policy = f.policy
		cfg.Intervention.Schedule = nil
	}
	if changed("seeding") {
		cfg.Seeding.Mode = f.seedMode
	}
	if changed("age-mixing") {
		cfg.AgeMixing.Enabled = f.ageMixing
	}
	if changed("xlsx") {
		cfg.Output.XLSX = f.xlsx
	}
	if changed("sqlite") {
		cfg.Output.SQLite = f.sqlite
	}
	if changed("wastewater") {
		cfg.Surveillance.Enabled = f.wastewater
	}
	if changed("log-level") {
		cfg.Log.Level = f.logLevel
	}
	if changed("log-format") {
		cfg.Log.Format = f.logFormat
	}
	return cfg, cfg.Validate()
}

func newRunCmd() *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a simulation",
		Long:  `Runs a simulation and prints one line of state counts per day. Results can also be written to a workbook, a SQLite database and a Prometheus endpoint.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := f.resolve(cmd)
			if err != nil {
				return err
			}
			log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
			if err != nil {
				return fmt.Errorf("create logger: %w", err)
			}
			defer func() { _ = log.Sync() }()
			return execute(cmd.Context(), cmd, cfg, f.metricsAddr, log)
		},
	}
	f.register(cmd)
	return cmd
}

// execute runs cfg to completion with every configured sink attached.
func execute(ctx context.Context, cmd *cobra.Command, cfg config.Run, metricsAddr string, log *zap.Logger) error {
	run, err := setup(cfg, log)
	if err != nil {
		return err
	}
	log = log.With(zap.String("run_id", run.RunID.String()))

	observers := []sim.Observer{newStatsPrinter(cmd.OutOrStdout())}
	var sinks []surveillance.Sink
	closeAll := func() {
		for _, o := range observers[1:] {
			_ = o.Close(run.Summary())
		}
	}
	if cfg.Output.XLSX != "" {
		w, err := report.NewXLSXWriter(cfg.Output.XLSX)
		if err != nil {
			closeAll()
			return err
		}
		observers = append(observers, w)
		sinks = append(sinks, w)
	}
	if cfg.Output.SQLite != "" {
		w, err := report.NewSQLiteWriter(cfg.Output.SQLite, report.RunInfo{
			RunID:  run.RunID.String(),
			Policy: cfg.PolicyLabel(),
			Seed:   cfg.Seed,
			Days:   cfg.Days,
			People: len(run.City.Individuals),
		})
		if err != nil {
			closeAll()
			return err
		}
		observers = append(observers, w)
		sinks = append(sinks, w)
	}

	var reg *prometheus.Registry
	if metricsAddr != "" {
		reg = prometheus.NewRegistry()
		r := metrics.NewRecorder(reg)
		observers = append(observers, r)
		sinks = append(sinks, r)
	}
	if cfg.Surveillance.Enabled {
		m, err := surveillance.NewMonitor(run.City, cfg.StepsPerDay, cfg.SurveillanceParams(),
			surveillanceRNG(cfg.Seed), log, sinks...)
		if err != nil {
			closeAll()
			return err
		}
		observers = append(observers, m)
	}

	if reg == nil {
		_, err = run.Run(ctx, observers...)
		return interrupted(ctx, err, log)
	}

	serveCtx, stopServing := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(serveCtx)
	g.Go(func() error {
		return metrics.Serve(gctx, metricsAddr, reg, log)
	})
	g.Go(func() error {
		defer stopServing()
		_, err := run.Run(gctx, observers...)
		return err
	})
	return interrupted(ctx, g.Wait(), log)
}

// interrupted turns a stop requested through ctx into a clean exit. The
// observers have been closed by then, so the partial output is complete.
func interrupted(ctx context.Context, err error, log *zap.Logger) error {
	if err != nil && errors.Is(err, context.Canceled) && ctx.Err() != nil {
		log.Info("run interrupted", zap.Error(err))
		return nil
	}
	return err
}
