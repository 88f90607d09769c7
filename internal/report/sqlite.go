package report

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"episim/internal/model"
	"episim/internal/sim"
	"episim/internal/surveillance"
)

// SQLiteWriter is a sim.Observer that stores every timestep of a run in a
// SQLite database. Several runs can share one file; rows are keyed by run id.
type SQLiteWriter struct {
	db    *sql.DB
	tx    *sql.Tx
	runID string

	insertStep      *sql.Stmt
	insertCommunity *sql.Stmt
}

// RunInfo describes the run a SQLiteWriter records.
type RunInfo struct {
	RunID  string
	Policy string
	Seed   uint64
	Days   int
	People int
}

func schema() []string {
	states := stateColumns()
	daily := countColumns("new_")
	stepCols := make([]string, 0, len(states)+len(daily))
	for _, c := range append(states, daily...) {
		stepCols = append(stepCols, c+" INTEGER NOT NULL")
	}
	shareCols := make([]string, 0, model.NumLayers)
	for _, c := range attributionColumns() {
		shareCols = append(shareCols, c+" REAL NOT NULL")
	}
	return []string{`
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		policy TEXT NOT NULL,
		seed INTEGER NOT NULL,
		days INTEGER NOT NULL,
		people INTEGER NOT NULL,
		started_at DATETIME NOT NULL,
		finished_at DATETIME,
		timesteps INTEGER,
		completed INTEGER
	);`, `
	CREATE TABLE IF NOT EXISTS steps (
		run_id TEXT NOT NULL,
		timestep INTEGER NOT NULL,
		day INTEGER NOT NULL,
		policy TEXT NOT NULL,
		` + strings.Join(stepCols, ",\n\t\t") + `,
		affected INTEGER NOT NULL,
		detected INTEGER NOT NULL,
		seeded INTEGER NOT NULL,
		` + strings.Join(shareCols, ",\n\t\t") + `,
		PRIMARY KEY (run_id, timestep)
	);`, `
	CREATE TABLE IF NOT EXISTS community_steps (
		run_id TEXT NOT NULL,
		timestep INTEGER NOT NULL,
		ward INTEGER NOT NULL,
		infected INTEGER NOT NULL,
		affected INTEGER NOT NULL,
		hospitalised INTEGER NOT NULL,
		critical INTEGER NOT NULL,
		dead INTEGER NOT NULL,
		PRIMARY KEY (run_id, timestep, ward)
	);`, `
	CREATE TABLE IF NOT EXISTS wastewater_samples (
		run_id TEXT NOT NULL,
		day INTEGER NOT NULL,
		sewershed INTEGER NOT NULL,
		population INTEGER NOT NULL,
		concentration REAL NOT NULL,
		normalised REAL NOT NULL,
		load REAL NOT NULL,
		below_limit INTEGER NOT NULL,
		detected INTEGER NOT NULL,
		hospitalised INTEGER NOT NULL,
		deaths INTEGER NOT NULL,
		total_detected INTEGER NOT NULL,
		total_hospitalised INTEGER NOT NULL,
		total_deaths INTEGER NOT NULL,
		estimated INTEGER NOT NULL,
		active INTEGER NOT NULL,
		detection_ratio REAL NOT NULL,
		under_reporting REAL NOT NULL,
		PRIMARY KEY (run_id, day, sewershed)
	);`,
	}
}

// NewSQLiteWriter opens or creates the database at path and registers the run.
func NewSQLiteWriter(path string, info RunInfo) (*SQLiteWriter, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	for _, stmt := range schema() {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("create table: %w", err)
		}
	}
	if _, err := db.Exec(
		"INSERT INTO runs (run_id, policy, seed, days, people, started_at) VALUES (?, ?, ?, ?, ?, ?)",
		info.RunID, info.Policy, int64(info.Seed), info.Days, info.People, time.Now().UTC(),
	); err != nil {
		db.Close()
		return nil, fmt.Errorf("insert run %s: %w", info.RunID, err)
	}

	w := &SQLiteWriter{db: db, runID: info.RunID}
	if err := w.begin(); err != nil {
		db.Close()
		return nil, err
	}
	return w, nil
}

// begin opens the transaction that collects the rows of one day.
func (w *SQLiteWriter) begin() error {
	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	cols := append(stateColumns(), countColumns("new_")...)
	shares := attributionColumns()
	placeholders := strings.Repeat(", ?", len(cols)+len(shares)+7)[2:]
	step, err := tx.Prepare(fmt.Sprintf(
		"INSERT INTO steps (run_id, timestep, day, policy, %s, affected, detected, seeded, %s) VALUES (%s)",
		strings.Join(cols, ", "), strings.Join(shares, ", "), placeholders))
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare steps insert: %w", err)
	}
	community, err := tx.Prepare(
		"INSERT INTO community_steps (run_id, timestep, ward, infected, affected, hospitalised, critical, dead) VALUES (?, ?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare community insert: %w", err)
	}
	w.tx, w.insertStep, w.insertCommunity = tx, step, community
	return nil
}

func (w *SQLiteWriter) commit() error {
	tx := w.tx
	w.tx = nil
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Observe implements sim.Observer. Rows are committed at the end of each day.
func (w *SQLiteWriter) Observe(res sim.StepResult) error {
	args := []any{w.runID, res.Timestep, res.Day, res.Policy}
	for _, n := range res.States {
		args = append(args, n)
	}
	for _, n := range res.Daily.Values() {
		args = append(args, n)
	}
	args = append(args, res.Affected, res.Detected, res.Seeded)
	for _, share := range res.Attribution {
		args = append(args, share)
	}
	if _, err := w.insertStep.Exec(args...); err != nil {
		return fmt.Errorf("insert timestep %d: %w", res.Timestep, err)
	}
	for _, c := range res.Communities {
		if _, err := w.insertCommunity.Exec(w.runID, res.Timestep, c.Ward,
			c.Infected, c.Affected, c.Hospitalised, c.Critical, c.Dead); err != nil {
			return fmt.Errorf("insert ward %d at timestep %d: %w", c.Ward, res.Timestep, err)
		}
	}
	if !res.DayComplete {
		return nil
	}
	if err := w.commit(); err != nil {
		return err
	}
	return w.begin()
}

// WriteSamples implements surveillance.Sink. Samples join the rows of the
// open day.
func (w *SQLiteWriter) WriteSamples(samples []surveillance.Sample) error {
	if w.tx == nil {
		return fmt.Errorf("write samples of run %s: writer closed", w.runID)
	}
	placeholders := strings.Repeat(", ?", len(wastewaterHeader)+1)[2:]
	insert := fmt.Sprintf("INSERT INTO wastewater_samples (run_id, %s) VALUES (%s)",
		strings.Join(wastewaterHeader, ", "), placeholders)
	for _, s := range samples {
		args := append([]any{w.runID}, wastewaterRow(s)...)
		if _, err := w.tx.Exec(insert, args...); err != nil {
			return fmt.Errorf("insert sample of sewershed %d on day %d: %w", s.Sewershed, s.Day, err)
		}
	}
	return nil
}

// Close commits pending rows, finishes the run record and closes the database.
func (w *SQLiteWriter) Close(s sim.Summary) error {
	defer w.db.Close()
	if w.tx != nil {
		if err := w.commit(); err != nil {
			return err
		}
	}
	if _, err := w.db.Exec(
		"UPDATE runs SET finished_at = ?, timesteps = ?, completed = ? WHERE run_id = ?",
		time.Now().UTC(), s.Timesteps, s.Completed, w.runID,
	); err != nil {
		return fmt.Errorf("finish run %s: %w", w.runID, err)
	}
	return nil
}
